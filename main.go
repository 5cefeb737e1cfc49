package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"feed-processor/config"
	"feed-processor/driver/objectstore"
	"feed-processor/imageproc"
	"feed-processor/models"
	"feed-processor/registry"
	"feed-processor/service"
	"feed-processor/utils/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	log := logger.Init(cfg.LogLevel)

	if cfg.SentryURL != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryURL}); err != nil {
			log.Error("sentry initialization failed", "error", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	root := &cobra.Command{
		Use:           "feed-processor",
		Short:         "Aggregates publisher RSS/Atom feeds into a single scored JSON feed",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newAggregateCmd(cfg),
		newSourcesCmd(cfg),
		newCheckReportCmd(),
		newThumbnailWorkerCmd(),
	)

	if err := root.Execute(); err != nil {
		if cfg.SentryURL != "" {
			sentry.CaptureException(err)
		}
		log.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func newStore(ctx context.Context, cfg *config.Config) (objectstore.Store, error) {
	if cfg.NoUpload {
		return objectstore.NoopStore{}, nil
	}
	return objectstore.NewS3Store(ctx)
}

// uploadSuffix derives the artifact key suffix from SOURCES_FILE, with the
// literal "sources" characters trimmed ("sources.en_US" becomes ".en_US").
func uploadSuffix(sourcesFile string) string {
	return strings.Trim(sourcesFile, "sources")
}

func newAggregateCmd(cfg *config.Config) *cobra.Command {
	var shards bool

	cmd := &cobra.Command{
		Use:   "aggregate [category]",
		Short: "Run the aggregation pipeline for a category (default: feed)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category := "feed"
			if len(args) > 0 {
				category = args[0]
			}

			ctx := cmd.Context()
			store, err := newStore(ctx, cfg)
			if err != nil {
				return err
			}

			feeds, err := loadFeedMap(category + ".json")
			if err != nil {
				return err
			}

			p := service.NewFeedProcessor(cfg, store, logger.Logger)

			if shards {
				if err := p.AggregateShards(ctx, feeds); err != nil {
					return err
				}
				return p.WriteReport("report.json")
			}

			tmpPath := fmt.Sprintf("feed/%s.json-tmp", category)
			outPath := fmt.Sprintf("feed/%s.json", category)
			if err := p.Aggregate(ctx, feeds, tmpPath); err != nil {
				return err
			}
			if err := service.CopyFile(tmpPath, outPath); err != nil {
				return err
			}

			if !cfg.NoUpload {
				suffix := uploadSuffix(cfg.SourcesFile)
				key := fmt.Sprintf("brave-today/%s%s.json", category, suffix)
				if err := store.Upload(ctx, outPath, cfg.PubS3Bucket, key); err != nil {
					return err
				}
				// Legacy key kept for older clients that drop the dot.
				legacyKey := fmt.Sprintf("brave-today/%s%sjson", category, suffix)
				if err := store.Upload(ctx, outPath, cfg.PubS3Bucket, legacyKey); err != nil {
					return err
				}
			}

			return p.WriteReport("report.json")
		},
	}
	cmd.Flags().BoolVar(&shards, "shards", false, "write per-category shards under feed/category/ instead of a single file")
	return cmd
}

func newSourcesCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sources <out.json>",
		Short: "Convert the publisher registry CSV into the feed map and sources list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			byURL, sources, err := registry.Load(cfg.SourcesFile + ".csv")
			if err != nil {
				return err
			}
			if err := registry.WriteJSON(args[0], byURL); err != nil {
				return err
			}
			if err := registry.WriteJSON("sources.json", sources); err != nil {
				return err
			}

			if !cfg.NoUpload {
				ctx := cmd.Context()
				store, err := newStore(ctx, cfg)
				if err != nil {
					return err
				}
				if err := store.Upload(ctx, "sources.json", cfg.PubS3Bucket, cfg.SourcesFile+".json"); err != nil {
					return err
				}
				if err := store.Upload(ctx, "sources.json", cfg.PubS3Bucket, cfg.SourcesFile+"json"); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newCheckReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-report [report.json]",
		Short: "Verify the per-feed statistics of the last run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "report.json"
			if len(args) > 0 {
				path = args[0]
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var report models.RunReport
			if err := json.Unmarshal(data, &report); err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}

			if !service.CheckReport(report, logger.Logger) {
				return fmt.Errorf("report check failed")
			}
			return nil
		},
	}
}

// newThumbnailWorkerCmd is the sandbox child process: it hosts the untrusted
// image decoder, reading the raw image from stdin.
func newThumbnailWorkerCmd() *cobra.Command {
	var (
		width     int
		height    int
		size      int
		cachePath string
	)

	cmd := &cobra.Command{
		Use:    imageproc.WorkerCommand,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return imageproc.RunWorker(os.Stdin, width, height, size, cachePath)
		},
	}
	cmd.Flags().IntVar(&width, "width", imageproc.ThumbWidth, "canvas width")
	cmd.Flags().IntVar(&height, "height", imageproc.ThumbHeight, "canvas height")
	cmd.Flags().IntVar(&size, "size", imageproc.ThumbMaxBytes, "output byte budget")
	cmd.Flags().StringVar(&cachePath, "cache-path", "", "artifact path without extension")
	_ = cmd.MarkFlagRequired("cache-path")
	return cmd
}

func loadFeedMap(path string) (map[string]models.PublisherRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed input: %w", err)
	}
	var feeds map[string]models.PublisherRecord
	if err := json.Unmarshal(data, &feeds); err != nil {
		return nil, fmt.Errorf("parse feed input %s: %w", path, err)
	}
	return feeds, nil
}
