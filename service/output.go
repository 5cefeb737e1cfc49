package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"feed-processor/models"
)

// FeedDir is where output artifacts and the thumbnail cache live.
const FeedDir = "feed"

// Aggregate runs the pipeline over the feed map and writes the aggregated
// JSON array to outPath.
func (p *FeedProcessor) Aggregate(ctx context.Context, myFeeds map[string]models.PublisherRecord, outPath string) error {
	if err := os.MkdirAll(FeedDir, 0o755); err != nil {
		return fmt.Errorf("create feed dir: %w", err)
	}

	entries := p.AggregateRSS(ctx, myFeeds)
	if entries == nil {
		entries = []*models.NormalizedItem{}
	}
	return writeJSON(outPath, entries)
}

// AggregateShards runs the pipeline once and writes one output file per
// category under feed/category/.
func (p *FeedProcessor) AggregateShards(ctx context.Context, myFeeds map[string]models.PublisherRecord) error {
	if err := os.MkdirAll(filepath.Join(FeedDir, "category"), 0o755); err != nil {
		return fmt.Errorf("create category dir: %w", err)
	}

	byCategory := make(map[string][]*models.NormalizedItem)
	for _, item := range p.AggregateRSS(ctx, myFeeds) {
		byCategory[item.Category] = append(byCategory[item.Category], item)
	}

	for category, items := range byCategory {
		path := filepath.Join(FeedDir, "category", category+".json")
		if err := writeJSON(path, items); err != nil {
			return err
		}
	}
	return nil
}

// WriteReport writes the run's sidecar report.
func (p *FeedProcessor) WriteReport(path string) error {
	return writeJSON(path, p.report)
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// CopyFile replaces dst with src's contents; used for the tmp-then-copy
// output handoff.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
