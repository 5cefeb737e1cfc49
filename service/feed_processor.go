// Package service implements the aggregation pipeline: feed download, item
// normalization, dedup and freshness filtering, image verification and
// caching, HTML scrubbing, scoring, and output.
package service

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"feed-processor/config"
	"feed-processor/driver/objectstore"
	"feed-processor/fetch"
	"feed-processor/imageproc"
	"feed-processor/models"
)

const maxFeedBytes = 10000000 // 10M

// FeedProcessor drives one aggregation run. It is constructed at run start
// and carries the shared HTTP session, the image processor and the report;
// the report is mutated only by the coordinator, never from workers.
type FeedProcessor struct {
	cfg         *config.Config
	fetcher     *fetch.Fetcher
	session     *fetch.ScrapeSession
	unshortener *fetch.Unshortener
	imgProc     *imageproc.ImageProcessor
	logger      *slog.Logger

	report models.RunReport
	// feeds maps publisher_id to its registry record for the current run.
	feeds map[string]models.PublisherRecord
}

func NewFeedProcessor(cfg *config.Config, store objectstore.Store, logger *slog.Logger) *FeedProcessor {
	fetcher := fetch.NewFetcher()
	return &FeedProcessor{
		cfg:         cfg,
		fetcher:     fetcher,
		session:     fetch.NewScrapeSession(),
		unshortener: fetch.NewUnshortener(),
		imgProc:     imageproc.NewImageProcessor(store, cfg.PrivS3Bucket, fetcher, cfg.NoUpload, logger),
		logger:      logger,
		report:      models.NewRunReport(),
		feeds:       make(map[string]models.PublisherRecord),
	}
}

// Report returns the per-feed statistics of the last run.
func (p *FeedProcessor) Report() models.RunReport {
	return p.report
}

type downloadResult struct {
	key   string
	feed  *gofeed.Feed
	stats *models.FeedStats
}

// DownloadFeeds fetches and parses all publisher feeds with bounded
// parallelism. Failed and empty feeds are dropped without a report entry.
func (p *FeedProcessor) DownloadFeeds(ctx context.Context, myFeeds map[string]models.PublisherRecord) map[string]*gofeed.Feed {
	p.logger.Info("downloading feeds", "count", len(myFeeds))

	results := make(chan downloadResult)
	go func() {
		g := new(errgroup.Group)
		g.SetLimit(p.cfg.Concurrency)
		for feedURL := range myFeeds {
			feedURL := feedURL
			g.Go(func() error {
				if r := p.downloadFeed(ctx, feedURL); r != nil {
					results <- *r
				}
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	feedCache := make(map[string]*gofeed.Feed)
	for r := range results {
		p.report.FeedStats[r.key] = r.stats
		feedCache[r.key] = r.feed
		pub := myFeeds[r.key]
		p.feeds[pub.PublisherID] = pub
	}
	return feedCache
}

func (p *FeedProcessor) downloadFeed(ctx context.Context, feedURL string) *downloadResult {
	data, err := p.fetcher.GetFeed(ctx, feedURL, maxFeedBytes)
	if err != nil {
		// Failed over HTTPS; retry once over plain HTTP.
		u, parseErr := url.Parse(feedURL)
		if parseErr != nil {
			p.logger.Error("failed to parse feed url", "url", feedURL, "error", parseErr)
			return nil
		}
		u.Scheme = "http"
		data, err = p.fetcher.GetFeed(ctx, u.String(), maxFeedBytes)
		if err != nil {
			p.logger.Error("failed to get feed", "url", feedURL, "error", err)
			return nil
		}
	}

	feed, err := gofeed.NewParser().ParseString(string(data))
	if err != nil {
		p.logger.Error("feed failed to parse", "url", feedURL, "error", err)
		return nil
	}
	if len(feed.Items) == 0 {
		return nil
	}

	return &downloadResult{
		key:   feedURL,
		feed:  feed,
		stats: &models.FeedStats{SizeAfterGet: len(feed.Items)},
	}
}

// GetRSS downloads all feeds and normalizes their items with bounded
// parallelism per feed. size_after_insert counts items that survive
// normalization; dedup and freshness filtering happen later.
func (p *FeedProcessor) GetRSS(ctx context.Context, myFeeds map[string]models.PublisherRecord) []*models.NormalizedItem {
	feedCache := p.DownloadFeeds(ctx, myFeeds)

	p.logger.Info("normalizing items", "feeds", len(feedCache))

	var entries []*models.NormalizedItem
	for key, feed := range feedCache {
		pub := myFeeds[key]
		items := feed.Items
		max := pub.MaxEntries
		if max <= 0 {
			max = 20
		}
		if len(items) > max {
			items = items[:max]
		}

		results := make(chan *models.NormalizedItem)
		go func() {
			g := new(errgroup.Group)
			g.SetLimit(p.cfg.Concurrency)
			for _, item := range items {
				item := item
				g.Go(func() error {
					if out := p.fixupItem(ctx, item, pub); out != nil {
						results <- out
					}
					return nil
				})
			}
			g.Wait()
			close(results)
		}()

		for out := range results {
			entries = append(entries, out)
			p.report.FeedStats[key].SizeAfterInsert++
		}
	}
	return entries
}
