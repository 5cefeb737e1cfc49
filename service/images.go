package service

import (
	"bytes"
	"context"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"feed-processor/imageproc"
	"feed-processor/models"
	"feed-processor/utils/html_parser"
)

const maxMetaBytes = 1 << 20

// metaSuppressedStatuses are page-scrape failures too common to log.
var metaSuppressedStatuses = map[int]bool{403: true, 429: true, 500: true, 502: true, 503: true}

// checkImages verifies every discovered image URL, falls back to page
// metadata where allowed, and replaces surviving URLs with their cached CDN
// form. Both passes run with bounded parallelism; items are independent.
func (p *FeedProcessor) checkImages(ctx context.Context, items []*models.NormalizedItem) []*models.NormalizedItem {
	p.logger.Info("checking images", "count", len(items))
	p.forEachItem(ctx, items, p.checkImageInItem)

	p.logger.Info("caching images", "count", len(items))
	p.forEachItem(ctx, items, p.processImage)
	return items
}

func (p *FeedProcessor) forEachItem(ctx context.Context, items []*models.NormalizedItem, f func(context.Context, *models.NormalizedItem)) {
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)
	for _, item := range items {
		item := item
		g.Go(func() error {
			f(ctx, item)
			return nil
		})
	}
	g.Wait()
}

// checkImageInItem HEADs the discovered image and clears it on anything but
// a 200. When the publisher allows OpenGraph fallback (or no image was ever
// discovered) the item's page metadata is consulted.
func (p *FeedProcessor) checkImageInItem(ctx context.Context, item *models.NormalizedItem) {
	hadImage := item.Img != ""

	if item.Img != "" {
		u, err := url.Parse(item.Img)
		if err != nil {
			p.logger.Error("can't parse image url", "img", item.Img, "error", err)
			item.Img = ""
		} else {
			if u.Scheme == "" {
				u.Scheme = "http"
			}
			probeURL := u.String()
			status, _, err := p.session.Head(ctx, probeURL)
			if err != nil || status != http.StatusOK {
				item.Img = ""
			} else {
				item.Img = probeURL
			}
		}
	}

	if item.Img == "" && (!hadImage || p.feeds[item.PublisherID].OGImages) {
		p.metaImageFallback(ctx, item)
	}
}

func (p *FeedProcessor) metaImageFallback(ctx context.Context, item *models.NormalizedItem) {
	status, body, err := p.session.Get(ctx, item.URL, maxMetaBytes)
	if err != nil {
		p.logger.Debug("metadata fetch failed", "url", item.URL, "error", err)
		return
	}
	if status != http.StatusOK {
		if !metaSuppressedStatuses[status] {
			p.logger.Error("error parsing page", "status", status, "url", item.URL)
		}
		return
	}

	img, err := html_parser.MetaImage(bytes.NewReader(body))
	if err != nil {
		p.logger.Error("error parsing page metadata", "url", item.URL, "error", err)
		return
	}
	if img != "" {
		item.Img = img
	}
}

// processImage pushes a verified image through the thumbnail cache and
// rewrites it to the CDN form. padded_img is always present, possibly empty.
func (p *FeedProcessor) processImage(ctx context.Context, item *models.NormalizedItem) {
	item.PaddedImg = ""
	if item.Img == "" {
		return
	}

	cacheFn, err := p.imgProc.CacheImage(ctx, item.Img)
	if err != nil {
		p.logger.Error("image caching failed", "img", item.Img, "error", err)
		cacheFn = ""
	}
	if cacheFn == "" {
		item.Img = ""
		return
	}
	item.Img = p.cfg.PCDNURLBase + "/" + imageproc.CacheKeyPrefix + cacheFn
	item.PaddedImg = item.Img + ".pad"
}
