package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	goaway "github.com/TwiN/go-away"
	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"feed-processor/models"
	"feed-processor/utils/html_parser"
)

const maxDescriptionRunes = 500

// fixupItem validates and normalizes one feed entry. A nil return means the
// item was dropped; every gate drops silently.
func (p *FeedProcessor) fixupItem(ctx context.Context, item *gofeed.Item, pub models.PublisherRecord) *models.NormalizedItem {
	// Timestamp: updated wins over published; naive timestamps are UTC.
	raw := item.Updated
	if raw == "" {
		raw = item.Published
	}
	if raw == "" {
		return nil // skip (no update field)
	}
	publishedAt, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return nil // skip (no publish time)
	}
	publishedAt = publishedAt.UTC()

	link := item.Link
	if link == "" && len(item.Links) > 0 {
		link = item.Links[0]
	}
	if link == "" {
		return nil // skip (can't find link)
	}

	// The article host must be allow-listed by the publisher.
	if len(pub.DestinationDomains) == 0 {
		return nil
	}
	linkURL, err := url.Parse(link)
	if err != nil || !pub.DestinationDomains.Contains(strings.ToLower(linkURL.Hostname())) {
		return nil
	}

	if goaway.IsProfane(item.Title) {
		return nil
	}

	finalURL, err := p.unshortener.Unshorten(ctx, link)
	if err != nil {
		p.logger.Debug("unshortener failed", "link", link, "error", err)
		return nil // skip (unshortener failed)
	}

	img := discoverImage(item)

	if item.Title == "" {
		return nil // no title, skip
	}

	out := &models.NormalizedItem{
		Category:           pub.Category,
		URL:                finalURL,
		Img:                img,
		Title:              html_parser.StripTags(item.Title),
		Description:        truncateRunes(html_parser.StripTags(item.Description), maxDescriptionRunes),
		ContentType:        pub.ContentType,
		PublisherID:        pub.PublisherID,
		PublisherName:      pub.PublisherName,
		CreativeInstanceID: pub.CreativeInstanceID,
		PublishedAt:        publishedAt,
	}

	switch pub.ContentType {
	case "audio":
		for _, enc := range item.Enclosures {
			if enc == nil {
				continue
			}
			out.Enclosures = append(out.Enclosures, models.Enclosure{
				URL:    enc.URL,
				Length: enc.Length,
				Type:   enc.Type,
			})
		}
	case "product":
		if len(item.Categories) > 0 {
			out.OffersCategory = item.Categories[0]
		}
		if raw := item.Custom["date_live_from"]; raw != "" {
			if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
				out.LiveFrom = t.UTC()
			}
		}
		if raw := item.Custom["date_live_to"]; raw != "" {
			if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
				out.LiveTo = t.UTC()
			}
		}
	}

	if pub.FilterImages {
		out.Img = ""
	}

	return out
}

// discoverImage picks the item's representative image, first match wins:
// media:thumbnail, media:content, first <img> in the summary, urlToImage,
// the feed-level image, then the first <img> in the HTML content.
func discoverImage(item *gofeed.Item) string {
	if u := mediaExtensionURL(item, "thumbnail"); u != "" {
		return u
	}
	if u := mediaExtensionURL(item, "content"); u != "" {
		return u
	}
	if src := html_parser.FirstImgSrc(item.Description); src != "" {
		return src
	}
	if u, ok := item.Custom["urlToImage"]; ok && u != "" {
		return u
	}
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	if src := html_parser.FirstImgSrc(item.Content); src != "" {
		return src
	}
	return ""
}

func mediaExtensionURL(item *gofeed.Item, name string) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	exts := media[name]
	if len(exts) == 0 {
		return ""
	}
	return exts[0].Attrs["url"]
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
