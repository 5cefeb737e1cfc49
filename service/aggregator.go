package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stdhtml "html"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"feed-processor/models"
)

const (
	publishTimeFormat = "2006-01-02 15:04:05"
	freshnessWindow   = 60 * 24 * time.Hour
)

// AggregateRSS runs the full pipeline over the given feed map and returns the
// scored output items, most recent first.
func (p *FeedProcessor) AggregateRSS(ctx context.Context, myFeeds map[string]models.PublisherRecord) []*models.NormalizedItem {
	entries := p.GetRSS(ctx, myFeeds)

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PublishedAt.After(entries[j].PublishedAt)
	})

	entries = p.fixupEntries(ctx, entries)
	entries = scrubHTML(entries)
	entries = scoreEntries(entries, time.Now().UTC())
	return entries
}

// fixupEntries applies whole-feed fixups to the time-sorted items: freshness
// window, URL encoding and hashing, dedup (first occurrence wins), timestamp
// formatting and title unescaping, then image verification and caching.
func (p *FeedProcessor) fixupEntries(ctx context.Context, sorted []*models.NormalizedItem) []*models.NormalizedItem {
	nowUTC := time.Now().UTC()
	seen := make(map[string]bool)

	var out []*models.NormalizedItem
	for _, item := range sorted {
		// url_hash is computed over the raw URL; the emitted url is the
		// path-encoded form.
		sum := sha256.Sum256([]byte(item.URL))
		urlHash := hex.EncodeToString(sum[:])
		encodedURL := encodeURLPath(item.URL)

		if item.ContentType != "product" {
			if item.PublishedAt.After(nowUTC) || item.PublishedAt.Before(nowUTC.Add(-freshnessWindow)) {
				continue // skip (newer than now or outside the freshness window)
			}
		}
		if seen[encodedURL] {
			continue // skip (duplicate url)
		}

		item.PublishTime = item.PublishedAt.Format(publishTimeFormat)
		if !item.LiveFrom.IsZero() {
			item.DateLiveFrom = item.LiveFrom.Format(publishTimeFormat)
		}
		if !item.LiveTo.IsZero() {
			item.DateLiveTo = item.LiveTo.Format(publishTimeFormat)
		}
		item.Title = stdhtml.UnescapeString(item.Title)
		item.URL = encodedURL
		item.URLHash = urlHash
		out = append(out, item)
		seen[encodedURL] = true
	}

	return p.checkImages(ctx, out)
}

var scrubPolicy = bluemonday.StrictPolicy()

// scrubHTML sanitizes every string field of every item and undoes the
// scrubber's over-escaping of ampersands.
func scrubHTML(entries []*models.NormalizedItem) []*models.NormalizedItem {
	for _, item := range entries {
		item.ScrubStrings(func(s string) string {
			if s == "" {
				return s
			}
			s = scrubPolicy.Sanitize(s)
			return strings.ReplaceAll(s, "&amp;", "&")
		})
	}
	return entries
}

// scoreEntries walks the descending-time list and scores each item by
// recency, doubling a per-publisher variety factor for every further item
// from the same source.
func scoreEntries(entries []*models.NormalizedItem, nowUTC time.Time) []*models.NormalizedItem {
	varietyBySource := make(map[string]float64)
	for _, entry := range entries {
		secondsAgo := nowUTC.Sub(entry.PublishedAt).Seconds()
		if secondsAgo < 1 {
			// Future-dated products would otherwise produce a non-finite
			// score and break serialization.
			secondsAgo = 1
		}
		recency := math.Log(secondsAgo)

		lastVariety, ok := varietyBySource[entry.PublisherID]
		if !ok {
			lastVariety = 1.0
		}
		variety := lastVariety * 2.0
		entry.Score = recency * variety
		varietyBySource[entry.PublisherID] = variety
	}
	return entries
}

// encodeURLPath percent-encodes the URL's path component the way downstream
// consumers expect: every byte outside unreserved characters and "/" is
// escaped, including "%" itself.
func encodeURLPath(rawURL string) string {
	schemeEnd := strings.Index(rawURL, "://")
	if schemeEnd < 0 {
		return rawURL
	}
	rest := rawURL[schemeEnd+3:]

	hostEnd := strings.IndexAny(rest, "/?#")
	if hostEnd < 0 || rest[hostEnd] != '/' {
		return rawURL
	}
	pathEnd := len(rest)
	if i := strings.IndexAny(rest[hostEnd:], "?#"); i >= 0 {
		pathEnd = hostEnd + i
	}

	return rawURL[:schemeEnd+3] + rest[:hostEnd] + quotePath(rest[hostEnd:pathEnd]) + rest[pathEnd:]
}

func quotePath(path string) string {
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		if isUnreservedOrSlash(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0xf])
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"

func isUnreservedOrSlash(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '.', '_', '~', '/':
		return true
	}
	return false
}
