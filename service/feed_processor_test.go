package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feed-processor/models"
)

const articleHTML = `<html><head><title>An article</title></head><body>body text</body></html>`

// newFeedServer serves a two-item RSS feed plus the articles it links to.
func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC()
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Example</title><link>%s</link>
<item><title>First story</title><link>%s/article1</link><pubDate>%s</pubDate></item>
<item><title>Second story</title><link>%s/article2</link><pubDate>%s</pubDate></item>
</channel></rss>`,
			server.URL, server.URL, now.Add(-1*time.Hour).Format(time.RFC1123),
			server.URL, now.Add(-2*time.Hour).Format(time.RFC1123))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	})
	mux.HandleFunc("/article1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML)
	})
	mux.HandleFunc("/article2", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articleHTML)
	})
	mux.HandleFunc("/forbidden-article", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func e2ePublisher(feedURL string) models.PublisherRecord {
	return models.PublisherRecord{
		Category:           "Tech",
		PublisherName:      "Example News",
		ContentType:        "article",
		PublisherID:        "pub-e2e",
		MaxEntries:         20,
		DestinationDomains: models.DomainSet{"127.0.0.1"},
		FeedURL:            feedURL,
	}
}

func TestDownloadFeeds(t *testing.T) {
	server := newFeedServer(t)

	t.Run("parses and reports", func(t *testing.T) {
		p := newTestProcessor(t)
		feedURL := server.URL + "/rss"
		feeds := map[string]models.PublisherRecord{feedURL: e2ePublisher(feedURL)}

		cache := p.DownloadFeeds(context.Background(), feeds)
		require.Len(t, cache, 1)
		assert.Len(t, cache[feedURL].Items, 2)
		require.Contains(t, p.Report().FeedStats, feedURL)
		assert.Equal(t, 2, p.Report().FeedStats[feedURL].SizeAfterGet)
	})

	t.Run("empty feed is dropped without a report entry", func(t *testing.T) {
		p := newTestProcessor(t)
		feedURL := server.URL + "/empty"
		feeds := map[string]models.PublisherRecord{feedURL: e2ePublisher(feedURL)}

		cache := p.DownloadFeeds(context.Background(), feeds)
		assert.Empty(t, cache)
		assert.Empty(t, p.Report().FeedStats)
	})

	t.Run("unparseable feed is dropped", func(t *testing.T) {
		p := newTestProcessor(t)
		feedURL := server.URL + "/broken"
		feeds := map[string]models.PublisherRecord{feedURL: e2ePublisher(feedURL)}

		assert.Empty(t, p.DownloadFeeds(context.Background(), feeds))
	})

	t.Run("https failure falls back to plain http", func(t *testing.T) {
		p := newTestProcessor(t)
		// The test server only speaks plain HTTP, so the https attempt fails
		// at the TLS handshake and the http retry succeeds.
		feedURL := "https://" + strings.TrimPrefix(server.URL, "http://") + "/rss"
		feeds := map[string]models.PublisherRecord{feedURL: e2ePublisher(feedURL)}

		cache := p.DownloadFeeds(context.Background(), feeds)
		require.Len(t, cache, 1)
		assert.Len(t, cache[feedURL].Items, 2)
	})
}

func TestAggregateRSSEndToEnd(t *testing.T) {
	server := newFeedServer(t)
	p := newTestProcessor(t)
	feedURL := server.URL + "/rss"
	feeds := map[string]models.PublisherRecord{feedURL: e2ePublisher(feedURL)}

	entries := p.AggregateRSS(context.Background(), feeds)
	require.Len(t, entries, 2)

	// Most recent first; both items come from the same publisher so the
	// variety factor doubles on the second.
	assert.Equal(t, "First story", entries[0].Title)
	assert.Equal(t, "Second story", entries[1].Title)
	assert.InDelta(t, math.Log(3600)*2, entries[0].Score, 0.05)
	assert.InDelta(t, math.Log(7200)*4, entries[1].Score, 0.05)

	for _, entry := range entries {
		assert.Equal(t, server.URL+"/article"+map[string]string{"First story": "1", "Second story": "2"}[entry.Title], entry.URL)
		assert.NotEmpty(t, entry.URLHash)
		assert.NotEmpty(t, entry.PublishTime)
		assert.Equal(t, "pub-e2e", entry.PublisherID)
		assert.Equal(t, "Tech", entry.Category)
		assert.Empty(t, entry.Img, "articles carry no image")
		assert.Empty(t, entry.PaddedImg)
	}

	stats := p.Report().FeedStats[feedURL]
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.SizeAfterGet)
	assert.Equal(t, 2, stats.SizeAfterInsert)
}

func TestAggregateWritesOutput(t *testing.T) {
	server := newFeedServer(t)
	p := newTestProcessor(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	feedURL := server.URL + "/rss"
	feeds := map[string]models.PublisherRecord{feedURL: e2ePublisher(feedURL)}

	outPath := "feed.json"
	require.NoError(t, p.Aggregate(context.Background(), feeds, outPath))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	var out []*models.NormalizedItem
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Len(t, out, 2)
}

func TestAggregateEmptyRunWritesEmptyArray(t *testing.T) {
	p := newTestProcessor(t)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, p.Aggregate(context.Background(), nil, "feed.json"))

	data, err := os.ReadFile("feed.json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestCheckImageInItem(t *testing.T) {
	ogHTML := `<html><head><meta property="og:image" content="https://example.com/og.jpg"></head><body></body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.jpg", "/plain-article":
			w.WriteHeader(http.StatusOK)
		case "/og-article":
			fmt.Fprint(w, ogHTML)
		case "/forbidden-article":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	newItem := func(img, articlePath string) *models.NormalizedItem {
		return &models.NormalizedItem{
			PublisherID: "pub-img",
			URL:         server.URL + articlePath,
			Img:         img,
		}
	}

	t.Run("reachable image survives", func(t *testing.T) {
		p := newTestProcessor(t)
		item := newItem(server.URL+"/good.jpg", "/plain-article")
		p.checkImageInItem(context.Background(), item)
		assert.Equal(t, server.URL+"/good.jpg", item.Img)
	})

	t.Run("schemeless image defaults to http", func(t *testing.T) {
		p := newTestProcessor(t)
		item := newItem(strings.TrimPrefix(server.URL, "http:")+"/good.jpg", "/plain-article")
		p.checkImageInItem(context.Background(), item)
		assert.Equal(t, server.URL+"/good.jpg", item.Img)
	})

	t.Run("dead image cleared without og fallback", func(t *testing.T) {
		p := newTestProcessor(t)
		item := newItem(server.URL+"/missing.jpg", "/og-article")
		p.checkImageInItem(context.Background(), item)
		assert.Empty(t, item.Img, "publisher without og_images never consults page metadata")
	})

	t.Run("dead image falls back to og image when allowed", func(t *testing.T) {
		p := newTestProcessor(t)
		p.feeds["pub-img"] = models.PublisherRecord{PublisherID: "pub-img", OGImages: true}
		item := newItem(server.URL+"/missing.jpg", "/og-article")
		p.checkImageInItem(context.Background(), item)
		assert.Equal(t, "https://example.com/og.jpg", item.Img)
	})

	t.Run("no discovered image always consults page metadata", func(t *testing.T) {
		p := newTestProcessor(t)
		item := newItem("", "/og-article")
		p.checkImageInItem(context.Background(), item)
		assert.Equal(t, "https://example.com/og.jpg", item.Img)
	})

	t.Run("forbidden page is a silent miss", func(t *testing.T) {
		p := newTestProcessor(t)
		item := newItem("", "/forbidden-article")
		p.checkImageInItem(context.Background(), item)
		assert.Empty(t, item.Img)
	})
}
