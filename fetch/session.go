package fetch

import (
	"context"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const sessionTTL = 2 * time.Hour

// ScrapeSession is a shared HTTP client with an in-memory response cache
// (2-hour TTL). It backs image HEAD verification and metadata scraping and is
// safe for concurrent use.
type ScrapeSession struct {
	client *http.Client
	cache  *gocache.Cache
}

type cachedResponse struct {
	status int
	body   []byte
	url    string
}

func NewScrapeSession() *ScrapeSession {
	return &ScrapeSession{
		client: &http.Client{
			Transport: newTransport(),
			Timeout:   5 * time.Second,
		},
		cache: gocache.New(sessionTTL, 10*time.Minute),
	}
}

// Head issues a redirect-following HEAD request and returns the final status
// code and URL. Only 200 responses are cached, so transient failures are
// retried on the next lookup.
func (s *ScrapeSession) Head(ctx context.Context, url string) (status int, finalURL string, err error) {
	key := "HEAD " + url
	if hit, ok := s.cache.Get(key); ok {
		cached := hit.(*cachedResponse)
		return cached.status, cached.url, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	final := resp.Request.URL.String()
	if resp.StatusCode == http.StatusOK {
		s.cache.SetDefault(key, &cachedResponse{status: resp.StatusCode, url: final})
	}
	return resp.StatusCode, final, nil
}

// Get fetches a page body (capped at maxBytes) for metadata parsing. Only 200
// responses are cached.
func (s *ScrapeSession) Get(ctx context.Context, url string, maxBytes int64) (status int, body []byte, err error) {
	key := "GET " + url
	if hit, ok := s.cache.Get(key); ok {
		cached := hit.(*cachedResponse)
		return cached.status, cached.body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return 0, nil, err
	}

	if resp.StatusCode == http.StatusOK {
		s.cache.SetDefault(key, &cachedResponse{status: resp.StatusCode, body: data})
	}
	return resp.StatusCode, data, nil
}
