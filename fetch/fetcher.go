package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// UserAgent is sent on every outbound scrape request.
const UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/87.0.4280.49 Safari/537.36"

// ErrTooLarge is returned when a response declares or delivers more bytes
// than the caller's limit.
var ErrTooLarge = errors.New("response exceeds max bytes")

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http error with status code %d", e.Code)
}

// Fetcher performs byte-capped downloads. Feed fetches never follow
// redirects; image fetches may.
type Fetcher struct {
	feed  *http.Client
	image *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		feed: &http.Client{
			Transport: newTransport(),
			Timeout:   10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		image: &http.Client{
			Transport: newTransport(),
			Timeout:   10 * time.Second,
		},
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// GetFeed downloads a feed document without following redirects.
func (f *Fetcher) GetFeed(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	return getWithMaxSize(ctx, f.feed, url, maxBytes)
}

// GetImage downloads an image, following redirects.
func (f *Fetcher) GetImage(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	return getWithMaxSize(ctx, f.image, url, maxBytes)
}

func getWithMaxSize(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if declared, err := strconv.ParseInt(cl, 10, 64); err == nil && declared > maxBytes {
			return nil, ErrTooLarge
		}
	}

	// Stream with a hard cap; abort as soon as the body exceeds the limit.
	var content bytes.Buffer
	n, err := io.Copy(&content, io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if n > maxBytes {
		return nil, ErrTooLarge
	}
	return content.Bytes(), nil
}
