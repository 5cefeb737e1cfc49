package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFeed(t *testing.T) {
	body := strings.Repeat("x", 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			fmt.Fprint(w, body)
		case "/notfound":
			w.WriteHeader(http.StatusNotFound)
		case "/redirect":
			http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
		case "/huge-declared":
			w.Header().Set("Content-Length", "1000000")
			w.WriteHeader(http.StatusOK)
		case "/stream":
			// Flush between writes so no Content-Length is declared.
			fmt.Fprint(w, body)
			w.(http.Flusher).Flush()
			fmt.Fprint(w, body)
		}
	}))
	defer server.Close()

	f := NewFetcher()

	t.Run("success under limit", func(t *testing.T) {
		data, err := f.GetFeed(context.Background(), server.URL+"/ok", 2048)
		require.NoError(t, err)
		assert.Equal(t, body, string(data))
	})

	t.Run("declared content-length over limit", func(t *testing.T) {
		_, err := f.GetFeed(context.Background(), server.URL+"/huge-declared", 2048)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("streamed body over limit aborts", func(t *testing.T) {
		_, err := f.GetFeed(context.Background(), server.URL+"/stream", 100)
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("non-200 rejected", func(t *testing.T) {
		_, err := f.GetFeed(context.Background(), server.URL+"/notfound", 2048)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.Code)
	})

	t.Run("feed fetch does not follow redirects", func(t *testing.T) {
		_, err := f.GetFeed(context.Background(), server.URL+"/redirect", 2048)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusMovedPermanently, statusErr.Code)
	})

	t.Run("image fetch follows redirects", func(t *testing.T) {
		data, err := f.GetImage(context.Background(), server.URL+"/redirect", 2048)
		require.NoError(t, err)
		assert.Equal(t, body, string(data))
	})
}

func TestGetFeedSendsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	_, err := NewFetcher().GetFeed(context.Background(), server.URL, 1024)
	require.NoError(t, err)
	assert.Equal(t, UserAgent, gotUA)
}

func TestGetFeedConnectionError(t *testing.T) {
	_, err := NewFetcher().GetFeed(context.Background(), "http://127.0.0.1:1/feed.xml", 1024)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrTooLarge))
}
