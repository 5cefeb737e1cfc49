package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnshorten(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/short":
			http.Redirect(w, r, "/medium", http.StatusMovedPermanently)
		case "/medium":
			http.Redirect(w, r, "/article", http.StatusFound)
		case "/loop":
			http.Redirect(w, r, "/loop", http.StatusFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	u := NewUnshortener()

	t.Run("follows the redirect chain", func(t *testing.T) {
		final, err := u.Unshorten(context.Background(), server.URL+"/short")
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/article", final)
	})

	t.Run("plain url resolves to itself", func(t *testing.T) {
		final, err := u.Unshorten(context.Background(), server.URL+"/article")
		require.NoError(t, err)
		assert.Equal(t, server.URL+"/article", final)
	})

	t.Run("redirect loop surfaces an error", func(t *testing.T) {
		_, err := u.Unshorten(context.Background(), server.URL+"/loop")
		assert.Error(t, err)
	})

	t.Run("connection error surfaces", func(t *testing.T) {
		_, err := u.Unshorten(context.Background(), "http://127.0.0.1:1/short")
		assert.Error(t, err)
	})

	t.Run("invalid url surfaces", func(t *testing.T) {
		_, err := u.Unshorten(context.Background(), "http://[::1]:namedport/")
		assert.Error(t, err)
	})
}
