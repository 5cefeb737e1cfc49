package fetch

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const maxUnshortenRedirects = 10

// Unshortener resolves short-link redirect chains to the final URL.
type Unshortener struct {
	client *http.Client
}

func NewUnshortener() *Unshortener {
	return &Unshortener{
		client: &http.Client{
			Transport: newTransport(),
			Timeout:   5 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxUnshortenRedirects {
					return fmt.Errorf("stopped after %d redirects", maxUnshortenRedirects)
				}
				return nil
			},
		},
	}
}

// Unshorten follows redirects from rawURL and returns the final URL. Any
// failure (connection error, timeout, TLS failure, invalid URL, too many
// redirects) is returned to the caller, which drops the owning item.
func (u *Unshortener) Unshorten(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	return resp.Request.URL.String(), nil
}
