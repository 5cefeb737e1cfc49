// Package imageproc caches publisher images as fixed-size padded thumbnails.
// The image decoder is treated as untrusted and runs out of process.
package imageproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"feed-processor/driver/objectstore"
	"feed-processor/fetch"
)

const (
	// CacheDir is the local content-addressed thumbnail directory.
	CacheDir = "feed/cache"

	// CacheKeyPrefix is the object-store key prefix for cached thumbnails.
	CacheKeyPrefix = "brave-today/cache/"

	maxImageBytes = 5000000 // 5MB
)

// suppressedStatuses are image-fetch HTTP failures too common to be worth a
// log line.
var suppressedStatuses = map[int]bool{403: true, 429: true, 500: true, 502: true, 503: true}

// ImageProcessor caches source images as padded thumbnails, locally and in
// the private object-store bucket.
type ImageProcessor struct {
	store    objectstore.Store
	bucket   string
	fetcher  *fetch.Fetcher
	cacheDir string
	noUpload bool
	logger   *slog.Logger
}

func NewImageProcessor(store objectstore.Store, bucket string, fetcher *fetch.Fetcher, noUpload bool, logger *slog.Logger) *ImageProcessor {
	return &ImageProcessor{
		store:    store,
		bucket:   bucket,
		fetcher:  fetcher,
		cacheDir: CacheDir,
		noUpload: noUpload,
		logger:   logger,
	}
}

// CacheFilename returns the content-addressed thumbnail name for a source URL.
func CacheFilename(srcURL string) string {
	sum := sha256.Sum256([]byte(srcURL))
	return hex.EncodeToString(sum[:]) + ".jpg"
}

// CacheImage ensures a padded thumbnail exists for srcURL and returns its
// cache filename. An empty return with nil error means the image was skipped
// for this run; the item emits without an image and the next run retries.
func (p *ImageProcessor) CacheImage(ctx context.Context, srcURL string) (string, error) {
	cacheFn := CacheFilename(srcURL)
	cachePath := filepath.Join(p.cacheDir, cacheFn)

	// Already processed locally.
	if _, err := os.Stat(cachePath + ".pad"); err == nil {
		return cacheFn, nil
	}

	// Already processed by a previous run.
	if !p.noUpload {
		exists, err := p.store.Exists(ctx, p.bucket, CacheKeyPrefix+cacheFn+".pad")
		if err != nil {
			// Transient store failure; treat as uncached so the next run retries.
			p.logger.Warn("object store probe failed", "url", srcURL, "error", err)
			return "", nil
		}
		if exists {
			return cacheFn, nil
		}
	}

	content, err := p.fetcher.GetImage(ctx, srcURL, maxImageBytes)
	if err != nil {
		var statusErr *fetch.StatusError
		switch {
		case errors.Is(err, fetch.ErrTooLarge):
			// skipping (image exceeds maximum size)
		case errors.As(err, &statusErr):
			if !suppressedStatuses[statusErr.Code] {
				p.logger.Error("failed to get image", "status", statusErr.Code, "url", srcURL)
			}
		default:
			// Timeouts and connection failures are routine for publisher CDNs.
		}
		return "", nil
	}

	if !resizeAndPadImage(ctx, content, ThumbWidth, ThumbHeight, ThumbMaxBytes, cachePath) {
		p.logger.Error("failed to cache image", "url", srcURL)
		return "", nil
	}

	if !p.noUpload {
		if err := p.store.Upload(ctx, cachePath+".pad", p.bucket, CacheKeyPrefix+cacheFn+".pad"); err != nil {
			return "", err
		}
	}
	return cacheFn, nil
}
