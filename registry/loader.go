// Package registry loads the publisher registry CSV and emits the feed map
// and client-facing sources list.
package registry

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"feed-processor/models"
)

// CSV column layout of the publisher registry. Row 1 is a header.
const (
	colPublisherDomain = iota
	colFeedURL
	colPublisherName
	colCategory
	colDefaultEnabled
	colScore
	colOGImages
	colContentType
	colCreativeInstanceID
	colDestinationDomains
	columnCount
)

const defaultMaxEntries = 20

// Load parses the registry CSV into the feed map keyed by canonical feed URL
// and the sources list sorted by publisher name.
func Load(path string) (map[string]models.PublisherRecord, []models.SourceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open registry: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse registry csv: %w", err)
	}

	scrubber := bluemonday.StrictPolicy()

	byURL := make(map[string]models.PublisherRecord)
	var sources []models.SourceRecord
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) < columnCount {
			return nil, nil, fmt.Errorf("registry row %d has %d columns, want %d", i+1, len(row), columnCount)
		}
		for j := range row {
			row[j] = scrubber.Sanitize(row[j])
		}
		if strings.TrimSpace(row[colPublisherName]) == "" {
			// no title = no use
			continue
		}

		feedURL := CanonicalFeedURL(row[colFeedURL])
		publisherID := PublisherID(feedURL)

		contentType := row[colContentType]
		if contentType == "" {
			contentType = "article"
		}

		record := models.PublisherRecord{
			Category:           row[colCategory],
			Default:            row[colDefaultEnabled] == "Enabled",
			PublisherName:      row[colPublisherName],
			ContentType:        contentType,
			PublisherDomain:    row[colPublisherDomain],
			PublisherID:        publisherID,
			MaxEntries:         defaultMaxEntries,
			OGImages:           row[colOGImages] == "On",
			CreativeInstanceID: row[colCreativeInstanceID],
			FeedURL:            feedURL,
			DestinationDomains: models.SplitDomains(row[colDestinationDomains]),
		}
		byURL[feedURL] = record

		score, _ := strconv.ParseFloat(row[colScore], 64)
		sources = append(sources, models.SourceRecord{
			Enabled:            record.Default,
			PublisherName:      record.PublisherName,
			Category:           record.Category,
			DestinationDomains: strings.Split(row[colDestinationDomains], ";"),
			SiteURL:            row[colPublisherDomain],
			FeedURL:            row[colFeedURL],
			Score:              score,
			PublisherID:        publisherID,
		})
	}

	sort.SliceStable(sources, func(a, b int) bool {
		return sources[a].PublisherName < sources[b].PublisherName
	})

	return byURL, sources, nil
}

// CanonicalFeedURL forces the feed URL scheme to https.
func CanonicalFeedURL(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return feedURL
	}
	u.Scheme = "https"
	return u.String()
}

// PublisherID derives the stable publisher identifier from the canonical
// feed URL.
func PublisherID(canonicalFeedURL string) string {
	sum := sha256.Sum256([]byte(canonicalFeedURL))
	return hex.EncodeToString(sum[:])
}

// WriteJSON serializes v to path.
func WriteJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
