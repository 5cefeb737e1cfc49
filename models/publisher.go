package models

import (
	"encoding/json"
	"strings"
)

// DomainSet is the publisher's allow-list of article hosts. The registry CSV
// carries it as a semicolon-separated string; the feed input JSON may carry
// either that string or a list.
type DomainSet []string

func (d *DomainSet) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*d = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = SplitDomains(s)
	return nil
}

// SplitDomains parses the semicolon-separated registry form.
func SplitDomains(s string) DomainSet {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make(DomainSet, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Contains is exact set membership; callers pass the lowercased URL host.
func (d DomainSet) Contains(host string) bool {
	for _, domain := range d {
		if domain == host {
			return true
		}
	}
	return false
}

// PublisherRecord is one entry of the publisher registry, immutable for a run.
type PublisherRecord struct {
	Category           string    `json:"category"`
	Default            bool      `json:"default"`
	PublisherName      string    `json:"publisher_name"`
	ContentType        string    `json:"content_type"`
	PublisherDomain    string    `json:"publisher_domain"`
	PublisherID        string    `json:"publisher_id"`
	MaxEntries         int       `json:"max_entries"`
	OGImages           bool      `json:"og_images"`
	CreativeInstanceID string    `json:"creative_instance_id"`
	FeedURL            string    `json:"url"`
	DestinationDomains DomainSet `json:"destination_domains"`
	FilterImages       bool      `json:"filter_images,omitempty"`
}

// SourceRecord is one entry of the client-facing sources list emitted by the
// registry loader, sorted by publisher name.
type SourceRecord struct {
	Enabled            bool     `json:"enabled"`
	PublisherName      string   `json:"publisher_name"`
	Category           string   `json:"category"`
	DestinationDomains []string `json:"destination_domains"`
	SiteURL            string   `json:"site_url"`
	FeedURL            string   `json:"feed_url"`
	Score              float64  `json:"score"`
	PublisherID        string   `json:"publisher_id"`
}
