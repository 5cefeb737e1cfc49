package models

import "time"

// Enclosure mirrors the feed enclosure fields carried through for audio items.
type Enclosure struct {
	URL    string `json:"url"`
	Length string `json:"length,omitempty"`
	Type   string `json:"type,omitempty"`
}

// NormalizedItem is one output record of the aggregated feed.
//
// PublishedAt is the parsed UTC timestamp used for sorting, freshness and
// scoring; PublishTime is its serialized "YYYY-MM-DD HH:MM:SS" form assigned
// during dedup.
type NormalizedItem struct {
	Category           string      `json:"category"`
	PublishTime        string      `json:"publish_time"`
	URL                string      `json:"url"`
	URLHash            string      `json:"url_hash"`
	Img                string      `json:"img"`
	PaddedImg          string      `json:"padded_img"`
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	ContentType        string      `json:"content_type"`
	PublisherID        string      `json:"publisher_id"`
	PublisherName      string      `json:"publisher_name"`
	CreativeInstanceID string      `json:"creative_instance_id"`
	Score              float64     `json:"score"`
	Enclosures         []Enclosure `json:"enclosures,omitempty"`
	OffersCategory     string      `json:"offers_category,omitempty"`
	DateLiveFrom       string      `json:"date_live_from,omitempty"`
	DateLiveTo         string      `json:"date_live_to,omitempty"`

	PublishedAt time.Time `json:"-"`
	LiveFrom    time.Time `json:"-"`
	LiveTo      time.Time `json:"-"`
}

// ScrubStrings applies f to every serialized string field of the item.
func (n *NormalizedItem) ScrubStrings(f func(string) string) {
	n.Category = f(n.Category)
	n.PublishTime = f(n.PublishTime)
	n.URL = f(n.URL)
	n.URLHash = f(n.URLHash)
	n.Img = f(n.Img)
	n.PaddedImg = f(n.PaddedImg)
	n.Title = f(n.Title)
	n.Description = f(n.Description)
	n.ContentType = f(n.ContentType)
	n.PublisherID = f(n.PublisherID)
	n.PublisherName = f(n.PublisherName)
	n.CreativeInstanceID = f(n.CreativeInstanceID)
	n.OffersCategory = f(n.OffersCategory)
	n.DateLiveFrom = f(n.DateLiveFrom)
	n.DateLiveTo = f(n.DateLiveTo)
	for i := range n.Enclosures {
		n.Enclosures[i].URL = f(n.Enclosures[i].URL)
		n.Enclosures[i].Length = f(n.Enclosures[i].Length)
		n.Enclosures[i].Type = f(n.Enclosures[i].Type)
	}
}
