package models

// FeedStats tracks how many entries a feed yielded at download time and how
// many survived normalization.
type FeedStats struct {
	SizeAfterGet    int `json:"size_after_get"`
	SizeAfterInsert int `json:"size_after_insert"`
}

// RunReport is the per-run sidecar report, keyed by feed URL.
type RunReport struct {
	FeedStats map[string]*FeedStats `json:"feed_stats"`
}

func NewRunReport() RunReport {
	return RunReport{FeedStats: make(map[string]*FeedStats)}
}
