package service

import (
	"log/slog"

	"feed-processor/models"
)

// CheckReport validates a run report: every feed must have downloaded and
// inserted at least one entry, and can never insert more than it downloaded.
// Any violation fails the run.
func CheckReport(report models.RunReport, logger *slog.Logger) bool {
	success := true
	for feed, stats := range report.FeedStats {
		if stats.SizeAfterInsert > stats.SizeAfterGet {
			logger.Error("logic error: inserted more posts than downloaded",
				"feed", feed, "inserted", stats.SizeAfterInsert, "downloaded", stats.SizeAfterGet)
			success = false
		}
		if stats.SizeAfterGet == 0 {
			logger.Error("didn't get any posts", "feed", feed)
			success = false
		}
		if stats.SizeAfterInsert == 0 {
			logger.Error("didn't insert any posts", "feed", feed)
			success = false
		}
	}
	return success
}
