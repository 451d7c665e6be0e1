package matching

import "job-notifier/internal/models"

const DefaultDigestLimit = 5

// ComposeDigest returns the first limit jobs in the order received. The
// returned slice never aliases the input.
func ComposeDigest(jobs []models.JobPosting, limit int) []models.JobPosting {
	if limit <= 0 {
		limit = DefaultDigestLimit
	}
	n := len(jobs)
	if n > limit {
		n = limit
	}
	out := make([]models.JobPosting, n)
	copy(out, jobs[:n])
	return out
}
