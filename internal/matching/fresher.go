package matching

import (
	"strings"

	"job-notifier/internal/models"
)

// fresherLiterals is deliberately narrower than the parser's fresher bucket
// and includes "0-1".
var fresherLiterals = map[string]struct{}{
	"0":   {},
	"0-0": {},
	"0-1": {},
}

// IsFresherJob classifies a posting as entry-level by literal match on its
// experience text.
func IsFresherJob(job models.JobPosting) bool {
	exp := strings.ToLower(job.ExperienceRaw)
	if strings.Contains(exp, "fresher") {
		return true
	}
	_, ok := fresherLiterals[exp]
	return ok
}

func fresherSubset(pool []models.JobPosting) []models.JobPosting {
	var out []models.JobPosting
	for _, job := range pool {
		if IsFresherJob(job) {
			out = append(out, job)
		}
	}
	return out
}
