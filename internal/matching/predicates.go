package matching

import (
	"regexp"
	"strings"

	"job-notifier/internal/models"
)

var wordSplitter = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// jobTokens collects the lowercase text attributes a branch token may match.
// Fields are kept whole so "mechanical" matches "mechanical engineer".
func jobTokens(job models.JobPosting) []string {
	fields := make([]string, 0, 4+len(job.Skills))
	fields = append(fields, job.JobType, job.Category, job.LocationType, job.Title)
	fields = append(fields, job.Skills...)

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// MatchesBranch reports whether any branch token is a substring of any job
// token. An empty token set matches every job.
func MatchesBranch(job models.JobPosting, branchTokens []string) bool {
	return matchesBranch(job, branchTokens, 0)
}

// matchesBranch applies the optional hardening: tokens shorter than
// minLen must equal a whole word of a job token instead of a substring.
func matchesBranch(job models.JobPosting, branchTokens []string, minLen int) bool {
	if len(branchTokens) == 0 {
		return true
	}
	for _, jt := range jobTokens(job) {
		for _, bt := range branchTokens {
			if minLen > 0 && len([]rune(bt)) < minLen {
				if containsWord(jt, bt) {
					return true
				}
				continue
			}
			if strings.Contains(jt, bt) {
				return true
			}
		}
	}
	return false
}

func containsWord(text, word string) bool {
	for _, w := range wordSplitter.Split(text, -1) {
		if w == word {
			return true
		}
	}
	return false
}

// MatchesExperience reports whether the job's parsed range overlaps the
// contact range. An unparseable job range or a nil contact range is false.
func MatchesExperience(job models.JobPosting, contactRange *ExperienceRange) bool {
	if contactRange == nil {
		return false
	}
	jobRange := ParseExperience(job.ExperienceRaw)
	if jobRange == nil {
		return false
	}
	return jobRange.Overlaps(*contactRange)
}

// filterByBranch is a no-op on an empty token set.
func filterByBranch(jobs []models.JobPosting, branchTokens []string, minLen int) []models.JobPosting {
	if len(branchTokens) == 0 {
		return jobs
	}
	var out []models.JobPosting
	for _, job := range jobs {
		if matchesBranch(job, branchTokens, minLen) {
			out = append(out, job)
		}
	}
	return out
}

// filterByExperience is a no-op on a nil contact range.
func filterByExperience(jobs []models.JobPosting, contactRange *ExperienceRange) []models.JobPosting {
	if contactRange == nil {
		return jobs
	}
	var out []models.JobPosting
	for _, job := range jobs {
		if MatchesExperience(job, contactRange) {
			out = append(out, job)
		}
	}
	return out
}
