// internal/models/job.go
package models

import (
	"fmt"
	"time"
)

// Job sources
const (
	SourceCampus     = "campus"
	SourceOffCampus  = "offcampus"
	SourceInternship = "internship"
)

// JobKey uniquely identifies a posting across sources.
type JobKey struct {
	Source string `json:"source"`
	ID     string `json:"id"`
}

func (k JobKey) String() string {
	return fmt.Sprintf("%s/%s", k.Source, k.ID)
}

type JobPosting struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Title         string    `json:"title"`
	CompanyName   string    `json:"companyName"`
	Location      string    `json:"location"`
	JobType       string    `json:"jobType"`
	Category      string    `json:"category"`
	LocationType  string    `json:"locationType"`
	ExperienceRaw string    `json:"experience"`
	Skills        []string  `json:"skills"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (j JobPosting) Key() JobKey {
	return JobKey{Source: j.Source, ID: j.ID}
}

// IsKnownSource reports whether s is one of the fixed origin tags.
func IsKnownSource(s string) bool {
	switch s {
	case SourceCampus, SourceOffCampus, SourceInternship:
		return true
	}
	return false
}
