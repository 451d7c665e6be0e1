package selectjobdigest

import (
	"job-notifier/internal/common/validation"
	"job-notifier/internal/models"
)

type Input struct {
	ContactID string `json:"contactId"`
}

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"properties": {
		"contactId": {"type": "string", "minLength": 1}
	},
	"required": ["contactId"]
}`)

type Output struct {
	ContactID string              `json:"contactId"`
	Strategy  string              `json:"strategy"`
	Jobs      []models.JobPosting `json:"jobs"`
	JobCount  int                 `json:"jobCount"`
	Matched   int                 `json:"matched"`
}
