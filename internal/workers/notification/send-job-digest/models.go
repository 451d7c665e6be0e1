package sendjobdigest

import (
	"time"

	"job-notifier/internal/common/validation"
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
	ContactID string    `json:"contactId"`
	DigestID  string    `json:"digestId,omitempty"`
	Status    string    `json:"status"`
	Strategy  string    `json:"strategy"`
	JobCount  int       `json:"jobCount"`
	Channels  []string  `json:"channels,omitempty"`
	Marked    int       `json:"marked"`
	SentAt    time.Time `json:"sentAt,omitempty"`
	// MarkFailed is set when the digest went out but some postings could
	// not be flagged. The job still completes so the digest is not resent.
	MarkFailed bool `json:"markFailed,omitempty"`
}
