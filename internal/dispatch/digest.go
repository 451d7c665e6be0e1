// Package dispatch renders job digests and delivers them over email, SMS
// and Telegram, flipping each posting's notify-sent flag once a digest has
// gone out.
package dispatch

import (
	"fmt"
	"strings"
	"time"

	"job-notifier/internal/matching"
	"job-notifier/internal/models"
)

// Digest is one rendered notification for one contact.
type Digest struct {
	ID        string               `json:"id"`
	ContactID string               `json:"contactId"`
	Strategy  matching.StrategyTag `json:"strategy"`
	Jobs      []models.JobPosting  `json:"jobs"`
	Subject   string               `json:"subject"`
	Body      string               `json:"body"`
	CreatedAt time.Time            `json:"createdAt"`
}

// Templates holds the {{placeholder}} texts a digest is rendered from.
// Line is rendered once per job and joined into {{jobs}}.
type Templates struct {
	Subject string
	Body    string
	Line    string
}

var DefaultTemplates = Templates{
	Subject: "{{count}} new job openings for you",
	Body:    "Hi {{name}},\n\nHere are the latest openings that match your profile:\n\n{{jobs}}\n\nGood luck!",
	Line:    "{{index}}. {{title}} at {{company}} - {{location}} ({{experience}})",
}

func (t Templates) render(contact models.Contact, jobs []models.JobPosting) (string, string) {
	lines := make([]string, 0, len(jobs))
	for i, j := range jobs {
		lines = append(lines, renderTemplate(t.Line, jobFields(i+1, j)))
	}

	name := contact.FullName
	if name == "" {
		name = "there"
	}
	data := map[string]interface{}{
		"name":  name,
		"count": len(jobs),
		"jobs":  strings.Join(lines, "\n"),
	}
	return renderTemplate(t.Subject, data), renderTemplate(t.Body, data)
}

func jobFields(index int, j models.JobPosting) map[string]interface{} {
	return map[string]interface{}{
		"index":      index,
		"title":      j.Title,
		"company":    j.CompanyName,
		"location":   j.Location,
		"experience": j.ExperienceRaw,
		"jobType":    j.JobType,
		"source":     j.Source,
		"id":         j.ID,
	}
}

// renderTemplate substitutes {{key}} placeholders in a single left-to-right
// pass and drops unknown ones. Substituted values are never rescanned, so
// braces inside job text come through literally.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	var b strings.Builder
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			break
		}
		b.WriteString(rest[:start])
		b.WriteString(formatValue(data[rest[start+2:start+end]]))
		rest = rest[start+end+2:]
	}
	b.WriteString(rest)
	return b.String()
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}
