package main

import (
	"bytes"
	"testing"

	"job-notifier/internal/batch"
	"job-notifier/internal/matching"
	"job-notifier/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPrintPreviews(t *testing.T) {
	pool := []models.JobPosting{
		{ID: "7", Source: models.SourceCampus, Title: "Graduate Trainee", CompanyName: "Acme", Category: "Mechanical", ExperienceRaw: "0-1"},
	}
	fresher := models.Contact{ID: "c-1", FullName: "Asha", BranchRaw: "Mechanical", ExperienceRaw: "fresher"}
	senior := models.Contact{ID: "c-2", FullName: "Ravi", BranchRaw: "Civil", ExperienceRaw: "6-9"}

	previews := []batch.Preview{
		{Contact: fresher, Result: matching.SelectJobsForContact(fresher, pool)},
		{Contact: senior, Result: matching.SelectJobsForContact(senior, pool)},
	}

	var buf bytes.Buffer
	printPreviews(&buf, previews)
	out := buf.String()

	assert.Contains(t, out, "contact c-1 (Asha)")
	assert.Contains(t, out, "strategy: fresher+branch+experience (1 matched)")
	assert.Contains(t, out, "1. [campus/7] Graduate Trainee at Acme - 0-1")
	assert.Contains(t, out, "strategy: no-match (0 matched)")
	assert.Contains(t, out, "2 contacts")
}

func TestPrintPreviews_SingleContactHasNoSummary(t *testing.T) {
	c := models.Contact{ID: "c-1"}
	var buf bytes.Buffer
	printPreviews(&buf, []batch.Preview{{Contact: c, Result: matching.SelectJobsForContact(c, nil)}})
	assert.NotContains(t, buf.String(), "contacts\n")
}
