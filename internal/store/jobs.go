package store

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "job-notifier/internal/common/errors"
	"job-notifier/internal/models"

	"github.com/lib/pq"
)

// JobRepository reads pending postings and flips their notify-sent flag.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// ListPending returns postings not yet notified, newest first. The order is
// the pool order the selector relies on for digest prefixes.
func (r *JobRepository) ListPending(ctx context.Context) ([]models.JobPosting, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source, title, company_name, location, job_type, category,
		       location_type, experience, skills, created_at
		FROM job_postings
		WHERE notify_sent = false
		ORDER BY created_at DESC, source, id`)
	if err != nil {
		return nil, apperrors.NewJobFetchFailedError(err)
	}
	defer rows.Close()

	var jobs []models.JobPosting
	for rows.Next() {
		var (
			j                                  models.JobPosting
			company, location, jobType         sql.NullString
			category, locationType, experience sql.NullString
			skills                             pq.StringArray
		)
		if err := rows.Scan(
			&j.ID, &j.Source, &j.Title, &company, &location, &jobType, &category,
			&locationType, &experience, &skills, &j.CreatedAt,
		); err != nil {
			return nil, apperrors.NewJobFetchFailedError(err)
		}
		// Rows from an unrecognised source table cannot be flagged back.
		if !models.IsKnownSource(j.Source) {
			continue
		}
		j.CompanyName = company.String
		j.Location = location.String
		j.JobType = jobType.String
		j.Category = category.String
		j.LocationType = locationType.String
		j.ExperienceRaw = experience.String
		j.Skills = []string(skills)
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewJobFetchFailedError(err)
	}
	return jobs, nil
}

// MarkNotified sets the notify-sent flag for key. It reports false when the
// posting was already flagged by a concurrent run or no longer exists.
func (r *JobRepository) MarkNotified(ctx context.Context, key models.JobKey) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE job_postings
		SET notify_sent = true
		WHERE source = $1 AND id = $2 AND notify_sent = false`, key.Source, key.ID)
	if err != nil {
		return false, apperrors.NewMarkNotifiedFailedError(key.String(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewMarkNotifiedFailedError(key.String(), fmt.Errorf("rows affected: %w", err))
	}
	return n == 1, nil
}
