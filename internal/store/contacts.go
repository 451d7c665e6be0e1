// Package store reads contacts and pending job postings from PostgreSQL and
// records which postings have been delivered.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "job-notifier/internal/common/errors"
	"job-notifier/internal/models"
)

const contactColumns = `id, full_name, email, mobile, branch, experience, telegram_chat_id`

// ContactRepository loads notification recipients.
type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// ListEligible returns every active contact ordered by id.
func (r *ContactRepository) ListEligible(ctx context.Context) ([]models.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE active = true
		ORDER BY id`)
	if err != nil {
		return nil, apperrors.NewContactFetchFailedError(err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, apperrors.NewContactFetchFailedError(err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewContactFetchFailedError(err)
	}
	return contacts, nil
}

// GetByID returns one contact regardless of its active flag.
func (r *ContactRepository) GetByID(ctx context.Context, id string) (models.Contact, error) {
	return r.getContact(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id = $1`, id)
}

// GetEligibleByID returns one contact only while it is active. An inactive
// contact is reported as not found.
func (r *ContactRepository) GetEligibleByID(ctx context.Context, id string) (models.Contact, error) {
	return r.getContact(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id = $1 AND active = true`, id)
}

func (r *ContactRepository) getContact(ctx context.Context, query, id string) (models.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Contact{}, apperrors.NewContactNotFoundError(id)
	}
	if err != nil {
		return models.Contact{}, apperrors.NewContactFetchFailedError(fmt.Errorf("contact %s: %w", id, err))
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(s scanner) (models.Contact, error) {
	var (
		c                          models.Contact
		email, mobile, branch, exp sql.NullString
		telegramChatID             sql.NullString
	)
	if err := s.Scan(&c.ID, &c.FullName, &email, &mobile, &branch, &exp, &telegramChatID); err != nil {
		return models.Contact{}, err
	}
	c.Email = email.String
	c.Mobile = mobile.String
	c.BranchRaw = branch.String
	c.ExperienceRaw = exp.String
	if telegramChatID.Valid && telegramChatID.String != "" {
		c.ChannelIDs = map[string]string{models.ChannelTelegram: telegramChatID.String}
	}
	return c, nil
}
