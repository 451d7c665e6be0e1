package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "job-notifier/internal/common/errors"
	"job-notifier/internal/common/logger"
	"job-notifier/internal/common/metrics"
	"job-notifier/internal/matching"
	"job-notifier/internal/models"

	"github.com/google/uuid"
)

// Outcome statuses.
const (
	StatusSent        = "sent"
	StatusSkipped     = "skipped"
	StatusUnreachable = "unreachable"
	StatusExhausted   = "exhausted"
	StatusFailed      = "failed"
)

// JobMarker flips the notify-sent flag of a posting.
type JobMarker interface {
	MarkNotified(ctx context.Context, key models.JobKey) (bool, error)
}

// AttemptLimiter bounds delivery attempts per contact.
type AttemptLimiter interface {
	Begin(ctx context.Context, contactID string) (int64, error)
}

// Outcome describes what Deliver did for one contact.
type Outcome struct {
	DigestID  string               `json:"digestId,omitempty"`
	ContactID string               `json:"contactId"`
	Status    string               `json:"status"`
	Strategy  matching.StrategyTag `json:"strategy"`
	JobCount  int                  `json:"jobCount"`
	Channels  []string             `json:"channels,omitempty"`
	Marked    int                  `json:"marked"`
	SentAt    time.Time            `json:"sentAt,omitempty"`
}

type Config struct {
	Timeout   time.Duration
	Templates Templates
}

// Dispatcher renders and delivers digests.
type Dispatcher struct {
	config   Config
	channels []Channel
	marker   JobMarker
	attempts AttemptLimiter
	logger   logger.Logger
	now      func() time.Time
}

// NewDispatcher wires the given channels. attempts may be nil to disable
// the per-contact bound.
func NewDispatcher(cfg Config, channels []Channel, marker JobMarker, attempts AttemptLimiter, log logger.Logger) *Dispatcher {
	if cfg.Templates == (Templates{}) {
		cfg.Templates = DefaultTemplates
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		config:   cfg,
		channels: channels,
		marker:   marker,
		attempts: attempts,
		logger:   log,
		now:      time.Now,
	}
}

// Channels returns the names of the wired channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Compose renders the digest for a selection without sending it.
func (d *Dispatcher) Compose(contact models.Contact, result matching.SelectionResult) Digest {
	subject, body := d.config.Templates.render(contact, result.Jobs)
	return Digest{
		ID:        uuid.NewString(),
		ContactID: contact.ID,
		Strategy:  result.Strategy,
		Jobs:      result.Jobs,
		Subject:   subject,
		Body:      body,
		CreatedAt: d.now().UTC(),
	}
}

// Deliver sends the selection to every channel the contact can be reached
// on. A no-match selection is never sent. When at least one channel
// succeeded, every included posting is marked notified.
func (d *Dispatcher) Deliver(ctx context.Context, contact models.Contact, result matching.SelectionResult) (*Outcome, error) {
	out := &Outcome{
		ContactID: contact.ID,
		Strategy:  result.Strategy,
		JobCount:  len(result.Jobs),
	}

	if result.IsNoMatch() {
		out.Status = StatusSkipped
		return out, nil
	}

	targets := d.reachable(contact)
	if len(targets) == 0 {
		out.Status = StatusUnreachable
		d.logger.Debug("contact has no reachable channel", map[string]interface{}{
			"contactId": contact.ID,
		})
		return out, nil
	}

	if d.attempts != nil {
		if _, err := d.attempts.Begin(ctx, contact.ID); err != nil {
			if apperrors.HasCode(err, apperrors.ErrCodeAttemptsExhausted) {
				out.Status = StatusExhausted
			} else {
				out.Status = StatusFailed
			}
			return out, err
		}
	}

	digest := d.Compose(contact, result)
	out.DigestID = digest.ID

	var sendErrs []error
	for _, ch := range targets {
		if err := d.send(ctx, ch, contact.ChannelID(ch.Name()), digest); err != nil {
			metrics.DigestDeliveries.WithLabelValues(ch.Name(), metrics.DeliveryFailed).Inc()
			d.logger.Warn("digest channel failed", map[string]interface{}{
				"contactId": contact.ID,
				"digestId":  digest.ID,
				"channel":   ch.Name(),
				"error":     err,
			})
			sendErrs = append(sendErrs, apperrors.NewChannelUnavailableError(ch.Name(), err))
			continue
		}
		metrics.DigestDeliveries.WithLabelValues(ch.Name(), metrics.DeliverySent).Inc()
		out.Channels = append(out.Channels, ch.Name())
	}

	if len(out.Channels) == 0 {
		out.Status = StatusFailed
		return out, apperrors.NewDigestSendFailedError(contact.ID, errors.Join(sendErrs...))
	}

	out.Status = StatusSent
	out.SentAt = d.now().UTC()

	marked, err := d.markAll(ctx, digest.Jobs)
	out.Marked = marked
	if err != nil {
		return out, err
	}

	d.logger.Info("digest sent", map[string]interface{}{
		"contactId": contact.ID,
		"digestId":  digest.ID,
		"strategy":  string(digest.Strategy),
		"jobs":      len(digest.Jobs),
		"channels":  out.Channels,
		"marked":    marked,
	})
	return out, nil
}

func (d *Dispatcher) reachable(contact models.Contact) []Channel {
	var targets []Channel
	for _, ch := range d.channels {
		if contact.ChannelID(ch.Name()) != "" {
			targets = append(targets, ch)
		}
	}
	return targets
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, address string, digest Digest) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()
	if err := ch.Send(sendCtx, address, digest); err != nil {
		return fmt.Errorf("%s send: %w", ch.Name(), err)
	}
	return nil
}

// markAll flags every job; it keeps going past failures and returns the
// first one. Postings already flagged by another run are not counted.
func (d *Dispatcher) markAll(ctx context.Context, jobs []models.JobPosting) (int, error) {
	var (
		marked   int
		firstErr error
	)
	for _, j := range jobs {
		ok, err := d.marker.MarkNotified(ctx, j.Key())
		if err != nil {
			d.logger.Error("failed to mark job notified", map[string]interface{}{
				"job":   j.Key().String(),
				"error": err,
			})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			marked++
			metrics.JobsMarkedNotified.Inc()
		}
	}
	return marked, firstErr
}
