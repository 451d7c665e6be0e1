// Package batch runs the notification pass: load every eligible contact and
// every pending posting once, select a digest per contact, and hand the
// selection to the dispatcher.
package batch

import (
	"context"
	"sync"
	"time"

	apperrors "job-notifier/internal/common/errors"
	"job-notifier/internal/common/logger"
	"job-notifier/internal/common/metrics"
	"job-notifier/internal/common/observability"
	"job-notifier/internal/dispatch"
	"job-notifier/internal/kvstore"
	"job-notifier/internal/matching"
	"job-notifier/internal/models"

	"golang.org/x/sync/errgroup"
)

const DefaultLockName = "batch-run"

type ContactSource interface {
	ListEligible(ctx context.Context) ([]models.Contact, error)
	GetByID(ctx context.Context, id string) (models.Contact, error)
	GetEligibleByID(ctx context.Context, id string) (models.Contact, error)
}

type JobSource interface {
	ListPending(ctx context.Context) ([]models.JobPosting, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, contact models.Contact, result matching.SelectionResult) (*dispatch.Outcome, error)
}

type Config struct {
	Concurrency int
	RunTimeout  time.Duration
	LockTTL     time.Duration
	LockName    string
}

// Report summarizes one run.
type Report struct {
	Contacts    int                          `json:"contacts"`
	Jobs        int                          `json:"jobs"`
	Selected    int                          `json:"selected"`
	NoMatch     int                          `json:"noMatch"`
	Sent        int                          `json:"sent"`
	Unreachable int                          `json:"unreachable"`
	Exhausted   int                          `json:"exhausted"`
	Failed      int                          `json:"failed"`
	Marked      int                          `json:"marked"`
	ByStrategy  map[matching.StrategyTag]int `json:"byStrategy"`
	StartedAt   time.Time                    `json:"startedAt"`
	Duration    time.Duration                `json:"duration"`
}

func newReport() *Report {
	return &Report{ByStrategy: make(map[matching.StrategyTag]int), StartedAt: time.Now().UTC()}
}

func (r *Report) record(result matching.SelectionResult, out *dispatch.Outcome) {
	r.ByStrategy[result.Strategy]++
	if result.IsNoMatch() {
		r.NoMatch++
	} else {
		r.Selected++
	}
	if out == nil {
		return
	}
	r.Marked += out.Marked
	switch out.Status {
	case dispatch.StatusSent:
		r.Sent++
	case dispatch.StatusUnreachable:
		r.Unreachable++
	case dispatch.StatusExhausted:
		r.Exhausted++
	case dispatch.StatusFailed:
		r.Failed++
	}
}

// Preview is a selection made without sending.
type Preview struct {
	Contact models.Contact           `json:"contact"`
	Result  matching.SelectionResult `json:"result"`
}

// Runner executes batch runs. locker and obs may be nil.
type Runner struct {
	config    Config
	contacts  ContactSource
	jobs      JobSource
	selector  *matching.Selector
	deliverer Deliverer
	locker    *kvstore.Locker
	obs       *observability.Observability
	logger    logger.Logger
}

func NewRunner(cfg Config, contacts ContactSource, jobs JobSource, selector *matching.Selector,
	deliverer Deliverer, locker *kvstore.Locker, obs *observability.Observability, log logger.Logger) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.LockName == "" {
		cfg.LockName = DefaultLockName
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 20 * time.Minute
	}
	if obs == nil {
		obs = &observability.Observability{}
	}
	return &Runner{
		config:    cfg,
		contacts:  contacts,
		jobs:      jobs,
		selector:  selector,
		deliverer: deliverer,
		locker:    locker,
		obs:       obs,
		logger:    log,
	}
}

// Run performs one pass. It returns BATCH_ALREADY_RUNNING without doing any
// work when another run holds the lock. Per-contact delivery failures are
// counted in the report and never abort the run.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := newReport()
	start := time.Now()
	status := "ok"
	defer func() {
		report.Duration = time.Since(start)
		metrics.BatchRunDuration.WithLabelValues(status).Observe(report.Duration.Seconds())
		r.obs.RecordBatchRun(context.Background(), report.Duration, status)
	}()

	if r.locker != nil {
		lock, err := r.locker.Acquire(ctx, r.config.LockName, r.config.LockTTL)
		if err != nil {
			status = "skipped"
			if !apperrors.HasCode(err, apperrors.ErrCodeBatchAlreadyRunning) {
				status = "error"
			}
			return report, err
		}
		defer func() {
			if _, err := lock.Release(context.Background()); err != nil {
				r.logger.Warn("failed to release batch lock", map[string]interface{}{"error": err})
			}
		}()
	}

	if r.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.RunTimeout)
		defer cancel()
	}

	contacts, jobs, err := r.load(ctx)
	if err != nil {
		status = "error"
		return report, err
	}
	report.Contacts = len(contacts)
	report.Jobs = len(jobs)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	for _, contact := range contacts {
		contact := contact
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := r.selector.Select(contact, jobs)
			metrics.DigestsSelected.WithLabelValues(string(result.Strategy)).Inc()
			r.logger.Debug("contact selection", map[string]interface{}{
				"contactId": contact.ID,
				"strategy":  string(result.Strategy),
				"jobs":      len(result.Jobs),
				"matched":   result.Matched,
			})

			out, err := r.deliverer.Deliver(gctx, contact, result)
			if err != nil {
				r.logger.Warn("digest delivery failed", map[string]interface{}{
					"contactId": contact.ID,
					"errorCode": string(apperrors.AsStandardError(err).Code),
					"error":     err,
				})
			}

			mu.Lock()
			report.record(result, out)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		status = "error"
		return report, err
	}

	r.obs.RecordContacts(ctx, dispatch.StatusSent, report.Sent)
	r.obs.RecordContacts(ctx, dispatch.StatusSkipped, report.NoMatch)
	r.obs.RecordContacts(ctx, dispatch.StatusFailed, report.Failed)

	r.logger.Info("batch run finished", map[string]interface{}{
		"contacts":    report.Contacts,
		"jobs":        report.Jobs,
		"sent":        report.Sent,
		"skipped":     report.NoMatch,
		"unreachable": report.Unreachable,
		"exhausted":   report.Exhausted,
		"failed":      report.Failed,
		"marked":      report.Marked,
		"duration":    time.Since(start).String(),
	})
	return report, nil
}

func (r *Runner) load(ctx context.Context) ([]models.Contact, []models.JobPosting, error) {
	contacts, err := r.contacts.ListEligible(ctx)
	if err != nil {
		return nil, nil, err
	}
	jobs, err := r.jobs.ListPending(ctx)
	if err != nil {
		return nil, nil, err
	}
	return contacts, jobs, nil
}

// PreviewContact selects for one contact against the current pending pool.
func (r *Runner) PreviewContact(ctx context.Context, contactID string) (*Preview, error) {
	contact, err := r.contacts.GetByID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	jobs, err := r.jobs.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	return &Preview{Contact: contact, Result: r.selector.Select(contact, jobs)}, nil
}

// DeliverContact selects and delivers for a single active contact outside a
// batch run. The batch lock is not taken; the conditional mark keeps
// concurrent passes from double counting a posting.
func (r *Runner) DeliverContact(ctx context.Context, contactID string) (*Preview, *dispatch.Outcome, error) {
	contact, err := r.contacts.GetEligibleByID(ctx, contactID)
	if err != nil {
		return nil, nil, err
	}
	jobs, err := r.jobs.ListPending(ctx)
	if err != nil {
		return nil, nil, err
	}
	preview := &Preview{Contact: contact, Result: r.selector.Select(contact, jobs)}
	metrics.DigestsSelected.WithLabelValues(string(preview.Result.Strategy)).Inc()

	out, err := r.deliverer.Deliver(ctx, preview.Contact, preview.Result)
	return preview, out, err
}

// PreviewAll selects for every eligible contact, in contact order.
func (r *Runner) PreviewAll(ctx context.Context) ([]Preview, error) {
	contacts, jobs, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	previews := make([]Preview, len(contacts))
	for i, c := range contacts {
		previews[i] = Preview{Contact: c, Result: r.selector.Select(c, jobs)}
	}
	return previews, nil
}
