package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "job-notifier/internal/common/errors"
	"job-notifier/internal/common/logger"
	"job-notifier/internal/dispatch"
	"job-notifier/internal/kvstore"
	"job-notifier/internal/matching"
	"job-notifier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockContactSource struct {
	ListFunc        func(ctx context.Context) ([]models.Contact, error)
	GetFunc         func(ctx context.Context, id string) (models.Contact, error)
	GetEligibleFunc func(ctx context.Context, id string) (models.Contact, error)
}

func (m *MockContactSource) ListEligible(ctx context.Context) ([]models.Contact, error) {
	return m.ListFunc(ctx)
}

func (m *MockContactSource) GetByID(ctx context.Context, id string) (models.Contact, error) {
	return m.GetFunc(ctx, id)
}

func (m *MockContactSource) GetEligibleByID(ctx context.Context, id string) (models.Contact, error) {
	return m.GetEligibleFunc(ctx, id)
}

type MockJobSource struct {
	ListFunc func(ctx context.Context) ([]models.JobPosting, error)
}

func (m *MockJobSource) ListPending(ctx context.Context) ([]models.JobPosting, error) {
	return m.ListFunc(ctx)
}

type MockDeliverer struct {
	mu          sync.Mutex
	calls       map[string]matching.SelectionResult
	DeliverFunc func(contact models.Contact, result matching.SelectionResult) (*dispatch.Outcome, error)
}

func (m *MockDeliverer) Deliver(_ context.Context, contact models.Contact, result matching.SelectionResult) (*dispatch.Outcome, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = map[string]matching.SelectionResult{}
	}
	m.calls[contact.ID] = result
	m.mu.Unlock()
	return m.DeliverFunc(contact, result)
}

func sendAll(contact models.Contact, result matching.SelectionResult) (*dispatch.Outcome, error) {
	if result.IsNoMatch() {
		return &dispatch.Outcome{ContactID: contact.ID, Status: dispatch.StatusSkipped}, nil
	}
	return &dispatch.Outcome{ContactID: contact.ID, Status: dispatch.StatusSent, Marked: len(result.Jobs)}, nil
}

func testContacts() []models.Contact {
	return []models.Contact{
		{ID: "c-1", BranchRaw: "Mechanical", ExperienceRaw: "fresher"},
		{ID: "c-2", BranchRaw: "Mechanical", ExperienceRaw: "fresher"},
		{ID: "c-3", BranchRaw: "Civil", ExperienceRaw: "2-4"},
		{ID: "c-4"},
	}
}

func testJobs() []models.JobPosting {
	return []models.JobPosting{
		{ID: "1", Source: models.SourceCampus, Title: "Graduate Trainee", Category: "Mechanical", ExperienceRaw: "0-1"},
		{ID: "2", Source: models.SourceOffCampus, Title: "Design Engineer", Category: "Mechanical", ExperienceRaw: "fresher"},
	}
}

func newTestRunner(t *testing.T, cfg Config, contacts ContactSource, jobs JobSource, d Deliverer, locker *kvstore.Locker) *Runner {
	return NewRunner(cfg, contacts, jobs, matching.NewSelector(matching.Options{}), d, locker, nil, logger.NewTestLogger(t))
}

// inactiveContact exists but is not eligible for delivery.
var inactiveContact = models.Contact{ID: "c-off", Email: "off@example.com", BranchRaw: "Mechanical", ExperienceRaw: "fresher"}

func findContact(contacts []models.Contact, id string) (models.Contact, error) {
	for _, c := range contacts {
		if c.ID == id {
			return c, nil
		}
	}
	return models.Contact{}, apperrors.NewContactNotFoundError(id)
}

func staticSources() (*MockContactSource, *MockJobSource) {
	contacts := &MockContactSource{
		ListFunc: func(ctx context.Context) ([]models.Contact, error) { return testContacts(), nil },
		GetFunc: func(ctx context.Context, id string) (models.Contact, error) {
			return findContact(append(testContacts(), inactiveContact), id)
		},
		GetEligibleFunc: func(ctx context.Context, id string) (models.Contact, error) {
			return findContact(testContacts(), id)
		},
	}
	jobs := &MockJobSource{
		ListFunc: func(ctx context.Context) ([]models.JobPosting, error) { return testJobs(), nil },
	}
	return contacts, jobs
}

func TestRunner_Run(t *testing.T) {
	contacts, jobs := staticSources()
	deliverer := &MockDeliverer{DeliverFunc: sendAll}
	locker := kvstore.NewLocker(kvstore.NewMemoryStore(""))

	runner := newTestRunner(t, Config{Concurrency: 2}, contacts, jobs, deliverer, locker)
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Contacts)
	assert.Equal(t, 2, report.Jobs)
	assert.Equal(t, 3, report.Selected)
	assert.Equal(t, 1, report.NoMatch)
	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, 6, report.Marked)
	assert.Equal(t, 2, report.ByStrategy[matching.StrategyFresherBranchExperience])
	assert.Equal(t, 1, report.ByStrategy[matching.StrategyAllBranchExperience])
	assert.Equal(t, 1, report.ByStrategy[matching.StrategyNoMatch])

	// Every contact reaches the dispatcher, including no-match ones.
	require.Len(t, deliverer.calls, 4)
	assert.Equal(t, matching.StrategyNoMatch, deliverer.calls["c-3"].Strategy)
	assert.Empty(t, deliverer.calls["c-3"].Jobs)

	// Both fresher contacts see the same pool snapshot.
	assert.Equal(t, deliverer.calls["c-1"].Jobs, deliverer.calls["c-2"].Jobs)

	// The lock is released afterwards.
	_, err = runner.Run(context.Background())
	assert.NoError(t, err)
}

func TestRunner_Run_LockHeld(t *testing.T) {
	contacts, jobs := staticSources()
	var fetched int32
	contacts.ListFunc = func(ctx context.Context) ([]models.Contact, error) {
		atomic.AddInt32(&fetched, 1)
		return testContacts(), nil
	}

	locker := kvstore.NewLocker(kvstore.NewMemoryStore(""))
	_, err := locker.Acquire(context.Background(), DefaultLockName, time.Minute)
	require.NoError(t, err)

	runner := newTestRunner(t, Config{}, contacts, jobs, &MockDeliverer{DeliverFunc: sendAll}, locker)
	_, err = runner.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBatchAlreadyRunning))
	assert.Zero(t, atomic.LoadInt32(&fetched))
}

func TestRunner_Run_FetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *MockContactSource, j *MockJobSource)
		wantCode apperrors.ErrorCode
	}{
		{
			name: "contacts",
			mutate: func(c *MockContactSource, _ *MockJobSource) {
				c.ListFunc = func(ctx context.Context) ([]models.Contact, error) {
					return nil, apperrors.NewContactFetchFailedError(errors.New("down"))
				}
			},
			wantCode: apperrors.ErrCodeContactFetchFailed,
		},
		{
			name: "jobs",
			mutate: func(_ *MockContactSource, j *MockJobSource) {
				j.ListFunc = func(ctx context.Context) ([]models.JobPosting, error) {
					return nil, apperrors.NewJobFetchFailedError(errors.New("down"))
				}
			},
			wantCode: apperrors.ErrCodeJobFetchFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contacts, jobs := staticSources()
			tt.mutate(contacts, jobs)
			locker := kvstore.NewLocker(kvstore.NewMemoryStore(""))

			runner := newTestRunner(t, Config{}, contacts, jobs, &MockDeliverer{DeliverFunc: sendAll}, locker)
			_, err := runner.Run(context.Background())
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.wantCode))

			// A failed run still releases the lock.
			_, err = locker.Acquire(context.Background(), DefaultLockName, time.Minute)
			assert.NoError(t, err)
		})
	}
}

func TestRunner_Run_DeliveryFailuresAreCounted(t *testing.T) {
	contacts, jobs := staticSources()
	deliverer := &MockDeliverer{DeliverFunc: func(contact models.Contact, result matching.SelectionResult) (*dispatch.Outcome, error) {
		switch contact.ID {
		case "c-1":
			return &dispatch.Outcome{Status: dispatch.StatusFailed}, apperrors.NewDigestSendFailedError(contact.ID, errors.New("ses"))
		case "c-2":
			return &dispatch.Outcome{Status: dispatch.StatusExhausted}, apperrors.NewAttemptsExhaustedError(contact.ID, 4)
		case "c-4":
			return &dispatch.Outcome{Status: dispatch.StatusUnreachable}, nil
		}
		return sendAll(contact, result)
	}}

	runner := newTestRunner(t, Config{Concurrency: 4}, contacts, jobs, deliverer, nil)
	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Exhausted)
	assert.Equal(t, 1, report.Unreachable)
	assert.Equal(t, 0, report.Sent)
	assert.Len(t, deliverer.calls, 4)
}

func TestRunner_Run_RespectsConcurrency(t *testing.T) {
	contacts, jobs := staticSources()
	var inFlight, peak int32
	deliverer := &MockDeliverer{DeliverFunc: func(contact models.Contact, result matching.SelectionResult) (*dispatch.Outcome, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return sendAll(contact, result)
	}}

	runner := newTestRunner(t, Config{Concurrency: 2}, contacts, jobs, deliverer, nil)
	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestRunner_Run_Timeout(t *testing.T) {
	contacts, jobs := staticSources()
	deliverer := &MockDeliverer{DeliverFunc: func(contact models.Contact, result matching.SelectionResult) (*dispatch.Outcome, error) {
		time.Sleep(30 * time.Millisecond)
		return sendAll(contact, result)
	}}

	runner := newTestRunner(t, Config{Concurrency: 1, RunTimeout: 10 * time.Millisecond}, contacts, jobs, deliverer, nil)
	_, err := runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunner_Preview(t *testing.T) {
	contacts, jobs := staticSources()
	runner := newTestRunner(t, Config{}, contacts, jobs, nil, nil)

	p, err := runner.PreviewContact(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, matching.StrategyFresherBranchExperience, p.Result.Strategy)
	assert.Len(t, p.Result.Jobs, 2)

	_, err = runner.PreviewContact(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeContactNotFound))

	all, err := runner.PreviewAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "c-3", all[2].Contact.ID)
	assert.True(t, all[2].Result.IsNoMatch())
}

func TestRunner_DeliverContact(t *testing.T) {
	contacts, jobs := staticSources()
	deliverer := &MockDeliverer{DeliverFunc: sendAll}
	runner := newTestRunner(t, Config{}, contacts, jobs, deliverer, nil)

	preview, out, err := runner.DeliverContact(context.Background(), "c-2")
	require.NoError(t, err)
	assert.Equal(t, "c-2", preview.Contact.ID)
	assert.Equal(t, dispatch.StatusSent, out.Status)
	assert.Equal(t, 2, out.Marked)
	assert.Contains(t, deliverer.calls, "c-2")

	_, _, err = runner.DeliverContact(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeContactNotFound))
	assert.NotContains(t, deliverer.calls, "missing")
}

func TestRunner_DeliverContact_SkipsInactive(t *testing.T) {
	contacts, jobs := staticSources()
	deliverer := &MockDeliverer{DeliverFunc: sendAll}
	runner := newTestRunner(t, Config{}, contacts, jobs, deliverer, nil)

	p, err := runner.PreviewContact(context.Background(), inactiveContact.ID)
	require.NoError(t, err)
	assert.Equal(t, matching.StrategyFresherBranchExperience, p.Result.Strategy)

	_, out, err := runner.DeliverContact(context.Background(), inactiveContact.ID)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeContactNotFound))
	assert.NotContains(t, deliverer.calls, inactiveContact.ID)
}
