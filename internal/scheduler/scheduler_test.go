package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"job-notifier/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_Add(t *testing.T) {
	s := New(logger.NewTestLogger(t), 0)
	noop := JobFunc("noop", func(ctx context.Context) error { return nil })

	tests := []struct {
		name    string
		spec    string
		job     Job
		wantErr string
	}{
		{name: "descriptor", spec: "@hourly", job: noop},
		{name: "duplicate name", spec: "@daily", job: noop, wantErr: "already scheduled"},
		{name: "bad spec", spec: "every tuesday", job: JobFunc("other", noop.Run), wantErr: "schedule \"other\""},
		{name: "five field", spec: "*/15 * * * *", job: JobFunc("quarter", noop.Run)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Add(tt.spec, tt.job)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(logger.NewTestLogger(t), time.Minute)

	var gotDeadline bool
	require.NoError(t, s.Add("@hourly", JobFunc("batch", func(ctx context.Context) error {
		_, gotDeadline = ctx.Deadline()
		return errors.New("logged, not returned")
	})))

	require.NoError(t, s.RunNow("batch"))
	assert.True(t, gotDeadline)

	assert.Error(t, s.RunNow("missing"))
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := New(logger.NewTestLogger(t), 0)

	release := make(chan struct{})
	started := make(chan struct{})
	var runs int32
	require.NoError(t, s.Add("@hourly", JobFunc("slow", func(ctx context.Context) error {
		if atomic.AddInt32(&runs, 1) == 1 {
			close(started)
		}
		<-release
		return nil
	})))

	done := make(chan struct{})
	go func() {
		_ = s.RunNow("slow")
		close(done)
	}()
	<-started

	require.NoError(t, s.RunNow("slow"))
	close(release)
	<-done

	assert.Equal(t, int32(1), atomic.LoadInt32(&runs))
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(logger.NewTestLogger(t), 0)

	var runs int32
	require.NoError(t, s.Add("@every 10ms", JobFunc("tick", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})))

	s.Start()
	next, ok := s.Next("tick")
	assert.True(t, ok)
	assert.False(t, next.IsZero())

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	_, ok = s.Next("missing")
	assert.False(t, ok)
}

func TestScheduler_StopCancelsStuckJob(t *testing.T) {
	s := New(logger.NewTestLogger(t), 0)

	started := make(chan struct{})
	var once int32
	require.NoError(t, s.Add("@every 10ms", JobFunc("stuck", func(ctx context.Context) error {
		if atomic.CompareAndSwapInt32(&once, 0, 1) {
			close(started)
		}
		<-ctx.Done()
		return ctx.Err()
	})))

	s.Start()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), context.DeadlineExceeded)
}

func TestKVFields(t *testing.T) {
	fields := kvFields([]interface{}{"entry", 3, "next", "soon", "dangling"})
	assert.Equal(t, map[string]interface{}{"entry": 3, "next": "soon"}, fields)
}
