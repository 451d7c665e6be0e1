package selectjobdigest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"job-notifier/internal/common/errors"
	"job-notifier/internal/common/logger"
	"job-notifier/internal/matching"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl.WithFields(map[string]interface{}{"error": err})
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

var (
	contactCols = []string{"id", "full_name", "email", "mobile", "branch", "experience", "telegram_chat_id"}
	jobCols     = []string{
		"id", "source", "title", "company_name", "location", "job_type", "category",
		"location_type", "experience", "skills", "created_at",
	}
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectContact(mock sqlmock.Sqlmock, id, branch, experience string) {
	mock.ExpectQuery(`FROM contacts\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(contactCols).
			AddRow(id, "Test Contact", "t@example.com", "", branch, experience, ""))
}

func pendingJobs(n int, category, experience string) *sqlmock.Rows {
	rows := sqlmock.NewRows(jobCols)
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		rows.AddRow(fmt.Sprint(i), "campus", fmt.Sprintf("Job %d", i), "Acme", "Remote", "full-time",
			category, "remote", experience, "{}", created.Add(-time.Duration(i)*time.Minute))
	}
	return rows
}

func TestHandler_Execute_Success(t *testing.T) {
	tests := []struct {
		name         string
		branch       string
		experience   string
		jobs         func() *sqlmock.Rows
		wantStrategy matching.StrategyTag
		wantCount    int
		wantMatched  int
	}{
		{
			name:         "fresher with branch",
			branch:       "Mechanical",
			experience:   "fresher",
			jobs:         func() *sqlmock.Rows { return pendingJobs(2, "mechanical", "0-1") },
			wantStrategy: matching.StrategyFresherBranchExperience,
			wantCount:    2,
			wantMatched:  2,
		},
		{
			name:         "no signal truncates to digest limit",
			jobs:         func() *sqlmock.Rows { return pendingJobs(8, "design", "3-4") },
			wantStrategy: matching.StrategyAllBranchExperience,
			wantCount:    5,
			wantMatched:  8,
		},
		{
			name:         "nothing relevant",
			branch:       "civil",
			experience:   "2-4",
			jobs:         func() *sqlmock.Rows { return pendingJobs(3, "mechanical", "fresher") },
			wantStrategy: matching.StrategyNoMatch,
			wantCount:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			expectContact(mock, "c-1", tt.branch, tt.experience)
			mock.ExpectQuery(`FROM job_postings\s+WHERE notify_sent = false`).WillReturnRows(tt.jobs())

			handler := NewHandler(createTestConfig(), db, newTestLogger(t))
			output, err := handler.Execute(context.Background(), &Input{ContactID: "c-1"})
			require.NoError(t, err)

			assert.Equal(t, "c-1", output.ContactID)
			assert.Equal(t, string(tt.wantStrategy), output.Strategy)
			assert.Equal(t, tt.wantCount, output.JobCount)
			assert.Len(t, output.Jobs, tt.wantCount)
			assert.Equal(t, tt.wantMatched, output.Matched)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     *Input
		setup     func(mock sqlmock.Sqlmock)
		wantCode  errors.ErrorCode
		retryable bool
	}{
		{
			name:     "nil input",
			input:    nil,
			setup:    func(mock sqlmock.Sqlmock) {},
			wantCode: errors.ErrCodeInvalidInput,
		},
		{
			name:  "unknown contact",
			input: &Input{ContactID: "ghost"},
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM contacts`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
			},
			wantCode: errors.ErrCodeContactNotFound,
		},
		{
			name:  "job fetch failure",
			input: &Input{ContactID: "c-1"},
			setup: func(mock sqlmock.Sqlmock) {
				expectContact(mock, "c-1", "x", "1")
				mock.ExpectQuery(`FROM job_postings`).WillReturnError(fmt.Errorf("connection reset"))
			},
			wantCode:  errors.ErrCodeJobFetchFailed,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			tt.setup(mock)

			handler := NewHandler(createTestConfig(), db, newTestLogger(t))
			_, err := handler.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
			assert.Equal(t, tt.retryable, errors.IsRetryable(err))
		})
	}
}

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantID    string
		wantErr   bool
	}{
		{name: "valid", variables: `{"contactId":"c-7","other":true}`, wantID: "c-7"},
		{name: "missing", variables: `{}`, wantErr: true},
		{name: "empty", variables: `{"contactId":""}`, wantErr: true},
		{name: "malformed", variables: `{"contactId":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := parseInput(tt.variables)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, input.ContactID)
		})
	}
}
