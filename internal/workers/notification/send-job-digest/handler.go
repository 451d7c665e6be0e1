package sendjobdigest

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"job-notifier/internal/batch"
	"job-notifier/internal/common/errors"
	"job-notifier/internal/common/logger"
	"job-notifier/internal/common/metrics"
	"job-notifier/internal/dispatch"
	"job-notifier/internal/matching"
	"job-notifier/internal/store"
)

const (
	TaskType = "send-job-digest"
)

// Handler selects and delivers the digest for one contact.
type Handler struct {
	config       *Config
	runner       *batch.Runner
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, deliverer batch.Deliverer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	runner := batch.NewRunner(
		batch.Config{},
		store.NewContactRepository(db),
		store.NewJobRepository(db),
		matching.NewSelector(config.Matching),
		deliverer, nil, nil, log,
	)
	return &Handler{
		config:       config,
		runner:       runner,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job.Variables)
	if err == nil {
		var output *Output
		output, err = h.execute(ctx, input)
		if err == nil {
			h.completeJob(client, job, output)
			return
		}
	}

	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.AsStandardError(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func parseInput(variables string) (*Input, error) {
	result, err := inputSchema.ValidateJSON(variables)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidInputError(result.Error())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.ContactID == "" {
		return nil, errors.NewInvalidInputError("contactId is required")
	}

	preview, out, err := h.runner.DeliverContact(ctx, input.ContactID)
	if err != nil && (out == nil || out.Status != dispatch.StatusSent) {
		return nil, err
	}

	output := &Output{
		ContactID: input.ContactID,
		DigestID:  out.DigestID,
		Status:    out.Status,
		Strategy:  string(preview.Result.Strategy),
		JobCount:  out.JobCount,
		Channels:  out.Channels,
		Marked:    out.Marked,
		SentAt:    out.SentAt,
	}

	if err != nil {
		output.MarkFailed = true
		h.logger.Warn("digest sent but postings not fully flagged", map[string]interface{}{
			"contactId": input.ContactID,
			"digestId":  out.DigestID,
			"error":     err,
		})
	}
	return output, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
