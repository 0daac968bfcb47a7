// internal/workers/notification-dispatch/handler.go
package notificationdispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/engine"
	"notification-engine/internal/models"
)

const (
	TaskType = "notification-dispatch"
)

// Submitter is the slice of the engine the worker drives.
type Submitter interface {
	Submit(ctx context.Context, req engine.SubmitRequest) (string, error)
	Get(ctx context.Context, notificationID string) (*models.Notification, error)
}

type Handler struct {
	config *Config
	engine Submitter
	logger logger.Logger
}

func NewHandler(config *Config, submitter Submitter, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		engine: submitter,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode, retries := h.mapError(err)
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	id, err := h.engine.Submit(ctx, engine.SubmitRequest{
		RecipientID:       input.RecipientID,
		Category:          input.Category,
		Priority:          models.Priority(input.Priority),
		Title:             input.Title,
		Body:              input.Body,
		RelatedEntityType: input.RelatedEntityType,
		RelatedEntityID:   input.RelatedEntityID,
	})
	if err != nil {
		// A skipped submission is a valid workflow outcome, not a job
		// failure: the process moves on with the recorded status.
		if code, ok := commonerrors.CodeOf(err); ok && code == commonerrors.ErrCodeNoConsent {
			return &Output{
				NotificationID: id,
				Status:         string(models.StatusSkipped),
				SubmittedAt:    time.Now().UTC().Format(time.RFC3339),
			}, nil
		}
		return nil, err
	}

	status := models.StatusPending
	if n, getErr := h.engine.Get(ctx, id); getErr == nil {
		status = n.Status
	}

	return &Output{
		NotificationID: id,
		Status:         string(status),
		SubmittedAt:    time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) mapError(err error) (string, int32) {
	if code, ok := commonerrors.CodeOf(err); ok {
		switch code {
		case commonerrors.ErrCodeInvalidRequest:
			return string(code), 0
		case commonerrors.ErrCodeDispatchFailed:
			return string(code), 3
		default:
			return string(code), 0
		}
	}
	return "SUBMIT_FAILED", 0
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
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, message string, retries int32) {
	h.logger.Warn("failing job", map[string]interface{}{
		"jobKey":    job.Key,
		"errorCode": errorCode,
		"message":   message,
	})
	_, err := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(fmt.Sprintf("%s: %s", errorCode, message)).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send fail job command", map[string]interface{}{
			"error": err,
		})
	}
}
