// internal/workers/preference-update/handler.go
package preferenceupdate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	commonerrors "notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"
)

const (
	TaskType = "preference-update"
)

// PreferenceUpdater is the slice of the engine the worker drives.
type PreferenceUpdater interface {
	UpdatePreferences(ctx context.Context, recipientID string, patch models.PreferencePatch) (models.Preference, error)
}

type Handler struct {
	config *Config
	engine PreferenceUpdater
	logger logger.Logger
}

func NewHandler(config *Config, updater PreferenceUpdater, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		engine: updater,
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
	if input.RecipientID == "" {
		h.failJob(client, job, string(commonerrors.ErrCodeInvalidRequest), "recipientId is required", 0)
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
	pref, err := h.engine.UpdatePreferences(ctx, input.RecipientID, input.Patch)
	if err != nil {
		return nil, err
	}

	channels := pref.EnabledChannels()
	names := make([]string, 0, len(channels))
	for _, c := range channels {
		names = append(names, string(c))
	}

	return &Output{
		RecipientID:     input.RecipientID,
		EnabledChannels: names,
		ConsentGiven:    pref.ConsentGiven,
		UpdatedAt:       pref.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) mapError(err error) (string, int32) {
	if code, ok := commonerrors.CodeOf(err); ok {
		switch code {
		case commonerrors.ErrCodeInvalidRequest:
			return string(code), 0
		case commonerrors.ErrCodeDatabaseConnectionFailed:
			return string(code), 3
		default:
			return string(code), 0
		}
	}
	return "UPDATE_FAILED", 2
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
