// internal/common/camunda/worker.go
package camunda

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"notification-engine/internal/common/logger"
)

// JobHandler processes one pulled workflow job. Completing or failing the
// job is the handler's responsibility.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// Worker polls the broker for one task type and feeds jobs to its handler.
type Worker struct {
	client   zbc.Client
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

func NewWorker(
	client zbc.Client,
	taskType string,
	maxJobsActive int,
	handler JobHandler,
	log logger.Logger,
) *Worker {
	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(maxJobsActive).
		Open()

	log.Info("workflow worker started", map[string]interface{}{
		"taskType": taskType,
	})

	return &Worker{
		client:   client,
		worker:   jobWorker,
		logger:   log,
		taskType: taskType,
	}
}

func (w *Worker) Stop(_ context.Context) {
	w.logger.Info("stopping workflow worker", map[string]interface{}{
		"taskType": w.taskType,
	})
	w.worker.Close()
}
