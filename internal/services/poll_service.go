package services

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"storyforge-backend/internal/kie"
	"storyforge-backend/internal/models"
)

const (
	// pollBatchSize bounds one sweep; leftovers wait for the next cycle.
	pollBatchSize = 50
	// pollThrottleWindow is the minimum gap between polls of one task.
	pollThrottleWindow = 50 * time.Second
	// pollCountCeiling forces a timeout after this many polls, so a stuck
	// job is tracked for roughly 25 minutes at most.
	pollCountCeiling = 30
)

// PollService is the webhook fallback: a periodic sweep that queries the
// provider for unresolved tasks and applies the same transition logic as
// the callback path.
type PollService struct {
	tasks     TaskStore
	provider  TaskQuerier
	callbacks *CallbackService
	logger    *logrus.Logger
}

func NewPollService(tasks TaskStore, provider TaskQuerier, callbacks *CallbackService, logger *logrus.Logger) *PollService {
	return &PollService{
		tasks:     tasks,
		provider:  provider,
		callbacks: callbacks,
		logger:    logger,
	}
}

// Sweep processes one batch of poll candidates sequentially, bounding the
// outbound request rate to the provider. A failure on one task is logged
// and never aborts the rest of the batch.
func (p *PollService) Sweep() (int, error) {
	lastPolledBefore := time.Now().Add(-pollThrottleWindow)

	pending, err := p.tasks.FindPendingGenerationTasks(
		[]string{models.TaskStatusPending, models.TaskStatusProcessing},
		lastPolledBefore, pollCountCeiling, pollBatchSize,
	)
	if err != nil {
		return 0, err
	}

	handled := 0
	for i := range pending {
		task := &pending[i]
		if err := p.pollTask(task); err != nil {
			p.logger.WithFields(logrus.Fields{
				"task_id":     task.TaskID,
				"target_type": task.TargetType,
			}).WithError(err).Error("poll cycle failed for task")
		}
		handled++
	}

	return handled, nil
}

func (p *PollService) pollTask(task *models.GenerationTask) error {
	binding, err := bindingFor(task.TargetType)
	if err != nil {
		return err
	}

	result, err := p.provider.Query(task.TaskID, binding.mediaType)
	if err != nil {
		return err
	}

	mapped := kie.MapStatus(result.TaskStatus)
	pollCount := task.PollCount + 1

	// Bookkeeping never writes a terminal status; the Finish helpers own
	// those transitions so the webhook race stays a compare-and-swap.
	bookkeepingStatus := mapped
	if models.IsTerminalTaskStatus(bookkeepingStatus) {
		bookkeepingStatus = task.Status
	}
	if err := p.tasks.MarkGenerationTaskPolled(task.ID, bookkeepingStatus, pollCount,
		result.TaskInfo.ErrorCode, result.TaskInfo.ErrorMessage); err != nil {
		return err
	}

	var handleErr error
	resolved := false
	switch mapped {
	case models.TaskStatusSuccess:
		if handleErr = p.callbacks.HandleTaskSuccess(task, queryPayload(result)); handleErr == nil {
			resolved = true
		}
	case models.TaskStatusFailed:
		handleErr = p.callbacks.HandleTaskFailure(task,
			result.TaskInfo.ErrorCode, result.TaskInfo.ErrorMessage, queryPayload(result))
	}

	// Hard ceiling: no task polls forever. A success that actually landed is
	// the only escape; a success signal whose handling failed still times
	// out, and an already-failed task makes this a compare-and-swap no-op.
	if pollCount >= pollCountCeiling && !resolved {
		if err := p.callbacks.HandleTaskTimeout(task); err != nil {
			return err
		}
	}

	return handleErr
}

func queryPayload(result *kie.QueryResult) map[string]interface{} {
	payload := map[string]interface{}{}
	if len(result.TaskInfo.Raw) > 0 {
		if err := json.Unmarshal(result.TaskInfo.Raw, &payload); err != nil {
			payload = map[string]interface{}{}
		}
	}
	if result.TaskInfo.ResultJSON != "" {
		payload["resultJson"] = result.TaskInfo.ResultJSON
	}
	return payload
}
