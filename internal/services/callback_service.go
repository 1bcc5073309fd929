package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"storyforge-backend/internal/models"
	"storyforge-backend/internal/supabase"
)

// ErrNoResultURL means a success signal carried no extractable result URL.
// The task is left in its prior status so the caller can decide whether to
// fail it.
var ErrNoResultURL = errors.New("no result url in provider payload")

// CallbackService applies provider completion signals to tasks and cascades
// the outcome to target entities and project-level aggregation. Both the
// webhook endpoints and the poll sweep funnel through it.
type CallbackService struct {
	tasks    TaskStore
	entities EntityStore
	storage  Materializer
	events   EventPublisher
	logger   *logrus.Logger
}

func NewCallbackService(
	tasks TaskStore,
	entities EntityStore,
	storage Materializer,
	events EventPublisher,
	logger *logrus.Logger,
) *CallbackService {
	return &CallbackService{
		tasks:    tasks,
		entities: entities,
		storage:  storage,
		events:   events,
		logger:   logger,
	}
}

// HandleTaskSuccess materializes the primary result URL, finishes the task,
// and updates the target entity. The terminal transition is a compare-and-
// swap: if a concurrent webhook or poll already finished the task, this
// call performs no entity writes and returns nil.
func (s *CallbackService) HandleTaskSuccess(task *models.GenerationTask, payload map[string]interface{}) error {
	urls := ExtractResultURLs(payload)
	if len(urls) == 0 {
		return ErrNoResultURL
	}
	primaryURL := urls[0]

	binding, err := bindingFor(task.TargetType)
	if err != nil {
		return err
	}

	key := binding.storageKey(task)
	storedURL, err := s.storage.DownloadAndUpload(primaryURL, key, binding.contentType)
	if err != nil {
		return fmt.Errorf("materialization failed: %w", err)
	}

	callbackData, _ := json.Marshal(payload)
	won, err := s.tasks.FinishGenerationTaskSuccess(task.ID, primaryURL, storedURL, callbackData)
	if err != nil {
		return err
	}
	if !won {
		s.logger.WithFields(logrus.Fields{
			"task_id":     task.TaskID,
			"target_type": task.TargetType,
		}).Info("task already finished, skipping cascade")
		return nil
	}

	if err := binding.onSuccess(s.entities, task, storedURL); err != nil {
		return fmt.Errorf("failed to update %s: %w", task.TargetType, err)
	}

	if task.ProjectID.Valid {
		if s.events != nil {
			_ = s.events.PublishProjectEvent(task.ProjectID.UUID, "task_completed",
				supabase.TaskCompletedPayload(task.TaskID, task.TargetType, task.TargetID, storedURL))
		}
		return s.RefreshProjectInitStatus(task.ProjectID.UUID)
	}

	return nil
}

// HandleTaskFailure finishes the task as failed and pushes the failure onto
// the target entity, falling back to a generic message when the provider
// gave none.
func (s *CallbackService) HandleTaskFailure(task *models.GenerationTask, errorCode, errorMessage string, payload map[string]interface{}) error {
	return s.finishUnsuccessful(task, models.TaskStatusFailed, errorCode, errorMessage, payload)
}

// HandleTaskTimeout abandons tracking of a task that hit the poll-count
// ceiling. The upstream job is not cancelled; only our bookkeeping stops.
func (s *CallbackService) HandleTaskTimeout(task *models.GenerationTask) error {
	return s.finishUnsuccessful(task, models.TaskStatusTimeout, "", models.TaskStatusTimeout, nil)
}

func (s *CallbackService) finishUnsuccessful(task *models.GenerationTask, status, errorCode, errorMessage string, payload map[string]interface{}) error {
	var callbackData []byte
	if payload != nil {
		callbackData, _ = json.Marshal(payload)
	}

	won, err := s.tasks.FinishGenerationTaskFailure(task.ID, status, errorCode, errorMessage, callbackData)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}

	binding, err := bindingFor(task.TargetType)
	if err != nil {
		return err
	}

	message := errorMessage
	if message == "" {
		message = status
	}
	if err := binding.onFailure(s.entities, task, status, message); err != nil {
		return fmt.Errorf("failed to update %s: %w", task.TargetType, err)
	}

	if task.ProjectID.Valid {
		if s.events != nil {
			_ = s.events.PublishProjectEvent(task.ProjectID.UUID, "task_failed",
				supabase.TaskFailedPayload(task.TaskID, task.TargetType, task.TargetID, status, message))
		}
		return s.RefreshProjectInitStatus(task.ProjectID.UUID)
	}

	return nil
}
