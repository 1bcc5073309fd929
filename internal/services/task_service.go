package services

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"storyforge-backend/internal/kie"
	"storyforge-backend/internal/models"
)

// Provider generation models.
const (
	ImageModel = "nano-banana-pro"
	VideoModel = "sora-2-image-to-video"
)

// Generator is the submit-side view of the provider gateway.
type Generator interface {
	Generate(req kie.GenerateRequest) (*kie.GenerateResult, error)
}

// TaskService submits generation jobs to the provider and records the
// tracking row that the webhook handler and poller later resolve.
type TaskService struct {
	tasks    TaskStore
	provider Generator
	logger   *logrus.Logger
}

func NewTaskService(tasks TaskStore, provider Generator, logger *logrus.Logger) *TaskService {
	return &TaskService{
		tasks:    tasks,
		provider: provider,
		logger:   logger,
	}
}

// SubmitTaskParams describes one generation job to submit.
type SubmitTaskParams struct {
	UserID      uuid.UUID
	ProjectID   uuid.UUID
	TargetType  string
	TargetID    uuid.UUID
	Model       string
	Prompt      string
	Options     map[string]interface{}
	CallbackURL string
}

// Submit sends the job to the provider and persists a generation task in
// the provider-reported initial status.
func (s *TaskService) Submit(p SubmitTaskParams) (*models.GenerationTask, error) {
	binding, err := bindingFor(p.TargetType)
	if err != nil {
		return nil, err
	}

	result, err := s.provider.Generate(kie.GenerateRequest{
		MediaType:   binding.mediaType,
		Model:       p.Model,
		Prompt:      p.Prompt,
		Options:     p.Options,
		CallbackURL: p.CallbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit generation job: %w", err)
	}

	var options json.RawMessage
	if p.Options != nil {
		options, err = json.Marshal(p.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal task options: %w", err)
		}
	}

	task := &models.GenerationTask{
		ID:         uuid.New(),
		UserID:     p.UserID,
		ProjectID:  uuid.NullUUID{UUID: p.ProjectID, Valid: p.ProjectID != uuid.Nil},
		TargetType: p.TargetType,
		TargetID:   p.TargetID,
		TaskID:     result.TaskID,
		Model:      p.Model,
		Prompt:     p.Prompt,
		Options:    options,
		Status:     result.TaskStatus,
	}

	if err := s.tasks.CreateGenerationTask(task); err != nil {
		// The provider job is already running, so the row matters. Without
		// it the poller cannot resolve the job later.
		return nil, fmt.Errorf("failed to record generation task %s: %w", result.TaskID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":     result.TaskID,
		"target_type": p.TargetType,
		"target_id":   p.TargetID,
		"model":       p.Model,
	}).Info("Generation task submitted")

	return task, nil
}
