package services

import (
	"time"

	"github.com/google/uuid"
	"storyforge-backend/internal/kie"
	"storyforge-backend/internal/models"
)

// TaskStore is the persistence surface for generation tasks. All terminal
// transitions go through the Finish helpers, which compare-and-swap against
// a non-terminal status and report whether the caller won the transition.
type TaskStore interface {
	CreateGenerationTask(t *models.GenerationTask) error
	FindGenerationTaskByTaskID(taskID string) (*models.GenerationTask, error)
	FindGenerationTasksByTarget(targetType string, targetID uuid.UUID) ([]models.GenerationTask, error)
	FindPendingGenerationTasks(statuses []string, lastPolledBefore time.Time, pollCountLessThan, limit int) ([]models.GenerationTask, error)
	MarkGenerationTaskPolled(id uuid.UUID, status string, pollCount int, errorCode, errorMessage string) error
	FinishGenerationTaskSuccess(id uuid.UUID, resultURL, storedURL string, callbackData []byte) (bool, error)
	FinishGenerationTaskFailure(id uuid.UUID, status, errorCode, errorMessage string, callbackData []byte) (bool, error)
}

// EntityStore covers the target-entity writes the callback handler owns and
// the reads the init status aggregator needs.
type EntityStore interface {
	FindProjectByID(id uuid.UUID, includeDeleted bool) (*models.Project, error)
	UpdateProjectCover(id uuid.UUID, coverImageURL string) error
	UpdateProjectInitStatus(id uuid.UUID, status, initStatus string, initError *string) error
	FindCharactersByProjectID(projectID uuid.UUID) ([]models.Character, error)
	UpdateCharacterImage(id uuid.UUID, imageURL string) error
	UpdateCharacterStatus(id uuid.UUID, status, taskError string) error
	UpdateStoryboardImageReady(id uuid.UUID, imageURL string) error
	UpdateStoryboardImageStatus(id uuid.UUID, status, imageError string) error
	UpdateStoryboardVideoReady(id uuid.UUID, videoURL string) error
	UpdateStoryboardVideoStatus(id uuid.UUID, status, videoError string) error
}

// Materializer turns a provider-hosted ephemeral URL into a durable one.
type Materializer interface {
	DownloadAndUpload(sourceURL, key, contentType string) (string, error)
}

// TaskQuerier is the poll-side view of the provider gateway.
type TaskQuerier interface {
	Query(taskID string, mediaType kie.MediaType) (*kie.QueryResult, error)
}

// EventPublisher fans task lifecycle events out to subscribed clients.
type EventPublisher interface {
	PublishProjectEvent(projectID uuid.UUID, event string, payload map[string]interface{}) error
}
