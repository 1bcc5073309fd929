package services

import (
	"fmt"

	"github.com/google/uuid"
	"storyforge-backend/internal/kie"
	"storyforge-backend/internal/models"
)

// targetBinding is the closed set of behaviors keyed on a task's target
// type: which media family it polls as, how its storage key and content
// type are derived, and how a terminal outcome lands on the target entity.
// Keeping the branching here gives the callback handler and poller a single
// dispatch point instead of scattered type switches.
type targetBinding struct {
	mediaType   kie.MediaType
	contentType string
	storageKey  func(task *models.GenerationTask) string
	onSuccess   func(store EntityStore, task *models.GenerationTask, storedURL string) error
	onFailure   func(store EntityStore, task *models.GenerationTask, status, message string) error
}

var targetBindings = map[string]targetBinding{
	models.TargetCover: {
		mediaType:   kie.MediaTypeImage,
		contentType: "image/png",
		storageKey: func(task *models.GenerationTask) string {
			return fmt.Sprintf("covers/%s/%s.png", projectKeyPart(task), uuid.New().String())
		},
		onSuccess: func(store EntityStore, task *models.GenerationTask, storedURL string) error {
			return store.UpdateProjectCover(task.TargetID, storedURL)
		},
		onFailure: func(store EntityStore, task *models.GenerationTask, status, message string) error {
			// The init status aggregator derives cover failure from the
			// task itself; the project row has no cover status column.
			return nil
		},
	},
	models.TargetCharacter: {
		mediaType:   kie.MediaTypeImage,
		contentType: "image/png",
		storageKey: func(task *models.GenerationTask) string {
			return fmt.Sprintf("characters/%s/%s_%s.png", projectKeyPart(task), task.TargetID, uuid.New().String())
		},
		onSuccess: func(store EntityStore, task *models.GenerationTask, storedURL string) error {
			return store.UpdateCharacterImage(task.TargetID, storedURL)
		},
		onFailure: func(store EntityStore, task *models.GenerationTask, status, message string) error {
			return store.UpdateCharacterStatus(task.TargetID, status, message)
		},
	},
	models.TargetStoryboardImage: {
		mediaType:   kie.MediaTypeImage,
		contentType: "image/png",
		storageKey: func(task *models.GenerationTask) string {
			return fmt.Sprintf("storyboards/%s/images/%s_%s.png", projectKeyPart(task), task.TargetID, uuid.New().String())
		},
		onSuccess: func(store EntityStore, task *models.GenerationTask, storedURL string) error {
			return store.UpdateStoryboardImageReady(task.TargetID, storedURL)
		},
		onFailure: func(store EntityStore, task *models.GenerationTask, status, message string) error {
			return store.UpdateStoryboardImageStatus(task.TargetID, status, message)
		},
	},
	models.TargetStoryboardVideo: {
		mediaType:   kie.MediaTypeVideo,
		contentType: "video/mp4",
		storageKey: func(task *models.GenerationTask) string {
			return fmt.Sprintf("storyboards/%s/videos/%s_%s.mp4", projectKeyPart(task), task.TargetID, uuid.New().String())
		},
		onSuccess: func(store EntityStore, task *models.GenerationTask, storedURL string) error {
			return store.UpdateStoryboardVideoReady(task.TargetID, storedURL)
		},
		onFailure: func(store EntityStore, task *models.GenerationTask, status, message string) error {
			return store.UpdateStoryboardVideoStatus(task.TargetID, status, message)
		},
	},
}

func bindingFor(targetType string) (targetBinding, error) {
	binding, ok := targetBindings[targetType]
	if !ok {
		return targetBinding{}, fmt.Errorf("unknown target type %q", targetType)
	}
	return binding, nil
}

func projectKeyPart(task *models.GenerationTask) string {
	if task.ProjectID.Valid {
		return task.ProjectID.UUID.String()
	}
	return task.TargetID.String()
}
