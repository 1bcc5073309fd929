package services

import (
	"github.com/google/uuid"
	"storyforge-backend/internal/models"
	"storyforge-backend/internal/supabase"
)

// RefreshProjectInitStatus recomputes a project's initialization outcome
// from the current snapshot of its characters and latest cover task. It is
// idempotent and safe to call after every terminal task event: projects
// that are not initializing are left untouched, and a still-generating
// snapshot changes nothing.
func (s *CallbackService) RefreshProjectInitStatus(projectID uuid.UUID) error {
	project, err := s.entities.FindProjectByID(projectID, true)
	if err != nil {
		return err
	}
	if project == nil || project.Status != models.ProjectStatusInitializing {
		return nil
	}

	characters, err := s.entities.FindCharactersByProjectID(projectID)
	if err != nil {
		return err
	}

	coverTasks, err := s.tasks.FindGenerationTasksByTarget(models.TargetCover, projectID)
	if err != nil {
		return err
	}

	var latestCover *models.GenerationTask
	if len(coverTasks) > 0 {
		latestCover = &coverTasks[len(coverTasks)-1]
	}

	coverFailed := latestCover != nil &&
		(latestCover.Status == models.TaskStatusFailed || latestCover.Status == models.TaskStatusTimeout)
	coverReady := (project.CoverImageURL.Valid && project.CoverImageURL.String != "") ||
		(latestCover != nil && latestCover.Status == models.TaskStatusSuccess)

	hasFailure := false
	allReady := len(characters) > 0
	for _, c := range characters {
		switch c.Status {
		case models.EntityStatusFailed, models.EntityStatusTimeout:
			hasFailure = true
			allReady = false
		case models.EntityStatusReady:
		default:
			allReady = false
		}
	}

	if coverFailed || hasFailure {
		// Full-initialization rollback: one failed dependent regresses the
		// whole project to draft so the user can retry the init cycle.
		message := "image generation failed"
		if err := s.entities.UpdateProjectInitStatus(projectID,
			models.ProjectStatusDraft, models.InitStatusFailed, &message); err != nil {
			return err
		}
		if s.events != nil {
			_ = s.events.PublishProjectEvent(projectID, "init_failed",
				supabase.InitFailedPayload(projectID, message))
		}
		return nil
	}

	if coverReady && allReady {
		if err := s.entities.UpdateProjectInitStatus(projectID,
			models.ProjectStatusReady, models.InitStatusCompleted, nil); err != nil {
			return err
		}
		if s.events != nil {
			_ = s.events.PublishProjectEvent(projectID, "project_ready",
				supabase.ProjectReadyPayload(projectID))
		}
	}

	return nil
}
