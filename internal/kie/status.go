package kie

import "storyforge-backend/internal/models"

// MapStatus normalizes the provider's status vocabulary into the internal
// task statuses. Unrecognized strings map to pending so that a vocabulary
// drift on the provider side can never push a task into a terminal state.
func MapStatus(providerStatus string) string {
	switch providerStatus {
	case "pending", "waiting", "queuing":
		return models.TaskStatusPending
	case "processing", "generating":
		return models.TaskStatusProcessing
	case "success":
		return models.TaskStatusSuccess
	case "fail", "failed":
		return models.TaskStatusFailed
	default:
		return models.TaskStatusPending
	}
}
