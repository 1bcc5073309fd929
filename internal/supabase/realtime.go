package supabase

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

type RealtimeClient struct {
	client *supabase.Client
}

func NewRealtimeClient(client *supabase.Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

func (r *RealtimeClient) PublishEvent(channel string, event string, payload map[string]interface{}) error {
	// The Go client has no direct Realtime publish; row updates on the
	// subscribed tables trigger Realtime automatically, so this stays a
	// hook for explicit event publishing via the Realtime REST API.
	return nil
}

func (r *RealtimeClient) PublishProjectEvent(projectID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("project:%s", projectID.String())
	return r.PublishEvent(channel, event, payload)
}

// Event payloads
func TaskCompletedPayload(taskID, targetType string, targetID uuid.UUID, storedURL string) map[string]interface{} {
	return map[string]interface{}{
		"task_id":     taskID,
		"target_type": targetType,
		"target_id":   targetID.String(),
		"status":      "success",
		"stored_url":  storedURL,
	}
}

func TaskFailedPayload(taskID, targetType string, targetID uuid.UUID, status, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"task_id":     taskID,
		"target_type": targetType,
		"target_id":   targetID.String(),
		"status":      status,
		"error":       errorMsg,
	}
}

func ProjectReadyPayload(projectID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"project_id":  projectID.String(),
		"status":      "ready",
		"init_status": "completed",
	}
}

func InitFailedPayload(projectID uuid.UUID, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"project_id":  projectID.String(),
		"status":      "draft",
		"init_status": "failed",
		"error":       errorMsg,
	}
}
