package models

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
	StyleID     int    `json:"style_id"`
	// AspectRatio is "16:9" or "9:16"; defaults to "16:9".
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type UpdateCharacterRequest struct {
	Name        *string                `json:"name,omitempty"`
	Description *string                `json:"description,omitempty"`
	Traits      map[string]interface{} `json:"traits,omitempty"`
}

type RegenerateCharacterImageRequest struct {
	// Prompt overrides the derived character image prompt when set.
	Prompt string `json:"prompt,omitempty"`
}

type UpdateStoryboardRequest struct {
	Scene       *string `json:"scene,omitempty"`
	ImagePrompt *string `json:"image_prompt,omitempty"`
	VideoPrompt *string `json:"video_prompt,omitempty"`
}

// WebhookEvent is the callback body delivered by the Kie provider.
type WebhookEvent struct {
	TaskID      string `json:"taskId"`
	TaskIDSnake string `json:"task_id"`
	State       string `json:"state"`
	ResultJSON  string `json:"resultJson,omitempty"`
	FailCode    string `json:"failCode,omitempty"`
	FailMsg     string `json:"failMsg,omitempty"`
}

// ExternalTaskID returns the task id regardless of which key the provider used.
func (e *WebhookEvent) ExternalTaskID() string {
	if e.TaskID != "" {
		return e.TaskID
	}
	return e.TaskIDSnake
}
