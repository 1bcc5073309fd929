package models

import "time"

// APIResponse is the envelope for every JSON response. Code 0 means success
// (including idempotent no-op acks on the webhook path).
type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ProjectResponse struct {
	ID            string    `json:"project_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	StyleID       int       `json:"style_id"`
	AspectRatio   string    `json:"aspect_ratio"`
	Status        string    `json:"status"`
	InitStatus    string    `json:"init_status,omitempty"`
	InitError     string    `json:"init_error,omitempty"`
	StoryOutline  string    `json:"story_outline,omitempty"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type CharacterResponse struct {
	ID          string                 `json:"character_id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Traits      map[string]interface{} `json:"traits,omitempty"`
	ImageURL    string                 `json:"image_url,omitempty"`
	Status      string                 `json:"status"`
	TaskError   string                 `json:"task_error,omitempty"`
	SortOrder   int                    `json:"sort_order"`
}

type StoryboardResponse struct {
	ID          string `json:"storyboard_id"`
	SortOrder   int    `json:"sort_order"`
	Scene       string `json:"scene,omitempty"`
	ImagePrompt string `json:"image_prompt,omitempty"`
	VideoPrompt string `json:"video_prompt,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	ImageStatus string `json:"image_status"`
	ImageError  string `json:"image_error,omitempty"`
	VideoURL    string `json:"video_url,omitempty"`
	VideoStatus string `json:"video_status"`
	VideoError  string `json:"video_error,omitempty"`
}

type TaskSubmittedResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type PollResponse struct {
	Handled int `json:"handled"`
}

type CharacterProgress struct {
	Total   int `json:"total"`
	Ready   int `json:"ready"`
	Failed  int `json:"failed"`
	Timeout int `json:"timeout"`
}

type InitStatusResponse struct {
	Status            string              `json:"status"`
	InitStatus        string              `json:"init_status,omitempty"`
	InitError         string              `json:"init_error,omitempty"`
	StoryOutline      string              `json:"story_outline,omitempty"`
	CoverImageURL     string              `json:"cover_image_url,omitempty"`
	CoverStatus       string              `json:"cover_status"`
	CharacterProgress CharacterProgress   `json:"character_progress"`
	Characters        []CharacterResponse `json:"characters"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
