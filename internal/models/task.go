package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Generation task lifecycle statuses. A task created on submit starts in
// pending/processing and ends in exactly one of the terminal statuses.
const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusSuccess    = "success"
	TaskStatusFailed     = "failed"
	TaskStatusTimeout    = "timeout"
)

// Target types a generation task can annotate.
const (
	TargetCharacter       = "character"
	TargetCover           = "cover"
	TargetStoryboardImage = "storyboard_image"
	TargetStoryboardVideo = "storyboard_video"
)

// IsTerminalTaskStatus reports whether no further transition is permitted.
func IsTerminalTaskStatus(status string) bool {
	switch status {
	case TaskStatusSuccess, TaskStatusFailed, TaskStatusTimeout:
		return true
	}
	return false
}

// GenerationTask tracks one external media-generation job from submission
// through webhook callback or poll resolution.
type GenerationTask struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	ProjectID          uuid.NullUUID
	TargetType         string
	TargetID           uuid.UUID
	TaskID             string // external id assigned by the provider
	Model              string
	Prompt             string
	Options            json.RawMessage
	Status             string
	PollCount          int
	LastPolledAt       sql.NullTime
	ErrorCode          sql.NullString
	ErrorMessage       sql.NullString
	CallbackReceivedAt sql.NullTime
	CallbackData       json.RawMessage
	ResultURL          sql.NullString
	StoredURL          sql.NullString
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
