package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Project statuses.
const (
	ProjectStatusDraft        = "draft"
	ProjectStatusInitializing = "initializing"
	ProjectStatusReady        = "ready"
)

// Project initialization phases.
const (
	InitStatusPending              = "pending"
	InitStatusGeneratingOutline    = "generating_outline"
	InitStatusGeneratingCharacters = "generating_characters"
	InitStatusGeneratingCover      = "generating_cover"
	InitStatusCompleted            = "completed"
	InitStatusFailed               = "failed"
)

// Target entity statuses written by the callback handler and poller.
const (
	EntityStatusPending    = "pending"
	EntityStatusGenerating = "generating"
	EntityStatusReady      = "ready"
	EntityStatusFailed     = "failed"
	EntityStatusTimeout    = "timeout"
)

type Project struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Name          string
	Description   sql.NullString
	StyleID       int
	AspectRatio   string
	Status        string
	InitStatus    sql.NullString
	InitError     sql.NullString
	StoryOutline  sql.NullString
	CoverImageURL sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     sql.NullTime
}

type Character struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	UserID      uuid.UUID
	Name        string
	Description sql.NullString
	Traits      json.RawMessage
	ImagePrompt sql.NullString
	ImageURL    sql.NullString
	Status      string
	TaskID      sql.NullString
	TaskError   sql.NullString
	SortOrder   int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   sql.NullTime
}

type Storyboard struct {
	ID          uuid.UUID
	ProjectID   uuid.UUID
	UserID      uuid.UUID
	SortOrder   int
	Scene       sql.NullString
	ImagePrompt sql.NullString
	VideoPrompt sql.NullString
	ImageURL    sql.NullString
	ImageStatus string
	ImageError  sql.NullString
	ImageTaskID sql.NullString
	VideoURL    sql.NullString
	VideoStatus string
	VideoError  sql.NullString
	VideoTaskID sql.NullString
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   sql.NullTime
}
