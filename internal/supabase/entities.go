package supabase

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"storyforge-backend/internal/models"
)

const characterColumns = `id, project_id, user_id, name, description, traits, image_prompt, image_url,
		status, task_id, task_error, sort_order, created_at, updated_at, deleted_at`

func scanCharacter(row interface{ Scan(...interface{}) error }) (*models.Character, error) {
	var c models.Character
	err := row.Scan(
		&c.ID, &c.ProjectID, &c.UserID, &c.Name, &c.Description, &c.Traits,
		&c.ImagePrompt, &c.ImageURL, &c.Status, &c.TaskID, &c.TaskError,
		&c.SortOrder, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCharacters inserts a batch inside one transaction so a failed
// extraction never leaves a half-created cast.
func (d *DatabaseClient) CreateCharacters(characters []models.Character) error {
	if len(characters) == 0 {
		return nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, c := range characters {
		_, err := tx.Exec(`
			INSERT INTO characters (id, project_id, user_id, name, description, traits, image_prompt, status, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, c.ID, c.ProjectID, c.UserID, c.Name, c.Description, c.Traits,
			c.ImagePrompt, c.Status, c.SortOrder)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to create character: %w", err)
		}
	}

	return tx.Commit()
}

func (d *DatabaseClient) FindCharacterByID(id uuid.UUID) (*models.Character, error) {
	character, err := scanCharacter(d.db.QueryRow(`
		SELECT `+characterColumns+`
		FROM characters
		WHERE id = $1 AND deleted_at IS NULL
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get character: %w", err)
	}
	return character, nil
}

func (d *DatabaseClient) FindCharactersByProjectID(projectID uuid.UUID) ([]models.Character, error) {
	rows, err := d.db.Query(`
		SELECT `+characterColumns+`
		FROM characters
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY sort_order ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	defer rows.Close()

	var characters []models.Character
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan character: %w", err)
		}
		characters = append(characters, *c)
	}

	return characters, rows.Err()
}

func (d *DatabaseClient) UpdateCharacterInfo(id uuid.UUID, name, description *string, traits []byte) error {
	_, err := d.db.Exec(`
		UPDATE characters
		SET name = COALESCE($1, name),
		    description = COALESCE($2, description),
		    traits = COALESCE($3, traits),
		    updated_at = NOW()
		WHERE id = $4
	`, name, description, nullableJSON(traits), id)
	return err
}

// UpdateCharacterImage marks a character ready with its materialized image
// and clears any prior task error.
func (d *DatabaseClient) UpdateCharacterImage(id uuid.UUID, imageURL string) error {
	_, err := d.db.Exec(`
		UPDATE characters
		SET image_url = $1, status = $2, task_error = NULL, updated_at = NOW()
		WHERE id = $3
	`, imageURL, models.EntityStatusReady, id)
	return err
}

func (d *DatabaseClient) UpdateCharacterStatus(id uuid.UUID, status, taskError string) error {
	_, err := d.db.Exec(`
		UPDATE characters
		SET status = $1, task_error = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $3
	`, status, taskError, id)
	return err
}

// UpdateCharacterTask records a freshly submitted generation job.
func (d *DatabaseClient) UpdateCharacterTask(id uuid.UUID, taskID, imagePrompt string) error {
	_, err := d.db.Exec(`
		UPDATE characters
		SET status = $1, task_id = $2, task_error = NULL,
		    image_prompt = COALESCE(NULLIF($3, ''), image_prompt), updated_at = NOW()
		WHERE id = $4
	`, models.EntityStatusGenerating, taskID, imagePrompt, id)
	return err
}

func (d *DatabaseClient) SoftDeleteCharacter(id, userID uuid.UUID) error {
	_, err := d.db.Exec(`
		UPDATE characters
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID)
	return err
}

const storyboardColumns = `id, project_id, user_id, sort_order, scene, image_prompt, video_prompt,
		image_url, image_status, image_error, image_task_id,
		video_url, video_status, video_error, video_task_id,
		created_at, updated_at, deleted_at`

func scanStoryboard(row interface{ Scan(...interface{}) error }) (*models.Storyboard, error) {
	var s models.Storyboard
	err := row.Scan(
		&s.ID, &s.ProjectID, &s.UserID, &s.SortOrder, &s.Scene, &s.ImagePrompt, &s.VideoPrompt,
		&s.ImageURL, &s.ImageStatus, &s.ImageError, &s.ImageTaskID,
		&s.VideoURL, &s.VideoStatus, &s.VideoError, &s.VideoTaskID,
		&s.CreatedAt, &s.UpdatedAt, &s.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *DatabaseClient) CreateStoryboards(storyboards []models.Storyboard) error {
	if len(storyboards) == 0 {
		return nil
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, s := range storyboards {
		_, err := tx.Exec(`
			INSERT INTO storyboards (id, project_id, user_id, sort_order, scene, image_prompt, video_prompt, image_status, video_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, s.ID, s.ProjectID, s.UserID, s.SortOrder, s.Scene, s.ImagePrompt, s.VideoPrompt,
			models.EntityStatusPending, models.EntityStatusPending)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to create storyboard: %w", err)
		}
	}

	return tx.Commit()
}

func (d *DatabaseClient) FindStoryboardByID(id uuid.UUID) (*models.Storyboard, error) {
	storyboard, err := scanStoryboard(d.db.QueryRow(`
		SELECT `+storyboardColumns+`
		FROM storyboards
		WHERE id = $1 AND deleted_at IS NULL
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get storyboard: %w", err)
	}
	return storyboard, nil
}

func (d *DatabaseClient) FindStoryboardsByProjectID(projectID uuid.UUID) ([]models.Storyboard, error) {
	rows, err := d.db.Query(`
		SELECT `+storyboardColumns+`
		FROM storyboards
		WHERE project_id = $1 AND deleted_at IS NULL
		ORDER BY sort_order ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list storyboards: %w", err)
	}
	defer rows.Close()

	var storyboards []models.Storyboard
	for rows.Next() {
		s, err := scanStoryboard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan storyboard: %w", err)
		}
		storyboards = append(storyboards, *s)
	}

	return storyboards, rows.Err()
}

func (d *DatabaseClient) UpdateStoryboardPrompts(id uuid.UUID, scene, imagePrompt, videoPrompt *string) error {
	_, err := d.db.Exec(`
		UPDATE storyboards
		SET scene = COALESCE($1, scene),
		    image_prompt = COALESCE($2, image_prompt),
		    video_prompt = COALESCE($3, video_prompt),
		    updated_at = NOW()
		WHERE id = $4
	`, scene, imagePrompt, videoPrompt, id)
	return err
}

func (d *DatabaseClient) UpdateStoryboardImageReady(id uuid.UUID, imageURL string) error {
	_, err := d.db.Exec(`
		UPDATE storyboards
		SET image_url = $1, image_status = $2, image_error = NULL, updated_at = NOW()
		WHERE id = $3
	`, imageURL, models.EntityStatusReady, id)
	return err
}

func (d *DatabaseClient) UpdateStoryboardImageStatus(id uuid.UUID, status, imageError string) error {
	_, err := d.db.Exec(`
		UPDATE storyboards
		SET image_status = $1, image_error = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $3
	`, status, imageError, id)
	return err
}

func (d *DatabaseClient) UpdateStoryboardImageTask(id uuid.UUID, taskID string) error {
	_, err := d.db.Exec(`
		UPDATE storyboards
		SET image_status = $1, image_task_id = $2, image_error = NULL, updated_at = NOW()
		WHERE id = $3
	`, models.EntityStatusGenerating, taskID, id)
	return err
}

func (d *DatabaseClient) UpdateStoryboardVideoReady(id uuid.UUID, videoURL string) error {
	_, err := d.db.Exec(`
		UPDATE storyboards
		SET video_url = $1, video_status = $2, video_error = NULL, updated_at = NOW()
		WHERE id = $3
	`, videoURL, models.EntityStatusReady, id)
	return err
}

func (d *DatabaseClient) UpdateStoryboardVideoStatus(id uuid.UUID, status, videoError string) error {
	_, err := d.db.Exec(`
		UPDATE storyboards
		SET video_status = $1, video_error = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $3
	`, status, videoError, id)
	return err
}

func (d *DatabaseClient) UpdateStoryboardVideoTask(id uuid.UUID, taskID string) error {
	_, err := d.db.Exec(`
		UPDATE storyboards
		SET video_status = $1, video_task_id = $2, video_error = NULL, updated_at = NOW()
		WHERE id = $3
	`, models.EntityStatusGenerating, taskID, id)
	return err
}

func (d *DatabaseClient) SoftDeleteStoryboard(id, userID uuid.UUID) error {
	_, err := d.db.Exec(`
		UPDATE storyboards
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID)
	return err
}
