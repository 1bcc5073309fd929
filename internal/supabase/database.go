package supabase

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"storyforge-backend/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

const projectColumns = `id, user_id, name, description, style_id, aspect_ratio, status,
		init_status, init_error, story_outline, cover_image_url, created_at, updated_at, deleted_at`

func scanProject(row interface{ Scan(...interface{}) error }) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Description, &p.StyleID, &p.AspectRatio, &p.Status,
		&p.InitStatus, &p.InitError, &p.StoryOutline, &p.CoverImageURL,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DatabaseClient) CreateProject(p *models.Project) (*models.Project, error) {
	row := d.db.QueryRow(`
		INSERT INTO projects (id, user_id, name, description, style_id, aspect_ratio, status, init_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+projectColumns+`
	`, p.ID, p.UserID, p.Name, p.Description, p.StyleID, p.AspectRatio,
		models.ProjectStatusDraft, models.InitStatusPending)

	created, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return created, nil
}

func (d *DatabaseClient) FindProjectByID(id uuid.UUID, includeDeleted bool) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}

	project, err := scanProject(d.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (d *DatabaseClient) FindProjectsByUserID(userID uuid.UUID, page, pageSize int) ([]models.Project, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	rows, err := d.db.Query(`
		SELECT `+projectColumns+`
		FROM projects
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}

	return projects, rows.Err()
}

func (d *DatabaseClient) UpdateProjectInfo(id uuid.UUID, name, description *string) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET name = COALESCE($1, name), description = COALESCE($2, description), updated_at = NOW()
		WHERE id = $3
	`, name, description, id)
	return err
}

func (d *DatabaseClient) UpdateProjectCover(id uuid.UUID, coverImageURL string) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET cover_image_url = $1, updated_at = NOW()
		WHERE id = $2
	`, coverImageURL, id)
	return err
}

func (d *DatabaseClient) UpdateProjectOutline(id uuid.UUID, outline, initStatus string) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET story_outline = $1, init_status = $2, updated_at = NOW()
		WHERE id = $3
	`, outline, initStatus, id)
	return err
}

// UpdateProjectInitStatus writes the aggregated initialization outcome.
// initError nil clears the error column.
func (d *DatabaseClient) UpdateProjectInitStatus(id uuid.UUID, status, initStatus string, initError *string) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET status = $1, init_status = $2, init_error = $3, updated_at = NOW()
		WHERE id = $4
	`, status, initStatus, initError, id)
	return err
}

// ClaimProjectInit atomically moves a draft project into initializing.
// Returns false when another request already claimed it.
func (d *DatabaseClient) ClaimProjectInit(id, userID uuid.UUID) (bool, error) {
	result, err := d.db.Exec(`
		UPDATE projects
		SET status = $1, init_status = $2, init_error = NULL, updated_at = NOW()
		WHERE id = $3 AND user_id = $4 AND status = $5 AND init_status IN ($6, $7) AND deleted_at IS NULL
	`, models.ProjectStatusInitializing, models.InitStatusGeneratingOutline,
		id, userID, models.ProjectStatusDraft, models.InitStatusPending, models.InitStatusFailed)
	if err != nil {
		return false, fmt.Errorf("failed to claim project init: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *DatabaseClient) SoftDeleteProject(id, userID uuid.UUID) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`, id, userID)
	return err
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
