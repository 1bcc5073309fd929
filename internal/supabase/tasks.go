package supabase

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"storyforge-backend/internal/models"
)

const taskColumns = `id, user_id, project_id, target_type, target_id, task_id, model, prompt, options,
		status, poll_count, last_polled_at, error_code, error_message,
		callback_received_at, callback_data, result_url, stored_url, created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*models.GenerationTask, error) {
	var t models.GenerationTask
	err := row.Scan(
		&t.ID, &t.UserID, &t.ProjectID, &t.TargetType, &t.TargetID, &t.TaskID,
		&t.Model, &t.Prompt, &t.Options,
		&t.Status, &t.PollCount, &t.LastPolledAt, &t.ErrorCode, &t.ErrorMessage,
		&t.CallbackReceivedAt, &t.CallbackData, &t.ResultURL, &t.StoredURL,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (d *DatabaseClient) CreateGenerationTask(t *models.GenerationTask) error {
	_, err := d.db.Exec(`
		INSERT INTO generation_tasks (id, user_id, project_id, target_type, target_id, task_id, model, prompt, options, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, t.ID, t.UserID, t.ProjectID, t.TargetType, t.TargetID, t.TaskID,
		t.Model, t.Prompt, t.Options, t.Status)
	if err != nil {
		return fmt.Errorf("failed to create generation task: %w", err)
	}
	return nil
}

// FindGenerationTaskByTaskID looks a task up by the provider-assigned id.
// Returns nil, nil when no such task exists; unknown ids arrive on the
// webhook path and are acknowledged, not failed.
func (d *DatabaseClient) FindGenerationTaskByTaskID(taskID string) (*models.GenerationTask, error) {
	task, err := scanTask(d.db.QueryRow(`
		SELECT `+taskColumns+`
		FROM generation_tasks
		WHERE task_id = $1
		LIMIT 1
	`, taskID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation task: %w", err)
	}
	return task, nil
}

// FindGenerationTasksByTarget returns all tasks for a target ordered by
// creation time ascending; callers take the last element as most recent.
func (d *DatabaseClient) FindGenerationTasksByTarget(targetType string, targetID uuid.UUID) ([]models.GenerationTask, error) {
	rows, err := d.db.Query(`
		SELECT `+taskColumns+`
		FROM generation_tasks
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at ASC
	`, targetType, targetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.GenerationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation task: %w", err)
		}
		tasks = append(tasks, *t)
	}

	return tasks, rows.Err()
}

// FindPendingGenerationTasks selects poll candidates. The lastPolledBefore
// predicate is the throttle: a task polled within the current window stays
// excluded even while still pending.
func (d *DatabaseClient) FindPendingGenerationTasks(statuses []string, lastPolledBefore time.Time, pollCountLessThan, limit int) ([]models.GenerationTask, error) {
	rows, err := d.db.Query(`
		SELECT `+taskColumns+`
		FROM generation_tasks
		WHERE status = ANY($1)
		  AND poll_count < $2
		  AND (last_polled_at IS NULL OR last_polled_at < $3)
		ORDER BY created_at ASC
		LIMIT $4
	`, pq.Array(statuses), pollCountLessThan, lastPolledBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.GenerationTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation task: %w", err)
		}
		tasks = append(tasks, *t)
	}

	return tasks, rows.Err()
}

// MarkGenerationTaskPolled records poll bookkeeping. The status guard keeps
// this write from ever touching a task that a concurrent webhook already
// finished; terminal transitions only happen through the Finish helpers.
func (d *DatabaseClient) MarkGenerationTaskPolled(id uuid.UUID, status string, pollCount int, errorCode, errorMessage string) error {
	if models.IsTerminalTaskStatus(status) {
		return fmt.Errorf("poll bookkeeping cannot write terminal status %q", status)
	}

	_, err := d.db.Exec(`
		UPDATE generation_tasks
		SET status = $2, poll_count = $3, last_polled_at = NOW(),
		    error_code = NULLIF($4, ''), error_message = NULLIF($5, ''), updated_at = NOW()
		WHERE id = $1 AND status IN ($6, $7)
	`, id, status, pollCount, errorCode, errorMessage,
		models.TaskStatusPending, models.TaskStatusProcessing)
	return err
}

// FinishGenerationTaskSuccess performs the compare-and-swap transition to
// success. Zero rows affected means a concurrent path already finished the
// task; the caller treats that as a lost race and performs no side effects.
func (d *DatabaseClient) FinishGenerationTaskSuccess(id uuid.UUID, resultURL, storedURL string, callbackData []byte) (bool, error) {
	result, err := d.db.Exec(`
		UPDATE generation_tasks
		SET status = $2, result_url = $3, stored_url = $4,
		    callback_received_at = NOW(), callback_data = $5,
		    error_code = NULL, error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ($6, $7)
	`, id, models.TaskStatusSuccess, resultURL, storedURL, nullableJSON(callbackData),
		models.TaskStatusPending, models.TaskStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to finish task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// FinishGenerationTaskFailure is the compare-and-swap transition to failed
// or timeout, with the same lost-race semantics as the success path.
func (d *DatabaseClient) FinishGenerationTaskFailure(id uuid.UUID, status, errorCode, errorMessage string, callbackData []byte) (bool, error) {
	if status != models.TaskStatusFailed && status != models.TaskStatusTimeout {
		return false, fmt.Errorf("invalid failure status %q", status)
	}

	result, err := d.db.Exec(`
		UPDATE generation_tasks
		SET status = $2, error_code = NULLIF($3, ''), error_message = NULLIF($4, ''),
		    callback_received_at = NOW(), callback_data = COALESCE($5, callback_data), updated_at = NOW()
		WHERE id = $1 AND status IN ($6, $7)
	`, id, status, errorCode, errorMessage, nullableJSON(callbackData),
		models.TaskStatusPending, models.TaskStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to finish task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return data
}
