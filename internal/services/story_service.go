package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"storyforge-backend/internal/config"
	"storyforge-backend/internal/models"
	"storyforge-backend/internal/openrouter"
	"storyforge-backend/internal/prompts"
)

// OutlineModel is the LLM used for outlines, character extraction, and
// storyboard breakdowns.
const OutlineModel = "google/gemini-3-flash-preview"

// Completer runs a single LLM chat completion.
type Completer interface {
	Complete(systemPrompt, userPrompt string, opts openrouter.CompletionOptions) (*openrouter.CompletionResult, error)
}

// StoryStore is the persistence surface for story initialization and
// storyboard generation.
type StoryStore interface {
	ClaimProjectInit(id, userID uuid.UUID) (bool, error)
	UpdateProjectOutline(id uuid.UUID, outline, initStatus string) error
	UpdateProjectInitStatus(id uuid.UUID, status, initStatus string, initError *string) error
	CreateCharacters(characters []models.Character) error
	UpdateCharacterTask(id uuid.UUID, taskID, imagePrompt string) error
	FindCharactersByProjectID(projectID uuid.UUID) ([]models.Character, error)
	CreateStoryboards(storyboards []models.Storyboard) error
}

// StoryService orchestrates project initialization: outline, character
// extraction, and the initial image generation jobs.
type StoryService struct {
	store  StoryStore
	llm    Completer
	tasks  *TaskService
	config *config.Config
	logger *logrus.Logger
}

func NewStoryService(store StoryStore, llm Completer, tasks *TaskService, cfg *config.Config, logger *logrus.Logger) *StoryService {
	return &StoryService{
		store:  store,
		llm:    llm,
		tasks:  tasks,
		config: cfg,
		logger: logger,
	}
}

// InitStory claims the project for initialization and runs the pipeline:
// outline, character extraction, cover and character image submission.
// It reports false when another request already holds the claim. Any
// failure after the claim rolls the project back to draft/failed so the
// user can retry.
func (s *StoryService) InitStory(project *models.Project) (bool, error) {
	claimed, err := s.store.ClaimProjectInit(project.ID, project.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to claim project init: %w", err)
	}
	if !claimed {
		return false, nil
	}

	if err := s.runInit(project); err != nil {
		s.logger.WithFields(logrus.Fields{
			"project_id": project.ID,
			"error":      err.Error(),
		}).Error("Story initialization failed")

		message := err.Error()
		if rollbackErr := s.store.UpdateProjectInitStatus(project.ID, models.ProjectStatusDraft, models.InitStatusFailed, &message); rollbackErr != nil {
			s.logger.WithField("project_id", project.ID).
				WithError(rollbackErr).Error("Failed to roll back project init status")
		}
		return true, err
	}

	return true, nil
}

func (s *StoryService) runInit(project *models.Project) error {
	style := prompts.StyleByID(project.StyleID)
	if style == nil {
		return fmt.Errorf("invalid style id %d", project.StyleID)
	}

	outline, err := s.generateOutline(project)
	if err != nil {
		return err
	}

	if err := s.store.UpdateProjectOutline(project.ID, outline, models.InitStatusGeneratingCharacters); err != nil {
		return fmt.Errorf("failed to save story outline: %w", err)
	}

	characters, err := s.extractCharacters(project, outline, style)
	if err != nil {
		return err
	}

	if err := s.store.CreateCharacters(characters); err != nil {
		return fmt.Errorf("failed to create characters: %w", err)
	}

	if err := s.store.UpdateProjectInitStatus(project.ID, models.ProjectStatusInitializing, models.InitStatusGeneratingCover, nil); err != nil {
		return fmt.Errorf("failed to advance init status: %w", err)
	}

	callbackURL := s.config.ImageCallbackURL()

	coverPrompt := prompts.CoverImage(project.Name, style.Name, style.Prompt, project.AspectRatio)
	if _, err := s.tasks.Submit(SubmitTaskParams{
		UserID:     project.UserID,
		ProjectID:  project.ID,
		TargetType: models.TargetCover,
		TargetID:   project.ID,
		Model:      ImageModel,
		Prompt:     coverPrompt,
		Options: map[string]interface{}{
			"aspect_ratio":  project.AspectRatio,
			"resolution":    "2K",
			"output_format": "png",
		},
		CallbackURL: callbackURL,
	}); err != nil {
		return fmt.Errorf("failed to submit cover image: %w", err)
	}

	for _, character := range characters {
		imagePrompt := character.ImagePrompt.String
		task, err := s.tasks.Submit(SubmitTaskParams{
			UserID:     project.UserID,
			ProjectID:  project.ID,
			TargetType: models.TargetCharacter,
			TargetID:   character.ID,
			Model:      ImageModel,
			Prompt:     imagePrompt,
			Options: map[string]interface{}{
				"aspect_ratio":  "1:1",
				"resolution":    "2K",
				"output_format": "png",
			},
			CallbackURL: callbackURL,
		})
		if err != nil {
			return fmt.Errorf("failed to submit character image for %s: %w", character.Name, err)
		}

		if err := s.store.UpdateCharacterTask(character.ID, task.TaskID, imagePrompt); err != nil {
			return fmt.Errorf("failed to mark character %s generating: %w", character.Name, err)
		}
	}

	return nil
}

func (s *StoryService) generateOutline(project *models.Project) (string, error) {
	prompt := prompts.StoryOutline(project.Name, project.Description.String)
	result, err := s.llm.Complete("", prompt, openrouter.CompletionOptions{Model: OutlineModel})
	if err != nil {
		return "", fmt.Errorf("failed to generate story outline: %w", err)
	}

	outline := strings.TrimSpace(result.Content)
	if outline == "" {
		return "", fmt.Errorf("story outline empty")
	}
	return outline, nil
}

func (s *StoryService) extractCharacters(project *models.Project, outline string, style *prompts.Style) ([]models.Character, error) {
	prompt := prompts.CharacterExtraction(outline, style.Name, style.Prompt)
	result, err := s.llm.Complete("", prompt, openrouter.CompletionOptions{
		Model:      OutlineModel,
		JSONObject: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to extract characters: %w", err)
	}

	rawCharacters, _ := result.ParsedJSON["characters"].([]interface{})
	characters := make([]models.Character, 0, len(rawCharacters))

	for _, raw := range rawCharacters {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		name := strings.TrimSpace(stringField(item, "name"))
		if name == "" {
			continue
		}

		traits, _ := item["traits"].(map[string]interface{})
		imagePrompt := strings.TrimSpace(stringField(item, "imagePrompt"))
		if imagePrompt == "" {
			imagePrompt = prompts.CharacterImage(name, traitsText(traits), style.Prompt)
		}

		character := models.Character{
			ID:          uuid.New(),
			ProjectID:   project.ID,
			UserID:      project.UserID,
			Name:        name,
			Status:      models.EntityStatusPending,
			SortOrder:   len(characters) + 1,
			ImagePrompt: nullString(imagePrompt),
			Description: nullString(strings.TrimSpace(stringField(item, "description"))),
		}
		if traits != nil {
			traitsJSON, err := json.Marshal(traits)
			if err == nil {
				character.Traits = traitsJSON
			}
		}

		characters = append(characters, character)
	}

	if len(characters) == 0 {
		return nil, fmt.Errorf("no characters extracted")
	}
	return characters, nil
}

// GenerateStoryboards breaks the project's outline into shots and persists
// them in pending status. Image and video jobs are submitted per shot by
// the dedicated endpoints.
func (s *StoryService) GenerateStoryboards(project *models.Project) ([]models.Storyboard, error) {
	if project.Status != models.ProjectStatusReady {
		return nil, fmt.Errorf("project not initialized")
	}

	style := prompts.StyleByID(project.StyleID)
	if style == nil {
		return nil, fmt.Errorf("invalid style id %d", project.StyleID)
	}

	result, err := s.llm.Complete("", prompts.StoryboardBreakdown(project.StoryOutline.String, style.Name, style.Prompt), openrouter.CompletionOptions{
		Model:      OutlineModel,
		JSONObject: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate storyboards: %w", err)
	}

	rawShots, _ := result.ParsedJSON["storyboards"].([]interface{})
	storyboards := make([]models.Storyboard, 0, len(rawShots))

	for _, raw := range rawShots {
		item, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		imagePrompt := strings.TrimSpace(stringField(item, "imagePrompt"))
		videoPrompt := strings.TrimSpace(stringField(item, "videoPrompt"))
		if imagePrompt == "" || videoPrompt == "" {
			return nil, fmt.Errorf("storyboard shot missing imagePrompt or videoPrompt")
		}

		storyboards = append(storyboards, models.Storyboard{
			ID:          uuid.New(),
			ProjectID:   project.ID,
			UserID:      project.UserID,
			SortOrder:   len(storyboards) + 1,
			Scene:       nullString(strings.TrimSpace(stringField(item, "scene"))),
			ImagePrompt: nullString(imagePrompt),
			VideoPrompt: nullString(videoPrompt),
			ImageStatus: models.EntityStatusPending,
			VideoStatus: models.EntityStatusPending,
		})
	}

	if len(storyboards) == 0 {
		return nil, fmt.Errorf("no storyboards generated")
	}

	if err := s.store.CreateStoryboards(storyboards); err != nil {
		return nil, fmt.Errorf("failed to create storyboards: %w", err)
	}

	return storyboards, nil
}

// CharacterImagePrompt rebuilds the default portrait prompt for a
// character, used when a regenerate request carries no prompt override.
func CharacterImagePrompt(character *models.Character, styleID int) (string, error) {
	style := prompts.StyleByID(styleID)
	if style == nil {
		return "", fmt.Errorf("invalid style id %d", styleID)
	}

	var traits map[string]interface{}
	if len(character.Traits) > 0 {
		// Best effort; an unparsable traits blob just yields a plainer prompt.
		_ = json.Unmarshal(character.Traits, &traits)
	}

	return prompts.CharacterImage(character.Name, traitsText(traits), style.Prompt), nil
}

func traitsText(traits map[string]interface{}) string {
	if traits == nil {
		return ""
	}

	parts := make([]string, 0, 5)
	for _, key := range []string{"gender", "age", "appearance", "personality", "clothing"} {
		value := strings.TrimSpace(stringField(traits, key))
		if value == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s%s: %s.", strings.ToUpper(key[:1]), key[1:], value))
	}
	return strings.Join(parts, " ")
}

func stringField(m map[string]interface{}, key string) string {
	value, _ := m[key].(string)
	return value
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
