package services_test

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"storyforge-backend/internal/config"
	"storyforge-backend/internal/models"
	"storyforge-backend/internal/openrouter"
	"storyforge-backend/internal/services"
)

type storyFixture struct {
	entities  *fakeEntityStore
	store     *fakeStoryStore
	llm       *fakeCompleter
	generator *fakeGenerator
	tasks     *fakeTaskStore
	service   *services.StoryService
}

func newStoryFixture(llm *fakeCompleter) *storyFixture {
	entities := newFakeEntityStore()
	store := newFakeStoryStore(entities)
	generator := &fakeGenerator{}
	tasks := newFakeTaskStore()

	cfg := &config.Config{
		BaseURL:           "https://app.example.com",
		KieCallbackSecret: "cb-secret",
	}

	taskService := services.NewTaskService(tasks, generator, testLogger())
	return &storyFixture{
		entities:  entities,
		store:     store,
		llm:       llm,
		generator: generator,
		tasks:     tasks,
		service:   services.NewStoryService(store, llm, taskService, cfg, testLogger()),
	}
}

func draftProject() *models.Project {
	return &models.Project{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Name:        "The Clockwork Garden",
		Description: sql.NullString{String: "A gardener discovers a mechanical rose.", Valid: true},
		StyleID:     1,
		AspectRatio: "16:9",
		Status:      models.ProjectStatusDraft,
		InitStatus:  sql.NullString{String: models.InitStatusPending, Valid: true},
	}
}

func charactersJSON() *openrouter.CompletionResult {
	return &openrouter.CompletionResult{
		ParsedJSON: map[string]interface{}{
			"characters": []interface{}{
				map[string]interface{}{
					"name":        "Mira",
					"description": "the gardener",
					"traits": map[string]interface{}{
						"gender":     "female",
						"age":        "30s",
						"appearance": "curly red hair",
					},
					"imagePrompt": "Portrait of Mira the gardener",
				},
				map[string]interface{}{
					"name": "The Rose",
					// No imagePrompt: the service derives one from traits.
					"traits": map[string]interface{}{
						"appearance": "brass petals",
					},
				},
			},
		},
	}
}

func TestInitStory_HappyPath(t *testing.T) {
	llm := &fakeCompleter{
		responses: []*openrouter.CompletionResult{
			{Content: "  Act one: the garden awakens.  "},
			charactersJSON(),
		},
	}
	f := newStoryFixture(llm)
	project := draftProject()
	f.entities.projects[project.ID] = project

	claimed, err := f.service.InitStory(project)
	require.NoError(t, err)
	assert.True(t, claimed)

	// Outline trimmed and saved, init advanced to character extraction.
	assert.Equal(t, "Act one: the garden awakens.", f.store.outline)
	assert.Equal(t, models.InitStatusGeneratingCharacters, f.store.outlineState)

	require.Len(t, f.store.created, 2)
	assert.Equal(t, "Mira", f.store.created[0].Name)
	assert.Equal(t, 1, f.store.created[0].SortOrder)
	assert.Equal(t, "Portrait of Mira the gardener", f.store.created[0].ImagePrompt.String)
	assert.Equal(t, 2, f.store.created[1].SortOrder)
	// Derived prompt mentions the character and traits.
	assert.Contains(t, f.store.created[1].ImagePrompt.String, "The Rose")
	assert.Contains(t, f.store.created[1].ImagePrompt.String, "brass petals")

	// One cover job plus one job per character.
	require.Len(t, f.generator.requests, 3)
	cover := f.generator.requests[0]
	assert.Equal(t, "nano-banana-pro", cover.Model)
	assert.Equal(t, "16:9", cover.Options["aspect_ratio"])
	assert.Contains(t, cover.CallbackURL, "/api/callback/kie/image")
	assert.Contains(t, cover.CallbackURL, "secret=cb-secret")

	for _, req := range f.generator.requests[1:] {
		assert.Equal(t, "1:1", req.Options["aspect_ratio"])
	}

	// Task rows recorded: 1 cover + 2 characters.
	assert.Len(t, f.tasks.order, 3)
	assert.Len(t, f.store.taskMarks, 2)
	assert.Equal(t, models.InitStatusGeneratingCover, project.InitStatus.String)
}

func TestInitStory_ClaimDenied(t *testing.T) {
	llm := &fakeCompleter{}
	f := newStoryFixture(llm)
	f.store.claimDenied = true
	project := draftProject()
	f.entities.projects[project.ID] = project

	claimed, err := f.service.InitStory(project)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Zero(t, llm.calls)
}

func TestInitStory_OutlineFailureRollsBack(t *testing.T) {
	llm := &fakeCompleter{errs: []error{assert.AnError}}
	f := newStoryFixture(llm)
	project := draftProject()
	f.entities.projects[project.ID] = project

	claimed, err := f.service.InitStory(project)
	require.Error(t, err)
	assert.True(t, claimed)

	assert.Equal(t, models.ProjectStatusDraft, project.Status)
	assert.Equal(t, models.InitStatusFailed, project.InitStatus.String)
	assert.NotEmpty(t, project.InitError.String)
	assert.Empty(t, f.generator.requests)
}

func TestInitStory_NoCharactersRollsBack(t *testing.T) {
	llm := &fakeCompleter{
		responses: []*openrouter.CompletionResult{
			{Content: "an outline"},
			{ParsedJSON: map[string]interface{}{"characters": []interface{}{}}},
		},
	}
	f := newStoryFixture(llm)
	project := draftProject()
	f.entities.projects[project.ID] = project

	_, err := f.service.InitStory(project)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no characters extracted")
	assert.Equal(t, models.ProjectStatusDraft, project.Status)
	assert.Equal(t, models.InitStatusFailed, project.InitStatus.String)
}

func TestInitStory_InvalidStyleRollsBack(t *testing.T) {
	llm := &fakeCompleter{}
	f := newStoryFixture(llm)
	project := draftProject()
	project.StyleID = 999
	f.entities.projects[project.ID] = project

	_, err := f.service.InitStory(project)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid style id")
	assert.Equal(t, models.ProjectStatusDraft, project.Status)
}

func TestInitStory_SubmitFailureRollsBack(t *testing.T) {
	llm := &fakeCompleter{
		responses: []*openrouter.CompletionResult{
			{Content: "an outline"},
			charactersJSON(),
		},
	}
	f := newStoryFixture(llm)
	f.generator.err = assert.AnError
	project := draftProject()
	f.entities.projects[project.ID] = project

	_, err := f.service.InitStory(project)
	require.Error(t, err)
	assert.Equal(t, models.ProjectStatusDraft, project.Status)
	assert.Equal(t, models.InitStatusFailed, project.InitStatus.String)
}

func TestGenerateStoryboards(t *testing.T) {
	llm := &fakeCompleter{
		responses: []*openrouter.CompletionResult{
			{ParsedJSON: map[string]interface{}{
				"storyboards": []interface{}{
					map[string]interface{}{
						"scene":       "The garden at dawn",
						"imagePrompt": "Wide shot of a clockwork garden",
						"videoPrompt": "Slow pan across brass flowers",
					},
					map[string]interface{}{
						"scene":       "Mira enters",
						"imagePrompt": "Mira stepping through the gate",
						"videoPrompt": "Tracking shot following Mira",
					},
				},
			}},
		},
	}
	f := newStoryFixture(llm)
	project := draftProject()
	project.Status = models.ProjectStatusReady
	project.StoryOutline = sql.NullString{String: "the outline", Valid: true}
	f.entities.projects[project.ID] = project

	storyboards, err := f.service.GenerateStoryboards(project)
	require.NoError(t, err)
	require.Len(t, storyboards, 2)

	assert.Equal(t, 1, storyboards[0].SortOrder)
	assert.Equal(t, "The garden at dawn", storyboards[0].Scene.String)
	assert.Equal(t, models.EntityStatusPending, storyboards[0].ImageStatus)
	assert.Equal(t, models.EntityStatusPending, storyboards[1].VideoStatus)
	assert.Len(t, f.store.storyboards, 2)
}

func TestGenerateStoryboards_RequiresReadyProject(t *testing.T) {
	f := newStoryFixture(&fakeCompleter{})
	project := draftProject()
	f.entities.projects[project.ID] = project

	_, err := f.service.GenerateStoryboards(project)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not initialized")
}

func TestGenerateStoryboards_MissingPromptFails(t *testing.T) {
	llm := &fakeCompleter{
		responses: []*openrouter.CompletionResult{
			{ParsedJSON: map[string]interface{}{
				"storyboards": []interface{}{
					map[string]interface{}{"scene": "no prompts here"},
				},
			}},
		},
	}
	f := newStoryFixture(llm)
	project := draftProject()
	project.Status = models.ProjectStatusReady
	f.entities.projects[project.ID] = project

	_, err := f.service.GenerateStoryboards(project)
	require.Error(t, err)
	assert.Empty(t, f.store.storyboards)
}
