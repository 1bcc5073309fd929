package services_test

import (
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"storyforge-backend/internal/kie"
	"storyforge-backend/internal/models"
	"storyforge-backend/internal/openrouter"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeTaskStore keeps generation tasks in memory and mirrors the
// compare-and-swap semantics of the SQL finish helpers.
type fakeTaskStore struct {
	tasks      map[uuid.UUID]*models.GenerationTask
	order      []uuid.UUID
	polled     []polledRecord
	findErr    error
	successful int
	failed     int
}

type polledRecord struct {
	id        uuid.UUID
	status    string
	pollCount int
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[uuid.UUID]*models.GenerationTask{}}
}

func (f *fakeTaskStore) add(task *models.GenerationTask) {
	f.tasks[task.ID] = task
	f.order = append(f.order, task.ID)
}

func (f *fakeTaskStore) CreateGenerationTask(t *models.GenerationTask) error {
	f.add(t)
	return nil
}

func (f *fakeTaskStore) FindGenerationTaskByTaskID(taskID string) (*models.GenerationTask, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, id := range f.order {
		if f.tasks[id].TaskID == taskID {
			return f.tasks[id], nil
		}
	}
	return nil, nil
}

func (f *fakeTaskStore) FindGenerationTasksByTarget(targetType string, targetID uuid.UUID) ([]models.GenerationTask, error) {
	var out []models.GenerationTask
	for _, id := range f.order {
		t := f.tasks[id]
		if t.TargetType == targetType && t.TargetID == targetID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) FindPendingGenerationTasks(statuses []string, lastPolledBefore time.Time, pollCountLessThan, limit int) ([]models.GenerationTask, error) {
	allowed := map[string]bool{}
	for _, s := range statuses {
		allowed[s] = true
	}

	var out []models.GenerationTask
	for _, id := range f.order {
		t := f.tasks[id]
		if !allowed[t.Status] || t.PollCount >= pollCountLessThan {
			continue
		}
		if t.LastPolledAt.Valid && !t.LastPolledAt.Time.Before(lastPolledBefore) {
			continue
		}
		out = append(out, *t)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeTaskStore) MarkGenerationTaskPolled(id uuid.UUID, status string, pollCount int, errorCode, errorMessage string) error {
	if models.IsTerminalTaskStatus(status) {
		return fmt.Errorf("poll bookkeeping must not write terminal status %q", status)
	}

	task, ok := f.tasks[id]
	if !ok {
		return fmt.Errorf("task %s not found", id)
	}
	if models.IsTerminalTaskStatus(task.Status) {
		return nil
	}

	task.Status = status
	task.PollCount = pollCount
	task.LastPolledAt = sql.NullTime{Time: time.Now(), Valid: true}
	f.polled = append(f.polled, polledRecord{id: id, status: status, pollCount: pollCount})
	return nil
}

func (f *fakeTaskStore) FinishGenerationTaskSuccess(id uuid.UUID, resultURL, storedURL string, callbackData []byte) (bool, error) {
	task, ok := f.tasks[id]
	if !ok {
		return false, fmt.Errorf("task %s not found", id)
	}
	if models.IsTerminalTaskStatus(task.Status) {
		return false, nil
	}

	task.Status = models.TaskStatusSuccess
	task.ResultURL = sql.NullString{String: resultURL, Valid: true}
	task.StoredURL = sql.NullString{String: storedURL, Valid: true}
	task.CallbackData = callbackData
	f.successful++
	return true, nil
}

func (f *fakeTaskStore) FinishGenerationTaskFailure(id uuid.UUID, status, errorCode, errorMessage string, callbackData []byte) (bool, error) {
	if status != models.TaskStatusFailed && status != models.TaskStatusTimeout {
		return false, fmt.Errorf("invalid terminal failure status %q", status)
	}

	task, ok := f.tasks[id]
	if !ok {
		return false, fmt.Errorf("task %s not found", id)
	}
	if models.IsTerminalTaskStatus(task.Status) {
		return false, nil
	}

	task.Status = status
	task.ErrorCode = sql.NullString{String: errorCode, Valid: errorCode != ""}
	task.ErrorMessage = sql.NullString{String: errorMessage, Valid: errorMessage != ""}
	f.failed++
	return true, nil
}

// fakeEntityStore tracks the entity-side writes the callback cascade makes.
type fakeEntityStore struct {
	projects    map[uuid.UUID]*models.Project
	characters  map[uuid.UUID]*models.Character
	storyboards map[uuid.UUID]*models.Storyboard
}

func newFakeEntityStore() *fakeEntityStore {
	return &fakeEntityStore{
		projects:    map[uuid.UUID]*models.Project{},
		characters:  map[uuid.UUID]*models.Character{},
		storyboards: map[uuid.UUID]*models.Storyboard{},
	}
}

func (f *fakeEntityStore) FindProjectByID(id uuid.UUID, includeDeleted bool) (*models.Project, error) {
	return f.projects[id], nil
}

func (f *fakeEntityStore) UpdateProjectCover(id uuid.UUID, coverImageURL string) error {
	p, ok := f.projects[id]
	if !ok {
		return fmt.Errorf("project %s not found", id)
	}
	p.CoverImageURL = sql.NullString{String: coverImageURL, Valid: true}
	return nil
}

func (f *fakeEntityStore) UpdateProjectInitStatus(id uuid.UUID, status, initStatus string, initError *string) error {
	p, ok := f.projects[id]
	if !ok {
		return fmt.Errorf("project %s not found", id)
	}
	p.Status = status
	p.InitStatus = sql.NullString{String: initStatus, Valid: true}
	if initError != nil {
		p.InitError = sql.NullString{String: *initError, Valid: true}
	} else {
		p.InitError = sql.NullString{}
	}
	return nil
}

func (f *fakeEntityStore) FindCharactersByProjectID(projectID uuid.UUID) ([]models.Character, error) {
	var out []models.Character
	for _, c := range f.characters {
		if c.ProjectID == projectID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeEntityStore) UpdateCharacterImage(id uuid.UUID, imageURL string) error {
	c, ok := f.characters[id]
	if !ok {
		return fmt.Errorf("character %s not found", id)
	}
	c.ImageURL = sql.NullString{String: imageURL, Valid: true}
	c.Status = models.EntityStatusReady
	c.TaskError = sql.NullString{}
	return nil
}

func (f *fakeEntityStore) UpdateCharacterStatus(id uuid.UUID, status, taskError string) error {
	c, ok := f.characters[id]
	if !ok {
		return fmt.Errorf("character %s not found", id)
	}
	c.Status = status
	c.TaskError = sql.NullString{String: taskError, Valid: taskError != ""}
	return nil
}

func (f *fakeEntityStore) UpdateStoryboardImageReady(id uuid.UUID, imageURL string) error {
	sb, ok := f.storyboards[id]
	if !ok {
		return fmt.Errorf("storyboard %s not found", id)
	}
	sb.ImageURL = sql.NullString{String: imageURL, Valid: true}
	sb.ImageStatus = models.EntityStatusReady
	sb.ImageError = sql.NullString{}
	return nil
}

func (f *fakeEntityStore) UpdateStoryboardImageStatus(id uuid.UUID, status, imageError string) error {
	sb, ok := f.storyboards[id]
	if !ok {
		return fmt.Errorf("storyboard %s not found", id)
	}
	sb.ImageStatus = status
	sb.ImageError = sql.NullString{String: imageError, Valid: imageError != ""}
	return nil
}

func (f *fakeEntityStore) UpdateStoryboardVideoReady(id uuid.UUID, videoURL string) error {
	sb, ok := f.storyboards[id]
	if !ok {
		return fmt.Errorf("storyboard %s not found", id)
	}
	sb.VideoURL = sql.NullString{String: videoURL, Valid: true}
	sb.VideoStatus = models.EntityStatusReady
	sb.VideoError = sql.NullString{}
	return nil
}

func (f *fakeEntityStore) UpdateStoryboardVideoStatus(id uuid.UUID, status, videoError string) error {
	sb, ok := f.storyboards[id]
	if !ok {
		return fmt.Errorf("storyboard %s not found", id)
	}
	sb.VideoStatus = status
	sb.VideoError = sql.NullString{String: videoError, Valid: videoError != ""}
	return nil
}

// fakeStorage counts materializations and returns deterministic public URLs.
type fakeStorage struct {
	uploads []string
	err     error
}

func (f *fakeStorage) DownloadAndUpload(sourceURL, key, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, key)
	return "https://storage.example.com/" + key, nil
}

// fakeQuerier serves canned provider states keyed by external task id.
type fakeQuerier struct {
	results map[string]*kie.QueryResult
	errs    map[string]error
	queried []string
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{results: map[string]*kie.QueryResult{}, errs: map[string]error{}}
}

func (f *fakeQuerier) Query(taskID string, mediaType kie.MediaType) (*kie.QueryResult, error) {
	f.queried = append(f.queried, taskID)
	if err := f.errs[taskID]; err != nil {
		return nil, err
	}
	result, ok := f.results[taskID]
	if !ok {
		return nil, fmt.Errorf("no canned result for %s", taskID)
	}
	return result, nil
}

type publishedEvent struct {
	projectID uuid.UUID
	event     string
}

type fakeEvents struct {
	published []publishedEvent
}

func (f *fakeEvents) PublishProjectEvent(projectID uuid.UUID, event string, payload map[string]interface{}) error {
	f.published = append(f.published, publishedEvent{projectID: projectID, event: event})
	return nil
}

func (f *fakeEvents) names() []string {
	out := make([]string, len(f.published))
	for i, e := range f.published {
		out[i] = e.event
	}
	return out
}

// fakeGenerator fabricates sequential external task ids.
type fakeGenerator struct {
	requests []kie.GenerateRequest
	err      error
	status   string
}

func (f *fakeGenerator) Generate(req kie.GenerateRequest) (*kie.GenerateResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	status := f.status
	if status == "" {
		status = models.TaskStatusPending
	}
	return &kie.GenerateResult{
		TaskID:     fmt.Sprintf("ext-%d", len(f.requests)),
		TaskStatus: status,
	}, nil
}

// fakeCompleter replays canned LLM answers in call order.
type fakeCompleter struct {
	responses []*openrouter.CompletionResult
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeCompleter) Complete(systemPrompt, userPrompt string, opts openrouter.CompletionOptions) (*openrouter.CompletionResult, error) {
	idx := f.calls
	f.calls++
	f.prompts = append(f.prompts, userPrompt)

	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.responses) {
		return f.responses[idx], nil
	}
	return nil, fmt.Errorf("unexpected completion call %d", idx)
}

// fakeStoryStore backs the story service with in-memory projects and
// characters.
type fakeStoryStore struct {
	entities     *fakeEntityStore
	claimErr     error
	claimDenied  bool
	outline      string
	outlineState string
	created      []models.Character
	storyboards  []models.Storyboard
	taskMarks    map[uuid.UUID]string
}

func newFakeStoryStore(entities *fakeEntityStore) *fakeStoryStore {
	return &fakeStoryStore{entities: entities, taskMarks: map[uuid.UUID]string{}}
}

func (f *fakeStoryStore) ClaimProjectInit(id, userID uuid.UUID) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if f.claimDenied {
		return false, nil
	}
	p, ok := f.entities.projects[id]
	if !ok {
		return false, fmt.Errorf("project %s not found", id)
	}
	p.Status = models.ProjectStatusInitializing
	p.InitStatus = sql.NullString{String: models.InitStatusGeneratingOutline, Valid: true}
	return true, nil
}

func (f *fakeStoryStore) UpdateProjectOutline(id uuid.UUID, outline, initStatus string) error {
	f.outline = outline
	f.outlineState = initStatus
	if p, ok := f.entities.projects[id]; ok {
		p.StoryOutline = sql.NullString{String: outline, Valid: true}
		p.InitStatus = sql.NullString{String: initStatus, Valid: true}
	}
	return nil
}

func (f *fakeStoryStore) UpdateProjectInitStatus(id uuid.UUID, status, initStatus string, initError *string) error {
	return f.entities.UpdateProjectInitStatus(id, status, initStatus, initError)
}

func (f *fakeStoryStore) CreateCharacters(characters []models.Character) error {
	f.created = append(f.created, characters...)
	for i := range characters {
		c := characters[i]
		f.entities.characters[c.ID] = &c
	}
	return nil
}

func (f *fakeStoryStore) UpdateCharacterTask(id uuid.UUID, taskID, imagePrompt string) error {
	f.taskMarks[id] = taskID
	if c, ok := f.entities.characters[id]; ok {
		c.Status = models.EntityStatusGenerating
		c.TaskID = sql.NullString{String: taskID, Valid: true}
	}
	return nil
}

func (f *fakeStoryStore) FindCharactersByProjectID(projectID uuid.UUID) ([]models.Character, error) {
	return f.entities.FindCharactersByProjectID(projectID)
}

func (f *fakeStoryStore) CreateStoryboards(storyboards []models.Storyboard) error {
	f.storyboards = append(f.storyboards, storyboards...)
	return nil
}
