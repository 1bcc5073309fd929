package handlers

import (
	"database/sql"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"storyforge-backend/internal/models"
	"storyforge-backend/internal/prompts"
	"storyforge-backend/internal/services"
	"storyforge-backend/internal/supabase"
)

type ProjectsHandler struct {
	dbClient      *supabase.DatabaseClient
	storageClient *supabase.StorageClient
	storyService  *services.StoryService
	logger        *logrus.Logger
}

func NewProjectsHandler(dbClient *supabase.DatabaseClient, storageClient *supabase.StorageClient, storyService *services.StoryService, logger *logrus.Logger) *ProjectsHandler {
	return &ProjectsHandler{
		dbClient:      dbClient,
		storageClient: storageClient,
		storyService:  storyService,
		logger:        logger,
	}
}

func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respErr(c, "name is required")
		return
	}

	if prompts.StyleByID(req.StyleID) == nil {
		respErr(c, "invalid style_id")
		return
	}

	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = "16:9"
	}
	if aspectRatio != "16:9" && aspectRatio != "9:16" {
		respErr(c, "aspect_ratio must be 16:9 or 9:16")
		return
	}

	project := &models.Project{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        req.Name,
		Description: sql.NullString{String: req.Description, Valid: req.Description != ""},
		StyleID:     req.StyleID,
		AspectRatio: aspectRatio,
		Status:      models.ProjectStatusDraft,
		InitStatus:  sql.NullString{String: models.InitStatusPending, Valid: true},
	}

	created, err := h.dbClient.CreateProject(project)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create project")
		respErr(c, "failed to create project")
		return
	}

	respData(c, toProjectResponse(created))
}

func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	projects, err := h.dbClient.FindProjectsByUserID(userID, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list projects")
		respErr(c, "failed to list projects")
		return
	}

	responses := make([]models.ProjectResponse, len(projects))
	for i := range projects {
		responses[i] = toProjectResponse(&projects[i])
	}

	respData(c, responses)
}

func (h *ProjectsHandler) GetProject(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}

	respData(c, toProjectResponse(project))
}

func (h *ProjectsHandler) UpdateProject(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}

	var req models.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respErr(c, "invalid request body")
		return
	}

	if err := h.dbClient.UpdateProjectInfo(project.ID, req.Name, req.Description); err != nil {
		h.logger.WithField("project_id", project.ID).WithError(err).Error("Failed to update project")
		respErr(c, "failed to update project")
		return
	}

	respOK(c)
}

func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}

	if err := h.dbClient.SoftDeleteProject(project.ID, project.UserID); err != nil {
		h.logger.WithField("project_id", project.ID).WithError(err).Error("Failed to delete project")
		respErr(c, "failed to delete project")
		return
	}

	// Stored media cleanup is best effort; the rows are already gone from
	// the user's view.
	if h.storageClient != nil {
		for _, prefix := range []string{"covers/" + project.ID.String(), "characters/" + project.ID.String(), "storyboards/" + project.ID.String()} {
			if err := h.storageClient.DeleteProjectFiles(prefix); err != nil {
				h.logger.WithField("prefix", prefix).WithError(err).Warn("Failed to delete project files")
			}
		}
	}

	respOK(c)
}

// InitStory kicks off the outline/characters/cover pipeline. A project
// already past draft, or mid-claim by a concurrent request, gets an
// informational ack instead of an error so clients can simply refresh.
func (h *ProjectsHandler) InitStory(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}

	initStatus := project.InitStatus.String
	if project.Status != models.ProjectStatusDraft ||
		(initStatus != models.InitStatusPending && initStatus != models.InitStatusFailed) {
		respData(c, gin.H{
			"message":     "project already initializing or ready",
			"status":      project.Status,
			"init_status": initStatus,
		})
		return
	}

	claimed, err := h.storyService.InitStory(project)
	if err != nil {
		respErr(c, err.Error())
		return
	}
	if !claimed {
		respData(c, gin.H{
			"message":     "project already initializing",
			"status":      project.Status,
			"init_status": initStatus,
		})
		return
	}

	respData(c, gin.H{"message": "init started"})
}

func (h *ProjectsHandler) InitStatus(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}

	characters, err := h.dbClient.FindCharactersByProjectID(project.ID)
	if err != nil {
		respErr(c, "failed to load characters")
		return
	}

	coverTasks, err := h.dbClient.FindGenerationTasksByTarget(models.TargetCover, project.ID)
	if err != nil {
		respErr(c, "failed to load cover tasks")
		return
	}

	response := models.InitStatusResponse{
		Status:        project.Status,
		InitStatus:    project.InitStatus.String,
		InitError:     project.InitError.String,
		StoryOutline:  project.StoryOutline.String,
		CoverImageURL: project.CoverImageURL.String,
		CoverStatus:   coverStatus(project, coverTasks),
	}

	response.Characters = make([]models.CharacterResponse, len(characters))
	response.CharacterProgress.Total = len(characters)
	for i := range characters {
		response.Characters[i] = toCharacterResponse(&characters[i])
		switch characters[i].Status {
		case models.EntityStatusReady:
			response.CharacterProgress.Ready++
		case models.EntityStatusFailed:
			response.CharacterProgress.Failed++
		case models.EntityStatusTimeout:
			response.CharacterProgress.Timeout++
		}
	}

	respData(c, response)
}

// coverStatus derives a display status from the stored cover URL and the
// most recent cover task.
func coverStatus(project *models.Project, coverTasks []models.GenerationTask) string {
	if project.CoverImageURL.Valid && project.CoverImageURL.String != "" {
		return models.EntityStatusReady
	}

	if len(coverTasks) == 0 {
		return models.EntityStatusPending
	}

	switch latest := coverTasks[len(coverTasks)-1]; latest.Status {
	case models.TaskStatusPending, models.TaskStatusProcessing:
		return models.EntityStatusGenerating
	case models.TaskStatusFailed:
		return models.EntityStatusFailed
	case models.TaskStatusTimeout:
		return models.EntityStatusTimeout
	case models.TaskStatusSuccess:
		return models.EntityStatusReady
	}
	return models.EntityStatusPending
}

// ownedProject resolves the project_id path parameter and enforces
// ownership, writing the error response itself on failure.
func (h *ProjectsHandler) ownedProject(c *gin.Context) (*models.Project, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, false
	}

	projectID, ok := pathUUID(c, "project_id")
	if !ok {
		return nil, false
	}

	project, err := h.dbClient.FindProjectByID(projectID, false)
	if err != nil {
		respErr(c, "failed to load project")
		return nil, false
	}
	if project == nil {
		respErr(c, "project not found")
		return nil, false
	}
	if project.UserID != userID {
		respErr(c, "no permission")
		return nil, false
	}

	return project, true
}
