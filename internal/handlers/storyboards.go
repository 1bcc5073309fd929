package handlers

import (
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"storyforge-backend/internal/config"
	"storyforge-backend/internal/models"
	"storyforge-backend/internal/services"
	"storyforge-backend/internal/supabase"
)

const maxReferenceImageBytes = 10 * 1024 * 1024

var supportedImageURL = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|webp)(\?|#|$)`)

type StoryboardsHandler struct {
	config       *config.Config
	dbClient     *supabase.DatabaseClient
	storyService *services.StoryService
	taskService  *services.TaskService
	logger       *logrus.Logger
}

func NewStoryboardsHandler(cfg *config.Config, dbClient *supabase.DatabaseClient, storyService *services.StoryService, taskService *services.TaskService, logger *logrus.Logger) *StoryboardsHandler {
	return &StoryboardsHandler{
		config:       cfg,
		dbClient:     dbClient,
		storyService: storyService,
		taskService:  taskService,
		logger:       logger,
	}
}

// GenerateStoryboards runs the LLM shot breakdown for a ready project.
func (h *StoryboardsHandler) GenerateStoryboards(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}

	storyboards, err := h.storyService.GenerateStoryboards(project)
	if err != nil {
		respErr(c, err.Error())
		return
	}

	responses := make([]models.StoryboardResponse, len(storyboards))
	for i := range storyboards {
		responses[i] = toStoryboardResponse(&storyboards[i])
	}
	respData(c, responses)
}

func (h *StoryboardsHandler) ListStoryboards(c *gin.Context) {
	project, ok := h.ownedProject(c)
	if !ok {
		return
	}

	storyboards, err := h.dbClient.FindStoryboardsByProjectID(project.ID)
	if err != nil {
		respErr(c, "failed to list storyboards")
		return
	}

	responses := make([]models.StoryboardResponse, len(storyboards))
	for i := range storyboards {
		responses[i] = toStoryboardResponse(&storyboards[i])
	}
	respData(c, responses)
}

func (h *StoryboardsHandler) UpdateStoryboard(c *gin.Context) {
	storyboard, _, ok := h.ownedStoryboard(c)
	if !ok {
		return
	}

	var req models.UpdateStoryboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respErr(c, "invalid request body")
		return
	}

	if err := h.dbClient.UpdateStoryboardPrompts(storyboard.ID, req.Scene, req.ImagePrompt, req.VideoPrompt); err != nil {
		h.logger.WithField("storyboard_id", storyboard.ID).WithError(err).Error("Failed to update storyboard")
		respErr(c, "failed to update storyboard")
		return
	}

	respOK(c)
}

func (h *StoryboardsHandler) DeleteStoryboard(c *gin.Context) {
	storyboard, _, ok := h.ownedStoryboard(c)
	if !ok {
		return
	}

	if err := h.dbClient.SoftDeleteStoryboard(storyboard.ID, storyboard.UserID); err != nil {
		h.logger.WithField("storyboard_id", storyboard.ID).WithError(err).Error("Failed to delete storyboard")
		respErr(c, "failed to delete storyboard")
		return
	}

	respOK(c)
}

// GenerateImage submits the storyboard frame render, passing ready
// character portraits as reference inputs for consistency.
func (h *StoryboardsHandler) GenerateImage(c *gin.Context) {
	storyboard, project, ok := h.ownedStoryboard(c)
	if !ok {
		return
	}

	// An in-flight submission for the same frame is returned as-is rather
	// than duplicated.
	if storyboard.ImageTaskID.Valid {
		task, err := h.dbClient.FindGenerationTaskByTaskID(storyboard.ImageTaskID.String)
		if err == nil && task != nil && !models.IsTerminalTaskStatus(task.Status) {
			respData(c, models.TaskSubmittedResponse{TaskID: task.TaskID, Status: task.Status})
			return
		}
	}
	if storyboard.ImageStatus == models.EntityStatusGenerating {
		respErr(c, "image is generating")
		return
	}

	if !storyboard.ImagePrompt.Valid || storyboard.ImagePrompt.String == "" {
		respErr(c, "image_prompt is required")
		return
	}

	characters, err := h.dbClient.FindCharactersByProjectID(project.ID)
	if err != nil {
		respErr(c, "failed to load characters")
		return
	}

	referenceImages := make([]string, 0, len(characters))
	for i := range characters {
		if characters[i].ImageURL.Valid && characters[i].ImageURL.String != "" {
			referenceImages = append(referenceImages, characters[i].ImageURL.String)
		}
	}
	if len(referenceImages) == 0 {
		respErr(c, "character images missing, please generate character images first")
		return
	}

	task, err := h.taskService.Submit(services.SubmitTaskParams{
		UserID:     project.UserID,
		ProjectID:  project.ID,
		TargetType: models.TargetStoryboardImage,
		TargetID:   storyboard.ID,
		Model:      services.ImageModel,
		Prompt:     storyboard.ImagePrompt.String,
		Options: map[string]interface{}{
			"image_input":   referenceImages,
			"aspect_ratio":  project.AspectRatio,
			"resolution":    "2K",
			"output_format": "png",
		},
		CallbackURL: h.config.ImageCallbackURL(),
	})
	if err != nil {
		respErr(c, err.Error())
		return
	}

	if err := h.dbClient.UpdateStoryboardImageTask(storyboard.ID, task.TaskID); err != nil {
		h.logger.WithField("storyboard_id", storyboard.ID).WithError(err).Error("Failed to mark storyboard image generating")
		respErr(c, "failed to update storyboard")
		return
	}

	respData(c, models.TaskSubmittedResponse{TaskID: task.TaskID, Status: task.Status})
}

// GenerateVideo animates a ready storyboard frame. The frame must be a
// supported image format under the provider's size ceiling.
func (h *StoryboardsHandler) GenerateVideo(c *gin.Context) {
	storyboard, project, ok := h.ownedStoryboard(c)
	if !ok {
		return
	}

	if storyboard.ImageStatus != models.EntityStatusReady || !storyboard.ImageURL.Valid || storyboard.ImageURL.String == "" {
		respErr(c, "storyboard image not ready")
		return
	}

	if storyboard.VideoTaskID.Valid {
		task, err := h.dbClient.FindGenerationTaskByTaskID(storyboard.VideoTaskID.String)
		if err == nil && task != nil && !models.IsTerminalTaskStatus(task.Status) {
			respData(c, models.TaskSubmittedResponse{TaskID: task.TaskID, Status: task.Status})
			return
		}
	}
	if storyboard.VideoStatus == models.EntityStatusGenerating {
		respErr(c, "video is generating")
		return
	}

	if !supportedImageURL.MatchString(storyboard.ImageURL.String) {
		respErr(c, "image url format not supported")
		return
	}

	if !storyboard.VideoPrompt.Valid || storyboard.VideoPrompt.String == "" {
		respErr(c, "video_prompt is required")
		return
	}

	if !h.imageSizeAllowed(storyboard.ImageURL.String) {
		respErr(c, "image url exceeds 10MB limit")
		return
	}

	aspectRatio := "landscape"
	if project.AspectRatio == "9:16" {
		aspectRatio = "portrait"
	}

	task, err := h.taskService.Submit(services.SubmitTaskParams{
		UserID:     project.UserID,
		ProjectID:  project.ID,
		TargetType: models.TargetStoryboardVideo,
		TargetID:   storyboard.ID,
		Model:      services.VideoModel,
		Prompt:     storyboard.VideoPrompt.String,
		Options: map[string]interface{}{
			"image_input":  []string{storyboard.ImageURL.String},
			"aspect_ratio": aspectRatio,
			"duration":     "10",
		},
		CallbackURL: h.config.VideoCallbackURL(),
	})
	if err != nil {
		respErr(c, err.Error())
		return
	}

	if err := h.dbClient.UpdateStoryboardVideoTask(storyboard.ID, task.TaskID); err != nil {
		h.logger.WithField("storyboard_id", storyboard.ID).WithError(err).Error("Failed to mark storyboard video generating")
		respErr(c, "failed to update storyboard")
		return
	}

	respData(c, models.TaskSubmittedResponse{TaskID: task.TaskID, Status: task.Status})
}

// imageSizeAllowed HEAD-checks the reference image. Probe failures and
// missing Content-Length headers pass; only a confirmed oversize rejects.
func (h *StoryboardsHandler) imageSizeAllowed(url string) bool {
	resp, err := http.Head(url)
	if err != nil {
		return true
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return true
	}

	length := resp.Header.Get("Content-Length")
	if length == "" {
		return true
	}

	size, err := strconv.ParseInt(length, 10, 64)
	if err != nil {
		return true
	}
	return size <= maxReferenceImageBytes
}

func (h *StoryboardsHandler) ownedProject(c *gin.Context) (*models.Project, bool) {
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
	if project == nil || project.UserID != userID {
		respErr(c, "project not found")
		return nil, false
	}

	return project, true
}

func (h *StoryboardsHandler) ownedStoryboard(c *gin.Context) (*models.Storyboard, *models.Project, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, nil, false
	}

	storyboardID, ok := pathUUID(c, "storyboard_id")
	if !ok {
		return nil, nil, false
	}

	storyboard, err := h.dbClient.FindStoryboardByID(storyboardID)
	if err != nil {
		respErr(c, "failed to load storyboard")
		return nil, nil, false
	}
	if storyboard == nil || storyboard.UserID != userID {
		respErr(c, "storyboard not found")
		return nil, nil, false
	}

	project, err := h.dbClient.FindProjectByID(storyboard.ProjectID, false)
	if err != nil || project == nil || project.UserID != userID {
		respErr(c, "project not found")
		return nil, nil, false
	}

	return storyboard, project, true
}
