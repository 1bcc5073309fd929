package handlers

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"storyforge-backend/internal/config"
	"storyforge-backend/internal/models"
	"storyforge-backend/internal/services"
	"storyforge-backend/internal/supabase"
)

type CharactersHandler struct {
	config      *config.Config
	dbClient    *supabase.DatabaseClient
	taskService *services.TaskService
	logger      *logrus.Logger
}

func NewCharactersHandler(cfg *config.Config, dbClient *supabase.DatabaseClient, taskService *services.TaskService, logger *logrus.Logger) *CharactersHandler {
	return &CharactersHandler{
		config:      cfg,
		dbClient:    dbClient,
		taskService: taskService,
		logger:      logger,
	}
}

func (h *CharactersHandler) ListCharacters(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	projectID, ok := pathUUID(c, "project_id")
	if !ok {
		return
	}

	project, err := h.dbClient.FindProjectByID(projectID, false)
	if err != nil {
		respErr(c, "failed to load project")
		return
	}
	if project == nil || project.UserID != userID {
		respErr(c, "project not found")
		return
	}

	characters, err := h.dbClient.FindCharactersByProjectID(projectID)
	if err != nil {
		respErr(c, "failed to list characters")
		return
	}

	responses := make([]models.CharacterResponse, len(characters))
	for i := range characters {
		responses[i] = toCharacterResponse(&characters[i])
	}
	respData(c, responses)
}

func (h *CharactersHandler) UpdateCharacter(c *gin.Context) {
	character, _, ok := h.ownedCharacter(c)
	if !ok {
		return
	}

	var req models.UpdateCharacterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respErr(c, "invalid request body")
		return
	}

	var traits []byte
	if req.Traits != nil {
		var err error
		traits, err = json.Marshal(req.Traits)
		if err != nil {
			respErr(c, "invalid traits")
			return
		}
	}

	if err := h.dbClient.UpdateCharacterInfo(character.ID, req.Name, req.Description, traits); err != nil {
		h.logger.WithField("character_id", character.ID).WithError(err).Error("Failed to update character")
		respErr(c, "failed to update character")
		return
	}

	respOK(c)
}

// RegenerateImage submits a fresh portrait job for the character, using the
// request prompt when given and the derived default otherwise.
func (h *CharactersHandler) RegenerateImage(c *gin.Context) {
	character, project, ok := h.ownedCharacter(c)
	if !ok {
		return
	}

	var req models.RegenerateCharacterImageRequest
	_ = c.ShouldBindJSON(&req)

	imagePrompt := strings.TrimSpace(req.Prompt)
	if imagePrompt == "" {
		var err error
		imagePrompt, err = services.CharacterImagePrompt(character, project.StyleID)
		if err != nil {
			respErr(c, err.Error())
			return
		}
	}

	task, err := h.taskService.Submit(services.SubmitTaskParams{
		UserID:     project.UserID,
		ProjectID:  project.ID,
		TargetType: models.TargetCharacter,
		TargetID:   character.ID,
		Model:      services.ImageModel,
		Prompt:     imagePrompt,
		Options: map[string]interface{}{
			"aspect_ratio":  "1:1",
			"resolution":    "2K",
			"output_format": "png",
		},
		CallbackURL: h.config.ImageCallbackURL(),
	})
	if err != nil {
		respErr(c, err.Error())
		return
	}

	if err := h.dbClient.UpdateCharacterTask(character.ID, task.TaskID, imagePrompt); err != nil {
		h.logger.WithField("character_id", character.ID).WithError(err).Error("Failed to mark character generating")
		respErr(c, "failed to update character")
		return
	}

	respData(c, models.TaskSubmittedResponse{TaskID: task.TaskID, Status: task.Status})
}

func (h *CharactersHandler) DeleteCharacter(c *gin.Context) {
	character, _, ok := h.ownedCharacter(c)
	if !ok {
		return
	}

	if err := h.dbClient.SoftDeleteCharacter(character.ID, character.UserID); err != nil {
		h.logger.WithField("character_id", character.ID).WithError(err).Error("Failed to delete character")
		respErr(c, "failed to delete character")
		return
	}

	respOK(c)
}

func (h *CharactersHandler) ownedCharacter(c *gin.Context) (*models.Character, *models.Project, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, nil, false
	}

	characterID, ok := pathUUID(c, "character_id")
	if !ok {
		return nil, nil, false
	}

	character, err := h.dbClient.FindCharacterByID(characterID)
	if err != nil {
		respErr(c, "failed to load character")
		return nil, nil, false
	}
	if character == nil || character.UserID != userID {
		respErr(c, "character not found")
		return nil, nil, false
	}

	project, err := h.dbClient.FindProjectByID(character.ProjectID, false)
	if err != nil || project == nil || project.UserID != userID {
		respErr(c, "project not found")
		return nil, nil, false
	}

	return character, project, true
}
