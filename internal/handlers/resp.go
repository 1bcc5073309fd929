package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"storyforge-backend/internal/middleware"
	"storyforge-backend/internal/models"
)

// Every endpoint answers HTTP 200 with the code envelope; clients branch on
// code, not on the HTTP status. Webhook senders in particular retry on
// non-200, so acks must stay 200 even for no-op deliveries.
func respData(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, models.APIResponse{Code: 0, Data: data})
}

func respOK(c *gin.Context) {
	c.JSON(http.StatusOK, models.APIResponse{Code: 0})
}

func respErr(c *gin.Context, message string) {
	c.JSON(http.StatusOK, models.APIResponse{Code: -1, Message: message})
}

// currentUserID pulls the authenticated user id set by the JWT middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := c.Get(middleware.UserIDKey)
	if !exists {
		respErr(c, "no auth, please sign in")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		respErr(c, "invalid user id")
		return uuid.Nil, false
	}
	return userID, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respErr(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func toProjectResponse(p *models.Project) models.ProjectResponse {
	return models.ProjectResponse{
		ID:            p.ID.String(),
		Name:          p.Name,
		Description:   p.Description.String,
		StyleID:       p.StyleID,
		AspectRatio:   p.AspectRatio,
		Status:        p.Status,
		InitStatus:    p.InitStatus.String,
		InitError:     p.InitError.String,
		StoryOutline:  p.StoryOutline.String,
		CoverImageURL: p.CoverImageURL.String,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func toCharacterResponse(ch *models.Character) models.CharacterResponse {
	var traits map[string]interface{}
	if len(ch.Traits) > 0 {
		_ = json.Unmarshal(ch.Traits, &traits)
	}

	return models.CharacterResponse{
		ID:          ch.ID.String(),
		Name:        ch.Name,
		Description: ch.Description.String,
		Traits:      traits,
		ImageURL:    ch.ImageURL.String,
		Status:      ch.Status,
		TaskError:   ch.TaskError.String,
		SortOrder:   ch.SortOrder,
	}
}

func toStoryboardResponse(sb *models.Storyboard) models.StoryboardResponse {
	return models.StoryboardResponse{
		ID:          sb.ID.String(),
		SortOrder:   sb.SortOrder,
		Scene:       sb.Scene.String,
		ImagePrompt: sb.ImagePrompt.String,
		VideoPrompt: sb.VideoPrompt.String,
		ImageURL:    sb.ImageURL.String,
		ImageStatus: sb.ImageStatus,
		ImageError:  sb.ImageError.String,
		VideoURL:    sb.VideoURL.String,
		VideoStatus: sb.VideoStatus,
		VideoError:  sb.VideoError.String,
	}
}
