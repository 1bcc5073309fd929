package handlers

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"storyforge-backend/internal/config"
	"storyforge-backend/internal/models"
	"storyforge-backend/internal/services"
)

// TaskFinder looks a generation task up by its provider-assigned id.
type TaskFinder interface {
	FindGenerationTaskByTaskID(taskID string) (*models.GenerationTask, error)
}

// WebhookHandler receives Kie completion callbacks. Deliveries are
// at-least-once and race with the poll sweep, so everything funnels into
// the callback service's compare-and-swap transitions and repeats are
// acked as no-ops.
type WebhookHandler struct {
	config    *config.Config
	tasks     TaskFinder
	callbacks *services.CallbackService
	logger    *logrus.Logger
}

func NewWebhookHandler(cfg *config.Config, tasks TaskFinder, callbacks *services.CallbackService, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		config:    cfg,
		tasks:     tasks,
		callbacks: callbacks,
		logger:    logger,
	}
}

func (h *WebhookHandler) HandleImageCallback(c *gin.Context) {
	h.handleCallback(c)
}

func (h *WebhookHandler) HandleVideoCallback(c *gin.Context) {
	h.handleCallback(c)
}

func (h *WebhookHandler) handleCallback(c *gin.Context) {
	if !h.verifySecret(c) {
		respErr(c, "unauthorized")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respErr(c, "failed to read request body")
		return
	}

	var event models.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respErr(c, "failed to parse event")
		return
	}

	taskID := event.ExternalTaskID()
	if taskID == "" {
		respErr(c, "taskId is required")
		return
	}

	task, err := h.tasks.FindGenerationTaskByTaskID(taskID)
	if err != nil {
		respErr(c, "failed to look up task")
		return
	}
	if task == nil {
		// Unknown task ids are acked so the provider stops retrying.
		respOK(c)
		return
	}

	if models.IsTerminalTaskStatus(task.Status) {
		respOK(c)
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		payload = map[string]interface{}{}
	}

	if event.State == "fail" {
		if err := h.callbacks.HandleTaskFailure(task, event.FailCode, event.FailMsg, payload); err != nil {
			h.logger.WithField("task_id", taskID).WithError(err).Error("Webhook failure handling failed")
			respErr(c, err.Error())
			return
		}
		respOK(c)
		return
	}

	if err := h.callbacks.HandleTaskSuccess(task, payload); err != nil {
		h.logger.WithField("task_id", taskID).WithError(err).Error("Webhook success handling failed")
		respErr(c, err.Error())
		return
	}

	respOK(c)
}

// verifySecret accepts the callback secret from either custom header or
// the secret query parameter. An empty configured secret disables the gate.
func (h *WebhookHandler) verifySecret(c *gin.Context) bool {
	secret := h.config.KieCallbackSecret
	if secret == "" {
		return true
	}

	headerSecret := c.GetHeader("x-kie-callback-secret")
	if headerSecret == "" {
		headerSecret = c.GetHeader("x-callback-secret")
	}
	querySecret := c.Query("secret")

	return secret == headerSecret || secret == querySecret
}
