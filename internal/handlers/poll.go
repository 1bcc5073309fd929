package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"storyforge-backend/internal/config"
	"storyforge-backend/internal/models"
	"storyforge-backend/internal/services"
)

// PollHandler exposes the cron-driven sweep that resolves tasks whose
// webhook never arrived.
type PollHandler struct {
	config *config.Config
	poller *services.PollService
	logger *logrus.Logger
}

func NewPollHandler(cfg *config.Config, poller *services.PollService, logger *logrus.Logger) *PollHandler {
	return &PollHandler{
		config: cfg,
		poller: poller,
		logger: logger,
	}
}

func (h *PollHandler) PollTasks(c *gin.Context) {
	if !h.verifySecret(c) {
		respErr(c, "unauthorized")
		return
	}

	handled, err := h.poller.Sweep()
	if err != nil {
		h.logger.WithError(err).Error("Poll sweep failed")
		respErr(c, err.Error())
		return
	}

	respData(c, models.PollResponse{Handled: handled})
}

func (h *PollHandler) verifySecret(c *gin.Context) bool {
	secret := h.config.CronSecret
	if secret == "" {
		return true
	}

	headerSecret := c.GetHeader("x-cron-secret")
	if headerSecret == "" {
		headerSecret = c.GetHeader("x-cron")
	}
	querySecret := c.Query("secret")

	return secret == headerSecret || secret == querySecret
}
