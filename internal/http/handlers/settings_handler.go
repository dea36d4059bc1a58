package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/chemsus-backend/internal/dto"
	"github.com/ignatzorin/chemsus-backend/internal/http/handlers/common"
	"github.com/ignatzorin/chemsus-backend/internal/models"
)

// SettingsFlow настройки сайта.
type SettingsFlow interface {
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) (*models.SiteSetting, error)
}

type SettingsHandler struct {
	settings SettingsFlow
}

func NewSettingsHandler(settings SettingsFlow) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetSettings GET /api/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	all, err := h.settings.All(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

// AdminSetSetting PUT /api/admin/settings/:key
func (h *SettingsHandler) AdminSetSetting(c *gin.Context) {
	var req dto.SettingRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	setting, err := h.settings.Set(c.Request.Context(), c.Param("key"), req.Value)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}
