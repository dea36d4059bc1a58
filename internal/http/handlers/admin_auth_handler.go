package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/chemsus-backend/internal/dto"
	"github.com/ignatzorin/chemsus-backend/internal/http/handlers/common"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/service"
)

// AdminLogin вход администратора по паролю.
type AdminLogin interface {
	Login(ctx context.Context, email, password string) (*service.AdminToken, error)
}

type AdminAuthHandler struct {
	auth AdminLogin
}

func NewAdminAuthHandler(auth AdminLogin) *AdminAuthHandler {
	return &AdminAuthHandler{auth: auth}
}

// Login POST /api/admin/login
func (h *AdminAuthHandler) Login(c *gin.Context) {
	var req dto.AdminLoginRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, apperror.ErrInvalidCredentials)
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AdminLoginResponse{
		AccessToken: token.AccessToken,
		TokenType:   "Bearer",
		ExpiresAt:   token.ExpiresAt.Unix(),
	})
}

// Me GET /api/admin/me
func (h *AdminAuthHandler) Me(c *gin.Context) {
	identity, ok := common.CurrentAdmin(c)
	if !ok {
		common.Fail(c, apperror.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sub":    identity.Subject,
		"email":  identity.Email,
		"source": identity.Source,
	})
}
