package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/service"
)

// Context ключи для gin.Context.
const (
	ContextAdminKey     = "admin"
	ContextRequestIDKey = "requestID"
)

// AdminAuthenticator проверяет токен администратора.
type AdminAuthenticator interface {
	Authenticate(ctx context.Context, raw string) (*service.AdminIdentity, error)
}

// AdminAuthMiddleware пропускает только запросы с валидным токеном администратора.
func AdminAuthMiddleware(auth AdminAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			_ = c.Error(apperror.ErrUnauthorized)
			c.Abort()
			return
		}

		identity, err := auth.Authenticate(c.Request.Context(), strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(ContextAdminKey, identity)
		c.Next()
	}
}
