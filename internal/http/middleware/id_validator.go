package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
)

// IDValidator проверяет, что параметр с указанным именем является положительным целым.
// Использование: router.GET("/orders/:id", IDValidator("id"), handler.GetOrder)
func IDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(paramName)
		if raw == "" {
			_ = c.Error(apperror.New(apperror.ErrCodeBadRequest, "параметр "+paramName+" обязателен"))
			c.Abort()
			return
		}

		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			_ = c.Error(apperror.New(apperror.ErrCodeBadRequest, "параметр "+paramName+" должен быть положительным числом"))
			c.Abort()
			return
		}

		c.Next()
	}
}
