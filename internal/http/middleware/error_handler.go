package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/chemsus-backend/internal/logger"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно.
// AppError отдаётся как {error, code, ...meta}, остальные ошибки маскируются под 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			appErr = apperror.Internal(err)
		}

		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}

		fields := logrus.Fields{
			"code":   appErr.Code,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}
		if id, ok := c.Get(ContextRequestIDKey); ok {
			fields["request_id"] = id
		}
		if status >= http.StatusInternalServerError {
			logger.Log.WithFields(fields).WithError(err).Error("Request error")
		} else {
			logger.Log.WithFields(fields).Debug(appErr.Message)
		}

		body := gin.H{
			"error": appErr.Message,
			"code":  appErr.Code,
		}
		for k, v := range appErr.Meta {
			if k == "error" || k == "code" {
				continue
			}
			body[k] = v
		}
		if retry, ok := appErr.Meta[apperror.MetaRetryAfterSec]; ok {
			c.Header("Retry-After", fmt.Sprint(retry))
		}

		c.JSON(status, body)
	}
}
