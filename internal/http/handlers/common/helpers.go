package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ignatzorin/chemsus-backend/internal/dto"
	"github.com/ignatzorin/chemsus-backend/internal/http/middleware"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/service"
)

// Fail передаёт ошибку в ErrorHandler.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

// CurrentAdmin администратор, проверенный AdminAuthMiddleware.
func CurrentAdmin(c *gin.Context) (*service.AdminIdentity, bool) {
	raw, exists := c.Get(middleware.ContextAdminKey)
	if !exists {
		return nil, false
	}
	identity, ok := raw.(*service.AdminIdentity)
	return identity, ok && identity != nil
}

// ParseIDParam разбирает целочисленный ID из параметра маршрута.
func ParseIDParam(c *gin.Context, paramName string) (int64, error) {
	param := c.Param(paramName)
	if param == "" {
		return 0, apperror.New(apperror.ErrCodeBadRequest, fmt.Sprintf("параметр %s отсутствует", paramName))
	}

	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.New(apperror.ErrCodeBadRequest, fmt.Sprintf("неверный %s", paramName))
	}
	return id, nil
}

// BindJSON биндит JSON и переводит ошибки валидатора в коды API.
func BindJSON(c *gin.Context, req interface{}) error {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "otpemail":
			return apperror.ErrInvalidEmail
		case "hexid":
			return apperror.ErrInvalidChallenge
		case "otpcode":
			return apperror.ErrInvalidCodeFormat
		}
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("поле %s заполнено неверно", fe.Field()))
	}
	return apperror.Wrap(err, apperror.ErrCodeBadRequest, "некорректное тело запроса")
}

// RespondJSON отправляет JSON с указанным статусом.
func RespondJSON(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// RespondSuccess отправляет {success: true, ...}.
func RespondSuccess(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, dto.SuccessResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ParseIntQuery читает целый query параметр со значением по умолчанию.
func ParseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// ParseInt64Query читает ID из query. Отсутствие или мусор дают ошибку.
func ParseInt64Query(c *gin.Context, key string) (int64, error) {
	id, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.New(apperror.ErrCodeBadRequest, fmt.Sprintf("неверный %s", key))
	}
	return id, nil
}

// GetPagination limit и offset из query с ограничением сверху.
func GetPagination(c *gin.Context, defaultLimit, maxLimit int) (limit, offset int) {
	limit = ParseIntQuery(c, "limit", defaultLimit)
	offset = ParseIntQuery(c, "offset", 0)
	if limit > maxLimit {
		limit = maxLimit
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return
}
