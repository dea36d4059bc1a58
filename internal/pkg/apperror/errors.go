package apperror

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"

	// Подтверждение email одноразовым кодом.
	ErrCodeInvalidEmail           ErrorCode = "INVALID_EMAIL"
	ErrCodeInvalidChallenge       ErrorCode = "INVALID_CHALLENGE_FORMAT"
	ErrCodeInvalidCodeFormat      ErrorCode = "INVALID_CODE_FORMAT"
	ErrCodeOTPCooldown            ErrorCode = "OTP_COOLDOWN"
	ErrCodeOTPNotFound            ErrorCode = "OTP_NOT_FOUND"
	ErrCodeOTPAlreadyUsed         ErrorCode = "OTP_ALREADY_USED"
	ErrCodeOTPAlreadyVerified     ErrorCode = "OTP_ALREADY_VERIFIED"
	ErrCodeOTPExpired             ErrorCode = "OTP_EXPIRED"
	ErrCodeOTPLocked              ErrorCode = "OTP_LOCKED"
	ErrCodeOTPInvalidCode         ErrorCode = "OTP_INVALID_CODE"
	ErrCodeInvalidVerification    ErrorCode = "INVALID_VERIFICATION"
	ErrCodePaymentAlreadyReviewed ErrorCode = "PAYMENT_ALREADY_REVIEWED"
)

// Ключи Meta, которые ErrorHandler выводит в ответ.
const (
	MetaRetryAfterSec = "retry_after_sec"
	MetaAttemptsLeft  = "attempts_left"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Meta       map[string]any
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду и сообщению, чтобы копии из WithMeta совпадали с исходными.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithMeta возвращает копию ошибки с дополнительным полем ответа.
func (e *AppError) WithMeta(key string, value any) *AppError {
	cp := *e
	cp.Meta = maps.Clone(e.Meta)
	if cp.Meta == nil {
		cp.Meta = make(map[string]any, 1)
	}
	cp.Meta[key] = value
	return &cp
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Internal маскирует инфраструктурную ошибку под общий ответ 500.
func Internal(err error) *AppError {
	return Wrap(err, ErrCodeInternal, "внутренняя ошибка сервера")
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation,
		ErrCodeInvalidEmail, ErrCodeInvalidChallenge, ErrCodeInvalidCodeFormat,
		ErrCodeOTPNotFound, ErrCodeOTPAlreadyUsed, ErrCodeOTPAlreadyVerified,
		ErrCodeOTPExpired, ErrCodeOTPInvalidCode, ErrCodeInvalidVerification:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodePaymentAlreadyReviewed:
		return http.StatusConflict
	case ErrCodeTooManyRequests, ErrCodeOTPCooldown, ErrCodeOTPLocked:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или пустую строку.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

var (
	ErrOrderNotFound       = New(ErrCodeNotFound, "заказ не найден")
	ErrPaymentNotFound     = New(ErrCodeNotFound, "платёж не найден")
	ErrShopItemNotFound    = New(ErrCodeNotFound, "товар не найден")
	ErrShopItemInUse       = New(ErrCodeConflict, "товар есть в оформленных заказах, отключите его вместо удаления")
	ErrProductNotFound     = New(ErrCodeNotFound, "продукт не найден")
	ErrSettingNotFound     = New(ErrCodeNotFound, "настройка не найдена")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials  = New(ErrCodeUnauthorized, "неверные учетные данные")
	ErrOrderAccessDenied   = New(ErrCodeForbidden, "email не совпадает с email заказа")
	ErrPaymentAlreadyFinal = New(ErrCodePaymentAlreadyReviewed, "платёж уже проверен")

	ErrInvalidEmail        = New(ErrCodeInvalidEmail, "некорректный email")
	ErrInvalidChallenge    = New(ErrCodeInvalidChallenge, "некорректный идентификатор запроса кода")
	ErrInvalidCodeFormat   = New(ErrCodeInvalidCodeFormat, "код должен состоять из 6 цифр")
	ErrOTPCooldown         = New(ErrCodeOTPCooldown, "код уже отправлен, повторите позже")
	ErrOTPNotFound         = New(ErrCodeOTPNotFound, "запрос кода не найден")
	ErrOTPAlreadyUsed      = New(ErrCodeOTPAlreadyUsed, "код уже использован для заказа")
	ErrOTPAlreadyVerified  = New(ErrCodeOTPAlreadyVerified, "email уже подтверждён этим кодом")
	ErrOTPExpired          = New(ErrCodeOTPExpired, "срок действия кода истёк, запросите новый")
	ErrOTPLocked           = New(ErrCodeOTPLocked, "превышено число попыток, запросите новый код")
	ErrOTPInvalidCode      = New(ErrCodeOTPInvalidCode, "неверный код")
	ErrInvalidVerification = New(ErrCodeInvalidVerification, "подтверждение email недействительно или уже использовано")
)
