package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithMeta_KeepsIdentity(t *testing.T) {
	withMeta := ErrOTPCooldown.WithMeta(MetaRetryAfterSec, 30)

	assert.ErrorIs(t, withMeta, ErrOTPCooldown)
	assert.Equal(t, 30, withMeta.Meta[MetaRetryAfterSec])
	assert.Nil(t, ErrOTPCooldown.Meta, "исходная ошибка не меняется")
	assert.Equal(t, http.StatusTooManyRequests, withMeta.HTTPStatus)
}

func TestCodeOf_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("order: %w", ErrOrderAccessDenied)

	assert.Equal(t, ErrCodeForbidden, CodeOf(wrapped))
	assert.True(t, IsForbidden(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[*AppError]int{
		ErrInvalidChallenge:    http.StatusBadRequest,
		ErrOTPExpired:          http.StatusBadRequest,
		ErrOTPLocked:           http.StatusTooManyRequests,
		ErrInvalidVerification: http.StatusBadRequest,
		ErrPaymentAlreadyFinal: http.StatusConflict,
		ErrShopItemInUse:       http.StatusConflict,
		ErrInvalidCredentials:  http.StatusUnauthorized,
	}
	for err, want := range cases {
		assert.Equal(t, want, err.HTTPStatus, err.Code)
	}

	internal := Internal(errors.New("pq: connection reset"))
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
	assert.NotContains(t, internal.Message, "pq")
}
