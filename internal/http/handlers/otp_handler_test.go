package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/service"
)

type mockOTPFlow struct {
	mock.Mock
}

func (m *mockOTPFlow) Send(ctx context.Context, email string) (*service.SendResult, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SendResult), args.Error(1)
}

func (m *mockOTPFlow) Verify(ctx context.Context, email, challengeID, code string) (*service.VerifyResult, error) {
	args := m.Called(ctx, email, challengeID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.VerifyResult), args.Error(1)
}

func TestOTPHandler_Send(t *testing.T) {
	flow := new(mockOTPFlow)
	flow.On("Send", mock.Anything, "buyer@example.com").Return(&service.SendResult{
		ChallengeID:  testChallengeID,
		ExpiresInSec: 600,
		ResendInSec:  60,
		Delivered:    true,
	}, nil)

	r := newTestEngine(t)
	r.POST("/api/otp/send", NewOTPHandler(flow).Send)

	w := doJSON(t, r, http.MethodPost, "/api/otp/send", map[string]string{"email": "buyer@example.com"})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, testChallengeID, body["challenge_id"])
	assert.Equal(t, float64(600), body["expires_in_sec"])
	assert.Equal(t, true, body["delivered"])
	assert.NotContains(t, body, "debug_code")
	flow.AssertExpectations(t)
}

func TestOTPHandler_Send_CooldownSetsRetryAfter(t *testing.T) {
	flow := new(mockOTPFlow)
	flow.On("Send", mock.Anything, "buyer@example.com").
		Return(nil, apperror.ErrOTPCooldown.WithMeta(apperror.MetaRetryAfterSec, 42))

	r := newTestEngine(t)
	r.POST("/api/otp/send", NewOTPHandler(flow).Send)

	w := doJSON(t, r, http.MethodPost, "/api/otp/send", map[string]string{"email": "buyer@example.com"})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "42", w.Header().Get("Retry-After"))
	body := decodeBody(t, w)
	assert.Equal(t, "OTP_COOLDOWN", body["code"])
	assert.Equal(t, float64(42), body["retry_after_sec"])
}

func TestOTPHandler_Send_MalformedBody(t *testing.T) {
	flow := new(mockOTPFlow)

	r := newTestEngine(t)
	r.POST("/api/otp/send", NewOTPHandler(flow).Send)

	w := doJSON(t, r, http.MethodPost, "/api/otp/send", "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", decodeBody(t, w)["code"])
	flow.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestOTPHandler_Verify(t *testing.T) {
	flow := new(mockOTPFlow)
	flow.On("Verify", mock.Anything, "buyer@example.com", testChallengeID, "123456").
		Return(&service.VerifyResult{VerificationToken: "tok", TokenExpiresInSec: 1800}, nil)

	r := newTestEngine(t)
	r.POST("/api/otp/verify", NewOTPHandler(flow).Verify)

	w := doJSON(t, r, http.MethodPost, "/api/otp/verify", map[string]string{
		"email":        "buyer@example.com",
		"challenge_id": testChallengeID,
		"code":         "123456",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "tok", body["verification_token"])
	assert.Equal(t, float64(1800), body["token_expires_in_sec"])
}

func TestOTPHandler_Verify_FormatErrors(t *testing.T) {
	cases := []struct {
		name        string
		challengeID string
		code        string
		wantCode    string
	}{
		{"короткий идентификатор", "abc", "123456", "INVALID_CHALLENGE_FORMAT"},
		{"идентификатор не hex", "zzzzzzzzzzzzzzzzzzzzzzzz", "123456", "INVALID_CHALLENGE_FORMAT"},
		{"код из букв", testChallengeID, "12ab56", "INVALID_CODE_FORMAT"},
		{"код из пяти цифр", testChallengeID, "12345", "INVALID_CODE_FORMAT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			flow := new(mockOTPFlow)
			r := newTestEngine(t)
			r.POST("/api/otp/verify", NewOTPHandler(flow).Verify)

			w := doJSON(t, r, http.MethodPost, "/api/otp/verify", map[string]string{
				"email":        "buyer@example.com",
				"challenge_id": tc.challengeID,
				"code":         tc.code,
			})

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.wantCode, decodeBody(t, w)["code"])
			flow.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestOTPHandler_Verify_EmailCheckedFirst(t *testing.T) {
	flow := new(mockOTPFlow)
	r := newTestEngine(t)
	r.POST("/api/otp/verify", NewOTPHandler(flow).Verify)

	w := doJSON(t, r, http.MethodPost, "/api/otp/verify", map[string]string{
		"email":        "not-an-email",
		"challenge_id": "abc",
		"code":         "12",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_EMAIL", decodeBody(t, w)["code"])
	flow.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOTPHandler_Verify_UppercaseChallengeReachesService(t *testing.T) {
	upper := strings.ToUpper(testChallengeID)
	flow := new(mockOTPFlow)
	flow.On("Verify", mock.Anything, "buyer@example.com", upper, "123456").
		Return(&service.VerifyResult{VerificationToken: "tok", TokenExpiresInSec: 1800}, nil)

	r := newTestEngine(t)
	r.POST("/api/otp/verify", NewOTPHandler(flow).Verify)

	w := doJSON(t, r, http.MethodPost, "/api/otp/verify", map[string]string{
		"email":        "buyer@example.com",
		"challenge_id": upper,
		"code":         "123456",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	flow.AssertExpectations(t)
}

func TestOTPHandler_Send_InvalidEmail(t *testing.T) {
	flow := new(mockOTPFlow)
	r := newTestEngine(t)
	r.POST("/api/otp/send", NewOTPHandler(flow).Send)

	w := doJSON(t, r, http.MethodPost, "/api/otp/send", map[string]string{"email": "nope"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_EMAIL", decodeBody(t, w)["code"])
	flow.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestOTPHandler_Verify_WrongCodeReportsAttemptsLeft(t *testing.T) {
	flow := new(mockOTPFlow)
	flow.On("Verify", mock.Anything, "buyer@example.com", testChallengeID, "000000").
		Return(nil, apperror.ErrOTPInvalidCode.WithMeta(apperror.MetaAttemptsLeft, 3))

	r := newTestEngine(t)
	r.POST("/api/otp/verify", NewOTPHandler(flow).Verify)

	w := doJSON(t, r, http.MethodPost, "/api/otp/verify", map[string]string{
		"email":        "buyer@example.com",
		"challenge_id": testChallengeID,
		"code":         "000000",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "OTP_INVALID_CODE", body["code"])
	assert.Equal(t, float64(3), body["attempts_left"])
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestOTPHandler_Verify_Locked(t *testing.T) {
	flow := new(mockOTPFlow)
	flow.On("Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, apperror.ErrOTPLocked)

	r := newTestEngine(t)
	r.POST("/api/otp/verify", NewOTPHandler(flow).Verify)

	w := doJSON(t, r, http.MethodPost, "/api/otp/verify", map[string]string{
		"email":        "buyer@example.com",
		"challenge_id": testChallengeID,
		"code":         "654321",
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "OTP_LOCKED", decodeBody(t, w)["code"])
}
