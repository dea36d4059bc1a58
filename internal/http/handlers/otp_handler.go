package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/chemsus-backend/internal/dto"
	"github.com/ignatzorin/chemsus-backend/internal/http/handlers/common"
	"github.com/ignatzorin/chemsus-backend/internal/service"
)

// OTPFlow отправка и проверка кодов подтверждения email.
type OTPFlow interface {
	Send(ctx context.Context, email string) (*service.SendResult, error)
	Verify(ctx context.Context, email, challengeID, code string) (*service.VerifyResult, error)
}

type OTPHandler struct {
	otp OTPFlow
}

func NewOTPHandler(otp OTPFlow) *OTPHandler {
	return &OTPHandler{otp: otp}
}

// Send POST /api/otp/send
func (h *OTPHandler) Send(c *gin.Context) {
	var req dto.SendOTPRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	res, err := h.otp.Send(c.Request.Context(), req.Email)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SendOTPResponse{
		ChallengeID:  res.ChallengeID,
		ExpiresInSec: res.ExpiresInSec,
		ResendInSec:  res.ResendInSec,
		Delivered:    res.Delivered,
		DebugCode:    res.DebugCode,
	})
}

// Verify POST /api/otp/verify
func (h *OTPHandler) Verify(c *gin.Context) {
	var req dto.VerifyOTPRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	res, err := h.otp.Verify(c.Request.Context(), req.Email, req.ChallengeID, req.Code)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.VerifyOTPResponse{
		VerificationToken: res.VerificationToken,
		TokenExpiresInSec: res.TokenExpiresInSec,
	})
}
