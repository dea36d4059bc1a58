package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/chemsus-backend/internal/dto"
	"github.com/ignatzorin/chemsus-backend/internal/http/handlers/common"
	"github.com/ignatzorin/chemsus-backend/internal/models"
)

// MessageFlow переписка по заказу.
type MessageFlow interface {
	ListForCustomer(ctx context.Context, orderID int64, email string) ([]models.OrderMessage, error)
	PostFromCustomer(ctx context.Context, orderID int64, email, text string) (*models.OrderMessage, error)
	ListForAdmin(ctx context.Context, orderID int64) ([]models.OrderMessage, error)
	PostFromAdmin(ctx context.Context, orderID int64, text string) (*models.OrderMessage, error)
}

type MessageHandler struct {
	messages MessageFlow
}

func NewMessageHandler(messages MessageFlow) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// ListMessages GET /api/orders/:id/messages?email=
func (h *MessageHandler) ListMessages(c *gin.Context) {
	orderID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	messages, err := h.messages.ListForCustomer(c.Request.Context(), orderID, c.Query("email"))
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": nonNilMessages(messages)})
}

// PostMessage POST /api/orders/:id/messages
func (h *MessageHandler) PostMessage(c *gin.Context) {
	orderID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.MessageRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	msg, err := h.messages.PostFromCustomer(c.Request.Context(), orderID, req.Email, req.Message)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// AdminListMessages GET /api/admin/orders/:id/messages
func (h *MessageHandler) AdminListMessages(c *gin.Context) {
	orderID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	messages, err := h.messages.ListForAdmin(c.Request.Context(), orderID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": nonNilMessages(messages)})
}

// AdminPostMessage POST /api/admin/orders/:id/messages
func (h *MessageHandler) AdminPostMessage(c *gin.Context) {
	orderID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.MessageRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	msg, err := h.messages.PostFromAdmin(c.Request.Context(), orderID, req.Message)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func nonNilMessages(m []models.OrderMessage) []models.OrderMessage {
	if m == nil {
		return []models.OrderMessage{}
	}
	return m
}
