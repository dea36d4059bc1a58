package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/ignatzorin/chemsus-backend/internal/http/handlers/common"
	"github.com/ignatzorin/chemsus-backend/internal/http/middleware"
	"github.com/ignatzorin/chemsus-backend/internal/logger"
	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/service"
	"github.com/ignatzorin/chemsus-backend/internal/ws"
)

// CustomerOrderAccess проверяет, что email совпадает с email заказа.
type CustomerOrderAccess interface {
	AuthorizeCustomer(ctx context.Context, id int64, email string) (*models.Order, error)
}

// WSHandler отвечает за установку WebSocket соединений.
type WSHandler struct {
	hub      *ws.Hub
	admins   middleware.AdminAuthenticator
	orders   CustomerOrderAccess
	upgrader websocket.Upgrader
}

// NewWSHandler создаёт новый хэндлер. Пустой allowedOrigins или "*" разрешает любой origin.
func NewWSHandler(hub *ws.Hub, admins middleware.AdminAuthenticator, orders CustomerOrderAccess, allowedOrigins []string) *WSHandler {
	allowAny := len(allowedOrigins) == 0 || lo.Contains(allowedOrigins, "*")
	return &WSHandler{
		hub:    hub,
		admins: admins,
		orders: orders,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAny || origin == "" || lo.Contains(allowedOrigins, origin)
			},
		},
	}
}

// AdminFeed обслуживает GET /api/ws/admin?token=...
func (h *WSHandler) AdminFeed(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		common.Fail(c, apperror.New(apperror.ErrCodeUnauthorized, "access токен обязателен"))
		return
	}

	if _, err := h.admins.Authenticate(c.Request.Context(), rawToken); err != nil {
		common.Fail(c, err)
		return
	}

	h.serve(c, service.TopicAdmin)
}

// OrderFeed обслуживает GET /api/ws/orders/:id?email=...
func (h *WSHandler) OrderFeed(c *gin.Context) {
	orderID, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	if _, err := h.orders.AuthorizeCustomer(c.Request.Context(), orderID, c.Query("email")); err != nil {
		common.Fail(c, err)
		return
	}

	h.serve(c, service.OrderTopic(orderID))
}

func (h *WSHandler) serve(c *gin.Context, topic string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже ответил клиенту.
		logger.Log.WithError(err).WithField("topic", topic).Debug("ws: upgrade отклонён")
		return
	}

	client := ws.NewClient(conn, h.hub, topic)
	if !h.hub.Register(client) {
		_ = conn.Close()
		return
	}

	client.Run(c.Request.Context())
}
