package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/ignatzorin/chemsus-backend/internal/dto"
	"github.com/ignatzorin/chemsus-backend/internal/http/handlers/common"
	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/service"
)

const (
	defaultOrdersPage = 50
	maxOrdersPage     = 200
)

// OrderFlow оформление заказов и админка заказов.
type OrderFlow interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*service.OrderDetails, error)
	GetForCustomer(ctx context.Context, id int64, email string) (*service.OrderDetails, error)
	Get(ctx context.Context, id int64) (*service.OrderDetails, error)
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error)
	Update(ctx context.Context, id int64, patch models.OrderPatch) (*models.Order, error)
	Delete(ctx context.Context, id int64) error
}

type OrderHandler struct {
	orders OrderFlow
}

func NewOrderHandler(orders OrderFlow) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// CreateOrder POST /api/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	in := service.PlaceOrderInput{
		CustomerName:      lo.Ternary(req.CustomerName != "", req.CustomerName, req.LegacyCustomerName),
		Email:             req.Email,
		Phone:             req.Phone,
		CompanyName:       req.CompanyName,
		Address:           req.Address,
		City:              req.City,
		Region:            req.Region,
		Pincode:           req.Pincode,
		Country:           req.Country,
		Notes:             req.Notes,
		VerificationToken: req.VerificationToken,
		Items: lo.Map(req.Items, func(it dto.CartItemRequest, _ int) service.CartLine {
			return service.CartLine{ShopItemID: it.ShopItemID, PackSize: it.PackSize, Quantity: it.Quantity}
		}),
	}

	details, err := h.orders.PlaceOrder(c.Request.Context(), in)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.CreateOrderResponse{
		Success:       true,
		OrderID:       details.Order.ID,
		Order:         dto.NewOrderResponse(details.Order, details.Items, details.Payments),
		PaymentStatus: details.Order.PaymentStatus,
	})
}

// GetOrder GET /api/orders/:id?email=
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	email := c.Query("email")
	if strings.TrimSpace(email) == "" {
		common.Fail(c, apperror.ErrInvalidEmail)
		return
	}

	details, err := h.orders.GetForCustomer(c.Request.Context(), id, email)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderResponse(details.Order, details.Items, details.Payments))
}

// AdminListOrders GET /api/admin/orders
func (h *OrderHandler) AdminListOrders(c *gin.Context) {
	limit, offset := common.GetPagination(c, defaultOrdersPage, maxOrdersPage)
	filter := models.OrderFilter{
		PaymentStatus: strings.ToUpper(strings.TrimSpace(c.Query("payment_status"))),
		OrderStatus:   strings.TrimSpace(c.Query("order_status")),
		Email:         c.Query("email"),
		Limit:         limit,
		Offset:        offset,
	}

	orders, total, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		common.Fail(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}

	c.JSON(http.StatusOK, dto.PaginatedOrdersResponse{
		Data:       orders,
		Pagination: dto.NewPagination(total, limit, offset, len(orders)),
	})
}

// LegacyListOrders GET /api/adminorders отдаёт массив заказов, новые сначала.
func (h *OrderHandler) LegacyListOrders(c *gin.Context) {
	orders, _, err := h.orders.List(c.Request.Context(), models.OrderFilter{Limit: maxOrdersPage})
	if err != nil {
		common.Fail(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

// AdminGetOrder GET /api/admin/orders/:id
func (h *OrderHandler) AdminGetOrder(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	details, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOrderResponse(details.Order, details.Items, details.Payments))
}

// AdminUpdateOrder PATCH /api/admin/orders/:id
func (h *OrderHandler) AdminUpdateOrder(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.UpdateOrderRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	patch := models.OrderPatch{
		PaymentStatus: req.PaymentStatus,
		PaymentMode:   req.PaymentMode,
		OrderStatus:   lo.CoalesceOrEmpty(req.OrderStatus, req.Status),
		Notes:         req.Notes,
	}

	order, err := h.orders.Update(c.Request.Context(), id, patch)
	if err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, "заказ обновлён", order)
}

// AdminDeleteOrder DELETE /api/admin/orders/:id
func (h *OrderHandler) AdminDeleteOrder(c *gin.Context) {
	id, err := common.ParseIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	if err := h.orders.Delete(c.Request.Context(), id); err != nil {
		common.Fail(c, err)
		return
	}

	common.RespondSuccess(c, "заказ удалён", nil)
}
