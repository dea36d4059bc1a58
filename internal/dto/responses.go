package dto

import (
	"github.com/ignatzorin/chemsus-backend/internal/models"
)

// SendOTPResponse ответ на запрос кода.
type SendOTPResponse struct {
	ChallengeID  string `json:"challenge_id"`
	ExpiresInSec int    `json:"expires_in_sec"`
	ResendInSec  int    `json:"resend_in_sec"`
	Delivered    bool   `json:"delivered"`
	DebugCode    string `json:"debug_code,omitempty"`
}

// VerifyOTPResponse одноразовый токен подтверждения email.
type VerifyOTPResponse struct {
	VerificationToken string `json:"verification_token"`
	TokenExpiresInSec int    `json:"token_expires_in_sec"`
}

// OrderResponse заказ с позициями и платежами.
type OrderResponse struct {
	*models.Order
	Items    []models.OrderItem `json:"items"`
	Payments []models.Payment   `json:"payments"`
}

// NewOrderResponse собирает ответ, пустые списки отдаются как [].
func NewOrderResponse(order *models.Order, items []models.OrderItem, payments []models.Payment) *OrderResponse {
	if items == nil {
		items = []models.OrderItem{}
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return &OrderResponse{
		Order:    order,
		Items:    items,
		Payments: payments,
	}
}

// CreateOrderResponse ответ на оформление заказа. orderId оставлен для старых клиентов.
type CreateOrderResponse struct {
	Success       bool           `json:"success"`
	OrderID       int64          `json:"orderId"`
	Order         *OrderResponse `json:"order"`
	PaymentStatus string         `json:"payment_status"`
}

// PaginatedOrdersResponse страница списка заказов.
type PaginatedOrdersResponse struct {
	Data       []models.Order `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// PaginatedPaymentsResponse страница списка платежей.
type PaginatedPaymentsResponse struct {
	Data       []models.Payment `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// Pagination метаданные пагинации.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewPagination считает has_more по total.
func NewPagination(total, limit, offset, got int) Pagination {
	return Pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+got < total,
	}
}

// UPILinkResponse ссылка для оплаты через UPI приложение.
type UPILinkResponse struct {
	OrderID int64  `json:"order_id"`
	Amount  string `json:"amount"`
	Payee   string `json:"payee"`
	URL     string `json:"upi_url"`
}

// AdminLoginResponse токен администратора.
type AdminLoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

// ErrorResponse стандартный ответ с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse стандартный успешный ответ.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
