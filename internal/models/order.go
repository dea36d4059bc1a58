package models

import "time"

// Статусы оплаты заказа.
const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusSubmitted = "SUBMITTED"
	PaymentStatusPaid      = "PAID"
	PaymentStatusFailed    = "FAILED"
)

// Способы оплаты.
const (
	PaymentModePending = "PENDING"
	PaymentModeUPI     = "UPI"
)

// Статусы выполнения заказа.
const (
	OrderStatusProcessing = "Processing"
	OrderStatusShipped    = "Shipped"
	OrderStatusDelivered  = "Delivered"
	OrderStatusCancelled  = "Cancelled"
)

// ValidOrderStatuses допустимые значения order_status.
var ValidOrderStatuses = map[string]bool{
	OrderStatusProcessing: true,
	OrderStatusShipped:    true,
	OrderStatusDelivered:  true,
	OrderStatusCancelled:  true,
}

// ValidPaymentStatuses допустимые значения payment_status.
var ValidPaymentStatuses = map[string]bool{
	PaymentStatusPending:   true,
	PaymentStatusSubmitted: true,
	PaymentStatusPaid:      true,
	PaymentStatusFailed:    true,
}

// Order заказ покупателя. Имена колонок сохранены из исходной схемы.
type Order struct {
	ID            int64     `db:"id" json:"id"`
	CustomerName  string    `db:"customername" json:"customer_name"`
	Email         string    `db:"email" json:"email"`
	Phone         string    `db:"phone" json:"phone"`
	CompanyName   string    `db:"company_name" json:"company_name"`
	Address       string    `db:"address" json:"address"`
	City          string    `db:"city" json:"city"`
	Region        string    `db:"region" json:"region"`
	Pincode       string    `db:"pincode" json:"pincode"`
	Country       string    `db:"country" json:"country"`
	ProductName   string    `db:"productname" json:"product_name"`
	Quantity      float64   `db:"quantity" json:"quantity"`
	UnitPrice     float64   `db:"unitprice" json:"unit_price"`
	TotalPrice    float64   `db:"totalprice" json:"total_price"`
	PaymentStatus string    `db:"payment_status" json:"payment_status"`
	PaymentMode   string    `db:"paymentmode" json:"payment_mode"`
	Notes         string    `db:"notes" json:"notes"`
	UserID        *string   `db:"user_id" json:"user_id,omitempty"`
	OrderStatus   string    `db:"order_status" json:"order_status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem позиция корзины внутри заказа.
type OrderItem struct {
	ID          int64     `db:"id" json:"id"`
	OrderID     int64     `db:"order_id" json:"order_id"`
	ShopItemID  int64     `db:"shop_item_id" json:"shop_item_id"`
	ProductName string    `db:"product_name" json:"product_name"`
	PackSize    string    `db:"pack_size" json:"pack_size"`
	UnitPrice   float64   `db:"unit_price" json:"unit_price"`
	Quantity    float64   `db:"quantity" json:"quantity"`
	TotalPrice  float64   `db:"total_price" json:"total_price"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// OrderPatch частичное обновление заказа администратором.
type OrderPatch struct {
	PaymentStatus *string
	PaymentMode   *string
	OrderStatus   *string
	Notes         *string
}

// IsEmpty сообщает, что обновлять нечего.
func (p OrderPatch) IsEmpty() bool {
	return p.PaymentStatus == nil && p.PaymentMode == nil && p.OrderStatus == nil && p.Notes == nil
}

// OrderFilter фильтр списка заказов в админке.
type OrderFilter struct {
	PaymentStatus string
	OrderStatus   string
	Email         string
	Limit         int
	Offset        int
}
