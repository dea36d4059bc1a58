package models

import "time"

// Статусы проверки платежа.
const (
	PaymentReviewPending  = "PENDING"
	PaymentReviewVerified = "VERIFIED"
	PaymentReviewRejected = "REJECTED"
)

const (
	PaymentProviderUPI = "UPI"
	CurrencyINR        = "INR"
)

// Payment квитанция об оплате по UPI, которую проверяет администратор.
type Payment struct {
	ID           int64     `db:"id" json:"id"`
	OrderID      int64     `db:"order_id" json:"order_id"`
	Provider     string    `db:"provider" json:"provider"`
	PaymentRef   string    `db:"payment_ref" json:"payment_ref"`
	Amount       float64   `db:"amount" json:"amount"`
	Currency     string    `db:"currency" json:"currency"`
	Status       string    `db:"status" json:"status"`
	ReceiptPath  string    `db:"receipt_path" json:"-"`
	Rating       int       `db:"rating" json:"rating"`
	Feedback     string    `db:"feedback" json:"feedback"`
	CustomerName string    `db:"customername" json:"customer_name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// HasReceipt сообщает, что к платежу приложен файл.
func (p *Payment) HasReceipt() bool {
	return p.ReceiptPath != ""
}

// OrderPaymentStatusFor статус заказа после решения по платежу.
func OrderPaymentStatusFor(review string) string {
	switch review {
	case PaymentReviewVerified:
		return PaymentStatusPaid
	case PaymentReviewRejected:
		return PaymentStatusFailed
	default:
		return PaymentStatusSubmitted
	}
}
