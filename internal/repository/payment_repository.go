package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/repository/common"
)

var (
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrPaymentAlreadyReviewed = errors.New("payment already reviewed")
)

const paymentColumns = `id, order_id, provider, payment_ref, amount, currency, status, receipt_path, rating, feedback,
	customername, email, phone, created_at, updated_at`

// PaymentRepository хранит квитанции об оплате.
type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create сохраняет платёж и переводит заказ в SUBMITTED одной транзакцией.
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, p, `
			INSERT INTO payments (order_id, provider, payment_ref, amount, currency, status, receipt_path, rating, feedback,
			                      customername, email, phone)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING `+paymentColumns,
			p.OrderID, p.Provider, p.PaymentRef, p.Amount, p.Currency, models.PaymentReviewPending, p.ReceiptPath,
			p.Rating, p.Feedback, p.CustomerName, p.Email, p.Phone)
		if err != nil {
			return fmt.Errorf("payment repository: create %w", err)
		}

		return updateOrderPayment(ctx, tx, p.OrderID, models.PaymentStatusSubmitted, p.Provider)
	})
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	var p models.Payment
	err := r.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payment repository: get by id %w", err)
	}
	return &p, nil
}

// ListByOrder возвращает платежи заказа, новые первыми.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID int64) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := r.db.SelectContext(ctx, &payments, `
		SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY created_at DESC, id DESC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("payment repository: list by order %w", err)
	}
	return payments, nil
}

// List возвращает платежи для админки с фильтром по статусу.
func (r *PaymentRepository) List(ctx context.Context, status string, limit, offset int) ([]models.Payment, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM payments WHERE ($1 = '' OR status = $1)
	`, status); err != nil {
		return nil, 0, fmt.Errorf("payment repository: count %w", err)
	}

	payments := []models.Payment{}
	err := r.db.SelectContext(ctx, &payments, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("payment repository: list %w", err)
	}
	return payments, total, nil
}

// Review фиксирует решение администратора по платежу и статус оплаты заказа.
// Решение можно принять только по платежу в статусе PENDING.
func (r *PaymentRepository) Review(ctx context.Context, id int64, status string) (*models.Payment, error) {
	var p models.Payment
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return fmt.Errorf("payment repository: lock %w", err)
		}
		if p.Status != models.PaymentReviewPending {
			return ErrPaymentAlreadyReviewed
		}

		err = tx.GetContext(ctx, &p, `
			UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+paymentColumns,
			id, status)
		if err != nil {
			return fmt.Errorf("payment repository: review %w", err)
		}

		return updateOrderPayment(ctx, tx, p.OrderID, models.OrderPaymentStatusFor(status), p.Provider)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func updateOrderPayment(ctx context.Context, tx *sqlx.Tx, orderID int64, status, mode string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET payment_status = $2, paymentmode = $3, updated_at = NOW() WHERE id = $1
	`, orderID, status, mode)
	if err != nil {
		return fmt.Errorf("payment repository: update order %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
