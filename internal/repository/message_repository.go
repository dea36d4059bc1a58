package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/chemsus-backend/internal/models"
)

// MessageRepository хранит переписку по заказам.
type MessageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, orderID int64, sender, message string) (*models.OrderMessage, error) {
	var m models.OrderMessage
	err := r.db.GetContext(ctx, &m, `
		INSERT INTO order_messages (order_id, sender, message)
		VALUES ($1, $2, $3)
		RETURNING id, order_id, sender, message, created_at
	`, orderID, sender, message)
	if err != nil {
		return nil, fmt.Errorf("message repository: create %w", err)
	}
	return &m, nil
}

// ListByOrder возвращает сообщения в хронологическом порядке.
func (r *MessageRepository) ListByOrder(ctx context.Context, orderID int64) ([]models.OrderMessage, error) {
	messages := []models.OrderMessage{}
	err := r.db.SelectContext(ctx, &messages, `
		SELECT id, order_id, sender, message, created_at
		FROM order_messages
		WHERE order_id = $1
		ORDER BY created_at, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("message repository: list %w", err)
	}
	return messages, nil
}
