package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/repository/common"
)

// OrderRepository отвечает за работу с заказами и их позициями.
type OrderRepository struct {
	db *sqlx.DB
}

// Ошибки уровня репозитория.
var (
	ErrOrderNotFound = errors.New("order not found")
)

const orderColumns = `id, customername, email, phone, company_name, address, city, region, pincode, country,
	productname, quantity, unitprice, totalprice, payment_status, paymentmode, notes, user_id, order_status,
	created_at, updated_at`

// NewOrderRepository создаёт новый экземпляр.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateTx вставляет заказ и его позиции в переданной транзакции.
func (r *OrderRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, order *models.Order, items []models.OrderItem) (int64, error) {
	query := `
		INSERT INTO orders (customername, email, phone, company_name, address, city, region, pincode, country,
		                    productname, quantity, unitprice, totalprice, payment_status, paymentmode, notes, order_status)
		VALUES (:customername, :email, :phone, :company_name, :address, :city, :region, :pincode, :country,
		        :productname, :quantity, :unitprice, :totalprice, :payment_status, :paymentmode, :notes, :order_status)
		RETURNING id, created_at, updated_at
	`
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("order repository: prepare create %w", err)
	}
	defer stmt.Close()

	if err := stmt.GetContext(ctx, order, order); err != nil {
		return 0, fmt.Errorf("order repository: create %w", err)
	}

	if len(items) > 0 {
		inserter := common.NewBatchInserter(tx, "order_items", []string{
			"order_id", "shop_item_id", "product_name", "pack_size", "unit_price", "quantity", "total_price",
		}, 100)
		for i := range items {
			items[i].OrderID = order.ID
			it := items[i]
			if err := inserter.Add(ctx, it.OrderID, it.ShopItemID, it.ProductName, it.PackSize, it.UnitPrice, it.Quantity, it.TotalPrice); err != nil {
				return 0, fmt.Errorf("order repository: add item %w", err)
			}
		}
		if err := inserter.Flush(ctx); err != nil {
			return 0, fmt.Errorf("order repository: insert items %w", err)
		}
	}

	return order.ID, nil
}

// GetByID возвращает заказ по идентификатору.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("order repository: get by id %w", err)
	}
	return &order, nil
}

// ListItems возвращает позиции заказа.
func (r *OrderRepository) ListItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	query := `
		SELECT id, order_id, shop_item_id, product_name, pack_size, unit_price, quantity, total_price, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &items, query, orderID); err != nil {
		return nil, fmt.Errorf("order repository: list items %w", err)
	}
	return items, nil
}

// List возвращает заказы по фильтру и общее количество.
func (r *OrderRepository) List(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if f.PaymentStatus != "" {
		args = append(args, f.PaymentStatus)
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if f.OrderStatus != "" {
		args = append(args, f.OrderStatus)
		where = append(where, fmt.Sprintf("order_status = $%d", len(args)))
	}
	if f.Email != "" {
		args = append(args, f.Email)
		where = append(where, fmt.Sprintf("email = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders WHERE `+cond, args...); err != nil {
		return nil, 0, fmt.Errorf("order repository: count %w", err)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, cond, len(args)-1, len(args))

	orders := []models.Order{}
	if err := r.db.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, 0, fmt.Errorf("order repository: list %w", err)
	}
	return orders, total, nil
}

// Update применяет частичное обновление заказа.
func (r *OrderRepository) Update(ctx context.Context, id int64, patch models.OrderPatch) (*models.Order, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{id}

	add := func(column string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("payment_status", patch.PaymentStatus)
	add("paymentmode", patch.PaymentMode)
	add("order_status", patch.OrderStatus)
	add("notes", patch.Notes)

	var order models.Order
	query := `UPDATE orders SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + orderColumns
	if err := r.db.GetContext(ctx, &order, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("order repository: update %w", err)
	}
	return &order, nil
}

// Delete удаляет заказ. Позиции, платежи и сообщения удаляются каскадно.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("order repository: delete %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
