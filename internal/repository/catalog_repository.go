package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/repository/common"
)

var (
	ErrShopItemNotFound    = errors.New("shop item not found")
	ErrPageProductNotFound = errors.New("page product not found")
	ErrShopItemInUse       = errors.New("shop item referenced by orders")
)

const (
	pageProductColumns = `id, name, description, image, link, is_active, sort_order, created_at, updated_at`
	shopItemColumns    = `id, name, subtitle, features_json, price, stock_status, show_badge, badge, more_link, image,
		is_active, sort_order, created_at, updated_at`
	packColumns = `id, shop_item_id, pack_size, biofm_usd, biofm_inr, our_price, is_active, sort_order, created_at, updated_at`
)

// foreignKeyViolation код ошибки Postgres 23503.
const foreignKeyViolation = "23503"

// CatalogRepository работает со страницей продуктов, товарами магазина и ценами фасовок.
type CatalogRepository struct {
	db *sqlx.DB
}

func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListPageProducts возвращает карточки страницы продуктов.
func (r *CatalogRepository) ListPageProducts(ctx context.Context, onlyActive bool) ([]models.PageProduct, error) {
	products := []models.PageProduct{}
	query := `SELECT ` + pageProductColumns + ` FROM products_page`
	if onlyActive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY sort_order, id`
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("catalog repository: list page products %w", err)
	}
	return products, nil
}

func (r *CatalogRepository) CreatePageProduct(ctx context.Context, p *models.PageProduct) error {
	err := r.db.GetContext(ctx, p, `
		INSERT INTO products_page (name, description, image, link, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+pageProductColumns,
		p.Name, p.Description, p.Image, p.Link, p.IsActive, p.SortOrder)
	if err != nil {
		return fmt.Errorf("catalog repository: create page product %w", err)
	}
	return nil
}

func (r *CatalogRepository) UpdatePageProduct(ctx context.Context, p *models.PageProduct) error {
	err := r.db.GetContext(ctx, p, `
		UPDATE products_page
		SET name = $2, description = $3, image = $4, link = $5, is_active = $6, sort_order = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING `+pageProductColumns,
		p.ID, p.Name, p.Description, p.Image, p.Link, p.IsActive, p.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPageProductNotFound
	}
	if err != nil {
		return fmt.Errorf("catalog repository: update page product %w", err)
	}
	return nil
}

func (r *CatalogRepository) DeletePageProduct(ctx context.Context, id int64) error {
	return deleteByID(ctx, r.db, "products_page", id, ErrPageProductNotFound)
}

// ListShopItems возвращает товары магазина без цен фасовок.
func (r *CatalogRepository) ListShopItems(ctx context.Context, onlyActive bool) ([]models.ShopItem, error) {
	items := []models.ShopItem{}
	query := `SELECT ` + shopItemColumns + ` FROM shop_items`
	if onlyActive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY sort_order, id`
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("catalog repository: list shop items %w", err)
	}
	for i := range items {
		items[i].DecodeFeatures()
	}
	return items, nil
}

// GetShopItem возвращает товар по ID.
func (r *CatalogRepository) GetShopItem(ctx context.Context, id int64) (*models.ShopItem, error) {
	item, err := common.GetByID[models.ShopItem](ctx, r.db, "shop_items", id, ErrShopItemNotFound)
	if err != nil {
		return nil, err
	}
	item.DecodeFeatures()
	return item, nil
}

func (r *CatalogRepository) CreateShopItem(ctx context.Context, item *models.ShopItem) error {
	err := r.db.GetContext(ctx, item, `
		INSERT INTO shop_items (name, subtitle, features_json, price, stock_status, show_badge, badge, more_link, image, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+shopItemColumns,
		item.Name, item.Subtitle, models.EncodeFeatures(item.Features), item.Price, item.StockStatus,
		item.ShowBadge, item.Badge, item.MoreLink, item.Image, item.IsActive, item.SortOrder)
	if err != nil {
		return fmt.Errorf("catalog repository: create shop item %w", err)
	}
	item.DecodeFeatures()
	return nil
}

func (r *CatalogRepository) UpdateShopItem(ctx context.Context, item *models.ShopItem) error {
	err := r.db.GetContext(ctx, item, `
		UPDATE shop_items
		SET name = $2, subtitle = $3, features_json = $4, price = $5, stock_status = $6, show_badge = $7,
		    badge = $8, more_link = $9, image = $10, is_active = $11, sort_order = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING `+shopItemColumns,
		item.ID, item.Name, item.Subtitle, models.EncodeFeatures(item.Features), item.Price, item.StockStatus,
		item.ShowBadge, item.Badge, item.MoreLink, item.Image, item.IsActive, item.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrShopItemNotFound
	}
	if err != nil {
		return fmt.Errorf("catalog repository: update shop item %w", err)
	}
	item.DecodeFeatures()
	return nil
}

// DeleteShopItem удаляет товар. Товары из оформленных заказов удалить нельзя (ON DELETE RESTRICT).
func (r *CatalogRepository) DeleteShopItem(ctx context.Context, id int64) error {
	err := deleteByID(ctx, r.db, "shop_items", id, ErrShopItemNotFound)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return ErrShopItemInUse
	}
	return err
}

// ListPacks возвращает фасовки для набора товаров одним запросом.
func (r *CatalogRepository) ListPacks(ctx context.Context, itemIDs []int64, onlyActive bool) ([]models.PackPricing, error) {
	packs := []models.PackPricing{}
	if len(itemIDs) == 0 {
		return packs, nil
	}
	query := `SELECT ` + packColumns + ` FROM pack_pricing WHERE shop_item_id = ANY($1)`
	if onlyActive {
		query += ` AND is_active`
	}
	query += ` ORDER BY shop_item_id, sort_order, id`
	if err := r.db.SelectContext(ctx, &packs, query, pq.Array(itemIDs)); err != nil {
		return nil, fmt.Errorf("catalog repository: list packs %w", err)
	}
	return packs, nil
}

// ReplacePacks заменяет все фасовки товара.
func (r *CatalogRepository) ReplacePacks(ctx context.Context, itemID int64, packs []models.PackPricing) ([]models.PackPricing, error) {
	out := []models.PackPricing{}
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM shop_items WHERE id = $1)`, itemID); err != nil {
			return fmt.Errorf("catalog repository: check item %w", err)
		}
		if !exists {
			return ErrShopItemNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pack_pricing WHERE shop_item_id = $1`, itemID); err != nil {
			return fmt.Errorf("catalog repository: clear packs %w", err)
		}
		for _, p := range packs {
			var created models.PackPricing
			err := tx.GetContext(ctx, &created, `
				INSERT INTO pack_pricing (shop_item_id, pack_size, biofm_usd, biofm_inr, our_price, is_active, sort_order)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING `+packColumns,
				itemID, p.PackSize, p.BiofmUSD, p.BiofmINR, p.OurPrice, p.IsActive, p.SortOrder)
			if err != nil {
				return fmt.Errorf("catalog repository: insert pack %w", err)
			}
			out = append(out, created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// deleteByID удаляет строку по ID и возвращает notFoundErr, если её не было.
func deleteByID(ctx context.Context, db *sqlx.DB, table string, id int64, notFoundErr error) error {
	res, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", table), id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFoundErr
	}
	return nil
}
