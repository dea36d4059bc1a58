package models

import (
	"encoding/json"
	"time"
)

// Статусы наличия товара.
const (
	StockInStock    = "in-stock"
	StockOutOfStock = "out-of-stock"
	StockPreOrder   = "pre-order"
)

// PageProduct карточка на странице продуктов.
type PageProduct struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Image       string    `db:"image" json:"image"`
	Link        string    `db:"link" json:"link"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	SortOrder   int       `db:"sort_order" json:"sort_order"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ShopItem товар магазина.
type ShopItem struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Subtitle     string    `db:"subtitle" json:"subtitle"`
	FeaturesJSON string    `db:"features_json" json:"-"`
	Price        float64   `db:"price" json:"price"`
	StockStatus  string    `db:"stock_status" json:"stock_status"`
	ShowBadge    bool      `db:"show_badge" json:"show_badge"`
	Badge        string    `db:"badge" json:"badge"`
	MoreLink     string    `db:"more_link" json:"more_link"`
	Image        string    `db:"image" json:"image"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	SortOrder    int       `db:"sort_order" json:"sort_order"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	Features []string      `json:"features"`
	Packs    []PackPricing `json:"packs,omitempty"`
}

// DecodeFeatures разбирает features_json. Битый JSON даёт пустой список.
func (s *ShopItem) DecodeFeatures() {
	s.Features = []string{}
	if s.FeaturesJSON == "" {
		return
	}
	var features []string
	if err := json.Unmarshal([]byte(s.FeaturesJSON), &features); err == nil && features != nil {
		s.Features = features
	}
}

// EncodeFeatures сериализует Features в features_json.
func EncodeFeatures(features []string) string {
	if len(features) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(features)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

// PackPricing цена фасовки товара.
type PackPricing struct {
	ID         int64     `db:"id" json:"id"`
	ShopItemID int64     `db:"shop_item_id" json:"shop_item_id"`
	PackSize   string    `db:"pack_size" json:"pack_size"`
	BiofmUSD   float64   `db:"biofm_usd" json:"biofm_usd"`
	BiofmINR   float64   `db:"biofm_inr" json:"biofm_inr"`
	OurPrice   float64   `db:"our_price" json:"our_price"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	SortOrder  int       `db:"sort_order" json:"sort_order"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SiteSetting пара ключ-значение настроек сайта.
type SiteSetting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrderMessage сообщение в переписке по заказу.
type OrderMessage struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   int64     `db:"order_id" json:"order_id"`
	Sender    string    `db:"sender" json:"sender"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Отправители сообщений.
const (
	SenderUser  = "user"
	SenderAdmin = "admin"
)
