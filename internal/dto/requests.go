package dto

// SendOTPRequest запрос кода подтверждения email.
type SendOTPRequest struct {
	Email string `json:"email" binding:"otpemail"`
}

// VerifyOTPRequest проверка кода. Формат полей проверяется при биндинге в том же порядке,
// что и в OTPService.Verify: email, идентификатор, код.
type VerifyOTPRequest struct {
	Email       string `json:"email" binding:"otpemail"`
	ChallengeID string `json:"challenge_id" binding:"hexid"`
	Code        string `json:"code" binding:"otpcode"`
}

// CartItemRequest позиция корзины.
type CartItemRequest struct {
	ShopItemID int64  `json:"shop_item_id" binding:"required,gt=0"`
	PackSize   string `json:"pack_size"`
	Quantity   int    `json:"quantity" binding:"required,gt=0"`
}

// CreateOrderRequest оформление заказа после подтверждения email.
// customername принимается для старых клиентов.
type CreateOrderRequest struct {
	CustomerName       string            `json:"customer_name"`
	LegacyCustomerName string            `json:"customername"`
	Email              string            `json:"email"`
	Phone              string            `json:"phone"`
	CompanyName        string            `json:"company_name"`
	Address            string            `json:"address"`
	City               string            `json:"city"`
	Region             string            `json:"region"`
	Pincode            string            `json:"pincode"`
	Country            string            `json:"country"`
	Notes              string            `json:"notes"`
	Items              []CartItemRequest `json:"items" binding:"dive"`
	VerificationToken  string            `json:"verification_token"`
}

// UpdateOrderRequest частичное обновление заказа администратором.
// status принимается как синоним order_status.
type UpdateOrderRequest struct {
	PaymentStatus *string `json:"payment_status"`
	PaymentMode   *string `json:"paymentmode"`
	OrderStatus   *string `json:"order_status"`
	Status        *string `json:"status"`
	Notes         *string `json:"notes"`
}

// ReviewPaymentRequest решение администратора по платежу.
type ReviewPaymentRequest struct {
	Status string `json:"status" binding:"required"`
}

// MessageRequest сообщение в переписке по заказу.
type MessageRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// PageProductRequest карточка страницы продуктов.
type PageProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Link        string `json:"link"`
	IsActive    *bool  `json:"is_active"`
	SortOrder   int    `json:"sort_order"`
}

// ShopItemRequest товар магазина.
type ShopItemRequest struct {
	Name        string   `json:"name"`
	Subtitle    string   `json:"subtitle"`
	Features    []string `json:"features"`
	Price       float64  `json:"price"`
	StockStatus string   `json:"stock_status"`
	ShowBadge   bool     `json:"show_badge"`
	Badge       string   `json:"badge"`
	MoreLink    string   `json:"more_link"`
	Image       string   `json:"image"`
	IsActive    *bool    `json:"is_active"`
	SortOrder   int      `json:"sort_order"`
}

// PackRequest цена фасовки.
type PackRequest struct {
	PackSize  string  `json:"pack_size"`
	BiofmUSD  float64 `json:"biofm_usd"`
	BiofmINR  float64 `json:"biofm_inr"`
	OurPrice  float64 `json:"our_price"`
	IsActive  *bool   `json:"is_active"`
	SortOrder int     `json:"sort_order"`
}

// ReplacePacksRequest полный список фасовок товара.
type ReplacePacksRequest struct {
	Packs []PackRequest `json:"packs"`
}

// SettingRequest значение настройки сайта.
type SettingRequest struct {
	Value string `json:"value"`
}

// AdminLoginRequest вход администратора.
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
