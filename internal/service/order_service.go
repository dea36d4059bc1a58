package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/chemsus-backend/internal/goroutine"
	"github.com/ignatzorin/chemsus-backend/internal/logger"
	"github.com/ignatzorin/chemsus-backend/internal/mailer"
	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/repository"
	"github.com/ignatzorin/chemsus-backend/internal/validation"
)

const (
	defaultOrderPageSize = 50
	maxOrderPageSize     = 200
	maxPaymentModeLength = 40
	confirmationTimeout  = 15 * time.Second
)

// OrderRepository описывает взаимодействие сервиса с хранилищем заказов.
type OrderRepository interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, order *models.Order, items []models.OrderItem) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	ListItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error)
	Update(ctx context.Context, id int64, patch models.OrderPatch) (*models.Order, error)
	Delete(ctx context.Context, id int64) error
}

// PricingSource отдаёт актуальные цены каталога.
type PricingSource interface {
	ListShopItems(ctx context.Context, onlyActive bool) ([]models.ShopItem, error)
	ListPacks(ctx context.Context, itemIDs []int64, onlyActive bool) ([]models.PackPricing, error)
}

// VerificationConsumer погашает токен подтверждения email.
type VerificationConsumer interface {
	Consume(ctx context.Context, email, token string, fn repository.RedeemFunc) (int64, error)
}

// OrderPaymentLister отдаёт платежи заказа.
type OrderPaymentLister interface {
	ListByOrder(ctx context.Context, orderID int64) ([]models.Payment, error)
}

// CartLine позиция корзины. Цена всегда берётся из каталога.
type CartLine struct {
	ShopItemID int64
	PackSize   string
	Quantity   int
}

// PlaceOrderInput данные оформления заказа.
type PlaceOrderInput struct {
	CustomerName      string
	Email             string
	Phone             string
	CompanyName       string
	Address           string
	City              string
	Region            string
	Pincode           string
	Country           string
	Notes             string
	Items             []CartLine
	VerificationToken string
}

// OrderDetails заказ вместе с позициями и платежами.
type OrderDetails struct {
	Order    *models.Order
	Items    []models.OrderItem
	Payments []models.Payment
}

// OrderService оформляет заказы и обслуживает админку заказов.
type OrderService struct {
	orders   OrderRepository
	pricing  PricingSource
	verifier VerificationConsumer
	payments OrderPaymentLister
	events   EventPublisher
	mail     mailer.Mailer
	recovery *goroutine.RecoveryHandler
}

// NewOrderService создаёт сервис заказов. mail и recovery могут быть nil.
func NewOrderService(
	orders OrderRepository,
	pricing PricingSource,
	verifier VerificationConsumer,
	payments OrderPaymentLister,
	events EventPublisher,
	mail mailer.Mailer,
	recovery *goroutine.RecoveryHandler,
) *OrderService {
	return &OrderService{
		orders:   orders,
		pricing:  pricing,
		verifier: verifier,
		payments: payments,
		events:   publisherOrNoop(events),
		mail:     mail,
		recovery: recovery,
	}
}

// PlaceOrder проверяет данные, считает цены по каталогу и создаёт заказ,
// погашая токен подтверждения email в той же транзакции.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*OrderDetails, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validatePlaceOrder(in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.VerificationToken) == "" {
		return nil, apperror.ErrInvalidVerification
	}

	items, err := s.priceCart(ctx, in.Items)
	if err != nil {
		return nil, err
	}

	order := buildOrder(in, items)

	orderID, err := s.verifier.Consume(ctx, in.Email, strings.TrimSpace(in.VerificationToken),
		func(tx *sqlx.Tx, _ *models.OTPSession) (int64, error) {
			return s.orders.CreateTx(ctx, tx, order, items)
		})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperror.Internal(err)
	}
	order.ID = orderID

	logger.Log.WithFields(logrus.Fields{
		"order_id": orderID,
		"items":    len(items),
		"total":    order.TotalPrice,
	}).Info("order: заказ создан")

	s.events.Publish(TopicAdmin, EventOrderCreated, order)
	s.sendConfirmation(order)

	return &OrderDetails{Order: order, Items: items, Payments: []models.Payment{}}, nil
}

// GetForCustomer отдаёт заказ покупателю, если email совпадает с email заказа.
func (s *OrderService) GetForCustomer(ctx context.Context, id int64, email string) (*OrderDetails, error) {
	order, err := s.AuthorizeCustomer(ctx, id, email)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, order)
}

// AuthorizeCustomer проверяет доступ покупателя к заказу по email.
func (s *OrderService) AuthorizeCustomer(ctx context.Context, id int64, email string) (*models.Order, error) {
	email = validation.NormalizeEmail(email)
	if validation.ValidateEmail(email) != nil {
		return nil, apperror.ErrInvalidEmail
	}
	order, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if validation.NormalizeEmail(order.Email) != email {
		return nil, apperror.ErrOrderAccessDenied
	}
	return order, nil
}

// Get отдаёт заказ администратору.
func (s *OrderService) Get(ctx context.Context, id int64) (*OrderDetails, error) {
	order, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.details(ctx, order)
}

// List возвращает страницу заказов и общее количество.
func (s *OrderService) List(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error) {
	if f.PaymentStatus != "" && !models.ValidPaymentStatuses[f.PaymentStatus] {
		return nil, 0, apperror.New(apperror.ErrCodeValidation, "неизвестный статус оплаты")
	}
	if f.OrderStatus != "" && !models.ValidOrderStatuses[f.OrderStatus] {
		return nil, 0, apperror.New(apperror.ErrCodeValidation, "неизвестный статус заказа")
	}
	if f.Email != "" {
		f.Email = validation.NormalizeEmail(f.Email)
	}
	if f.Limit <= 0 {
		f.Limit = defaultOrderPageSize
	}
	if f.Limit > maxOrderPageSize {
		f.Limit = maxOrderPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return orders, total, nil
}

// Update применяет правку администратора. Пустая правка запрещена.
func (s *OrderService) Update(ctx context.Context, id int64, patch models.OrderPatch) (*models.Order, error) {
	if patch.IsEmpty() {
		return nil, apperror.New(apperror.ErrCodeValidation, "нет полей для обновления")
	}
	if patch.PaymentStatus != nil && !models.ValidPaymentStatuses[*patch.PaymentStatus] {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус оплаты")
	}
	if patch.OrderStatus != nil && !models.ValidOrderStatuses[*patch.OrderStatus] {
		return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный статус заказа")
	}
	if patch.PaymentMode != nil {
		if err := validation.ValidateLength("способ оплаты", *patch.PaymentMode, 1, maxPaymentModeLength); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}
	if patch.Notes != nil {
		if err := validation.ValidateOptional("заметки", *patch.Notes, validation.MaxNotesLength); err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}

	order, err := s.orders.Update(ctx, id, patch)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperror.ErrOrderNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}

	s.events.Publish(TopicAdmin, EventOrderUpdated, order)
	s.events.Publish(OrderTopic(order.ID), EventOrderUpdated, order)
	return order, nil
}

// Delete удаляет заказ.
func (s *OrderService) Delete(ctx context.Context, id int64) error {
	err := s.orders.Delete(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return apperror.ErrOrderNotFound
	}
	if err != nil {
		return apperror.Internal(err)
	}
	return nil
}

func (s *OrderService) getOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperror.ErrOrderNotFound
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return order, nil
}

func (s *OrderService) details(ctx context.Context, order *models.Order) (*OrderDetails, error) {
	items, err := s.orders.ListItems(ctx, order.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	payments, err := s.payments.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &OrderDetails{Order: order, Items: items, Payments: payments}, nil
}

// priceCart сопоставляет позиции корзины с активными товарами и фасовками.
func (s *OrderService) priceCart(ctx context.Context, lines []CartLine) ([]models.OrderItem, error) {
	shopItems, err := s.pricing.ListShopItems(ctx, true)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	byID := lo.KeyBy(shopItems, func(it models.ShopItem) int64 { return it.ID })

	ids := lo.Uniq(lo.Map(lines, func(l CartLine, _ int) int64 { return l.ShopItemID }))
	packs, err := s.pricing.ListPacks(ctx, ids, true)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	type packKey struct {
		itemID int64
		size   string
	}
	packByKey := lo.KeyBy(packs, func(p models.PackPricing) packKey {
		return packKey{p.ShopItemID, strings.ToLower(strings.TrimSpace(p.PackSize))}
	})

	items := make([]models.OrderItem, 0, len(lines))
	for i, line := range lines {
		item, ok := byID[line.ShopItemID]
		if !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("позиция %d: товар недоступен", i+1))
		}

		unit := decimal.NewFromFloat(item.Price)
		packSize := strings.TrimSpace(line.PackSize)
		if packSize != "" {
			pack, ok := packByKey[packKey{item.ID, strings.ToLower(packSize)}]
			if !ok {
				return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("позиция %d: фасовка %q недоступна", i+1, packSize))
			}
			packSize = pack.PackSize
			unit = decimal.NewFromFloat(pack.OurPrice)
			if !unit.IsPositive() {
				unit = decimal.NewFromFloat(pack.BiofmINR)
			}
		}
		if !unit.IsPositive() {
			return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("позиция %d: цена не задана", i+1))
		}

		unit = unit.Round(2)
		lineTotal := unit.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		items = append(items, models.OrderItem{
			ShopItemID:  item.ID,
			ProductName: item.Name,
			PackSize:    packSize,
			UnitPrice:   unit.InexactFloat64(),
			Quantity:    float64(line.Quantity),
			TotalPrice:  lineTotal.InexactFloat64(),
		})
	}
	return items, nil
}

// buildOrder заполняет сводные поля заказа по позициям.
func buildOrder(in PlaceOrderInput, items []models.OrderItem) *models.Order {
	total := decimal.Zero
	quantity := 0.0
	for _, it := range items {
		total = total.Add(decimal.NewFromFloat(it.TotalPrice))
		quantity += it.Quantity
	}

	names := lo.Map(items, func(it models.OrderItem, _ int) string {
		if it.PackSize == "" {
			return it.ProductName
		}
		return it.ProductName + " (" + it.PackSize + ")"
	})

	unitPrice := 0.0
	if len(items) == 1 {
		unitPrice = items[0].UnitPrice
	}

	country := strings.TrimSpace(in.Country)
	if country == "" {
		country = "India"
	}

	return &models.Order{
		CustomerName:  strings.TrimSpace(in.CustomerName),
		Email:         in.Email,
		Phone:         strings.TrimSpace(in.Phone),
		CompanyName:   strings.TrimSpace(in.CompanyName),
		Address:       strings.TrimSpace(in.Address),
		City:          strings.TrimSpace(in.City),
		Region:        strings.TrimSpace(in.Region),
		Pincode:       strings.TrimSpace(in.Pincode),
		Country:       country,
		ProductName:   strings.Join(names, ", "),
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		TotalPrice:    total.Round(2).InexactFloat64(),
		PaymentStatus: models.PaymentStatusPending,
		PaymentMode:   models.PaymentModePending,
		Notes:         strings.TrimSpace(in.Notes),
		OrderStatus:   models.OrderStatusProcessing,
	}
}

func validatePlaceOrder(in PlaceOrderInput) error {
	if validation.ValidateEmail(in.Email) != nil {
		return apperror.ErrInvalidEmail
	}

	checks := []error{
		validation.ValidateCustomerName(in.CustomerName),
		validation.ValidatePhone(in.Phone),
		validation.ValidateAddress(in.Address),
		validation.ValidatePincode(in.Pincode),
		validation.ValidateNonEmpty("город", in.City),
		validation.ValidateOptional("город", in.City, validation.MaxCityLength),
		validation.ValidateOptional("регион", in.Region, validation.MaxRegionLength),
		validation.ValidateOptional("страна", in.Country, validation.MaxCountryLength),
		validation.ValidateOptional("компания", in.CompanyName, validation.MaxCompanyNameLength),
		validation.ValidateOptional("заметки", in.Notes, validation.MaxNotesLength),
	}
	for _, err := range checks {
		if err != nil {
			return apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}

	if len(in.Items) == 0 {
		return apperror.New(apperror.ErrCodeValidation, "корзина пуста")
	}
	if len(in.Items) > validation.MaxOrderItems {
		return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("не более %d позиций в заказе", validation.MaxOrderItems))
	}
	for i, line := range in.Items {
		if line.ShopItemID <= 0 {
			return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("позиция %d: не указан товар", i+1))
		}
		if line.Quantity <= 0 || line.Quantity > validation.MaxItemQuantity {
			return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("позиция %d: некорректное количество", i+1))
		}
	}
	return nil
}

// sendConfirmation отправляет письмо о заказе. Ошибки только логируются.
func (s *OrderService) sendConfirmation(order *models.Order) {
	if s.mail == nil {
		return
	}
	msg := mailer.OrderConfirmationMessage(order.Email, order.ID, order.CustomerName, order.TotalPrice)
	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), confirmationTimeout)
		defer cancel()
		if err := s.mail.Send(ctx, msg); err != nil {
			logger.Log.WithError(err).WithField("order_id", order.ID).Warn("order: письмо-подтверждение не отправлено")
		}
	}
	if s.recovery == nil {
		send()
		return
	}
	s.recovery.SafeGo(send)
}
