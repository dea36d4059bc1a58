package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/chemsus-backend/internal/logger"
	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/repository"
	"github.com/ignatzorin/chemsus-backend/internal/storage"
	"github.com/ignatzorin/chemsus-backend/internal/validation"
)

const (
	defaultPaymentPageSize = 50
	maxPaymentPageSize     = 200
)

// PaymentRepository хранилище квитанций.
type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID int64) ([]models.Payment, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.Payment, int, error)
	Review(ctx context.Context, id int64, status string) (*models.Payment, error)
}

// ReceiptStore файловое хранилище квитанций.
type ReceiptStore interface {
	Save(ctx context.Context, orderID int64, r io.Reader) (*storage.StoredReceipt, error)
	Resolve(relativePath string) (string, error)
	Delete(ctx context.Context, relativePath string) error
}

// CustomerOrderAuthorizer проверяет доступ покупателя к заказу.
type CustomerOrderAuthorizer interface {
	AuthorizeCustomer(ctx context.Context, id int64, email string) (*models.Order, error)
}

// UPIConfig реквизиты получателя UPI.
type UPIConfig struct {
	PayeeVPA  string
	PayeeName string
}

// UPILink ссылка на оплату заказа.
type UPILink struct {
	OrderID int64
	Amount  string
	Payee   string
	URL     string
}

// SubmitPaymentInput квитанция от покупателя.
type SubmitPaymentInput struct {
	OrderID    int64
	Email      string
	PaymentRef string
	Rating     int
	Feedback   string
	Receipt    io.Reader
}

// PaymentService ручная оплата по UPI: ссылка, приём квитанций и проверка администратором.
type PaymentService struct {
	payments PaymentRepository
	receipts ReceiptStore
	orders   CustomerOrderAuthorizer
	events   EventPublisher
	upi      UPIConfig
}

func NewPaymentService(payments PaymentRepository, receipts ReceiptStore, orders CustomerOrderAuthorizer, events EventPublisher, upi UPIConfig) *PaymentService {
	return &PaymentService{
		payments: payments,
		receipts: receipts,
		orders:   orders,
		events:   publisherOrNoop(events),
		upi:      upi,
	}
}

// UPILink строит ссылку upi://pay на сумму заказа.
func (s *PaymentService) UPILink(ctx context.Context, orderID int64, email string) (*UPILink, error) {
	if s.upi.PayeeVPA == "" {
		return nil, apperror.New(apperror.ErrCodeInternal, "оплата по UPI не настроена")
	}
	order, err := s.orders.AuthorizeCustomer(ctx, orderID, email)
	if err != nil {
		return nil, err
	}

	amount := decimal.NewFromFloat(order.TotalPrice).StringFixed(2)
	link := fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%s&cu=%s&tn=%s",
		upiEscape(s.upi.PayeeVPA), upiEscape(s.upi.PayeeName), amount, models.CurrencyINR,
		upiEscape(fmt.Sprintf("Order %d", order.ID)))

	return &UPILink{
		OrderID: order.ID,
		Amount:  amount,
		Payee:   s.upi.PayeeVPA,
		URL:     link,
	}, nil
}

// upiEscape кодирует значение параметра; UPI-приложения ждут @ в VPA как есть.
func upiEscape(v string) string {
	v = url.QueryEscape(v)
	v = strings.ReplaceAll(v, "+", "%20")
	return strings.ReplaceAll(v, "%40", "@")
}

// Submit принимает квитанцию и переводит заказ в SUBMITTED.
func (s *PaymentService) Submit(ctx context.Context, in SubmitPaymentInput) (*models.Payment, error) {
	ref := strings.TrimSpace(in.PaymentRef)
	feedback := strings.TrimSpace(in.Feedback)
	checks := []error{
		validation.ValidateLength("номер платежа", ref, 1, validation.MaxPaymentRefLength),
		validation.ValidateRating(in.Rating),
		validation.ValidateOptional("отзыв", feedback, validation.MaxFeedbackLength),
	}
	for _, err := range checks {
		if err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}
	if in.Receipt == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "приложите квитанцию")
	}

	order, err := s.orders.AuthorizeCustomer(ctx, in.OrderID, in.Email)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return nil, apperror.New(apperror.ErrCodeConflict, "заказ уже оплачен")
	}

	stored, err := s.receipts.Save(ctx, order.ID, in.Receipt)
	if err != nil {
		return nil, receiptError(err)
	}

	payment := &models.Payment{
		OrderID:      order.ID,
		Provider:     models.PaymentProviderUPI,
		PaymentRef:   ref,
		Amount:       order.TotalPrice,
		Currency:     models.CurrencyINR,
		ReceiptPath:  stored.Path,
		Rating:       in.Rating,
		Feedback:     feedback,
		CustomerName: order.CustomerName,
		Email:        order.Email,
		Phone:        order.Phone,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		if delErr := s.receipts.Delete(context.Background(), stored.Path); delErr != nil {
			logger.Log.WithError(delErr).Warn("payment: не удалось удалить файл квитанции")
		}
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, apperror.Internal(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"order_id":   order.ID,
		"size":       stored.Size,
		"mime":       stored.MIME,
	}).Info("payment: получена квитанция")

	s.events.Publish(TopicAdmin, EventPaymentSubmitted, payment)
	s.events.Publish(OrderTopic(order.ID), EventPaymentSubmitted, payment)
	return payment, nil
}

// List платежи для админки.
func (s *PaymentService) List(ctx context.Context, status string, limit, offset int) ([]models.Payment, int, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && !validReviewStatus(status) {
		return nil, 0, apperror.New(apperror.ErrCodeValidation, "неизвестный статус платежа")
	}
	if limit <= 0 {
		limit = defaultPaymentPageSize
	}
	if limit > maxPaymentPageSize {
		limit = maxPaymentPageSize
	}
	if offset < 0 {
		offset = 0
	}

	payments, total, err := s.payments.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, apperror.Internal(err)
	}
	return payments, total, nil
}

// ReceiptFile путь к файлу квитанции для выдачи администратору.
func (s *PaymentService) ReceiptFile(ctx context.Context, id int64) (*models.Payment, string, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, "", apperror.ErrPaymentNotFound
	}
	if err != nil {
		return nil, "", apperror.Internal(err)
	}
	if !payment.HasReceipt() {
		return nil, "", apperror.New(apperror.ErrCodeNotFound, "квитанция не приложена")
	}
	path, err := s.receipts.Resolve(payment.ReceiptPath)
	if err != nil {
		logger.Log.WithError(err).WithField("payment_id", id).Error("payment: файл квитанции недоступен")
		return nil, "", apperror.New(apperror.ErrCodeNotFound, "файл квитанции не найден")
	}
	return payment, path, nil
}

// Review принимает или отклоняет платёж. Решение по платежу принимается один раз.
func (s *PaymentService) Review(ctx context.Context, id int64, status string) (*models.Payment, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != models.PaymentReviewVerified && status != models.PaymentReviewRejected {
		return nil, apperror.New(apperror.ErrCodeValidation, "статус должен быть VERIFIED или REJECTED")
	}

	payment, err := s.payments.Review(ctx, id, status)
	switch {
	case errors.Is(err, repository.ErrPaymentNotFound):
		return nil, apperror.ErrPaymentNotFound
	case errors.Is(err, repository.ErrPaymentAlreadyReviewed):
		return nil, apperror.ErrPaymentAlreadyFinal
	case errors.Is(err, repository.ErrOrderNotFound):
		return nil, apperror.ErrOrderNotFound
	case err != nil:
		return nil, apperror.Internal(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.OrderID,
		"status":     status,
	}).Info("payment: решение по платежу")

	s.events.Publish(TopicAdmin, EventPaymentReviewed, payment)
	s.events.Publish(OrderTopic(payment.OrderID), EventPaymentReviewed, payment)
	return payment, nil
}

func validReviewStatus(status string) bool {
	switch status {
	case models.PaymentReviewPending, models.PaymentReviewVerified, models.PaymentReviewRejected:
		return true
	}
	return false
}

func receiptError(err error) error {
	switch {
	case errors.Is(err, storage.ErrFileTooLarge):
		return apperror.New(apperror.ErrCodeValidation, "файл квитанции слишком большой")
	case errors.Is(err, storage.ErrUnsupportedType):
		return apperror.New(apperror.ErrCodeValidation, "квитанция должна быть JPEG, PNG, WEBP или PDF")
	case errors.Is(err, storage.ErrEmptyFile):
		return apperror.New(apperror.ErrCodeValidation, "файл квитанции пуст")
	default:
		return apperror.Internal(err)
	}
}
