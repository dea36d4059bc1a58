package service

import (
	"context"
	"strings"

	"github.com/ignatzorin/chemsus-backend/internal/models"
	"github.com/ignatzorin/chemsus-backend/internal/pkg/apperror"
	"github.com/ignatzorin/chemsus-backend/internal/validation"
)

// MessageRepository хранилище переписки по заказам.
type MessageRepository interface {
	Create(ctx context.Context, orderID int64, sender, message string) (*models.OrderMessage, error)
	ListByOrder(ctx context.Context, orderID int64) ([]models.OrderMessage, error)
}

// OrderLookup проверяет существование заказа и доступ покупателя.
type OrderLookup interface {
	CustomerOrderAuthorizer
	Get(ctx context.Context, id int64) (*OrderDetails, error)
}

// MessageService переписка покупателя и администратора по заказу.
type MessageService struct {
	messages MessageRepository
	orders   OrderLookup
	events   EventPublisher
}

func NewMessageService(messages MessageRepository, orders OrderLookup, events EventPublisher) *MessageService {
	return &MessageService{messages: messages, orders: orders, events: publisherOrNoop(events)}
}

// ListForCustomer сообщения заказа для покупателя.
func (s *MessageService) ListForCustomer(ctx context.Context, orderID int64, email string) ([]models.OrderMessage, error) {
	if _, err := s.orders.AuthorizeCustomer(ctx, orderID, email); err != nil {
		return nil, err
	}
	return s.list(ctx, orderID)
}

// PostFromCustomer добавляет сообщение покупателя.
func (s *MessageService) PostFromCustomer(ctx context.Context, orderID int64, email, text string) (*models.OrderMessage, error) {
	if err := validation.ValidateMessageContent(text); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if _, err := s.orders.AuthorizeCustomer(ctx, orderID, email); err != nil {
		return nil, err
	}
	return s.post(ctx, orderID, models.SenderUser, text)
}

// ListForAdmin сообщения заказа для администратора.
func (s *MessageService) ListForAdmin(ctx context.Context, orderID int64) ([]models.OrderMessage, error) {
	if _, err := s.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.list(ctx, orderID)
}

// PostFromAdmin добавляет ответ администратора.
func (s *MessageService) PostFromAdmin(ctx context.Context, orderID int64, text string) (*models.OrderMessage, error) {
	if err := validation.ValidateMessageContent(text); err != nil {
		return nil, apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if _, err := s.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.post(ctx, orderID, models.SenderAdmin, text)
}

func (s *MessageService) list(ctx context.Context, orderID int64) ([]models.OrderMessage, error) {
	messages, err := s.messages.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return messages, nil
}

func (s *MessageService) post(ctx context.Context, orderID int64, sender, text string) (*models.OrderMessage, error) {
	msg, err := s.messages.Create(ctx, orderID, sender, strings.TrimSpace(text))
	if err != nil {
		return nil, apperror.Internal(err)
	}
	s.events.Publish(OrderTopic(orderID), EventMessageCreated, msg)
	s.events.Publish(TopicAdmin, EventMessageCreated, msg)
	return msg, nil
}
