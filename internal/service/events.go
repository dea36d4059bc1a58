package service

import "strconv"

// Типы событий живой ленты.
const (
	EventOrderCreated     = "order.created"
	EventOrderUpdated     = "order.updated"
	EventPaymentSubmitted = "payment.submitted"
	EventPaymentReviewed  = "payment.reviewed"
	EventMessageCreated   = "message.created"
)

// TopicAdmin лента администратора.
const TopicAdmin = "admin"

// OrderTopic лента конкретного заказа.
func OrderTopic(orderID int64) string {
	return "order:" + strconv.FormatInt(orderID, 10)
}

// EventPublisher рассылает события подписчикам темы.
type EventPublisher interface {
	Publish(topic, event string, payload any)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, string, any) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
