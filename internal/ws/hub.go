package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/chemsus-backend/internal/goroutine"
	"github.com/ignatzorin/chemsus-backend/internal/logger"
)

const broadcastBuffer = 64

// Hub раздаёт события подписчикам топиков ("admin", "order:<id>").
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	recovery   *goroutine.RecoveryHandler
}

type message struct {
	topic   string
	payload []byte
}

// envelope формат сообщения клиенту: type содержит имя события, data полезную нагрузку.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewHub создаёт новый хаб.
func NewHub(recovery *goroutine.RecoveryHandler) *Hub {
	if recovery == nil {
		recovery = goroutine.NewRecoveryHandler(goroutine.LoggerFunc(logger.Errorf))
	}
	return &Hub{
		topics:     make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, broadcastBuffer),
		done:       make(chan struct{}),
		recovery:   recovery,
	}
}

// Run запускает главный цикл хаба до отмены контекста.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.closeAll()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.topic, msg.payload)
		}
	}
}

// Register подписывает клиента на его топик.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish отправляет событие всем подписчикам топика. Не блокирует вызывающего:
// при переполненном буфере событие отбрасывается.
func (h *Hub) Publish(topic, event string, payload any) {
	raw, err := json.Marshal(envelope{Type: event, Data: payload})
	if err != nil {
		logger.Log.WithError(err).WithField("event", event).Error("ws: не удалось сериализовать сообщение")
		return
	}

	select {
	case h.broadcast <- message{topic: topic, payload: raw}:
	case <-h.done:
	default:
		logger.Log.WithFields(logrus.Fields{"topic": topic, "event": event}).Warn("ws: буфер событий переполнен, событие отброшено")
	}
}

// Subscribers количество подключений к топику.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.topics[client.topic]; !ok {
		h.topics[client.topic] = make(map[*Client]struct{})
	}
	h.topics[client.topic][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.topics[client.topic]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.topics, client.topic)
	}
}

func (h *Hub) send(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.topics[topic] {
		select {
		case client.send <- payload:
		default:
			// Медленный клиент отключается.
			c := client
			h.recovery.SafeGo(c.Close)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic, clients := range h.topics {
		for client := range clients {
			close(client.send)
		}
		delete(h.topics, topic)
	}
}
