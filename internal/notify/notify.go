package notify

import (
	"context"
	"log"
	"sync"

	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/google/uuid"
)

// Notice - одно уведомление пользователю о неудавшемся действии.
type Notice struct {
	ID       string    `json:"id"`
	EntityID models.ID `json:"entityId"`
	Action   string    `json:"action"`
	Message  string    `json:"message"`
}

// Sink принимает уведомления.
type Sink interface {
	Notify(n Notice)
}

// Log пишет уведомления в стандартный лог.
type Log struct{}

func (Log) Notify(n Notice) {
	log.Printf("Уведомление [%s %s]: %s", n.Action, n.EntityID, n.Message)
}

// Hub рассылает уведомления подписчикам и хранит последние из них.
type Hub struct {
	mu     sync.RWMutex
	recent []Notice
	limit  int
	subs   map[string]chan Notice
}

func NewHub(limit int) *Hub {
	if limit <= 0 {
		limit = 50
	}
	return &Hub{limit: limit, subs: make(map[string]chan Notice)}
}

func (h *Hub) Notify(n Notice) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	h.mu.Lock()
	h.recent = append(h.recent, n)
	if len(h.recent) > h.limit {
		h.recent = h.recent[len(h.recent)-h.limit:]
	}
	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
	h.mu.Unlock()
}

// Recent возвращает копию последних уведомлений.
func (h *Hub) Recent() []Notice {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Notice(nil), h.recent...)
}

// Subscribe возвращает канал новых уведомлений до завершения ctx.
func (h *Hub) Subscribe(ctx context.Context) <-chan Notice {
	ch := make(chan Notice, 8)
	id := uuid.NewString()

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Multi отправляет уведомление во все приемники по порядку.
type Multi []Sink

func (m Multi) Notify(n Notice) {
	for _, s := range m {
		s.Notify(n)
	}
}
