package server

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// event - изменение, которое рассылается подписчикам /ws.
type event struct {
	Type      string `json:"type"`
	PostID    string `json:"postId,omitempty"`
	CommentID string `json:"commentId,omitempty"`
}

const (
	eventPostCreated    = "post_created"
	eventPostUpdated    = "post_updated"
	eventCommentCreated = "comment_created"
	eventCommentDeleted = "comment_deleted"
)

// hub хранит каналы подписчиков.
type hub struct {
	channels map[string]chan event
	mu       sync.RWMutex
}

func newHub() *hub {
	return &hub{channels: make(map[string]chan event)}
}

func (h *hub) subscribe() (string, <-chan event) {
	id := uuid.NewString()
	ch := make(chan event, 16)

	h.mu.Lock()
	h.channels[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *hub) unsubscribe(id string) {
	h.mu.Lock()
	if ch, ok := h.channels[id]; ok {
		delete(h.channels, id)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *hub) publish(e event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.channels {
		select {
		case ch <- e:
		default:
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Ошибка websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	id, events := s.events.subscribe()
	defer s.events.unsubscribe(id)

	if err := conn.WriteJSON(event{Type: "connected"}); err != nil {
		return
	}

	// чтение нужно только чтобы заметить закрытие соединения клиентом
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(e); err != nil {
				log.Printf("Ошибка записи в websocket: %v", err)
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
