package feed

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/gorilla/websocket"
)

// serverEvent - сообщение потока /ws.
type serverEvent struct {
	Type      string `json:"type"`
	PostID    string `json:"postId"`
	CommentID string `json:"commentId"`
}

// WebsocketURL превращает базовый адрес сервиса в адрес потока событий.
func WebsocketURL(baseURL, token string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Watch подписывается на поток событий сервера и перечитывает затронутые
// посты и комментарии. Возвращается после успешного подключения, чтение идет
// в фоне до Close.
func (v *View) Watch(ctx context.Context, wsURL string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	if err := v.scope.Context().Err(); err != nil {
		conn.Close()
		return err
	}

	events := make(chan serverEvent, 16)
	go func() {
		defer close(events)
		for {
			var e serverEvent
			if err := conn.ReadJSON(&e); err != nil {
				if v.scope.Context().Err() == nil {
					log.Printf("Поток событий закрыт: %v", err)
				}
				return
			}
			select {
			case events <- e:
			default:
				log.Printf("Событие %s пропущено: очередь заполнена", e.Type)
			}
		}
	}()

	v.scope.After(0, func(ctx context.Context) {
		defer conn.Close()
		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				v.handleEvent(ctx, e)
			case <-ctx.Done():
				return
			}
		}
	})
	return nil
}

func (v *View) handleEvent(ctx context.Context, e serverEvent) {
	postID := models.ID(e.PostID)
	var err error
	switch e.Type {
	case "post_created", "post_updated":
		if postID == "" {
			return
		}
		err = v.LoadPost(ctx, postID)
	case "comment_created", "comment_deleted":
		if postID == "" {
			return
		}
		err = v.LoadPost(ctx, postID)
		if err == nil && v.isOpen(postID) {
			err = v.LoadComments(ctx, postID)
		}
	default:
		return
	}
	if err != nil && ctx.Err() == nil {
		log.Printf("Ошибка обработки события %s: %v", e.Type, err)
	}
}

func (v *View) isOpen(postID models.ID) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loaded[postID]
}
