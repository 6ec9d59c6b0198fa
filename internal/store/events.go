package store

import "github.com/ButyrinIA/feedsync/internal/models"

// EventKind - тип события хранилища.
type EventKind string

const (
	PostCreated     EventKind = "post_created"
	PostUpdated     EventKind = "post_updated"
	PostRemoved     EventKind = "post_removed"
	FeedReplaced    EventKind = "feed_replaced"
	CommentsChanged EventKind = "comments_changed"
)

// Event - типизированное событие, которое получают подписчики хранилища.
type Event struct {
	Kind      EventKind
	PostID    models.ID
	CommentID models.ID
}
