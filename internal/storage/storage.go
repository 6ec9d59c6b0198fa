package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrExists - лайк или закладка уже стоят.
	ErrExists = errors.New("already exists")
	// ErrAbsent - снимают лайк или закладку, которых нет.
	ErrAbsent = errors.New("not present")
)

// Post - запись поста на стороне сервиса.
type Post struct {
	ID         string
	AuthorID   string
	AuthorName string
	Content    string
	Media      []string
	CreatedAt  time.Time
}

// Comment - запись комментария на стороне сервиса. Дерево хранится плоско через ParentID.
type Comment struct {
	ID         string
	PostID     string
	ParentID   *string
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
}

// Stats - счетчики и флаги сущности с точки зрения пользователя.
type Stats struct {
	LikeCount    int
	CommentCount int
	Liked        bool
	Saved        bool
}

type Storage interface {
	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id string) (*Post, error)
	ListPosts(ctx context.Context, limit int) ([]Post, error)
	PostStats(ctx context.Context, postID, userID string) (Stats, error)

	LikePost(ctx context.Context, postID, userID string) error
	UnlikePost(ctx context.Context, postID, userID string) error
	SavePost(ctx context.Context, postID, userID string) error
	UnsavePost(ctx context.Context, postID, userID string) error

	CreateComment(ctx context.Context, comment *Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	// ListComments возвращает все комментарии поста по возрастанию времени.
	ListComments(ctx context.Context, postID string) ([]Comment, error)
	// DeleteComment удаляет комментарий вместе с ответами и возвращает число удаленных.
	DeleteComment(ctx context.Context, id string) (int, error)
	CommentStats(ctx context.Context, commentID, userID string) (Stats, error)
	LikeComment(ctx context.Context, commentID, userID string) error
	UnlikeComment(ctx context.Context, commentID, userID string) error

	Close() error
}
