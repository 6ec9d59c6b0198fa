package models

import "time"

// ID - непрозрачный идентификатор сущности. Сервер присылает строки или числа,
// сравнивать можно только на равенство.
type ID string

func (id ID) String() string { return string(id) }

// UserRef - ссылка на пользователя, хранится по значению.
type UserRef struct {
	ID        ID     `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Post - каноническая запись поста после нормализации.
type Post struct {
	ID           ID       `json:"id"`
	Content      string   `json:"content"`
	Media        []string `json:"media"`
	Author       UserRef  `json:"author"`
	LikeCount    int      `json:"likeCount"`
	IsLiked      bool     `json:"isLiked"`
	CommentCount int      `json:"commentCount"`
	IsSaved      bool     `json:"isSaved"`
}

// Comment - каноническая запись комментария. Replies принадлежат родителю
// только в смысле времени жизни.
type Comment struct {
	ID        ID        `json:"id"`
	PostID    ID        `json:"postId"`
	ParentID  *ID       `json:"parentId,omitempty"`
	Author    UserRef   `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	IsLiked   bool      `json:"isLiked"`
	LikeCount int       `json:"likeCount"`
	Replies   []Comment `json:"replies"`
}

// Clone возвращает копию поста, не разделяющую срез Media.
func (p Post) Clone() Post {
	if p.Media != nil {
		p.Media = append([]string(nil), p.Media...)
	}
	return p
}

// Clone возвращает глубокую копию комментария вместе с ответами.
func (c Comment) Clone() Comment {
	if c.ParentID != nil {
		parent := *c.ParentID
		c.ParentID = &parent
	}
	c.Replies = CloneComments(c.Replies)
	return c
}

// CloneComments копирует дерево комментариев.
func CloneComments(list []Comment) []Comment {
	if list == nil {
		return nil
	}
	out := make([]Comment, len(list))
	for i, c := range list {
		out[i] = c.Clone()
	}
	return out
}

// CountComments считает узлы дерева, включая ответы.
func CountComments(list []Comment) int {
	n := 0
	for _, c := range list {
		n += 1 + CountComments(c.Replies)
	}
	return n
}

// Envelope - единый ответ транспортного клиента.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Status  int    `json:"status,omitempty"`
}

// Request - запрос к удаленному сервису.
type Request struct {
	Method string
	Path   string
	Body   any
}
