package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ButyrinIA/feedsync/internal/storage"
)

// Сервис отдает записи в разных соглашениях об именовании, как настоящий
// бэкенд, собранный из нескольких версий API.
const (
	styleCamel = iota
	styleSnake
	stylePascal
	styleCount
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func avatarFor(username string) string {
	return "https://avatars.feedsync.test/" + username + ".png"
}

func encodePost(style int, p storage.Post, st storage.Stats) map[string]any {
	switch style % styleCount {
	case styleSnake:
		out := map[string]any{
			"id":            p.ID,
			"username":      p.AuthorName,
			"user_id":       p.AuthorID,
			"like_count":    st.LikeCount,
			"liked":         st.Liked,
			"comment_count": st.CommentCount,
			"is_saved":      st.Saved,
			"created_at":    p.CreatedAt.Unix(),
		}
		if p.Content != "" {
			out["content"] = p.Content
		}
		if len(p.Media) > 0 {
			// массив, сериализованный в строку
			b, _ := json.Marshal(p.Media)
			out["images"] = string(b)
		}
		return out
	case stylePascal:
		out := map[string]any{
			"ID":           p.ID,
			"User":         map[string]any{"ID": p.AuthorID, "Username": p.AuthorName},
			"Likes":        st.LikeCount,
			"IsLiked":      st.Liked,
			"CommentCount": st.CommentCount,
			"Saved":        st.Saved,
		}
		if p.Content != "" {
			out["Content"] = p.Content
		}
		if len(p.Media) > 0 {
			out["Media"] = charSplit(p.Media[0])
		}
		return out
	default:
		out := map[string]any{
			"id":           p.ID,
			"media":        nonNil(p.Media),
			"author":       map[string]any{"id": p.AuthorID, "username": p.AuthorName, "avatarUrl": avatarFor(p.AuthorName)},
			"likeCount":    st.LikeCount,
			"isLiked":      st.Liked,
			"commentCount": st.CommentCount,
			"isSaved":      st.Saved,
			"createdAt":    p.CreatedAt.Format(time.RFC3339),
		}
		if p.Content != "" {
			out["caption"] = p.Content
		}
		return out
	}
}

// charSplit воспроизводит дефект сериализации, при котором строка
// превращается в объект {"0": "h", "1": "t", ...}.
func charSplit(s string) map[string]any {
	out := make(map[string]any, len(s))
	for i, r := range []rune(s) {
		out[strconv.Itoa(i)] = string(r)
	}
	return out
}

func nonNil(media []string) []string {
	if media == nil {
		return []string{}
	}
	return media
}

// commentNode - комментарий со счетчиками для сборки дерева.
type commentNode struct {
	storage.Comment
	Stats   storage.Stats
	Replies []*commentNode
}

// buildTree собирает плоский список в дерево, сохраняя порядок.
// Ответы на неизвестного родителя поднимаются на верхний уровень.
func buildTree(list []commentNode) []*commentNode {
	byID := make(map[string]*commentNode, len(list))
	for i := range list {
		byID[list[i].ID] = &list[i]
	}
	var roots []*commentNode
	for i := range list {
		n := &list[i]
		if n.ParentID != nil {
			if parent, ok := byID[*n.ParentID]; ok {
				parent.Replies = append(parent.Replies, n)
				continue
			}
		}
		roots = append(roots, n)
	}
	return roots
}

// encodeComment: верхний уровень в camelCase, ответы в snake_case.
func encodeComment(n *commentNode, depth int) map[string]any {
	if depth == 0 {
		replies := make([]any, 0, len(n.Replies))
		for _, r := range n.Replies {
			replies = append(replies, encodeComment(r, depth+1))
		}
		out := map[string]any{
			"id":        n.ID,
			"postId":    n.PostID,
			"content":   n.Content,
			"author":    map[string]any{"id": n.AuthorID, "username": n.AuthorName, "avatarUrl": avatarFor(n.AuthorName)},
			"createdAt": n.CreatedAt.Format(time.RFC3339Nano),
			"isLiked":   n.Stats.Liked,
			"likeCount": n.Stats.LikeCount,
			"replies":   replies,
		}
		if n.ParentID != nil {
			out["parentId"] = *n.ParentID
		}
		return out
	}

	children := make([]any, 0, len(n.Replies))
	for _, r := range n.Replies {
		children = append(children, encodeComment(r, depth+1))
	}
	out := map[string]any{
		"id":         n.ID,
		"post_id":    n.PostID,
		"text":       n.Content,
		"user":       map[string]any{"id": n.AuthorID, "user_name": n.AuthorName},
		"created_at": n.CreatedAt.Unix(),
		"liked":      n.Stats.Liked,
		"like_count": n.Stats.LikeCount,
		"children":   children,
	}
	if n.ParentID != nil {
		out["parent_id"] = *n.ParentID
	}
	return out
}

// encodeCreatedComment - запись только что созданного комментария, в PascalCase.
func encodeCreatedComment(c storage.Comment) map[string]any {
	out := map[string]any{
		"ID":        c.ID,
		"PostID":    c.PostID,
		"Content":   c.Content,
		"User":      map[string]any{"ID": c.AuthorID, "Username": c.AuthorName},
		"CreatedAt": c.CreatedAt.Format(time.RFC3339Nano),
		"IsLiked":   false,
		"LikeCount": 0,
	}
	if c.ParentID != nil {
		out["ParentID"] = *c.ParentID
	}
	return out
}
