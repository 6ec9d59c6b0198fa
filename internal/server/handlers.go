package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ButyrinIA/feedsync/internal/storage"
	"github.com/google/uuid"
)

func (s *Server) fail(w http.ResponseWriter, status int, key msgKey) {
	writeJSON(w, status, map[string]any{"success": false, "message": s.msg(key)})
}

func (s *Server) internal(w http.ResponseWriter, op string, err error) {
	log.Printf("Ошибка %s: %v", op, err)
	s.fail(w, http.StatusInternalServerError, msgInternal)
}

// listPosts отдает голый массив без конверта.
func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	posts, err := s.storage.ListPosts(r.Context(), limit)
	if err != nil {
		s.internal(w, "получения постов", err)
		return
	}

	user := identityFrom(r.Context())
	out := make([]map[string]any, 0, len(posts))
	for i, p := range posts {
		st, err := s.storage.PostStats(r.Context(), p.ID, user.UserID)
		if err != nil {
			s.internal(w, "подсчета статистики", err)
			return
		}
		out = append(out, encodePost(i, p, st))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	post, err := s.storage.GetPost(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.fail(w, http.StatusNotFound, msgPostNotFound)
		return
	}
	if err != nil {
		s.internal(w, "получения поста", err)
		return
	}
	st, err := s.storage.PostStats(r.Context(), id, identityFrom(r.Context()).UserID)
	if err != nil {
		s.internal(w, "подсчета статистики", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"post": encodePost(styleCamel, *post, st)}})
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string   `json:"content"`
		Media   []string `json:"media"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" && len(req.Media) == 0 {
		s.fail(w, http.StatusBadRequest, msgContentRequired)
		return
	}

	user := identityFrom(r.Context())
	post := &storage.Post{
		ID:         uuid.NewString(),
		AuthorID:   user.UserID,
		AuthorName: user.Username,
		Content:    strings.TrimSpace(req.Content),
		Media:      req.Media,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.storage.CreatePost(r.Context(), post); err != nil {
		s.internal(w, "создания поста", err)
		return
	}
	s.events.publish(event{Type: eventPostCreated, PostID: post.ID})
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": encodePost(styleCamel, *post, storage.Stats{})})
}

func (s *Server) likePost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	user := identityFrom(r.Context())

	switch err := s.storage.LikePost(r.Context(), id, user.UserID); {
	case errors.Is(err, storage.ErrNotFound):
		s.fail(w, http.StatusNotFound, msgPostNotFound)
		return
	case errors.Is(err, storage.ErrExists):
		// без поля success, сообщение в error
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": s.msg(msgAlreadyLiked)})
		return
	case err != nil:
		s.internal(w, "сохранения лайка", err)
		return
	}
	s.events.publish(event{Type: eventPostUpdated, PostID: id})

	if s.anomaly() {
		log.Printf("Лайк %s сохранен, но отвечаем 500", id)
		s.fail(w, http.StatusInternalServerError, msgLikeAnomaly)
		return
	}
	st, err := s.storage.PostStats(r.Context(), id, user.UserID)
	if err != nil {
		s.internal(w, "подсчета статистики", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"likes": st.LikeCount, "liked": st.Liked}})
}

func (s *Server) unlikePost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	user := identityFrom(r.Context())

	switch err := s.storage.UnlikePost(r.Context(), id, user.UserID); {
	case errors.Is(err, storage.ErrNotFound):
		s.fail(w, http.StatusNotFound, msgPostNotFound)
		return
	case errors.Is(err, storage.ErrAbsent):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": s.msg(msgNotLiked)})
		return
	case err != nil:
		s.internal(w, "удаления лайка", err)
		return
	}
	s.events.publish(event{Type: eventPostUpdated, PostID: id})

	st, err := s.storage.PostStats(r.Context(), id, user.UserID)
	if err != nil {
		s.internal(w, "подсчета статистики", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"like_count": st.LikeCount, "is_liked": st.Liked}})
}

func (s *Server) savePost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch err := s.storage.SavePost(r.Context(), id, identityFrom(r.Context()).UserID); {
	case errors.Is(err, storage.ErrNotFound):
		s.fail(w, http.StatusNotFound, msgPostNotFound)
	case errors.Is(err, storage.ErrExists):
		s.fail(w, http.StatusConflict, msgAlreadySaved)
	case err != nil:
		s.internal(w, "сохранения закладки", err)
	default:
		// успех без данных: клиент оставляет оптимистичное значение
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (s *Server) unsavePost(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch err := s.storage.UnsavePost(r.Context(), id, identityFrom(r.Context()).UserID); {
	case errors.Is(err, storage.ErrNotFound):
		s.fail(w, http.StatusNotFound, msgPostNotFound)
	case errors.Is(err, storage.ErrAbsent):
		s.fail(w, http.StatusBadRequest, msgNotSaved)
	case err != nil:
		s.internal(w, "удаления закладки", err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("id")
	if _, err := s.storage.GetPost(r.Context(), postID); errors.Is(err, storage.ErrNotFound) {
		s.fail(w, http.StatusNotFound, msgPostNotFound)
		return
	} else if err != nil {
		s.internal(w, "получения поста", err)
		return
	}

	list, err := s.storage.ListComments(r.Context(), postID)
	if err != nil {
		s.internal(w, "получения комментариев", err)
		return
	}
	user := identityFrom(r.Context())
	nodes := make([]commentNode, 0, len(list))
	for _, c := range list {
		st, err := s.storage.CommentStats(r.Context(), c.ID, user.UserID)
		if err != nil {
			s.internal(w, "подсчета лайков комментария", err)
			return
		}
		nodes = append(nodes, commentNode{Comment: c, Stats: st})
	}

	out := make([]any, 0, len(nodes))
	for _, root := range buildTree(nodes) {
		out = append(out, encodeComment(root, 0))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("id")
	var req struct {
		Content  string  `json:"content"`
		ParentID *string `json:"parentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.fail(w, http.StatusBadRequest, msgContentRequired)
		return
	}
	if req.ParentID != nil && *req.ParentID == "" {
		req.ParentID = nil
	}

	user := identityFrom(r.Context())
	comment := &storage.Comment{
		ID:         uuid.NewString(),
		PostID:     postID,
		ParentID:   req.ParentID,
		AuthorID:   user.UserID,
		AuthorName: user.Username,
		Content:    strings.TrimSpace(req.Content),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.storage.CreateComment(r.Context(), comment); errors.Is(err, storage.ErrNotFound) {
		key := msgPostNotFound
		if req.ParentID != nil {
			key = msgCommentNotFound
		}
		s.fail(w, http.StatusNotFound, key)
		return
	} else if err != nil {
		s.internal(w, "создания комментария", err)
		return
	}
	s.events.publish(event{Type: eventCommentCreated, PostID: postID, CommentID: comment.ID})

	st, err := s.storage.PostStats(r.Context(), postID, user.UserID)
	if err != nil {
		s.internal(w, "подсчета статистики", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    map[string]any{"comment": encodeCreatedComment(*comment), "commentCount": st.CommentCount},
	})
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	user := identityFrom(r.Context())

	comment, err := s.storage.GetComment(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.fail(w, http.StatusNotFound, msgCommentNotFound)
		return
	}
	if err != nil {
		s.internal(w, "получения комментария", err)
		return
	}
	if comment.AuthorID != user.UserID {
		s.fail(w, http.StatusForbidden, msgNotYourComment)
		return
	}

	removed, err := s.storage.DeleteComment(r.Context(), id)
	if err != nil {
		s.internal(w, "удаления комментария", err)
		return
	}
	s.events.publish(event{Type: eventCommentDeleted, PostID: comment.PostID, CommentID: id})

	st, err := s.storage.PostStats(r.Context(), comment.PostID, user.UserID)
	if err != nil {
		s.internal(w, "подсчета статистики", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"commentCount": st.CommentCount, "removed": removed}})
}

// Лайки комментариев отвечают голым объектом, ошибки кладут текст в msg.
func (s *Server) likeComment(w http.ResponseWriter, r *http.Request) {
	s.commentLike(w, r, true)
}

func (s *Server) unlikeComment(w http.ResponseWriter, r *http.Request) {
	s.commentLike(w, r, false)
}

func (s *Server) commentLike(w http.ResponseWriter, r *http.Request, like bool) {
	id := r.PathValue("id")
	user := identityFrom(r.Context())

	var err error
	if like {
		err = s.storage.LikeComment(r.Context(), id, user.UserID)
	} else {
		err = s.storage.UnlikeComment(r.Context(), id, user.UserID)
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.fail(w, http.StatusNotFound, msgCommentNotFound)
		return
	case errors.Is(err, storage.ErrExists):
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "msg": s.msg(msgCommentAlreadyLiked)})
		return
	case errors.Is(err, storage.ErrAbsent):
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "msg": s.msg(msgCommentNotLiked)})
		return
	case err != nil:
		s.internal(w, "лайка комментария", err)
		return
	}

	st, err := s.storage.CommentStats(r.Context(), id, user.UserID)
	if err != nil {
		s.internal(w, "подсчета лайков комментария", err)
		return
	}
	if c, err := s.storage.GetComment(r.Context(), id); err == nil {
		s.events.publish(event{Type: eventPostUpdated, PostID: c.PostID, CommentID: id})
	}
	writeJSON(w, http.StatusOK, map[string]any{"likeCount": st.LikeCount, "isLiked": st.Liked})
}
