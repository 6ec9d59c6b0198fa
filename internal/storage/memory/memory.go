package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ButyrinIA/feedsync/internal/storage"
)

type pair struct {
	entity string
	user   string
}

type MemoryStorage struct {
	posts        map[string]*storage.Post
	comments     map[string]*storage.Comment
	postLikes    map[pair]struct{}
	saves        map[pair]struct{}
	commentLikes map[pair]struct{}
	mu           sync.RWMutex
}

func New() *MemoryStorage {
	return &MemoryStorage{
		posts:        make(map[string]*storage.Post),
		comments:     make(map[string]*storage.Comment),
		postLikes:    make(map[pair]struct{}),
		saves:        make(map[pair]struct{}),
		commentLikes: make(map[pair]struct{}),
	}
}

func (s *MemoryStorage) CreatePost(ctx context.Context, post *storage.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *post
	cp.Media = append([]string(nil), post.Media...)
	s.posts[post.ID] = &cp
	return nil
}

func (s *MemoryStorage) GetPost(ctx context.Context, id string) (*storage.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, exists := s.posts[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	cp := *post
	return &cp, nil
}

// ListPosts возвращает посты от новых к старым.
func (s *MemoryStorage) ListPosts(ctx context.Context, limit int) ([]storage.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	posts := make([]storage.Post, 0, len(s.posts))
	for _, post := range s.posts {
		posts = append(posts, *post)
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})

	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

func (s *MemoryStorage) PostStats(ctx context.Context, postID, userID string) (storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.posts[postID]; !ok {
		return storage.Stats{}, storage.ErrNotFound
	}
	var st storage.Stats
	for p := range s.postLikes {
		if p.entity == postID {
			st.LikeCount++
		}
	}
	for _, c := range s.comments {
		if c.PostID == postID {
			st.CommentCount++
		}
	}
	_, st.Liked = s.postLikes[pair{postID, userID}]
	_, st.Saved = s.saves[pair{postID, userID}]
	return st, nil
}

func (s *MemoryStorage) LikePost(ctx context.Context, postID, userID string) error {
	return s.add(s.postLikes, s.hasPost, postID, userID)
}

func (s *MemoryStorage) UnlikePost(ctx context.Context, postID, userID string) error {
	return s.del(s.postLikes, s.hasPost, postID, userID)
}

func (s *MemoryStorage) SavePost(ctx context.Context, postID, userID string) error {
	return s.add(s.saves, s.hasPost, postID, userID)
}

func (s *MemoryStorage) UnsavePost(ctx context.Context, postID, userID string) error {
	return s.del(s.saves, s.hasPost, postID, userID)
}

func (s *MemoryStorage) CreateComment(ctx context.Context, comment *storage.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[comment.PostID]; !ok {
		return storage.ErrNotFound
	}
	if comment.ParentID != nil {
		if parent, ok := s.comments[*comment.ParentID]; !ok || parent.PostID != comment.PostID {
			return storage.ErrNotFound
		}
	}
	cp := *comment
	s.comments[comment.ID] = &cp
	return nil
}

func (s *MemoryStorage) GetComment(ctx context.Context, id string) (*storage.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStorage) ListComments(ctx context.Context, postID string) ([]storage.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []storage.Comment
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStorage) DeleteComment(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return 0, storage.ErrNotFound
	}

	// собираем поддерево обходом в ширину
	doomed := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for cid, c := range s.comments {
			if c.ParentID != nil && *c.ParentID == cur && !doomed[cid] {
				doomed[cid] = true
				queue = append(queue, cid)
			}
		}
	}
	for cid := range doomed {
		delete(s.comments, cid)
	}
	for p := range s.commentLikes {
		if doomed[p.entity] {
			delete(s.commentLikes, p)
		}
	}
	return len(doomed), nil
}

func (s *MemoryStorage) CommentStats(ctx context.Context, commentID, userID string) (storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.comments[commentID]; !ok {
		return storage.Stats{}, storage.ErrNotFound
	}
	var st storage.Stats
	for p := range s.commentLikes {
		if p.entity == commentID {
			st.LikeCount++
		}
	}
	_, st.Liked = s.commentLikes[pair{commentID, userID}]
	return st, nil
}

func (s *MemoryStorage) LikeComment(ctx context.Context, commentID, userID string) error {
	return s.add(s.commentLikes, s.hasComment, commentID, userID)
}

func (s *MemoryStorage) UnlikeComment(ctx context.Context, commentID, userID string) error {
	return s.del(s.commentLikes, s.hasComment, commentID, userID)
}

func (s *MemoryStorage) Close() error {
	return nil
}

func (s *MemoryStorage) add(set map[pair]struct{}, exists func(string) bool, entity, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !exists(entity) {
		return storage.ErrNotFound
	}
	key := pair{entity, user}
	if _, ok := set[key]; ok {
		return storage.ErrExists
	}
	set[key] = struct{}{}
	return nil
}

func (s *MemoryStorage) del(set map[pair]struct{}, exists func(string) bool, entity, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !exists(entity) {
		return storage.ErrNotFound
	}
	key := pair{entity, user}
	if _, ok := set[key]; !ok {
		return storage.ErrAbsent
	}
	delete(set, key)
	return nil
}

// hasPost и hasComment вызываются под s.mu.
func (s *MemoryStorage) hasPost(id string) bool {
	_, ok := s.posts[id]
	return ok
}

func (s *MemoryStorage) hasComment(id string) bool {
	_, ok := s.comments[id]
	return ok
}
