package store

import (
	"context"
	"errors"
	"sync"

	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("entity not found")

// Store - хранилище сущностей в памяти, из которого читают представления.
// Пишут в него только контроллер взаимодействий и загрузчик ленты.
// Чтение всегда возвращает копии последнего зафиксированного состояния.
type Store struct {
	mu       sync.RWMutex
	posts    map[models.ID]*models.Post
	order    []models.ID
	comments map[models.ID][]models.Comment

	subsMu sync.RWMutex
	subs   map[string]chan Event
}

func New() *Store {
	return &Store{
		posts:    make(map[models.ID]*models.Post),
		comments: make(map[models.ID][]models.Comment),
		subs:     make(map[string]chan Event),
	}
}

// === Posts ===

// ReplacePosts заменяет ленту целиком (полная перезагрузка).
// Комментарии исчезнувших постов удаляются.
func (s *Store) ReplacePosts(posts []models.Post) {
	s.mu.Lock()
	keep := make(map[models.ID]*models.Post, len(posts))
	order := make([]models.ID, 0, len(posts))
	for _, p := range posts {
		if _, dup := keep[p.ID]; dup {
			continue
		}
		cp := p.Clone()
		keep[p.ID] = &cp
		order = append(order, p.ID)
	}
	for id := range s.comments {
		if _, ok := keep[id]; !ok {
			delete(s.comments, id)
		}
	}
	s.posts = keep
	s.order = order
	s.mu.Unlock()

	s.publish(Event{Kind: FeedReplaced})
}

// AddPost добавляет новый пост в начало ленты. Если пост уже есть, он обновляется.
func (s *Store) AddPost(p models.Post) {
	s.mu.Lock()
	cp := p.Clone()
	_, exists := s.posts[p.ID]
	s.posts[p.ID] = &cp
	if !exists {
		s.order = append([]models.ID{p.ID}, s.order...)
	}
	s.mu.Unlock()

	if exists {
		s.publish(Event{Kind: PostUpdated, PostID: p.ID})
		return
	}
	s.publish(Event{Kind: PostCreated, PostID: p.ID})
}

func (s *Store) Post(id models.ID) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return models.Post{}, false
	}
	return p.Clone(), true
}

// Posts возвращает снимок ленты в порядке отображения.
func (s *Store) Posts() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Post, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.posts[id].Clone())
	}
	return out
}

func (s *Store) HasPost(id models.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.posts[id]
	return ok
}

// UpdatePost атомарно изменяет пост функцией fn. Возвращает новое значение.
func (s *Store) UpdatePost(id models.ID, fn func(*models.Post)) (models.Post, error) {
	s.mu.Lock()
	p, ok := s.posts[id]
	if !ok {
		s.mu.Unlock()
		return models.Post{}, ErrNotFound
	}
	fn(p)
	out := p.Clone()
	s.mu.Unlock()

	s.publish(Event{Kind: PostUpdated, PostID: id})
	return out, nil
}

// RemovePost удаляет пост вместе с его комментариями.
func (s *Store) RemovePost(id models.ID) bool {
	s.mu.Lock()
	if _, ok := s.posts[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.posts, id)
	delete(s.comments, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.publish(Event{Kind: PostRemoved, PostID: id})
	return true
}

// === Comments ===

// SetComments заменяет дерево комментариев поста.
func (s *Store) SetComments(postID models.ID, list []models.Comment) {
	s.mu.Lock()
	s.comments[postID] = models.CloneComments(list)
	s.mu.Unlock()

	s.publish(Event{Kind: CommentsChanged, PostID: postID})
}

// Comments возвращает снимок дерева комментариев поста.
func (s *Store) Comments(postID models.ID) []models.Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.CloneComments(s.comments[postID])
}

// Comment ищет комментарий поста на любой глубине.
func (s *Store) Comment(postID, id models.ID) (models.Comment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := find(s.comments[postID], id)
	if c == nil {
		return models.Comment{}, false
	}
	return c.Clone(), true
}

// Position - место комментария в дереве, нужно для восстановления при откате.
type Position struct {
	ParentID *models.ID
	Index    int
}

// AppendComment добавляет комментарий в конец списка родителя
// (или верхнего уровня, если parentID == nil).
func (s *Store) AppendComment(postID models.ID, parentID *models.ID, c models.Comment) error {
	s.mu.Lock()
	list := s.comments[postID]
	if parentID == nil {
		s.comments[postID] = append(list, c.Clone())
	} else {
		parent := find(list, *parentID)
		if parent == nil {
			s.mu.Unlock()
			return ErrNotFound
		}
		parent.Replies = append(parent.Replies, c.Clone())
	}
	s.mu.Unlock()

	s.publish(Event{Kind: CommentsChanged, PostID: postID, CommentID: c.ID})
	return nil
}

// InsertComment вставляет комментарий на заданную позицию.
func (s *Store) InsertComment(postID models.ID, pos Position, c models.Comment) error {
	s.mu.Lock()
	if pos.ParentID == nil {
		s.comments[postID] = insertAt(s.comments[postID], pos.Index, c.Clone())
	} else {
		parent := find(s.comments[postID], *pos.ParentID)
		if parent == nil {
			s.mu.Unlock()
			return ErrNotFound
		}
		parent.Replies = insertAt(parent.Replies, pos.Index, c.Clone())
	}
	s.mu.Unlock()

	s.publish(Event{Kind: CommentsChanged, PostID: postID, CommentID: c.ID})
	return nil
}

func insertAt(list []models.Comment, idx int, c models.Comment) []models.Comment {
	if idx < 0 || idx > len(list) {
		idx = len(list)
	}
	out := make([]models.Comment, 0, len(list)+1)
	out = append(out, list[:idx]...)
	out = append(out, c)
	return append(out, list[idx:]...)
}

// ReplaceComment заменяет комментарий id на c, сохраняя его место в дереве.
func (s *Store) ReplaceComment(postID, id models.ID, c models.Comment) error {
	s.mu.Lock()
	target := find(s.comments[postID], id)
	if target == nil {
		s.mu.Unlock()
		return ErrNotFound
	}
	*target = c.Clone()
	s.mu.Unlock()

	s.publish(Event{Kind: CommentsChanged, PostID: postID, CommentID: c.ID})
	return nil
}

// UpdateComment атомарно изменяет комментарий функцией fn.
func (s *Store) UpdateComment(postID, id models.ID, fn func(*models.Comment)) (models.Comment, error) {
	s.mu.Lock()
	target := find(s.comments[postID], id)
	if target == nil {
		s.mu.Unlock()
		return models.Comment{}, ErrNotFound
	}
	fn(target)
	out := target.Clone()
	s.mu.Unlock()

	s.publish(Event{Kind: CommentsChanged, PostID: postID, CommentID: id})
	return out, nil
}

// RemoveComment удаляет комментарий вместе с поддеревом ответов и
// возвращает удаленный узел и его позицию.
func (s *Store) RemoveComment(postID, id models.ID) (models.Comment, Position, error) {
	s.mu.Lock()
	list := s.comments[postID]
	removed, pos, ok := remove(&list, nil, id)
	if ok {
		s.comments[postID] = list
	}
	s.mu.Unlock()

	if !ok {
		return models.Comment{}, Position{}, ErrNotFound
	}
	s.publish(Event{Kind: CommentsChanged, PostID: postID, CommentID: id})
	return removed, pos, nil
}

// FindCommentPost возвращает пост, которому принадлежит комментарий.
func (s *Store) FindCommentPost(id models.ID) (models.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for postID, list := range s.comments {
		if find(list, id) != nil {
			return postID, true
		}
	}
	return "", false
}

func find(list []models.Comment, id models.ID) *models.Comment {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
		if c := find(list[i].Replies, id); c != nil {
			return c
		}
	}
	return nil
}

func remove(list *[]models.Comment, parentID *models.ID, id models.ID) (models.Comment, Position, bool) {
	for i := range *list {
		c := &(*list)[i]
		if c.ID == id {
			removed := c.Clone()
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			return removed, Position{ParentID: parentID, Index: i}, true
		}
		self := c.ID
		if removed, pos, ok := remove(&c.Replies, &self, id); ok {
			return removed, pos, true
		}
	}
	return models.Comment{}, Position{}, false
}

// === Events ===

// Subscribe возвращает канал событий хранилища. Подписка снимается,
// когда ctx завершается. Медленный читатель пропускает события.
func (s *Store) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, 16)
	id := uuid.NewString()

	s.subsMu.Lock()
	s.subs[id] = ch
	s.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subsMu.Lock()
		delete(s.subs, id)
		close(ch)
		s.subsMu.Unlock()
	}()

	return ch
}

func (s *Store) publish(e Event) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
