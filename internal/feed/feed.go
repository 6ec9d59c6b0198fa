package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ButyrinIA/feedsync/internal/interaction"
	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/ButyrinIA/feedsync/internal/normalize"
	"github.com/ButyrinIA/feedsync/internal/notify"
	"github.com/ButyrinIA/feedsync/internal/schedule"
	"github.com/ButyrinIA/feedsync/internal/store"
	"github.com/graph-gophers/dataloader/v7"
)

var ErrUnexpectedPayload = errors.New("unexpected payload")

type Options struct {
	Session    interaction.SessionGuard
	Notifier   notify.Sink
	Author     models.UserRef
	Normalizer *normalize.Normalizer
	// Limit - размер страницы ленты, 0 - как решит сервер.
	Limit int
}

// View - представление ленты: хранилище, контроллер взаимодействий и
// фоновая работа, которая живет ровно столько, сколько само представление.
type View struct {
	st        *store.Store
	ctrl      *interaction.Controller
	transport interaction.Transport
	norm      *normalize.Normalizer
	scope     *schedule.Scope
	limit     int
	comments  *dataloader.Loader[models.ID, []any]

	mu     sync.Mutex
	loaded map[models.ID]bool
}

func New(ctx context.Context, tr interaction.Transport, opts Options) *View {
	norm := opts.Normalizer
	if norm == nil {
		norm = normalize.New(normalize.Options{})
	}
	st := store.New()
	v := &View{
		st: st,
		ctrl: interaction.New(st, tr, interaction.Options{
			Session:    opts.Session,
			Notifier:   opts.Notifier,
			Author:     opts.Author,
			Normalizer: norm,
		}),
		transport: tr,
		norm:      norm,
		scope:     schedule.New(ctx),
		limit:     opts.Limit,
		loaded:    make(map[models.ID]bool),
	}
	v.comments = v.newCommentsLoader()
	return v
}

func (v *View) Store() *store.Store                  { return v.st }
func (v *View) Controller() *interaction.Controller { return v.ctrl }

func (v *View) Posts() []models.Post { return v.st.Posts() }

func (v *View) Comments(postID models.ID) []models.Comment { return v.st.Comments(postID) }

// Load загружает ленту целиком. Поля постов с запросом в пути сохраняют
// локальное состояние, об этом заботится контроллер.
func (v *View) Load(ctx context.Context) error {
	path := "/posts"
	if v.limit > 0 {
		path = fmt.Sprintf("/posts?limit=%d", v.limit)
	}
	env, err := v.fetch(ctx, path)
	if err != nil {
		return err
	}

	raw, ok := listOf(env.Data, "posts", "items")
	if !ok {
		return fmt.Errorf("load feed: %w", ErrUnexpectedPayload)
	}
	posts := make([]models.Post, 0, len(raw))
	for _, item := range raw {
		p := v.norm.Post(item)
		if p.ID == "" {
			log.Printf("Пост без id пропущен")
			continue
		}
		posts = append(posts, p)
	}
	v.ctrl.ReplacePosts(posts)

	v.mu.Lock()
	for id := range v.loaded {
		if !v.st.HasPost(id) {
			delete(v.loaded, id)
		}
	}
	v.mu.Unlock()
	return nil
}

// LoadPost перечитывает один пост и добавляет или обновляет его в ленте.
func (v *View) LoadPost(ctx context.Context, id models.ID) error {
	env, err := v.fetch(ctx, "/posts/"+id.String())
	if err != nil {
		return err
	}
	raw := env.Data
	if rec, ok := raw.(map[string]any); ok {
		if inner, ok := rec["post"]; ok {
			raw = inner
		}
	}
	p := v.norm.Post(raw)
	if p.ID == "" {
		return fmt.Errorf("load post %s: %w", id, ErrUnexpectedPayload)
	}
	v.ctrl.UpsertPost(p)
	return nil
}

// LoadComments загружает дерево комментариев поста.
func (v *View) LoadComments(ctx context.Context, postID models.ID) error {
	if v.ctrl.State(postID, interaction.FamilyComment) == interaction.Pending {
		// временная запись пропала бы из дерева
		return nil
	}
	raw, err := v.comments.Load(ctx, postID)()
	if err != nil {
		return err
	}
	if !v.ctrl.ReplaceComments(postID, v.norm.Comments(raw, postID)) {
		return nil
	}

	v.mu.Lock()
	v.loaded[postID] = true
	v.mu.Unlock()
	return nil
}

// Ingest добавляет созданную сервером запись поста в начало ленты.
func (v *View) Ingest(raw any) (models.Post, error) {
	p := v.norm.Post(raw)
	if p.ID == "" {
		return models.Post{}, fmt.Errorf("ingest: %w", ErrUnexpectedPayload)
	}
	v.ctrl.UpsertPost(p)
	return p, nil
}

// CreatePost публикует пост и добавляет ответ сервера в ленту.
func (v *View) CreatePost(ctx context.Context, content string, media []string) (models.Post, error) {
	env, err := v.transport.Do(ctx, models.Request{
		Method: http.MethodPost,
		Path:   "/posts",
		Body:   map[string]any{"content": content, "media": media},
	})
	if err != nil {
		return models.Post{}, err
	}
	if !env.Success {
		return models.Post{}, fmt.Errorf("create post: %d %s", env.Status, env.Message)
	}
	return v.Ingest(env.Data)
}

func (v *View) Like(ctx context.Context, postID models.ID) (interaction.Result, error) {
	return v.ctrl.Apply(ctx, interaction.Input{Action: interaction.Like, EntityID: postID})
}

func (v *View) Unlike(ctx context.Context, postID models.ID) (interaction.Result, error) {
	return v.ctrl.Apply(ctx, interaction.Input{Action: interaction.Unlike, EntityID: postID})
}

// ToggleLike выбирает like или unlike по текущему состоянию поста.
func (v *View) ToggleLike(ctx context.Context, postID models.ID) (interaction.Result, error) {
	p, ok := v.st.Post(postID)
	if !ok {
		return interaction.Result{}, store.ErrNotFound
	}
	if p.IsLiked {
		return v.Unlike(ctx, postID)
	}
	return v.Like(ctx, postID)
}

func (v *View) Save(ctx context.Context, postID models.ID) (interaction.Result, error) {
	return v.ctrl.Apply(ctx, interaction.Input{Action: interaction.Save, EntityID: postID})
}

func (v *View) Unsave(ctx context.Context, postID models.ID) (interaction.Result, error) {
	return v.ctrl.Apply(ctx, interaction.Input{Action: interaction.Unsave, EntityID: postID})
}

func (v *View) Comment(ctx context.Context, postID models.ID, content string, parentID *models.ID) (interaction.Result, error) {
	return v.ctrl.Apply(ctx, interaction.Input{
		Action:   interaction.AddComment,
		EntityID: postID,
		Content:  content,
		ParentID: parentID,
	})
}

func (v *View) DeleteComment(ctx context.Context, commentID models.ID) (interaction.Result, error) {
	return v.ctrl.Apply(ctx, interaction.Input{Action: interaction.DeleteComment, EntityID: commentID})
}

func (v *View) LikeComment(ctx context.Context, commentID models.ID) (interaction.Result, error) {
	return v.ctrl.Apply(ctx, interaction.Input{Action: interaction.LikeComment, EntityID: commentID})
}

func (v *View) UnlikeComment(ctx context.Context, commentID models.ID) (interaction.Result, error) {
	return v.ctrl.Apply(ctx, interaction.Input{Action: interaction.UnlikeComment, EntityID: commentID})
}

// StartPolling периодически перезагружает ленту и открытые комментарии.
func (v *View) StartPolling(interval time.Duration) {
	v.scope.Every("refresh", interval, func(ctx context.Context) {
		if err := v.Load(ctx); err != nil {
			if ctx.Err() == nil {
				log.Printf("Ошибка обновления ленты: %v", err)
			}
			return
		}
		for _, id := range v.openPosts() {
			if err := v.LoadComments(ctx, id); err != nil && ctx.Err() == nil {
				log.Printf("Ошибка обновления комментариев %s: %v", id, err)
			}
		}
	})
}

// RefetchAfter перезагружает ленту через delay, если представление еще открыто.
func (v *View) RefetchAfter(delay time.Duration) {
	v.scope.After(delay, func(ctx context.Context) {
		if err := v.Load(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Ошибка отложенной загрузки ленты: %v", err)
		}
	})
}

// Close отменяет фоновую работу и ждет запросы, которые уже в пути.
func (v *View) Close() {
	v.scope.Close()
	v.ctrl.Wait()
}

func (v *View) fetch(ctx context.Context, path string) (models.Envelope, error) {
	env, err := v.transport.Do(ctx, models.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return models.Envelope{}, err
	}
	if !env.Success {
		return models.Envelope{}, fmt.Errorf("GET %s: %d %s", path, env.Status, env.Message)
	}
	return env, nil
}

func (v *View) openPosts() []models.ID {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.ID, 0, len(v.loaded))
	for id := range v.loaded {
		out = append(out, id)
	}
	return out
}

// listOf достает список из голого массива или из объекта-обертки.
func listOf(data any, keys ...string) ([]any, bool) {
	switch d := data.(type) {
	case []any:
		return d, true
	case map[string]any:
		for _, k := range keys {
			if list, ok := d[k].([]any); ok {
				return list, true
			}
		}
	case nil:
		return []any{}, true
	}
	return nil, false
}
