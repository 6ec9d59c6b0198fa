package interaction

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/ButyrinIA/feedsync/internal/normalize"
	"github.com/ButyrinIA/feedsync/internal/reconcile"
	"github.com/ButyrinIA/feedsync/internal/store"
	"github.com/google/uuid"
)

// addComment сразу показывает временный комментарий и увеличивает счетчик.
// После ответа временная запись заменяется серверной на том же месте.
func (c *Controller) addComment(ctx context.Context, in Input) (Result, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return Result{}, ErrEmptyContent
	}
	postID := in.EntityID
	k := slotKey{postID, FamilyComment}

	c.mu.Lock()
	if !c.st.HasPost(postID) {
		c.mu.Unlock()
		return Result{}, store.ErrNotFound
	}
	if _, busy := c.slots[k]; busy {
		c.mu.Unlock()
		return c.ignored(postID, ""), nil
	}

	tmp := models.Comment{
		ID:        models.ID(tempPrefix + uuid.NewString()),
		PostID:    postID,
		ParentID:  in.ParentID,
		Author:    c.author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.st.AppendComment(postID, in.ParentID, tmp); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	if _, err := c.st.UpdatePost(postID, func(p *models.Post) { *p = Optimistic(*p, AddComment, 0) }); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	c.countGen[postID]++
	sl := &slot{post: postID, intent: AddComment, pending: newTicket()}
	c.slots[k] = sl
	c.wg.Add(1)
	go c.runAddComment(context.WithoutCancel(ctx), k, sl, tmp, c.countGen[postID])
	c.mu.Unlock()

	return c.result(postID, tmp.ID, sl.pending), nil
}

func (c *Controller) runAddComment(ctx context.Context, k slotKey, sl *slot, tmp models.Comment, gen uint64) {
	defer c.wg.Done()

	postID := tmp.PostID
	body := map[string]any{"content": tmp.Content}
	if tmp.ParentID != nil {
		body["parentId"] = tmp.ParentID.String()
	}
	res := c.send(ctx, models.Request{Method: http.MethodPost, Path: "/posts/" + postID.String() + "/comments", Body: body})

	c.mu.Lock()
	out := Outcome{State: Committed, Success: res.ok, Verdict: res.verdict}
	notice := ""
	var err error

	switch {
	case res.ok:
		created := c.createdComment(res.env.Data, tmp)
		err = c.st.ReplaceComment(postID, tmp.ID, created)
		if err == nil {
			err = postTarget{st: c.st, id: postID}.merge(reconcile.PatchFrom(res.env.Data), reconcile.CommentCount, c.countStale(k, postID, gen))
		}
	case res.verdict.Class.Keeps():
		log.Printf("Комментарий к %s: %s, временная запись сохранена", postID, res.verdict.Class)
		if _, ok := c.st.Comment(postID, tmp.ID); !ok {
			err = store.ErrNotFound
		}
	default:
		out.State = RolledBack
		if _, _, err = c.st.RemoveComment(postID, tmp.ID); err == nil {
			_, err = c.st.UpdatePost(postID, func(p *models.Post) { *p = Optimistic(*p, DeleteComment, 1) })
		}
		notice = res.message()
	}
	delete(c.slots, k)
	c.mu.Unlock()

	if errors.Is(err, store.ErrNotFound) {
		log.Printf("Результат %s для %s отброшен: сущность удалена", AddComment, postID)
		out.Discarded = true
		sl.pending.finish(out)
		return
	}
	if notice != "" {
		out.Message = notice
		c.notify(postID, AddComment, notice)
	}
	sl.pending.finish(out)
}

// createdComment нормализует запись, которую вернул сервер. Если id нет,
// остается временная запись.
func (c *Controller) createdComment(data any, tmp models.Comment) models.Comment {
	rec := normalize.Record(data)
	for _, key := range []string{"comment", "Comment", "data"} {
		if nested, ok := rec[key].(map[string]any); ok {
			rec = nested
			break
		}
	}
	cm := c.norm.Comment(rec)
	if cm.ID == "" {
		return tmp
	}
	cm.PostID = tmp.PostID
	if cm.ParentID == nil {
		cm.ParentID = tmp.ParentID
	}
	if cm.Author.ID == "" && cm.Author.Username == normalize.DefaultUsername {
		cm.Author = c.author
	}
	if cm.Content == "" {
		cm.Content = tmp.Content
	}
	if cm.CreatedAt.IsZero() {
		cm.CreatedAt = tmp.CreatedAt
	}
	return cm
}

// deleteComment убирает комментарий вместе с ответами и уменьшает счетчик
// на число удаленных узлов. При откате поддерево возвращается на прежнее место.
func (c *Controller) deleteComment(ctx context.Context, in Input) (Result, error) {
	id := in.EntityID
	postID, err := c.commentPost(in)
	if err != nil {
		return Result{}, err
	}
	if isTemp(id) {
		return c.ignored(postID, id), nil
	}
	k := slotKey{id, FamilyDelete}

	c.mu.Lock()
	if _, busy := c.slots[k]; busy {
		c.mu.Unlock()
		return c.ignored(postID, ""), nil
	}
	removed, pos, err := c.st.RemoveComment(postID, id)
	if err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	n := models.CountComments([]models.Comment{removed})
	if _, err := c.st.UpdatePost(postID, func(p *models.Post) { *p = Optimistic(*p, DeleteComment, n) }); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	c.countGen[postID]++
	sl := &slot{post: postID, intent: DeleteComment, pending: newTicket()}
	c.slots[k] = sl
	c.wg.Add(1)
	go c.runDeleteComment(context.WithoutCancel(ctx), k, sl, removed, pos, n, c.countGen[postID])
	c.mu.Unlock()

	return c.result(postID, "", sl.pending), nil
}

func (c *Controller) runDeleteComment(ctx context.Context, k slotKey, sl *slot, removed models.Comment, pos store.Position, n int, gen uint64) {
	defer c.wg.Done()

	postID := sl.post
	res := c.send(ctx, models.Request{Method: http.MethodDelete, Path: "/comments/" + removed.ID.String()})

	c.mu.Lock()
	out := Outcome{State: Committed, Success: res.ok, Verdict: res.verdict}
	notice := ""
	var err error

	switch {
	case res.ok:
		err = postTarget{st: c.st, id: postID}.merge(reconcile.PatchFrom(res.env.Data), reconcile.CommentCount, c.countStale(k, postID, gen))
	case res.verdict.Class.Keeps():
		log.Printf("Удаление %s: %s, комментарий считается удаленным", removed.ID, res.verdict.Class)
		err = exists(postTarget{st: c.st, id: postID})
	default:
		out.State = RolledBack
		if err = exists(postTarget{st: c.st, id: postID}); err != nil {
			break
		}
		if ierr := c.st.InsertComment(postID, pos, removed); ierr != nil {
			// родитель исчез, пока запрос был в пути
			log.Printf("Не удалось вернуть комментарий %s на место: %v", removed.ID, ierr)
			if aerr := c.st.AppendComment(postID, nil, removed); aerr != nil {
				// счетчик должен совпадать с деревом
				log.Printf("Комментарий %s не восстановлен: %v", removed.ID, aerr)
				notice = res.message()
				break
			}
		}
		_, err = c.st.UpdatePost(postID, func(p *models.Post) { p.CommentCount += n })
		notice = res.message()
	}
	delete(c.slots, k)
	c.mu.Unlock()

	if errors.Is(err, store.ErrNotFound) {
		log.Printf("Результат %s для %s отброшен: сущность удалена", DeleteComment, removed.ID)
		out.Discarded = true
		sl.pending.finish(out)
		return
	}
	if notice != "" {
		out.Message = notice
		c.notify(removed.ID, DeleteComment, notice)
	}
	sl.pending.finish(out)
}

// countStale - значение commentCount из ответа устарело: после отправки
// счетчик менялся локально или по посту в пути другой запрос, который тоже
// его меняет. Тогда остается локальный подсчет.
func (c *Controller) countStale(k slotKey, postID models.ID, gen uint64) bool {
	return c.countGen[postID] != gen || c.countBusy(postID, k)
}
