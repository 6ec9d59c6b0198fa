package interaction

import (
	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/ButyrinIA/feedsync/internal/reconcile"
	"github.com/ButyrinIA/feedsync/internal/store"
)

// target - сущность хранилища, над которой выполняется переключатель.
type target interface {
	read() (counters, bool)
	update(fn func(*counters)) error
	merge(p reconcile.Patch, scope reconcile.Fields, mutatedAfter bool) error
}

type postTarget struct {
	st *store.Store
	id models.ID
}

func (t postTarget) read() (counters, bool) {
	p, ok := t.st.Post(t.id)
	return postCounters(p), ok
}

func (t postTarget) update(fn func(*counters)) error {
	_, err := t.st.UpdatePost(t.id, func(p *models.Post) {
		c := postCounters(*p)
		fn(&c)
		c.toPost(p)
	})
	return err
}

func (t postTarget) merge(patch reconcile.Patch, scope reconcile.Fields, mutatedAfter bool) error {
	_, err := t.st.UpdatePost(t.id, func(p *models.Post) {
		*p = reconcile.MergePost(*p, patch, scope, mutatedAfter)
	})
	return err
}

type commentTarget struct {
	st     *store.Store
	postID models.ID
	id     models.ID
}

func (t commentTarget) read() (counters, bool) {
	c, ok := t.st.Comment(t.postID, t.id)
	return commentCounters(c), ok
}

func (t commentTarget) update(fn func(*counters)) error {
	_, err := t.st.UpdateComment(t.postID, t.id, func(cm *models.Comment) {
		c := commentCounters(*cm)
		fn(&c)
		c.toComment(cm)
	})
	return err
}

func (t commentTarget) merge(patch reconcile.Patch, scope reconcile.Fields, mutatedAfter bool) error {
	_, err := t.st.UpdateComment(t.postID, t.id, func(cm *models.Comment) {
		*cm = reconcile.MergeComment(*cm, patch, scope, mutatedAfter)
	})
	return err
}
