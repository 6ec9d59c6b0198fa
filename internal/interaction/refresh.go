package interaction

import (
	"github.com/ButyrinIA/feedsync/internal/models"
)

// ReplacePosts записывает ленту, загруженную с сервера. Поля, по которым еще
// идут запросы, сохраняют локальные значения: ответ по ним еще не пришел.
// Запись идет под тем же замком, что и Apply.
func (c *Controller) ReplacePosts(posts []models.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range posts {
		posts[i] = c.keepPost(posts[i])
	}
	c.st.ReplacePosts(posts)
}

// UpsertPost - то же для одного перечитанного поста.
func (c *Controller) UpsertPost(p models.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.st.AddPost(c.keepPost(p))
}

// ReplaceComments записывает дерево комментариев поста. Лайки комментариев в
// пути сохраняются, комментарии с удалением в пути в дерево не попадают.
// Пока идет добавление, дерево не трогается и возвращается false:
// временная запись пропала бы.
func (c *Controller) ReplaceComments(postID models.ID, list []models.Comment) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy(postID, FamilyComment) {
		return false
	}
	c.st.SetComments(postID, c.keepComments(postID, list))
	return true
}

func (c *Controller) keepPost(p models.Post) models.Post {
	cur, ok := c.st.Post(p.ID)
	if !ok {
		return p
	}
	if c.busy(p.ID, FamilyLike) {
		p.IsLiked, p.LikeCount = cur.IsLiked, cur.LikeCount
	}
	if c.busy(p.ID, FamilySave) {
		p.IsSaved = cur.IsSaved
	}
	if c.countBusy(p.ID, slotKey{}) {
		p.CommentCount = cur.CommentCount
	}
	return p
}

func (c *Controller) keepComments(postID models.ID, list []models.Comment) []models.Comment {
	out := make([]models.Comment, 0, len(list))
	for _, cm := range list {
		if c.busy(cm.ID, FamilyDelete) {
			continue
		}
		if c.busy(cm.ID, FamilyCommentLike) {
			if cur, ok := c.st.Comment(postID, cm.ID); ok {
				cm.IsLiked, cm.LikeCount = cur.IsLiked, cur.LikeCount
			}
		}
		cm.Replies = c.keepComments(postID, cm.Replies)
		out = append(out, cm)
	}
	return out
}

func (c *Controller) busy(entity models.ID, family Family) bool {
	_, ok := c.slots[slotKey{entity, family}]
	return ok
}

// countBusy - по посту в пути добавление или удаление комментария,
// не считая слота except.
func (c *Controller) countBusy(postID models.ID, except slotKey) bool {
	for k, sl := range c.slots {
		if k != except && sl.post == postID && (k.family == FamilyComment || k.family == FamilyDelete) {
			return true
		}
	}
	return false
}
