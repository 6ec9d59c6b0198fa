package interaction

import "github.com/ButyrinIA/feedsync/internal/models"

// counters - изменяемые взаимодействиями поля поста или комментария.
type counters struct {
	IsLiked      bool
	LikeCount    int
	IsSaved      bool
	CommentCount int
}

func postCounters(p models.Post) counters {
	return counters{IsLiked: p.IsLiked, LikeCount: p.LikeCount, IsSaved: p.IsSaved, CommentCount: p.CommentCount}
}

func (c counters) toPost(p *models.Post) {
	p.IsLiked, p.LikeCount, p.IsSaved, p.CommentCount = c.IsLiked, c.LikeCount, c.IsSaved, c.CommentCount
}

func commentCounters(c models.Comment) counters {
	return counters{IsLiked: c.IsLiked, LikeCount: c.LikeCount}
}

func (c counters) toComment(dst *models.Comment) {
	dst.IsLiked, dst.LikeCount = c.IsLiked, c.LikeCount
}

func applyToggle(c *counters, a Action) {
	switch a {
	case Like, LikeComment:
		if !c.IsLiked {
			c.IsLiked = true
			c.LikeCount++
		}
	case Unlike, UnlikeComment:
		if c.IsLiked {
			c.IsLiked = false
			c.LikeCount = max(c.LikeCount-1, 0)
		}
	case Save:
		c.IsSaved = true
	case Unsave:
		c.IsSaved = false
	}
}

// Optimistic возвращает пост после оптимистичного применения действия.
// Для addComment счетчик комментариев растет на единицу, для deleteComment
// уменьшается на removed (весь удаляемый узел с ответами), но не ниже нуля.
func Optimistic(p models.Post, a Action, removed int) models.Post {
	c := postCounters(p)
	switch a {
	case AddComment:
		c.CommentCount++
	case DeleteComment:
		c.CommentCount = max(c.CommentCount-removed, 0)
	default:
		applyToggle(&c, a)
	}
	c.toPost(&p)
	return p
}

// OptimisticComment - то же для лайков комментария.
func OptimisticComment(cm models.Comment, a Action) models.Comment {
	c := commentCounters(cm)
	applyToggle(&c, a)
	c.toComment(&cm)
	return cm
}
