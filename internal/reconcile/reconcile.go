package reconcile

import (
	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/ButyrinIA/feedsync/internal/normalize"
)

// Fields - набор полей, затронутых оптимистичным изменением.
type Fields uint8

const (
	IsLiked Fields = 1 << iota
	LikeCount
	IsSaved
	CommentCount
)

// Like - поля семейства like/unlike.
const Like = IsLiked | LikeCount

func (f Fields) Has(field Fields) bool { return f&field != 0 }

// Patch - авторитетные значения, присланные сервером. nil - значения нет.
type Patch struct {
	IsLiked      *bool
	LikeCount    *int
	IsSaved      *bool
	CommentCount *int
}

func (p Patch) Empty() bool {
	return p.IsLiked == nil && p.LikeCount == nil && p.IsSaved == nil && p.CommentCount == nil
}

// вложенные объекты, в которых сервер иногда прячет актуальную запись
var nestedKeys = []string{"post", "Post", "comment", "Comment", "data", "Data", "result"}

// PatchFrom достает счетчики и флаги из данных успешного ответа.
// Псевдонимы (likeCount, likes, like_count...) сводятся к одному значению
// по порядку приоритета из таблиц нормализатора.
func PatchFrom(data any) Patch {
	rec := normalize.Record(data)
	p := patchOf(rec)
	if !p.Empty() {
		return p
	}
	for _, k := range nestedKeys {
		if nested, ok := rec[k].(map[string]any); ok {
			if p := patchOf(nested); !p.Empty() {
				return p
			}
		}
	}
	return Patch{}
}

func patchOf(rec map[string]any) Patch {
	var p Patch
	if v, ok := normalize.Bool(rec, normalize.IsLikedKeys()); ok {
		p.IsLiked = &v
	}
	if v, ok := normalize.Int(rec, normalize.LikeCountKeys()); ok {
		p.LikeCount = &v
	}
	if v, ok := normalize.Bool(rec, normalize.IsSavedKeys()); ok {
		p.IsSaved = &v
	}
	if v, ok := normalize.Int(rec, normalize.CommentCountKeys()); ok {
		p.CommentCount = &v
	}
	return p
}

// MergePost переносит значения сервера в локальный пост, но только для полей
// из scope и только если после отправки запроса не было более нового
// локального изменения. Более свежее намерение пользователя всегда побеждает.
func MergePost(local models.Post, server Patch, scope Fields, mutatedAfterRequestStarted bool) models.Post {
	if mutatedAfterRequestStarted {
		return local
	}
	if scope.Has(IsLiked) && server.IsLiked != nil {
		local.IsLiked = *server.IsLiked
	}
	if scope.Has(LikeCount) && server.LikeCount != nil {
		local.LikeCount = *server.LikeCount
	}
	if scope.Has(IsSaved) && server.IsSaved != nil {
		local.IsSaved = *server.IsSaved
	}
	if scope.Has(CommentCount) && server.CommentCount != nil {
		local.CommentCount = *server.CommentCount
	}
	normalize.RepairLikeCount(&local.LikeCount, local.IsLiked)
	return local
}

// MergeComment - то же для комментария, у которого есть только лайки.
func MergeComment(local models.Comment, server Patch, scope Fields, mutatedAfterRequestStarted bool) models.Comment {
	if mutatedAfterRequestStarted {
		return local
	}
	if scope.Has(IsLiked) && server.IsLiked != nil {
		local.IsLiked = *server.IsLiked
	}
	if scope.Has(LikeCount) && server.LikeCount != nil {
		local.LikeCount = *server.LikeCount
	}
	normalize.RepairLikeCount(&local.LikeCount, local.IsLiked)
	return local
}
