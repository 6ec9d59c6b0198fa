package normalize

import (
	"log"
	"strings"
	"time"

	"github.com/ButyrinIA/feedsync/internal/models"
)

const (
	DefaultUntitledCaption   = "Untitled post"
	DefaultPlaceholderAvatar = "assets/avatar-placeholder.png"
	DefaultUsername          = "unknown"

	// глубина дерева ответов, дальше ответы отбрасываются
	maxReplyDepth = 32
)

var untitledCaptions = map[string]string{
	"en": DefaultUntitledCaption,
	"tr": "Başlıksız gönderi",
	"ru": "Пост без названия",
}

// UntitledCaption возвращает подпись по умолчанию для локали.
func UntitledCaption(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	if s, ok := untitledCaptions[locale]; ok {
		return s
	}
	return DefaultUntitledCaption
}

// Options - значения по умолчанию для полей, которые не удалось найти.
type Options struct {
	UntitledCaption   string
	PlaceholderAvatar string
}

// Report описывает исправления, сделанные при нормализации.
type Report struct {
	LikeCountRepaired bool
}

// Normalizer превращает сырые записи сервера в канонические Post/Comment/UserRef.
// Все методы тотальны: на любом входе возвращается запись со значениями по умолчанию.
type Normalizer struct {
	opts Options
}

func New(opts Options) *Normalizer {
	if opts.UntitledCaption == "" {
		opts.UntitledCaption = DefaultUntitledCaption
	}
	if opts.PlaceholderAvatar == "" {
		opts.PlaceholderAvatar = DefaultPlaceholderAvatar
	}
	return &Normalizer{opts: opts}
}

var std = New(Options{})

// NormalizePost нормализует пост с настройками по умолчанию.
func NormalizePost(raw any) models.Post { return std.Post(raw) }

// NormalizeComment нормализует комментарий с настройками по умолчанию.
func NormalizeComment(raw any) models.Comment { return std.Comment(raw) }

// NormalizeUser нормализует ссылку на пользователя с настройками по умолчанию.
func NormalizeUser(raw any) models.UserRef { return std.User(raw) }

func (n *Normalizer) Post(raw any) models.Post {
	p, _ := n.PostWithReport(raw)
	return p
}

func (n *Normalizer) PostWithReport(raw any) (post models.Post, report Report) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("normalize: не удалось разобрать пост: %v", r)
			post, report = n.post(map[string]any{})
		}
	}()
	return n.post(Record(raw))
}

func (n *Normalizer) post(rec map[string]any) (models.Post, Report) {
	var report Report

	p := models.Post{
		Media:  mediaOf(rec),
		Author: n.authorOf(rec),
	}
	p.ID, _ = ID(rec, postIDKeys)

	if s, ok := String(rec, contentKeys); ok {
		p.Content = s
	} else {
		p.Content = n.opts.UntitledCaption
	}

	p.LikeCount, _ = Int(rec, likeCountKeys)
	p.CommentCount, _ = Int(rec, commentCountKeys)
	p.IsLiked, _ = Bool(rec, isLikedKeys)
	p.IsSaved, _ = Bool(rec, isSavedKeys)

	if RepairLikeCount(&p.LikeCount, p.IsLiked) {
		report.LikeCountRepaired = true
	}
	return p, report
}

func (n *Normalizer) Comment(raw any) models.Comment {
	c, _ := n.CommentWithReport(raw)
	return c
}

func (n *Normalizer) CommentWithReport(raw any) (comment models.Comment, report Report) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("normalize: не удалось разобрать комментарий: %v", r)
			comment, report = n.comment(map[string]any{}, "", nil, 0)
		}
	}()
	return n.comment(Record(raw), "", nil, 0)
}

func (n *Normalizer) comment(rec map[string]any, postID models.ID, parentID *models.ID, depth int) (models.Comment, Report) {
	var report Report

	c := models.Comment{
		Author:  n.authorOf(rec),
		Replies: []models.Comment{},
	}
	c.ID, _ = ID(rec, commentIDKeys)

	if id, ok := ID(rec, commentPostIDKeys); ok {
		c.PostID = id
	} else {
		c.PostID = postID
	}
	if id, ok := ID(rec, commentParentIDKeys); ok {
		c.ParentID = &id
	} else if parentID != nil {
		parent := *parentID
		c.ParentID = &parent
	}

	c.Content, _ = String(rec, commentContentKeys)
	c.CreatedAt = createdAtOf(rec)
	c.LikeCount, _ = Int(rec, likeCountKeys)
	c.IsLiked, _ = Bool(rec, isLikedKeys)
	if RepairLikeCount(&c.LikeCount, c.IsLiked) {
		report.LikeCountRepaired = true
	}

	if depth < maxReplyDepth {
		if v, ok := firstValue(rec, commentRepliesKeys); ok {
			if list, ok := v.([]any); ok {
				var parent *models.ID
				if c.ID != "" {
					self := c.ID
					parent = &self
				}
				for _, item := range list {
					reply, _ := n.comment(Record(item), c.PostID, parent, depth+1)
					c.Replies = append(c.Replies, reply)
				}
			}
		}
	}
	return c, report
}

// Comments нормализует список комментариев, например ответ GET /posts/{id}/comments.
func (n *Normalizer) Comments(raw []any, postID models.ID) []models.Comment {
	out := make([]models.Comment, 0, len(raw))
	for _, item := range raw {
		c := n.Comment(item)
		if c.PostID == "" {
			c.PostID = postID
			fillPostID(c.Replies, postID)
		}
		out = append(out, c)
	}
	return out
}

func fillPostID(list []models.Comment, postID models.ID) {
	for i := range list {
		if list[i].PostID == "" {
			list[i].PostID = postID
		}
		fillPostID(list[i].Replies, postID)
	}
}

func (n *Normalizer) User(raw any) models.UserRef {
	return n.user(Record(raw))
}

func (n *Normalizer) user(rec map[string]any) models.UserRef {
	u := models.UserRef{
		Username:  DefaultUsername,
		AvatarURL: n.opts.PlaceholderAvatar,
	}
	u.ID, _ = ID(rec, userIDKeys)
	if s, ok := String(rec, userUsernameKeys); ok {
		u.Username = s
	}
	if s, ok := String(rec, userAvatarKeys); ok {
		u.AvatarURL = s
	}
	return u
}

// authorOf берет вложенный объект автора, а если его нет - собирает автора
// из плоских полей записи.
func (n *Normalizer) authorOf(rec map[string]any) models.UserRef {
	if v, ok := firstValue(rec, authorKeys); ok {
		switch a := v.(type) {
		case map[string]any:
			return n.user(a)
		case string:
			return n.user(map[string]any{"username": a})
		}
	}

	u := models.UserRef{
		Username:  DefaultUsername,
		AvatarURL: n.opts.PlaceholderAvatar,
	}
	u.ID, _ = ID(rec, flatUserIDKeys)
	if s, ok := String(rec, flatUsernameKeys); ok {
		u.Username = s
	}
	if s, ok := String(rec, flatAvatarKeys); ok {
		u.AvatarURL = s
	}
	return u
}

func createdAtOf(rec map[string]any) time.Time {
	for _, k := range commentCreatedAtKeys {
		v, ok := rec[k]
		if !ok || !present(v) {
			continue
		}
		if t, ok := toTime(v); ok {
			return t
		}
	}
	return time.Time{}
}

// RepairLikeCount чинит счетчик, если запись лайкнута, а счетчик равен нулю.
// Возвращает true, если исправление было сделано.
func RepairLikeCount(count *int, liked bool) bool {
	if liked && *count == 0 {
		*count = 1
		return true
	}
	return false
}
