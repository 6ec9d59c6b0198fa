package interaction

import (
	"net/http"

	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/ButyrinIA/feedsync/internal/reconcile"
)

// Action - действие пользователя над постом или комментарием.
type Action string

const (
	Like          Action = "like"
	Unlike        Action = "unlike"
	Save          Action = "save"
	Unsave        Action = "unsave"
	AddComment    Action = "addComment"
	DeleteComment Action = "deleteComment"
	LikeComment   Action = "likeComment"
	UnlikeComment Action = "unlikeComment"
)

// Family - группа действий, разделяющих один слот взаимного исключения.
type Family string

const (
	FamilyLike        Family = "like"
	FamilySave        Family = "save"
	FamilyCommentLike Family = "commentLike"
	FamilyComment     Family = "comment"
	FamilyDelete      Family = "delete"
)

// State - состояние взаимодействия для пары (сущность, семейство).
type State int

const (
	Idle State = iota
	Pending
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Committed:
		return "Committed"
	case RolledBack:
		return "RolledBack"
	default:
		return "Idle"
	}
}

// toggle описывает действие-переключатель: like/unlike, save/unsave и лайки комментариев.
type toggle struct {
	family  Family
	on      bool
	inverse Action
	scope   reconcile.Fields
	comment bool
}

var toggles = map[Action]toggle{
	Like:          {family: FamilyLike, on: true, inverse: Unlike, scope: reconcile.Like},
	Unlike:        {family: FamilyLike, on: false, inverse: Like, scope: reconcile.Like},
	Save:          {family: FamilySave, on: true, inverse: Unsave, scope: reconcile.IsSaved},
	Unsave:        {family: FamilySave, on: false, inverse: Save, scope: reconcile.IsSaved},
	LikeComment:   {family: FamilyCommentLike, on: true, inverse: UnlikeComment, scope: reconcile.Like, comment: true},
	UnlikeComment: {family: FamilyCommentLike, on: false, inverse: LikeComment, scope: reconcile.Like, comment: true},
}

// FamilyOf возвращает семейство действия. ok == false для неизвестного действия.
func FamilyOf(a Action) (Family, bool) {
	if t, ok := toggles[a]; ok {
		return t.family, true
	}
	switch a {
	case AddComment:
		return FamilyComment, true
	case DeleteComment:
		return FamilyDelete, true
	}
	return "", false
}

// flag возвращает значение переключаемого флага.
func (t toggle) flag(c counters) bool {
	if t.family == FamilySave {
		return c.IsSaved
	}
	return c.IsLiked
}

func (t toggle) restore(dst *counters, pre counters) {
	if t.scope.Has(reconcile.IsLiked) {
		dst.IsLiked = pre.IsLiked
	}
	if t.scope.Has(reconcile.LikeCount) {
		dst.LikeCount = pre.LikeCount
	}
	if t.scope.Has(reconcile.IsSaved) {
		dst.IsSaved = pre.IsSaved
	}
}

func toggleRequest(a Action, id models.ID) models.Request {
	method := http.MethodPost
	if !toggles[a].on {
		method = http.MethodDelete
	}
	switch toggles[a].family {
	case FamilySave:
		return models.Request{Method: method, Path: "/posts/" + id.String() + "/save"}
	case FamilyCommentLike:
		return models.Request{Method: method, Path: "/comments/" + id.String() + "/like"}
	default:
		return models.Request{Method: method, Path: "/posts/" + id.String() + "/like"}
	}
}
