package server

type msgKey int

const (
	msgAlreadyLiked msgKey = iota
	msgNotLiked
	msgAlreadySaved
	msgNotSaved
	msgCommentAlreadyLiked
	msgCommentNotLiked
	msgPostNotFound
	msgCommentNotFound
	msgLikeAnomaly
	msgContentRequired
	msgNotYourComment
	msgUnauthorized
	msgTokenExpired
	msgInternal
)

var messages = map[string]map[msgKey]string{
	"en": {
		msgAlreadyLiked:        "Post already liked",
		msgNotLiked:            "Post not liked",
		msgAlreadySaved:        "Post is already saved",
		msgNotSaved:            "Post not saved",
		msgCommentAlreadyLiked: "Comment already liked",
		msgCommentNotLiked:     "Comment not liked",
		msgPostNotFound:        "Post not found",
		msgCommentNotFound:     "Comment not found",
		msgLikeAnomaly:         "Failed while saving the like",
		msgContentRequired:     "Content is required",
		msgNotYourComment:      "You can only delete your own comments",
		msgUnauthorized:        "Unauthorized",
		msgTokenExpired:        "Token expired",
		msgInternal:            "Internal server error",
	},
	"tr": {
		msgAlreadyLiked:        "Bu gönderi zaten beğenilmiş",
		msgNotLiked:            "Gönderi beğenilmemiş",
		msgAlreadySaved:        "Gönderi zaten kaydedilmiş",
		msgNotSaved:            "Gönderi kaydedilmemiş",
		msgCommentAlreadyLiked: "Yorum zaten beğenilmiş",
		msgCommentNotLiked:     "Yorum beğenilmemiş",
		msgPostNotFound:        "Gönderi bulunamadı",
		msgCommentNotFound:     "Yorum bulunamadı",
		msgLikeAnomaly:         "Beğeni kaydedilirken hata oluştu",
		msgContentRequired:     "İçerik gerekli",
		msgNotYourComment:      "Sadece kendi yorumlarınızı silebilirsiniz",
		msgUnauthorized:        "Yetkisiz",
		msgTokenExpired:        "Oturum süresi doldu",
		msgInternal:            "Sunucu hatası",
	},
}

func (s *Server) msg(key msgKey) string {
	if table, ok := messages[s.cfg.Server.Locale]; ok {
		return table[key]
	}
	return messages["en"][key]
}
