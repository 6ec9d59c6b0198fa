package normalize

// Таблицы псевдонимов полей. Порядок ключей важен: берется первое найденное
// значение. Таблицы должны совпадать с тем, что реально отдает сервер.

var (
	postIDKeys = []string{"id", "Id", "ID", "_id", "postId", "post_id", "PostId", "PostID"}

	mediaKeys = []string{
		"media", "images", "imageUrls", "image", "coverImage", "thumbnail",
		"Media", "Images", "ImageUrls", "Image", "CoverImage", "Thumbnail",
	}

	contentKeys = []string{
		"caption", "content", "description", "text",
		"Caption", "Content", "Description", "Text",
	}

	authorKeys = []string{"author", "user", "User", "Author"}

	// ключи на уровне поста, из которых собирается автор, если объекта author нет
	flatUsernameKeys = []string{"username", "Username", "userName", "UserName"}
	flatAvatarKeys   = []string{"profileImage", "ProfileImage", "profile_picture", "ProfilePicture"}
	flatUserIDKeys   = []string{"userId", "user_id", "UserId", "UserID", "authorId", "author_id", "AuthorId", "AuthorID"}

	likeCountKeys    = []string{"likeCount", "likes", "like_count", "LikeCount", "Likes", "likesCount", "likes_count"}
	commentCountKeys = []string{"commentCount", "comments", "comment_count", "CommentCount", "Comments", "commentsCount", "comments_count"}
	isLikedKeys      = []string{"isLiked", "liked", "is_liked", "IsLiked", "Liked", "likedByMe", "hasLiked"}
	isSavedKeys      = []string{"isSaved", "saved", "is_saved", "IsSaved", "Saved", "isBookmarked", "bookmarked"}

	userIDKeys       = []string{"id", "Id", "ID", "_id", "userId", "user_id", "UserId", "UserID"}
	userUsernameKeys = []string{"username", "Username", "userName", "UserName", "user_name", "name", "Name", "handle"}
	userAvatarKeys   = []string{
		"avatarUrl", "avatar_url", "AvatarUrl", "AvatarURL", "avatar", "Avatar",
		"profileImage", "ProfileImage", "profile_picture", "ProfilePicture",
	}

	commentIDKeys        = []string{"id", "Id", "ID", "_id", "commentId", "comment_id", "CommentId", "CommentID"}
	commentPostIDKeys    = []string{"postId", "post_id", "PostId", "PostID"}
	commentParentIDKeys  = []string{"parentId", "parent_id", "ParentId", "ParentID"}
	commentContentKeys   = []string{"content", "text", "comment", "body", "Content", "Text", "Comment", "Body"}
	commentCreatedAtKeys = []string{"createdAt", "created_at", "CreatedAt", "createdDate", "date", "timestamp"}
	commentRepliesKeys   = []string{"replies", "children", "Replies", "Children", "subComments"}

	// ключи вложенного объекта с URL картинки: {"url": "..."}
	mediaURLKeys = []string{"url", "uri", "src", "Url", "URL", "Src"}
)

// LikeCountKeys возвращает псевдонимы счетчика лайков в порядке приоритета.
func LikeCountKeys() []string { return append([]string(nil), likeCountKeys...) }

// CommentCountKeys возвращает псевдонимы счетчика комментариев.
func CommentCountKeys() []string { return append([]string(nil), commentCountKeys...) }

// IsLikedKeys возвращает псевдонимы флага лайка.
func IsLikedKeys() []string { return append([]string(nil), isLikedKeys...) }

// IsSavedKeys возвращает псевдонимы флага сохранения.
func IsSavedKeys() []string { return append([]string(nil), isSavedKeys...) }
