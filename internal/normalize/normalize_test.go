package normalize

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// charSplit раскладывает строку в объект {"0":"h","1":"t",...}
func charSplit(s string) map[string]any {
	m := make(map[string]any, len(s))
	for i, r := range []rune(s) {
		m[strconv.Itoa(i)] = string(r)
	}
	return m
}

func TestNormalizePost_LikeAliases(t *testing.T) {
	pascal := NormalizePost(map[string]any{"Likes": 5})
	camel := NormalizePost(map[string]any{"likeCount": 5})
	snake := NormalizePost(map[string]any{"like_count": json.Number("5")})

	assert.Equal(t, 5, pascal.LikeCount)
	assert.Equal(t, pascal, camel)
	assert.Equal(t, camel, snake)
}

func TestNormalizePost_CountRepair(t *testing.T) {
	p, report := std.PostWithReport(map[string]any{"liked": true, "likes": 0})
	assert.True(t, p.IsLiked)
	assert.Equal(t, 1, p.LikeCount)
	assert.True(t, report.LikeCountRepaired, "исправление должно быть отмечено")

	p, report = std.PostWithReport(map[string]any{"liked": true, "likes": 7})
	assert.Equal(t, 7, p.LikeCount)
	assert.False(t, report.LikeCountRepaired)

	p, report = std.PostWithReport(map[string]any{"liked": false, "likes": 0})
	assert.Equal(t, 0, p.LikeCount)
	assert.False(t, report.LikeCountRepaired)
}

func TestNormalizePost_CountRepairInvariant(t *testing.T) {
	inputs := []any{
		map[string]any{"isLiked": true},
		map[string]any{"IsLiked": true, "LikeCount": -3},
		map[string]any{"liked": "true", "likes": "0"},
		map[string]any{"likedByMe": 1, "likes": []any{}},
		`{"is_liked": true, "like_count": null}`,
	}
	for _, in := range inputs {
		p := NormalizePost(in)
		require.True(t, p.IsLiked, "%v", in)
		assert.GreaterOrEqual(t, p.LikeCount, 1, "%v", in)
	}
}

func TestNormalizePost_Media(t *testing.T) {
	const url = "https://cdn.example.com/a.jpg"

	tests := []struct {
		name string
		raw  map[string]any
		want []string
	}{
		{"media array", map[string]any{"media": []any{url, "https://cdn.example.com/b.jpg"}}, []string{url, "https://cdn.example.com/b.jpg"}},
		{"images first", map[string]any{"images": []any{url}}, []string{url}},
		{"imageUrls", map[string]any{"imageUrls": []string{url}}, []string{url}},
		{"image string", map[string]any{"image": url}, []string{url}},
		{"cover image object", map[string]any{"coverImage": map[string]any{"url": url}}, []string{url}},
		{"thumbnail", map[string]any{"thumbnail": url}, []string{url}},
		{"pascal case", map[string]any{"Image": url}, []string{url}},
		{"pascal thumbnail", map[string]any{"Thumbnail": url}, []string{url}},
		{"json string array", map[string]any{"images": `["` + url + `"]`}, []string{url}},
		{"json quoted string", map[string]any{"image": `"` + url + `"`}, []string{url}},
		{"invalid json is url", map[string]any{"image": "/uploads/x.png"}, []string{"/uploads/x.png"}},
		{"char split object", map[string]any{"image": charSplit(url)}, []string{url}},
		{"char split in json string", map[string]any{"image": mustJSON(t, charSplit(url))}, []string{url}},
		{"char split not url", map[string]any{"image": charSplit("hello")}, []string{}},
		{"empty media falls through", map[string]any{"media": []any{}, "image": url}, []string{url}},
		{"null media falls through", map[string]any{"media": nil, "thumbnail": url}, []string{url}},
		{"camel before pascal", map[string]any{"Image": "https://other/x.jpg", "thumbnail": url}, []string{url}},
		{"order media before image", map[string]any{"image": "https://other/x.jpg", "media": []any{url}}, []string{url}},
		{"nothing", map[string]any{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePost(tt.raw).Media)
		})
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestNormalizePost_Content(t *testing.T) {
	assert.Equal(t, "hi", NormalizePost(map[string]any{"caption": "hi", "content": "other"}).Content)
	assert.Equal(t, "desc", NormalizePost(map[string]any{"description": "desc"}).Content)
	assert.Equal(t, "Txt", NormalizePost(map[string]any{"Text": "Txt"}).Content)
	assert.Equal(t, DefaultUntitledCaption, NormalizePost(map[string]any{"caption": "   "}).Content)

	tr := New(Options{UntitledCaption: UntitledCaption("tr-TR")})
	assert.Equal(t, "Başlıksız gönderi", tr.Post(map[string]any{}).Content)
	assert.Equal(t, DefaultUntitledCaption, UntitledCaption("de"))
}

func TestNormalizePost_Author(t *testing.T) {
	p := NormalizePost(map[string]any{
		"User": map[string]any{"Id": 7, "UserName": "ayse", "ProfileImage": "https://cdn/a.png"},
	})
	assert.Equal(t, models.UserRef{ID: "7", Username: "ayse", AvatarURL: "https://cdn/a.png"}, p.Author)

	p = NormalizePost(map[string]any{"userName": "mehmet", "profile_picture": "https://cdn/m.png", "user_id": "u-1"})
	assert.Equal(t, models.UserRef{ID: "u-1", Username: "mehmet", AvatarURL: "https://cdn/m.png"}, p.Author)

	p = NormalizePost(map[string]any{})
	assert.Equal(t, DefaultUsername, p.Author.Username)
	assert.Equal(t, DefaultPlaceholderAvatar, p.Author.AvatarURL)

	p = NormalizePost(map[string]any{"author": "zeynep"})
	assert.Equal(t, "zeynep", p.Author.Username)
}

func TestNormalizePost_IDIsOpaque(t *testing.T) {
	assert.Equal(t, models.ID("42"), NormalizePost(map[string]any{"id": 42}).ID)
	assert.Equal(t, models.ID("42"), NormalizePost(map[string]any{"id": float64(42)}).ID)
	assert.Equal(t, models.ID("abc"), NormalizePost(map[string]any{"_id": "abc"}).ID)

	// большие числа не должны терять точность
	p := NormalizePost([]byte(`{"PostID": 12345678901234567890}`))
	assert.Equal(t, models.ID("12345678901234567890"), p.ID)
}

func TestNormalizePost_Counts(t *testing.T) {
	p := NormalizePost(map[string]any{
		"comment_count": "3",
		"saved":         true,
		"likes":         []any{"u1", "u2"},
	})
	assert.Equal(t, 3, p.CommentCount)
	assert.Equal(t, 2, p.LikeCount)
	assert.True(t, p.IsSaved)

	p = NormalizePost(map[string]any{"likes": true, "LikeCount": 4})
	assert.Equal(t, 4, p.LikeCount, "непригодное значение пропускается")
}

func TestNormalizePost_Idempotent(t *testing.T) {
	inputs := []any{
		map[string]any{"liked": true, "likes": 0},
		map[string]any{"Id": 9, "Caption": "c", "Images": []any{"https://a/b.png"}, "User": map[string]any{"UserName": "x"}},
		map[string]any{"image": charSplit("https://cdn.example.com/z.jpg"), "saved": "1", "comments": []any{1, 2, 3}},
		map[string]any{},
		"not json at all",
		nil,
	}
	for _, in := range inputs {
		once := NormalizePost(in)
		twice := NormalizePost(once)
		assert.Equal(t, once, twice, "%v", in)
	}
}

func TestNormalizePost_TotalOverUnknownInput(t *testing.T) {
	inputs := []any{
		nil, 42, 3.14, true, "garbage", "{", []any{1, 2}, []byte("[1]"),
		map[string]any{"media": map[string]any{"x": 1}, "likes": map[string]any{}},
		func() {}, make(chan int),
		map[string]any{"author": []any{"weird"}, "id": []any{}},
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			p := NormalizePost(in)
			assert.Equal(t, DefaultUntitledCaption, p.Content)
			assert.NotNil(t, p.Media)
		})
	}
}

func TestNormalizeComment(t *testing.T) {
	raw := map[string]any{
		"id":         1,
		"post_id":    "p1",
		"user":       map[string]any{"id": "u1", "username": "ali"},
		"text":       "merhaba",
		"created_at": "2024-05-01T10:00:00Z",
		"liked":      true,
		"likes":      0,
		"replies": []any{
			map[string]any{"id": 2, "content": "reply", "createdAt": float64(1714557600), "likeCount": 3},
			map[string]any{"id": 3, "body": "reply2", "timestamp": float64(1714557600000)},
		},
	}

	c, report := std.CommentWithReport(raw)
	assert.True(t, report.LikeCountRepaired)
	assert.Equal(t, models.ID("1"), c.ID)
	assert.Equal(t, models.ID("p1"), c.PostID)
	assert.Nil(t, c.ParentID)
	assert.Equal(t, "ali", c.Author.Username)
	assert.Equal(t, "merhaba", c.Content)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), c.CreatedAt)
	assert.True(t, c.IsLiked)
	assert.Equal(t, 1, c.LikeCount)

	require.Len(t, c.Replies, 2)
	reply := c.Replies[0]
	assert.Equal(t, models.ID("2"), reply.ID)
	assert.Equal(t, models.ID("p1"), reply.PostID, "postId наследуется от родителя")
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, models.ID("1"), *reply.ParentID)
	assert.Equal(t, time.Unix(1714557600, 0).UTC(), reply.CreatedAt)
	assert.Equal(t, 3, reply.LikeCount)
	assert.Equal(t, time.UnixMilli(1714557600000).UTC(), c.Replies[1].CreatedAt)
	assert.Equal(t, "reply2", c.Replies[1].Content)
}

func TestNormalizeComment_Idempotent(t *testing.T) {
	raw := map[string]any{
		"Id": "c1", "PostId": "p", "Content": "x", "CreatedAt": "2024-01-02T03:04:05.123Z",
		"Children": []any{map[string]any{"Id": "c2", "Text": "y"}},
	}
	once := NormalizeComment(raw)
	assert.Equal(t, once, NormalizeComment(once))
}

func TestNormalizer_Comments(t *testing.T) {
	list := std.Comments([]any{
		map[string]any{"id": "a", "text": "1", "replies": []any{map[string]any{"id": "b"}}},
		map[string]any{"id": "c", "postId": "other"},
	}, "p9")

	require.Len(t, list, 2)
	assert.Equal(t, models.ID("p9"), list[0].PostID)
	assert.Equal(t, models.ID("p9"), list[0].Replies[0].PostID)
	assert.Equal(t, models.ID("other"), list[1].PostID)
}
