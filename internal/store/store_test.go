package store

import (
	"context"
	"testing"
	"time"

	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idp(id models.ID) *models.ID { return &id }

func commentTree() []models.Comment {
	return []models.Comment{
		{ID: "c1", PostID: "p1", Content: "первый", Replies: []models.Comment{
			{ID: "c2", PostID: "p1", ParentID: idp("c1"), Content: "ответ"},
			{ID: "c3", PostID: "p1", ParentID: idp("c1"), Content: "ответ 2", Replies: []models.Comment{
				{ID: "c4", PostID: "p1", ParentID: idp("c3"), Content: "глубже"},
			}},
		}},
		{ID: "c5", PostID: "p1", Content: "второй"},
	}
}

func TestStore_Posts(t *testing.T) {
	t.Run("ReplacePosts and snapshot", func(t *testing.T) {
		s := New()
		s.ReplacePosts([]models.Post{
			{ID: "p1", Media: []string{"https://a"}},
			{ID: "p2"},
			{ID: "p1", Content: "дубликат"},
		})

		posts := s.Posts()
		require.Len(t, posts, 2, "дубликаты должны отбрасываться")
		assert.Equal(t, models.ID("p1"), posts[0].ID)

		posts[0].Media[0] = "mutated"
		p, ok := s.Post("p1")
		require.True(t, ok)
		assert.Equal(t, "https://a", p.Media[0], "снимок не должен разделять память с хранилищем")
	})

	t.Run("AddPost prepends", func(t *testing.T) {
		s := New()
		s.ReplacePosts([]models.Post{{ID: "p1"}})
		s.AddPost(models.Post{ID: "p0"})
		assert.Equal(t, models.ID("p0"), s.Posts()[0].ID)

		s.AddPost(models.Post{ID: "p1", Content: "обновлен"})
		assert.Len(t, s.Posts(), 2)
		p, _ := s.Post("p1")
		assert.Equal(t, "обновлен", p.Content)
	})

	t.Run("UpdatePost", func(t *testing.T) {
		s := New()
		s.ReplacePosts([]models.Post{{ID: "p1", LikeCount: 1}})

		p, err := s.UpdatePost("p1", func(p *models.Post) { p.LikeCount++ })
		require.NoError(t, err)
		assert.Equal(t, 2, p.LikeCount)

		_, err = s.UpdatePost("missing", func(p *models.Post) {})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("RemovePost drops comments", func(t *testing.T) {
		s := New()
		s.ReplacePosts([]models.Post{{ID: "p1"}, {ID: "p2"}})
		s.SetComments("p1", commentTree())

		assert.True(t, s.RemovePost("p1"))
		assert.False(t, s.HasPost("p1"))
		assert.Empty(t, s.Comments("p1"))
		assert.False(t, s.RemovePost("p1"))
		assert.Len(t, s.Posts(), 1)
	})
}

func TestStore_Comments(t *testing.T) {
	t.Run("find nested", func(t *testing.T) {
		s := New()
		s.SetComments("p1", commentTree())

		c, ok := s.Comment("p1", "c4")
		require.True(t, ok)
		assert.Equal(t, "глубже", c.Content)

		postID, ok := s.FindCommentPost("c4")
		require.True(t, ok)
		assert.Equal(t, models.ID("p1"), postID)
	})

	t.Run("append reply", func(t *testing.T) {
		s := New()
		s.SetComments("p1", commentTree())

		require.NoError(t, s.AppendComment("p1", idp("c2"), models.Comment{ID: "new"}))
		c, _ := s.Comment("p1", "c2")
		require.Len(t, c.Replies, 1)
		assert.Equal(t, models.ID("new"), c.Replies[0].ID)

		assert.ErrorIs(t, s.AppendComment("p1", idp("nope"), models.Comment{ID: "x"}), ErrNotFound)
	})

	t.Run("remove subtree and restore", func(t *testing.T) {
		s := New()
		s.SetComments("p1", commentTree())

		removed, pos, err := s.RemoveComment("p1", "c3")
		require.NoError(t, err)
		assert.Equal(t, 2, models.CountComments([]models.Comment{removed}))
		require.NotNil(t, pos.ParentID)
		assert.Equal(t, models.ID("c1"), *pos.ParentID)
		assert.Equal(t, 1, pos.Index)

		_, ok := s.Comment("p1", "c4")
		assert.False(t, ok, "поддерево удаляется вместе с узлом")

		require.NoError(t, s.InsertComment("p1", pos, removed))
		assert.Equal(t, commentTree(), s.Comments("p1"))
	})

	t.Run("remove top level and restore order", func(t *testing.T) {
		s := New()
		s.SetComments("p1", commentTree())

		removed, pos, err := s.RemoveComment("p1", "c1")
		require.NoError(t, err)
		assert.Nil(t, pos.ParentID)
		assert.Len(t, s.Comments("p1"), 1)

		require.NoError(t, s.InsertComment("p1", pos, removed))
		assert.Equal(t, commentTree(), s.Comments("p1"))
	})

	t.Run("replace keeps position", func(t *testing.T) {
		s := New()
		s.SetComments("p1", commentTree())

		require.NoError(t, s.ReplaceComment("p1", "c5", models.Comment{ID: "srv-5", Content: "с сервера"}))
		list := s.Comments("p1")
		assert.Equal(t, models.ID("srv-5"), list[1].ID)

		_, _, err := s.RemoveComment("p1", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_Subscribe(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	events := s.Subscribe(ctx)

	s.ReplacePosts([]models.Post{{ID: "p1"}})
	s.AddPost(models.Post{ID: "p2"})
	_, err := s.UpdatePost("p1", func(p *models.Post) { p.IsSaved = true })
	require.NoError(t, err)
	s.RemovePost("p2")

	want := []Event{
		{Kind: FeedReplaced},
		{Kind: PostCreated, PostID: "p2"},
		{Kind: PostUpdated, PostID: "p1"},
		{Kind: PostRemoved, PostID: "p2"},
	}
	for _, w := range want {
		select {
		case e := <-events:
			assert.Equal(t, w, e)
		case <-time.After(time.Second):
			t.Fatalf("не дождались события %s", w.Kind)
		}
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-events
		return !open
	}, time.Second, 10*time.Millisecond, "канал закрывается после отмены контекста")
}
