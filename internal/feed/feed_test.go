package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ButyrinIA/feedsync/internal/classify"
	"github.com/ButyrinIA/feedsync/internal/config"
	"github.com/ButyrinIA/feedsync/internal/interaction"
	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/ButyrinIA/feedsync/internal/notify"
	"github.com/ButyrinIA/feedsync/internal/server"
	"github.com/ButyrinIA/feedsync/internal/session"
	"github.com/ButyrinIA/feedsync/internal/storage"
	"github.com/ButyrinIA/feedsync/internal/storage/memory"
	"github.com/ButyrinIA/feedsync/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sandbox struct {
	http    *httptest.Server
	storage *memory.MemoryStorage
}

func newSandbox(t *testing.T, mutate func(cfg *config.Config)) *sandbox {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	st := memory.New()
	ts := httptest.NewServer(server.New(cfg, st).Handler())
	t.Cleanup(ts.Close)
	return &sandbox{http: ts, storage: st}
}

func (s *sandbox) seed(t *testing.T, ids ...string) {
	t.Helper()
	for i, id := range ids {
		require.NoError(t, s.storage.CreatePost(context.Background(), &storage.Post{
			ID:         id,
			AuthorID:   "author-id",
			AuthorName: "author",
			Content:    "post " + id,
			Media:      []string{"https://cdn.test/" + id + ".jpg"},
			CreatedAt:  time.Now().Add(-time.Duration(i) * time.Minute).UTC(),
		}))
	}
}

func (s *sandbox) view(t *testing.T, username string) (*View, *notify.Hub) {
	t.Helper()
	guard := session.NewGuard(session.NewHTTPIssuer(s.http.URL, username, 5*time.Second), 30*time.Second)
	client := transport.NewClient(s.http.URL, 5*time.Second, guard)
	hub := notify.NewHub(10)
	v := New(context.Background(), client, Options{
		Session:  guard,
		Notifier: hub,
		Author:   models.UserRef{Username: username},
	})
	t.Cleanup(v.Close)
	return v, hub
}

func wait(t *testing.T, res interaction.Result) interaction.Outcome {
	t.Helper()
	require.NotNil(t, res.Pending)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := res.Pending.Wait(ctx)
	require.NoError(t, err)
	return out
}

func post(t *testing.T, v *View, id models.ID) models.Post {
	t.Helper()
	p, ok := v.Store().Post(id)
	require.True(t, ok, "пост %s не найден", id)
	return p
}

func TestView_Load(t *testing.T) {
	sb := newSandbox(t, nil)
	sb.seed(t, "p1", "p2", "p3")
	v, _ := sb.view(t, "alice")

	require.NoError(t, v.Load(context.Background()))

	posts := v.Posts()
	require.Len(t, posts, 3)
	for _, p := range posts {
		// каждый пост приходит в своем соглашении об именовании
		assert.Equal(t, "post "+p.ID.String(), p.Content)
		assert.Equal(t, []string{"https://cdn.test/" + p.ID.String() + ".jpg"}, p.Media)
		assert.Equal(t, "author", p.Author.Username)
	}
}

func TestView_Like(t *testing.T) {
	sb := newSandbox(t, nil)
	sb.seed(t, "p1")
	v, hub := sb.view(t, "alice")
	require.NoError(t, v.Load(context.Background()))
	ctx := context.Background()

	t.Run("подтверждение сервера", func(t *testing.T) {
		res, err := v.Like(ctx, "p1")
		require.NoError(t, err)
		assert.True(t, res.Post.IsLiked)
		assert.Equal(t, 1, res.Post.LikeCount)

		out := wait(t, res)
		assert.Equal(t, interaction.Committed, out.State)
		assert.True(t, out.Success)
		assert.Equal(t, 1, post(t, v, "p1").LikeCount)
	})

	t.Run("уже лайкнут на сервере", func(t *testing.T) {
		// локальное состояние отстало от сервера
		_, err := v.Store().UpdatePost("p1", func(p *models.Post) {
			p.IsLiked, p.LikeCount = false, 0
		})
		require.NoError(t, err)

		res, err := v.Like(ctx, "p1")
		require.NoError(t, err)
		out := wait(t, res)
		assert.Equal(t, interaction.Committed, out.State)
		assert.Equal(t, classify.BenignConflict, out.Verdict.Class)
		assert.True(t, post(t, v, "p1").IsLiked)
		assert.Empty(t, hub.Recent())
	})

	t.Run("снятие лайка", func(t *testing.T) {
		out := wait(t, mustApply(t)(v.ToggleLike(ctx, "p1")))
		assert.Equal(t, interaction.Committed, out.State)
		p := post(t, v, "p1")
		assert.False(t, p.IsLiked)
		assert.Equal(t, 0, p.LikeCount)
	})
}

func mustApply(t *testing.T) func(interaction.Result, error) interaction.Result {
	return func(res interaction.Result, err error) interaction.Result {
		t.Helper()
		require.NoError(t, err)
		return res
	}
}

func TestView_LikeAnomaly(t *testing.T) {
	sb := newSandbox(t, func(cfg *config.Config) { cfg.Server.AnomalyEvery = 1 })
	sb.seed(t, "p1")
	v, hub := sb.view(t, "alice")
	require.NoError(t, v.Load(context.Background()))

	out := wait(t, mustApply(t)(v.Like(context.Background(), "p1")))
	assert.Equal(t, interaction.Committed, out.State)
	assert.Equal(t, classify.ServerAnomaly, out.Verdict.Class)

	p := post(t, v, "p1")
	assert.True(t, p.IsLiked)
	assert.Equal(t, 1, p.LikeCount)
	assert.Empty(t, hub.Recent())

	// сервер действительно сохранил лайк
	require.NoError(t, v.Load(context.Background()))
	assert.True(t, post(t, v, "p1").IsLiked)
}

func TestView_TurkishInverseConflict(t *testing.T) {
	sb := newSandbox(t, func(cfg *config.Config) { cfg.Server.Locale = "tr" })
	sb.seed(t, "p1")
	v, hub := sb.view(t, "alice")
	require.NoError(t, v.Load(context.Background()))

	_, err := v.Store().UpdatePost("p1", func(p *models.Post) {
		p.IsLiked, p.LikeCount = true, 1
	})
	require.NoError(t, err)

	out := wait(t, mustApply(t)(v.Unlike(context.Background(), "p1")))
	assert.Equal(t, classify.BenignConflict, out.Verdict.Class)
	assert.False(t, post(t, v, "p1").IsLiked)
	assert.Empty(t, hub.Recent())
}

func TestView_Save(t *testing.T) {
	sb := newSandbox(t, nil)
	sb.seed(t, "p1")
	v, _ := sb.view(t, "alice")
	require.NoError(t, v.Load(context.Background()))
	ctx := context.Background()

	out := wait(t, mustApply(t)(v.Save(ctx, "p1")))
	assert.True(t, out.Success)
	assert.True(t, post(t, v, "p1").IsSaved)

	out = wait(t, mustApply(t)(v.Unsave(ctx, "p1")))
	assert.True(t, out.Success)
	assert.False(t, post(t, v, "p1").IsSaved)
}

func TestView_Comments(t *testing.T) {
	sb := newSandbox(t, nil)
	sb.seed(t, "p1")
	v, hub := sb.view(t, "alice")
	ctx := context.Background()
	require.NoError(t, v.Load(ctx))
	require.NoError(t, v.LoadComments(ctx, "p1"))

	res, err := v.Comment(ctx, "p1", "hello", nil)
	require.NoError(t, err)
	require.NotNil(t, res.Comment)
	assert.Equal(t, 1, res.Post.CommentCount)

	out := wait(t, res)
	require.True(t, out.Success)
	list := v.Comments("p1")
	require.Len(t, list, 1)
	created := list[0]
	assert.NotEqual(t, res.Comment.ID, created.ID)
	assert.Equal(t, "hello", created.Content)
	assert.Equal(t, "alice", created.Author.Username)

	reply := wait(t, mustApply(t)(v.Comment(ctx, "p1", "reply", &created.ID)))
	require.True(t, reply.Success)
	assert.Equal(t, 2, post(t, v, "p1").CommentCount)

	out = wait(t, mustApply(t)(v.LikeComment(ctx, created.ID)))
	assert.True(t, out.Success)

	out = wait(t, mustApply(t)(v.DeleteComment(ctx, created.ID)))
	assert.True(t, out.Success)
	assert.Empty(t, v.Comments("p1"))
	assert.Equal(t, 0, post(t, v, "p1").CommentCount)
	assert.Empty(t, hub.Recent())
}

func TestView_DeleteForeignComment(t *testing.T) {
	sb := newSandbox(t, nil)
	sb.seed(t, "p1")
	require.NoError(t, sb.storage.CreateComment(context.Background(), &storage.Comment{
		ID:         "c1",
		PostID:     "p1",
		AuthorID:   "bob-id",
		AuthorName: "bob",
		Content:    "not yours",
		CreatedAt:  time.Now().UTC(),
	}))

	v, hub := sb.view(t, "alice")
	ctx := context.Background()
	require.NoError(t, v.Load(ctx))
	require.NoError(t, v.LoadComments(ctx, "p1"))
	assert.Equal(t, 1, post(t, v, "p1").CommentCount)

	out := wait(t, mustApply(t)(v.DeleteComment(ctx, "c1")))
	assert.Equal(t, interaction.RolledBack, out.State)
	assert.Equal(t, "You can only delete your own comments", out.Message)

	list := v.Comments("p1")
	require.Len(t, list, 1)
	assert.Equal(t, models.ID("c1"), list[0].ID)
	assert.Equal(t, 1, post(t, v, "p1").CommentCount)

	notices := hub.Recent()
	require.Len(t, notices, 1)
	assert.Equal(t, models.ID("c1"), notices[0].EntityID)
}

func TestView_CreatePostAndWatch(t *testing.T) {
	sb := newSandbox(t, nil)
	sb.seed(t, "p1")
	alice, _ := sb.view(t, "alice")
	bob, _ := sb.view(t, "bob")
	ctx := context.Background()
	require.NoError(t, alice.Load(ctx))
	require.NoError(t, bob.Load(ctx))

	wsURL, err := WebsocketURL(sb.http.URL, "")
	require.NoError(t, err)
	require.NoError(t, alice.Watch(ctx, wsURL))
	// дожидаемся подписки на сервере
	time.Sleep(50 * time.Millisecond)

	p, err := bob.CreatePost(ctx, "from bob", nil)
	require.NoError(t, err)
	assert.Equal(t, "from bob", p.Content)
	assert.Equal(t, p.ID, bob.Posts()[0].ID)

	assert.Eventually(t, func() bool {
		_, ok := alice.Store().Post(p.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, p.ID, alice.Posts()[0].ID)
}

func TestView_Polling(t *testing.T) {
	sb := newSandbox(t, nil)
	sb.seed(t, "p1")
	v, _ := sb.view(t, "alice")
	require.NoError(t, v.Load(context.Background()))

	v.StartPolling(20 * time.Millisecond)
	sb.seed(t, "p2")

	assert.Eventually(t, func() bool {
		return v.Store().HasPost("p2")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestView_CloseCancelsRefetch(t *testing.T) {
	sb := newSandbox(t, nil)
	v, _ := sb.view(t, "alice")

	v.RefetchAfter(time.Hour)
	done := make(chan struct{})
	go func() {
		v.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close не отменил отложенную загрузку")
	}
	assert.Empty(t, v.Posts())
}

func TestWebsocketURL(t *testing.T) {
	u, err := WebsocketURL("https://feed.test/api/", "abc")
	require.NoError(t, err)
	assert.Equal(t, "wss://feed.test/api/ws?token=abc", u)

	u, err = WebsocketURL("http://localhost:8080", "")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", u)
}

func TestListOf(t *testing.T) {
	list, ok := listOf([]any{1, 2})
	assert.True(t, ok)
	assert.Len(t, list, 2)

	list, ok = listOf(map[string]any{"posts": []any{1}}, "posts")
	assert.True(t, ok)
	assert.Len(t, list, 1)

	_, ok = listOf("nope", "posts")
	assert.False(t, ok)
}

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Do(ctx context.Context, req models.Request) (models.Envelope, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(models.Envelope), args.Error(1)
}

func TestCommentsLoader_FetchesEachPostOnce(t *testing.T) {
	tr := &mockTransport{}
	for _, id := range []string{"p1", "p2"} {
		tr.On("Do", mock.Anything, models.Request{Method: http.MethodGet, Path: "/posts/" + id + "/comments"}).
			Return(models.Envelope{Success: true, Status: 200, Data: []any{map[string]any{"id": "c-" + id}}}, nil).
			Once()
	}
	v := New(context.Background(), tr, Options{})
	t.Cleanup(v.Close)

	lists, errs := v.comments.LoadMany(context.Background(), []models.ID{"p1", "p1", "p2"})()
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, lists, 3)
	assert.Equal(t, lists[0], lists[1])
	assert.Equal(t, "c-p2", lists[2][0].(map[string]any)["id"])
	tr.AssertExpectations(t)
}

func TestLoadComments_Error(t *testing.T) {
	tr := &mockTransport{}
	tr.On("Do", mock.Anything, mock.Anything).
		Return(models.Envelope{Success: false, Status: 404, Message: "Post not found"}, nil)
	v := New(context.Background(), tr, Options{})
	t.Cleanup(v.Close)

	err := v.LoadComments(context.Background(), "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Post not found")
	assert.Nil(t, v.Comments("p1"))
}

func TestView_RefetchKeepsPendingComments(t *testing.T) {
	t.Run("comment like survives reload", func(t *testing.T) {
		tr := &mockTransport{}
		release := make(chan struct{})
		tr.On("Do", mock.Anything, models.Request{Method: http.MethodPost, Path: "/comments/c1/like"}).
			Run(func(mock.Arguments) { <-release }).
			Return(models.Envelope{Success: true, Status: 200}, nil).Once()
		tr.On("Do", mock.Anything, models.Request{Method: http.MethodGet, Path: "/posts/p1/comments"}).
			Return(models.Envelope{Success: true, Status: 200, Data: []any{
				map[string]any{"id": "c1", "liked": false, "likes": 0},
			}}, nil).Once()
		v := New(context.Background(), tr, Options{})
		t.Cleanup(v.Close)
		v.Store().ReplacePosts([]models.Post{{ID: "p1", CommentCount: 1}})
		v.Store().SetComments("p1", []models.Comment{{ID: "c1", PostID: "p1"}})

		res, err := v.LikeComment(context.Background(), "c1")
		require.NoError(t, err)
		require.NoError(t, v.LoadComments(context.Background(), "p1"))

		cm, ok := v.Store().Comment("p1", "c1")
		require.True(t, ok)
		assert.True(t, cm.IsLiked)
		assert.Equal(t, 1, cm.LikeCount)

		close(release)
		out := wait(t, res)
		assert.Equal(t, interaction.Committed, out.State)
		cm, _ = v.Store().Comment("p1", "c1")
		assert.True(t, cm.IsLiked, "успешный лайк без данных не должен откатиться")
		assert.Equal(t, 1, cm.LikeCount)
		assert.Equal(t, interaction.Idle, v.Controller().State("c1", interaction.FamilyCommentLike))
		tr.AssertExpectations(t)
	})

	t.Run("comment being deleted stays removed", func(t *testing.T) {
		tr := &mockTransport{}
		release := make(chan struct{})
		tr.On("Do", mock.Anything, models.Request{Method: http.MethodDelete, Path: "/comments/c2"}).
			Run(func(mock.Arguments) { <-release }).
			Return(models.Envelope{Success: true, Status: 200}, nil).Once()
		tr.On("Do", mock.Anything, models.Request{Method: http.MethodGet, Path: "/posts"}).
			Return(models.Envelope{Success: true, Status: 200, Data: []any{
				map[string]any{"id": "p1", "commentCount": 2},
			}}, nil).Once()
		tr.On("Do", mock.Anything, models.Request{Method: http.MethodGet, Path: "/posts/p1/comments"}).
			Return(models.Envelope{Success: true, Status: 200, Data: []any{
				map[string]any{"id": "c1"},
				map[string]any{"id": "c2"},
			}}, nil).Once()
		v := New(context.Background(), tr, Options{})
		t.Cleanup(v.Close)
		v.Store().ReplacePosts([]models.Post{{ID: "p1", CommentCount: 2}})
		v.Store().SetComments("p1", []models.Comment{{ID: "c1", PostID: "p1"}, {ID: "c2", PostID: "p1"}})

		res, err := v.DeleteComment(context.Background(), "c2")
		require.NoError(t, err)
		assert.Equal(t, 1, res.Post.CommentCount)

		require.NoError(t, v.Load(context.Background()))
		require.NoError(t, v.LoadComments(context.Background(), "p1"))
		assert.Equal(t, 1, post(t, v, "p1").CommentCount)
		list := v.Comments("p1")
		require.Len(t, list, 1)
		assert.Equal(t, models.ID("c1"), list[0].ID)

		close(release)
		wait(t, res)
		assert.Len(t, v.Comments("p1"), 1)
		tr.AssertExpectations(t)
	})
}
