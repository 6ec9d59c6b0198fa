package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/ButyrinIA/feedsync/internal/models"
	"github.com/graph-gophers/dataloader/v7"
)

// окно, в котором одновременные загрузки комментариев собираются в один пакет
const commentsBatchWait = 2 * time.Millisecond

// newCommentsLoader собирает загрузки комментариев, пришедшие почти
// одновременно (опрос, события потока, действия пользователя), и запрашивает
// каждый пост один раз. Кэша нет: каждая новая загрузка идет на сервер.
func (v *View) newCommentsLoader() *dataloader.Loader[models.ID, []any] {
	batchFn := func(ctx context.Context, keys []models.ID) []*dataloader.Result[[]any] {
		fetched := make(map[models.ID]*dataloader.Result[[]any], len(keys))
		results := make([]*dataloader.Result[[]any], len(keys))
		for i, postID := range keys {
			if r, ok := fetched[postID]; ok {
				results[i] = r
				continue
			}
			list, err := v.fetchComments(ctx, postID)
			r := &dataloader.Result[[]any]{Data: list, Error: err}
			fetched[postID] = r
			results[i] = r
		}
		return results
	}
	return dataloader.NewBatchedLoader(batchFn,
		dataloader.WithWait[models.ID, []any](commentsBatchWait),
		dataloader.WithCache[models.ID, []any](&dataloader.NoCache[models.ID, []any]{}),
	)
}

func (v *View) fetchComments(ctx context.Context, postID models.ID) ([]any, error) {
	env, err := v.fetch(ctx, "/posts/"+postID.String()+"/comments")
	if err != nil {
		return nil, err
	}
	raw, ok := listOf(env.Data, "comments", "items")
	if !ok {
		return nil, fmt.Errorf("load comments %s: %w", postID, ErrUnexpectedPayload)
	}
	return raw, nil
}
