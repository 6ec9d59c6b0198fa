package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ButyrinIA/feedsync/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// PostgresStorage работает через одно соединение; pgx.Conn не потокобезопасен,
// поэтому запросы сериализуются мьютексом.
type PostgresStorage struct {
	mu   sync.Mutex
	conn *pgx.Conn
}

func New(dsn string) (*PostgresStorage, error) {
	conn, err := pgx.Connect(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %v", err)
	}

	_, err = conn.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			author_id TEXT NOT NULL,
			author_name TEXT NOT NULL,
			content TEXT NOT NULL,
			media TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			parent_id TEXT REFERENCES comments(id) ON DELETE CASCADE,
			author_id TEXT NOT NULL,
			author_name TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS post_likes (
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			PRIMARY KEY (post_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS post_saves (
			post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			PRIMARY KEY (post_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS comment_likes (
			comment_id TEXT NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			PRIMARY KEY (comment_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
		CREATE INDEX IF NOT EXISTS idx_comments_parent_id ON comments(parent_id);
	`)
	if err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	return &PostgresStorage{conn: conn}, nil
}

func (s *PostgresStorage) CreatePost(ctx context.Context, post *storage.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	media := post.Media
	if media == nil {
		media = []string{}
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO posts (id, author_id, author_name, content, media, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		post.ID, post.AuthorID, post.AuthorName, post.Content, media, post.CreatedAt)
	return err
}

func (s *PostgresStorage) GetPost(ctx context.Context, id string) (*storage.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p storage.Post
	err := s.conn.QueryRow(ctx, `
		SELECT id, author_id, author_name, content, media, created_at
		FROM posts
		WHERE id=$1`, id).Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.Content, &p.Media, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStorage) ListPosts(ctx context.Context, limit int) ([]storage.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := s.conn.Query(ctx, `
		SELECT id, author_id, author_name, content, media, created_at
		FROM posts
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []storage.Post
	for rows.Next() {
		var p storage.Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.AuthorName, &p.Content, &p.Media, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *PostgresStorage) PostStats(ctx context.Context, postID, userID string) (storage.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st storage.Stats
	err := s.conn.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM post_likes WHERE post_id = p.id),
			(SELECT COUNT(*) FROM comments WHERE post_id = p.id),
			EXISTS (SELECT 1 FROM post_likes WHERE post_id = p.id AND user_id = $2),
			EXISTS (SELECT 1 FROM post_saves WHERE post_id = p.id AND user_id = $2)
		FROM posts p
		WHERE p.id = $1`, postID, userID).Scan(&st.LikeCount, &st.CommentCount, &st.Liked, &st.Saved)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Stats{}, storage.ErrNotFound
	}
	return st, err
}

func (s *PostgresStorage) LikePost(ctx context.Context, postID, userID string) error {
	return s.insertPair(ctx, "posts", "post_likes", "post_id", postID, userID)
}

func (s *PostgresStorage) UnlikePost(ctx context.Context, postID, userID string) error {
	return s.deletePair(ctx, "posts", "post_likes", "post_id", postID, userID)
}

func (s *PostgresStorage) SavePost(ctx context.Context, postID, userID string) error {
	return s.insertPair(ctx, "posts", "post_saves", "post_id", postID, userID)
}

func (s *PostgresStorage) UnsavePost(ctx context.Context, postID, userID string) error {
	return s.deletePair(ctx, "posts", "post_saves", "post_id", postID, userID)
}

func (s *PostgresStorage) CreateComment(ctx context.Context, comment *storage.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if comment.ParentID != nil {
		var ok bool
		err := s.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM comments WHERE id=$1 AND post_id=$2)`,
			*comment.ParentID, comment.PostID).Scan(&ok)
		if err != nil {
			return err
		}
		if !ok {
			return storage.ErrNotFound
		}
	}
	tag, err := s.conn.Exec(ctx, `
		INSERT INTO comments (id, post_id, parent_id, author_id, author_name, content, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE EXISTS (SELECT 1 FROM posts WHERE id=$2)`,
		comment.ID, comment.PostID, comment.ParentID, comment.AuthorID, comment.AuthorName, comment.Content, comment.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) GetComment(ctx context.Context, id string) (*storage.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c storage.Comment
	err := s.conn.QueryRow(ctx, `
		SELECT id, post_id, parent_id, author_id, author_name, content, created_at
		FROM comments
		WHERE id=$1`, id).Scan(&c.ID, &c.PostID, &c.ParentID, &c.AuthorID, &c.AuthorName, &c.Content, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStorage) ListComments(ctx context.Context, postID string) ([]storage.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(ctx, `
		SELECT id, post_id, parent_id, author_id, author_name, content, created_at
		FROM comments
		WHERE post_id=$1
		ORDER BY created_at ASC, id ASC`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []storage.Comment
	for rows.Next() {
		var c storage.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.ParentID, &c.AuthorID, &c.AuthorName, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DeleteComment считает поддерево рекурсивным запросом, удаление ответов
// выполняет ON DELETE CASCADE.
func (s *PostgresStorage) DeleteComment(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var n int
	err = tx.QueryRow(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT id FROM comments WHERE id=$1
			UNION ALL
			SELECT c.id FROM comments c JOIN subtree s ON c.parent_id = s.id
		)
		SELECT COUNT(*) FROM subtree`, id).Scan(&n)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, storage.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE id=$1`, id); err != nil {
		return 0, err
	}
	return n, tx.Commit(ctx)
}

func (s *PostgresStorage) CommentStats(ctx context.Context, commentID, userID string) (storage.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st storage.Stats
	err := s.conn.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM comment_likes WHERE comment_id = c.id),
			EXISTS (SELECT 1 FROM comment_likes WHERE comment_id = c.id AND user_id = $2)
		FROM comments c
		WHERE c.id = $1`, commentID, userID).Scan(&st.LikeCount, &st.Liked)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Stats{}, storage.ErrNotFound
	}
	return st, err
}

func (s *PostgresStorage) LikeComment(ctx context.Context, commentID, userID string) error {
	return s.insertPair(ctx, "comments", "comment_likes", "comment_id", commentID, userID)
}

func (s *PostgresStorage) UnlikeComment(ctx context.Context, commentID, userID string) error {
	return s.deletePair(ctx, "comments", "comment_likes", "comment_id", commentID, userID)
}

func (s *PostgresStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close(context.Background())
}

// insertPair и deletePair работают с таблицами связей. Имена таблиц
// задаются только константами из этого файла.
func (s *PostgresStorage) insertPair(ctx context.Context, owner, table, column, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ownerExists(ctx, owner, id); err != nil {
		return err
	}
	_, err := s.conn.Exec(ctx, `INSERT INTO `+table+` (`+column+`, user_id) VALUES ($1, $2)`, id, userID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return storage.ErrExists
	}
	return err
}

func (s *PostgresStorage) deletePair(ctx context.Context, owner, table, column, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ownerExists(ctx, owner, id); err != nil {
		return err
	}
	tag, err := s.conn.Exec(ctx, `DELETE FROM `+table+` WHERE `+column+`=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAbsent
	}
	return nil
}

func (s *PostgresStorage) ownerExists(ctx context.Context, owner, id string) error {
	var ok bool
	if err := s.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+owner+` WHERE id=$1)`, id).Scan(&ok); err != nil {
		return err
	}
	if !ok {
		return storage.ErrNotFound
	}
	return nil
}
