package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"sync"

	"jsonblog/internal/post/model"
	"jsonblog/pkg/logger"
)

const createPostsTable = `CREATE TABLE IF NOT EXISTS posts (id INTEGER PRIMARY KEY, title TEXT NOT NULL, author TEXT NOT NULL, content TEXT NOT NULL)`

// SQLStore keeps posts in a relational table. Queries are written with '?'
// placeholders and rebound to $n for PostgreSQL.
type SQLStore struct {
	DB     *sql.DB
	driver string
	mu     sync.Mutex
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{DB: db, driver: driver}
}

func (s *SQLStore) Init(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, createPostsTable); err != nil {
		logger.Sugar.Errorf("Failed to create posts table: %v", err)
		return err
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context) ([]model.Post, error) {
	rows, err := s.DB.QueryContext(ctx, "SELECT id, title, author, content FROM posts ORDER BY id")
	if err != nil {
		logger.Sugar.Errorf("Failed to list posts: %v", err)
		return []model.Post{}, err
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Author, &p.Content); err != nil {
			logger.Sugar.Errorf("Failed to scan post row: %v", err)
			return []model.Post{}, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *SQLStore) Get(ctx context.Context, id int) (model.Post, error) {
	var p model.Post
	err := s.DB.QueryRowContext(ctx, s.rebind("SELECT id, title, author, content FROM posts WHERE id = ?"), id).
		Scan(&p.ID, &p.Title, &p.Author, &p.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Post{}, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get post %d: %v", id, err)
		return model.Post{}, err
	}
	return p, nil
}

func (s *SQLStore) NextID(ctx context.Context) (int, error) {
	var next int
	if err := s.DB.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) + 1 FROM posts").Scan(&next); err != nil {
		logger.Sugar.Errorf("Failed to compute next post id: %v", err)
		return 0, err
	}
	return next, nil
}

// Create assigns the id and inserts the row in one transaction.
func (s *SQLStore) Create(ctx context.Context, title, author, content string) (model.Post, error) {
	if err := model.Validate(title, author, content); err != nil {
		return model.Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		logger.Sugar.Errorf("Failed to begin transaction: %v", err)
		return model.Post{}, err
	}
	defer tx.Rollback()

	var maxID int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM posts").Scan(&maxID); err != nil {
		logger.Sugar.Errorf("Failed to read max post id: %v", err)
		return model.Post{}, err
	}

	post := model.Post{ID: maxID + 1, Title: title, Author: author, Content: content}
	if _, err := tx.ExecContext(ctx, s.rebind("INSERT INTO posts (id, title, author, content) VALUES (?, ?, ?, ?)"),
		post.ID, post.Title, post.Author, post.Content); err != nil {
		logger.Sugar.Errorf("Failed to insert post: %v", err)
		return model.Post{}, err
	}
	if err := tx.Commit(); err != nil {
		logger.Sugar.Errorf("Failed to commit post %d: %v", post.ID, err)
		return model.Post{}, err
	}
	return post, nil
}

func (s *SQLStore) Update(ctx context.Context, id int, title, author, content string) (model.Post, error) {
	if err := model.Validate(title, author, content); err != nil {
		// An unknown id wins over a validation failure.
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return model.Post{}, getErr
		}
		return model.Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.DB.ExecContext(ctx, s.rebind("UPDATE posts SET title = ?, author = ?, content = ? WHERE id = ?"),
		title, author, content, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to update post %d: %v", id, err)
		return model.Post{}, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return model.Post{}, err
	}
	if n == 0 {
		return model.Post{}, ErrNotFound
	}
	return model.Post{ID: id, Title: title, Author: author, Content: content}, nil
}

func (s *SQLStore) Delete(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.DB.ExecContext(ctx, s.rebind("DELETE FROM posts WHERE id = ?"), id)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete post %d: %v", id, err)
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Import copies posts, ids included, into an empty table. It returns how many
// rows were written; a table that already holds posts is left alone.
func (s *SQLStore) Import(ctx context.Context, posts []model.Post) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM posts").Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 || len(posts) == 0 {
		return 0, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	insert := s.rebind("INSERT INTO posts (id, title, author, content) VALUES (?, ?, ?, ?)")
	for _, p := range posts {
		if _, err := tx.ExecContext(ctx, insert, p.ID, p.Title, p.Author, p.Content); err != nil {
			logger.Sugar.Errorf("Failed to import post %d: %v", p.ID, err)
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(posts), nil
}

func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
