package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"jsonblog/internal/post/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T, driver string) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db, driver), mock
}

func q(query string) string {
	return regexp.QuoteMeta(query)
}

func TestSQLStore_Rebind(t *testing.T) {
	pg := NewSQLStore(nil, "postgres")
	lite := NewSQLStore(nil, "sqlite")
	query := "UPDATE posts SET title = ?, author = ?, content = ? WHERE id = ?"

	assert.Equal(t, "UPDATE posts SET title = $1, author = $2, content = $3 WHERE id = $4", pg.rebind(query))
	assert.Equal(t, query, lite.rebind(query))
}

func TestSQLStore_Init(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	mock.ExpectExec(q(createPostsTable)).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Init(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_List(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	mock.ExpectQuery(q("SELECT id, title, author, content FROM posts ORDER BY id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "content"}).
			AddRow(1, "T1", "A1", "C1").
			AddRow(3, "T3", "A3", "C3"))

	posts, err := s.List(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []model.Post{
		{ID: 1, Title: "T1", Author: "A1", Content: "C1"},
		{ID: 3, Title: "T3", Author: "A3", Content: "C3"},
	}, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_ListEmpty(t *testing.T) {
	s, mock := newMockStore(t, "sqlite")
	mock.ExpectQuery(q("SELECT id, title, author, content FROM posts ORDER BY id")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "content"}))

	posts, err := s.List(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestSQLStore_GetNotFound(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	mock.ExpectQuery(q("SELECT id, title, author, content FROM posts WHERE id = $1")).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "content"}))

	_, err := s.Get(context.Background(), 9)

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_NextID(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	mock.ExpectQuery(q("SELECT COALESCE(MAX(id), 0) + 1 FROM posts")).
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(4))

	next, err := s.NextID(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 4, next)
}

func TestSQLStore_Create(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT COALESCE(MAX(id), 0) FROM posts")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(2))
	mock.ExpectExec(q("INSERT INTO posts (id, title, author, content) VALUES ($1, $2, $3, $4)")).
		WithArgs(3, "T3", "A3", "C3").
		WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	post, err := s.Create(context.Background(), "T3", "A3", "C3")

	require.NoError(t, err)
	assert.Equal(t, model.Post{ID: 3, Title: "T3", Author: "A3", Content: "C3"}, post)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CreateRollsBackOnInsertError(t *testing.T) {
	s, mock := newMockStore(t, "sqlite")
	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT COALESCE(MAX(id), 0) FROM posts")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
	mock.ExpectExec(q("INSERT INTO posts (id, title, author, content) VALUES (?, ?, ?, ?)")).
		WithArgs(1, "T", "A", "C").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.Create(context.Background(), "T", "A", "C")

	assert.EqualError(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_CreateValidatesBeforeQuerying(t *testing.T) {
	s, mock := newMockStore(t, "postgres")

	_, err := s.Create(context.Background(), "T", "", "C")

	assert.True(t, errors.Is(err, model.ErrInvalidPost))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Update(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	mock.ExpectExec(q("UPDATE posts SET title = $1, author = $2, content = $3 WHERE id = $4")).
		WithArgs("T", "A", "C", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	post, err := s.Update(context.Background(), 1, "T", "A", "C")

	require.NoError(t, err)
	assert.Equal(t, model.Post{ID: 1, Title: "T", Author: "A", Content: "C"}, post)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_UpdateNotFound(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	mock.ExpectExec(q("UPDATE posts SET title = $1, author = $2, content = $3 WHERE id = $4")).
		WithArgs("T", "A", "C", 8).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.Update(context.Background(), 8, "T", "A", "C")

	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLStore_UpdateInvalidChecksExistenceFirst(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	mock.ExpectQuery(q("SELECT id, title, author, content FROM posts WHERE id = $1")).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "content"}))
	mock.ExpectQuery(q("SELECT id, title, author, content FROM posts WHERE id = $1")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "author", "content"}).AddRow(1, "T", "A", "C"))

	_, err := s.Update(context.Background(), 8, "", "A", "C")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Update(context.Background(), 1, "", "A", "C")
	assert.True(t, errors.Is(err, model.ErrInvalidPost))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Delete(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	mock.ExpectExec(q("DELETE FROM posts WHERE id = $1")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM posts WHERE id = $1")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := s.Delete(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, deleted)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_Import(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	mock.ExpectQuery(q("SELECT COUNT(*) FROM posts")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	insert := q("INSERT INTO posts (id, title, author, content) VALUES ($1, $2, $3, $4)")
	mock.ExpectExec(insert).WithArgs(2, "T2", "A2", "C2").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(insert).WithArgs(5, "T5", "A5", "C5").WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	n, err := s.Import(context.Background(), []model.Post{
		{ID: 2, Title: "T2", Author: "A2", Content: "C2"},
		{ID: 5, Title: "T5", Author: "A5", Content: "C5"},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_ImportSkipsPopulatedTable(t *testing.T) {
	s, mock := newMockStore(t, "postgres")
	mock.ExpectQuery(q("SELECT COUNT(*) FROM posts")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := s.Import(context.Background(), []model.Post{{ID: 1, Title: "T", Author: "A", Content: "C"}})

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
