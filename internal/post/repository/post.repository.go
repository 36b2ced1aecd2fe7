package repository

import (
	"context"
	"errors"

	"jsonblog/internal/post/model"
)

var (
	ErrNotFound = errors.New("post not found")
	// ErrCorrupt means the document exists but is not valid JSON.
	ErrCorrupt = errors.New("posts document is not valid JSON")
	// ErrInvalidShape means the document is valid JSON but not an array of post objects.
	ErrInvalidShape = errors.New("posts document is not an array of posts")
)

// Store is the durable post collection. Every call reads the backing storage
// afresh; nothing is cached between calls.
type Store interface {
	List(ctx context.Context) ([]model.Post, error)
	Get(ctx context.Context, id int) (model.Post, error)
	NextID(ctx context.Context) (int, error)
	Create(ctx context.Context, title, author, content string) (model.Post, error)
	Update(ctx context.Context, id int, title, author, content string) (model.Post, error)
	Delete(ctx context.Context, id int) (bool, error)
}

func indexOf(posts []model.Post, id int) int {
	for i, p := range posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}
