package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"jsonblog/internal/post/model"
	"jsonblog/pkg/logger"
)

// FileStore keeps the post collection in a single JSON array document.
//
// A process-wide mutex serializes load-modify-save, and writes go through a
// temp file and rename. Separate processes sharing the same file are not
// coordinated.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document. A missing or blank file is an empty collection. A
// document that cannot be decoded also yields an empty collection, together
// with ErrCorrupt or ErrInvalidShape so callers can decide how to degrade.
func (s *FileStore) Load(ctx context.Context) ([]model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Save replaces the whole document with posts.
func (s *FileStore) Save(ctx context.Context, posts []model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, posts)
}

func (s *FileStore) List(ctx context.Context) ([]model.Post, error) {
	return s.Load(ctx)
}

func (s *FileStore) Get(ctx context.Context, id int) (model.Post, error) {
	posts, err := s.Load(ctx)
	if err != nil {
		return model.Post{}, err
	}
	i := indexOf(posts, id)
	if i == -1 {
		return model.Post{}, ErrNotFound
	}
	return posts[i], nil
}

func (s *FileStore) NextID(ctx context.Context) (int, error) {
	posts, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return model.MaxID(posts) + 1, nil
}

func (s *FileStore) Create(ctx context.Context, title, author, content string) (model.Post, error) {
	if err := model.Validate(title, author, content); err != nil {
		return model.Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.load(ctx)
	if err != nil {
		return model.Post{}, err
	}

	// The id comes from the same collection that is written back.
	post := model.Post{
		ID:      model.MaxID(posts) + 1,
		Title:   title,
		Author:  author,
		Content: content,
	}
	posts = append(posts, post)
	if err := s.save(ctx, posts); err != nil {
		return model.Post{}, err
	}
	return post, nil
}

func (s *FileStore) Update(ctx context.Context, id int, title, author, content string) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.load(ctx)
	if err != nil {
		return model.Post{}, err
	}
	i := indexOf(posts, id)
	if i == -1 {
		return model.Post{}, ErrNotFound
	}
	if err := model.Validate(title, author, content); err != nil {
		return model.Post{}, err
	}

	posts[i].Title = title
	posts[i].Author = author
	posts[i].Content = content
	if err := s.save(ctx, posts); err != nil {
		return model.Post{}, err
	}
	return posts[i], nil
}

func (s *FileStore) Delete(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	i := indexOf(posts, id)
	if i == -1 {
		return false, nil
	}

	posts = append(posts[:i], posts[i+1:]...)
	if err := s.save(ctx, posts); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) load(ctx context.Context) ([]model.Post, error) {
	if err := ctx.Err(); err != nil {
		return []model.Post{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Post{}, nil
		}
		logger.Sugar.Errorf("Failed to read posts file %s: %v", s.path, err)
		return []model.Post{}, err
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []model.Post{}, nil
	}

	posts, err := decodePosts(data)
	if err != nil {
		if errors.Is(err, ErrInvalidShape) {
			logger.Sugar.Errorf("Posts file %s is not an array of posts: %v", s.path, err)
			return []model.Post{}, err
		}
		logger.Sugar.Errorf("Could not decode JSON from %s: %v", s.path, err)
		return []model.Post{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	warnOnBadIDs(s.path, posts)
	return posts, nil
}

// decodePosts accepts only an array of objects that carry at least one post
// field. Syntax errors are returned as they are; every shape problem wraps
// ErrInvalidShape.
func decodePosts(data []byte) ([]model.Post, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidShape, err)
		}
		return nil, err
	}

	posts := make([]model.Post, 0, len(elems))
	for i, elem := range elems {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(elem, &fields); err != nil || fields == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrInvalidShape, i)
		}
		if !hasPostField(fields) {
			return nil, fmt.Errorf("%w: element %d has none of the post fields", ErrInvalidShape, i)
		}

		var post model.Post
		if err := json.Unmarshal(elem, &post); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidShape, i, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func hasPostField(fields map[string]json.RawMessage) bool {
	for key := range fields {
		switch strings.ToLower(key) {
		case "id", "title", "author", "content":
			return true
		}
	}
	return false
}

// warnOnBadIDs reports hand-edited documents with duplicate or non-positive
// ids. They still load; the next id stays 1 + max(id).
func warnOnBadIDs(path string, posts []model.Post) {
	seen := make(map[int]bool, len(posts))
	for _, p := range posts {
		switch {
		case p.ID < 1:
			logger.Sugar.Warnf("Posts file %s has a post with non-positive id %d", path, p.ID)
		case seen[p.ID]:
			logger.Sugar.Warnf("Posts file %s has duplicate id %d", path, p.ID)
		}
		seen[p.ID] = true
	}
}

func (s *FileStore) save(ctx context.Context, posts []model.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if posts == nil {
		posts = []model.Post{}
	}

	data, err := json.MarshalIndent(posts, "", "  ")
	if err != nil {
		logger.Sugar.Errorf("Failed to encode posts: %v", err)
		return err
	}
	data = append(data, '\n')

	if err := atomicWriteFile(s.path, data, 0o644); err != nil {
		logger.Sugar.Errorf("Failed to write posts file %s: %v", s.path, err)
		return err
	}
	logger.Sugar.Debugf("Saved %d posts to %s", len(posts), s.path)
	return nil
}
