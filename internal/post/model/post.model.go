package model

import (
	"errors"
	"strings"
)

var ErrInvalidPost = errors.New("title, author and content are required")

type Post struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

type PostRequest struct {
	Title   string `json:"title"`
	Author  string `json:"author"`
	Content string `json:"content"`
}

type DeleteResponse struct {
	ID      int  `json:"id"`
	Deleted bool `json:"deleted"`
}

// ValidationError lists the fields that were empty after trimming.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidPost
}

// Validate returns a *ValidationError when any field is blank.
func Validate(title, author, content string) error {
	var missing []string
	if strings.TrimSpace(title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(author) == "" {
		missing = append(missing, "author")
	}
	if strings.TrimSpace(content) == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}

// MaxID returns the largest id in posts, 0 for an empty collection.
func MaxID(posts []Post) int {
	max := 0
	for _, p := range posts {
		if p.ID > max {
			max = p.ID
		}
	}
	return max
}
