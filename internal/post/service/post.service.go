package service

import (
	"context"
	"encoding/json"
	"strings"

	"jsonblog/internal/post/model"
	"jsonblog/internal/post/repository"
	"jsonblog/pkg/logger"
	"jsonblog/socket"
)

// Notifier receives an event after every successful change.
type Notifier interface {
	Publish(msg socket.WSMessage)
}

type PostService struct {
	Repo     repository.Store
	Notifier Notifier
}

func NewPostService(repo repository.Store, notifier Notifier) *PostService {
	return &PostService{Repo: repo, Notifier: notifier}
}

func (s *PostService) ListPosts(ctx context.Context) ([]model.Post, error) {
	return s.Repo.List(ctx)
}

func (s *PostService) GetPost(ctx context.Context, id int) (model.Post, error) {
	return s.Repo.Get(ctx, id)
}

func (s *PostService) NextID(ctx context.Context) (int, error) {
	return s.Repo.NextID(ctx)
}

func (s *PostService) CreatePost(ctx context.Context, req model.PostRequest) (model.Post, error) {
	req = trim(req)
	post, err := s.Repo.Create(ctx, req.Title, req.Author, req.Content)
	if err != nil {
		return model.Post{}, err
	}
	logger.Sugar.Infow("Post created", "id", post.ID, "author", post.Author)
	s.publish(socket.PostCreatedType, post.ID, post)
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, id int, req model.PostRequest) (model.Post, error) {
	req = trim(req)
	post, err := s.Repo.Update(ctx, id, req.Title, req.Author, req.Content)
	if err != nil {
		return model.Post{}, err
	}
	logger.Sugar.Infow("Post updated", "id", post.ID)
	s.publish(socket.PostUpdatedType, post.ID, post)
	return post, nil
}

// DeletePost reports whether a post was removed. An unknown id is not an error.
func (s *PostService) DeletePost(ctx context.Context, id int) (bool, error) {
	deleted, err := s.Repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if !deleted {
		logger.Sugar.Infow("Nothing deleted, post not found", "id", id)
		return false, nil
	}
	logger.Sugar.Infow("Post deleted", "id", id)
	s.publish(socket.PostDeletedType, id, model.DeleteResponse{ID: id, Deleted: true})
	return true, nil
}

func (s *PostService) publish(eventType string, id int, v any) {
	if s.Notifier == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling %s event: %v", eventType, err)
		return
	}
	s.Notifier.Publish(socket.WSMessage{Type: eventType, PostID: id, Payload: payload})
}

func trim(req model.PostRequest) model.PostRequest {
	return model.PostRequest{
		Title:   strings.TrimSpace(req.Title),
		Author:  strings.TrimSpace(req.Author),
		Content: strings.TrimSpace(req.Content),
	}
}
