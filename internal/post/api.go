package handler

import (
	"encoding/json"
	"net/http"

	"jsonblog/internal/post/model"
	"jsonblog/pkg/logger"
)

func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	posts, err := h.Service.ListPosts(r.Context())
	if err != nil {
		logger.Sugar.Errorf("Error fetching posts: %v", err)
		http.Error(w, "Storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := postID(w, r)
	if !ok {
		return
	}

	post, err := h.Service.GetPost(r.Context(), id)
	if err != nil {
		h.apiError(w, "get", id, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.PostRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		bodyError(w, err, "Invalid request body")
		return
	}

	post, err := h.Service.CreatePost(r.Context(), req)
	if err != nil {
		h.apiError(w, "create", 0, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := postID(w, r)
	if !ok {
		return
	}

	var req model.PostRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		bodyError(w, err, "Invalid request body")
		return
	}

	post, err := h.Service.UpdatePost(r.Context(), id, req)
	if err != nil {
		h.apiError(w, "update", id, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := postID(w, r)
	if !ok {
		return
	}

	deleted, err := h.Service.DeletePost(r.Context(), id)
	if err != nil {
		h.apiError(w, "delete", id, err)
		return
	}
	writeJSON(w, http.StatusOK, model.DeleteResponse{ID: id, Deleted: deleted})
}

func (h *PostHandler) apiError(w http.ResponseWriter, op string, id int, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Sugar.Errorf("Handler: Failed to %s post %d: %v", op, id, err)
		http.Error(w, "Storage error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
