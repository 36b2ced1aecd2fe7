package router

import (
	"net/http"

	"jsonblog/config"
	postHandler "jsonblog/internal/post"
	"jsonblog/internal/post/repository"
	"jsonblog/internal/post/service"
	"jsonblog/middleware"
	"jsonblog/socket"
)

func Setup(cfg *config.Config, store repository.Store, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()

	// Live change feed
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})

	postService := service.NewPostService(store, hub)
	h := postHandler.NewPostHandler(postService, cfg.SiteTitle, cfg.SiteBaseURL)

	// HTML pages
	mux.HandleFunc("/", h.Index)
	mux.HandleFunc("/post", h.Show)
	mux.HandleFunc("/add", h.Add)
	mux.HandleFunc("/update", h.Update)
	mux.HandleFunc("/delete", h.Delete)
	mux.HandleFunc("/feed", h.Feed)

	// REST API
	cors := middleware.CORSMiddleware(cfg.CORSOrigins)
	mux.Handle("/api/posts", cors(http.HandlerFunc(h.ListPosts)))
	mux.Handle("/api/posts/get", cors(http.HandlerFunc(h.GetPost)))
	mux.Handle("/api/posts/create", cors(http.HandlerFunc(h.CreatePost)))
	mux.Handle("/api/posts/update", cors(http.HandlerFunc(h.UpdatePost)))
	mux.Handle("/api/posts/delete", cors(http.HandlerFunc(h.DeletePost)))

	return middleware.RequestLogger(mux)
}
