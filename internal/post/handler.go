package handler

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jsonblog/internal/post/model"
	"jsonblog/internal/post/repository"
	"jsonblog/internal/post/service"
	"jsonblog/pkg/logger"

	"github.com/gorilla/feeds"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	feedSize = 20

	// maxBodyBytes caps form and JSON request bodies.
	maxBodyBytes = 1 << 20
)

type PostHandler struct {
	Service     *service.PostService
	SiteTitle   string
	SiteBaseURL string
	pages       map[string]*template.Template
	markdown    goldmark.Markdown
}

// postView pairs a post with its rendered Markdown body.
type postView struct {
	model.Post
	HTML template.HTML
}

func NewPostHandler(service *service.PostService, siteTitle, siteBaseURL string) *PostHandler {
	h := &PostHandler{
		Service:     service,
		SiteTitle:   siteTitle,
		SiteBaseURL: strings.TrimRight(siteBaseURL, "/"),
		pages:       make(map[string]*template.Template),
		markdown:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	for _, page := range []string{"index.html", "post.html", "form.html"} {
		h.pages[page] = template.Must(template.ParseFS(templateFS, "templates/base.html", "templates/"+page))
	}
	return h
}

func (h *PostHandler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := h.baseData("")
	posts, err := h.Service.ListPosts(r.Context())
	if err != nil {
		// Reads fail open: show what we have and say why it is empty.
		logger.Sugar.Errorf("Handler: Failed to load posts: %v", err)
		data["Warning"] = "Stored posts could not be read; showing an empty list."
	}

	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, h.view(p))
	}
	data["Posts"] = views
	h.render(w, http.StatusOK, "index.html", data)
}

func (h *PostHandler) Show(w http.ResponseWriter, r *http.Request) {
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
		h.fail(w, r, err)
		return
	}

	data := h.baseData(post.Title)
	data["Post"] = h.view(post)
	h.render(w, http.StatusOK, "post.html", data)
}

func (h *PostHandler) Add(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.renderForm(w, http.StatusOK, "New post", "/add", model.Post{}, "")
	case http.MethodPost:
		req, err := parsePostForm(w, r)
		if err != nil {
			bodyError(w, err, "Invalid form body")
			return
		}
		if _, err := h.Service.CreatePost(r.Context(), req); err != nil {
			if errors.Is(err, model.ErrInvalidPost) {
				h.renderForm(w, http.StatusBadRequest, "New post", "/add", fromRequest(0, req), err.Error())
				return
			}
			h.fail(w, r, err)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := postID(w, r)
	if !ok {
		return
	}
	action := "/update?id=" + strconv.Itoa(id)

	if r.Method == http.MethodGet {
		post, err := h.Service.GetPost(r.Context(), id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.renderForm(w, http.StatusOK, "Edit post", action, post, "")
		return
	}

	req, err := parsePostForm(w, r)
	if err != nil {
		bodyError(w, err, "Invalid form body")
		return
	}
	if _, err := h.Service.UpdatePost(r.Context(), id, req); err != nil {
		if errors.Is(err, model.ErrInvalidPost) {
			h.renderForm(w, http.StatusBadRequest, "Edit post", action, fromRequest(id, req), err.Error())
			return
		}
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := postID(w, r)
	if !ok {
		return
	}

	if _, err := h.Service.DeletePost(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Feed serves the newest posts as RSS. Posts carry no timestamps, so the feed
// is ordered by id.
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	posts, err := h.Service.ListPosts(r.Context())
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to load posts for feed: %v", err)
	}

	feed := &feeds.Feed{
		Title:       h.SiteTitle,
		Link:        &feeds.Link{Href: h.SiteBaseURL + "/"},
		Description: h.SiteTitle,
		Created:     time.Now(),
	}
	for i := len(posts) - 1; i >= 0 && len(feed.Items) < feedSize; i-- {
		p := posts[i]
		link := h.SiteBaseURL + "/post?id=" + strconv.Itoa(p.ID)
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          link,
			Title:       p.Title,
			Link:        &feeds.Link{Href: link},
			Author:      &feeds.Author{Name: p.Author},
			Description: string(h.renderMarkdown(p.Content)),
		})
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if err := feed.WriteRss(w); err != nil {
		logger.Sugar.Errorf("RSS error: %v", err)
		http.Error(w, "Failed to generate RSS", http.StatusInternalServerError)
	}
}

func (h *PostHandler) renderForm(w http.ResponseWriter, status int, pageTitle, action string, post model.Post, msg string) {
	data := h.baseData(pageTitle)
	data["Action"] = action
	data["Post"] = post
	data["Error"] = msg
	h.render(w, status, "form.html", data)
}

func (h *PostHandler) render(w http.ResponseWriter, status int, page string, data map[string]any) {
	t, ok := h.pages[page]
	if !ok {
		http.Error(w, "unknown page "+page, http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		logger.Sugar.Errorf("Template execution error: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *PostHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusNotFound {
		http.NotFound(w, r)
		return
	}
	logger.Sugar.Errorf("Handler: %s %s failed: %v", r.Method, r.URL.Path, err)
	http.Error(w, http.StatusText(status), status)
}

func (h *PostHandler) baseData(pageTitle string) map[string]any {
	return map[string]any{
		"SiteTitle": h.SiteTitle,
		"PageTitle": pageTitle,
	}
}

func (h *PostHandler) view(p model.Post) postView {
	return postView{Post: p, HTML: h.renderMarkdown(p.Content)}
}

// renderMarkdown drops raw HTML from the source; only Markdown produces markup.
func (h *PostHandler) renderMarkdown(input string) template.HTML {
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(input), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(input))
	}
	return template.HTML(buf.String())
}

func parsePostForm(w http.ResponseWriter, r *http.Request) (model.PostRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return model.PostRequest{}, err
	}
	return model.PostRequest{
		Title:   strings.TrimSpace(r.PostFormValue("title")),
		Author:  strings.TrimSpace(r.PostFormValue("author")),
		Content: strings.TrimSpace(r.PostFormValue("content")),
	}, nil
}

// bodyError answers a request whose body could not be read or decoded.
func bodyError(w http.ResponseWriter, err error, msg string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	http.Error(w, msg, http.StatusBadRequest)
}

func fromRequest(id int, req model.PostRequest) model.Post {
	return model.Post{ID: id, Title: req.Title, Author: req.Author, Content: req.Content}
}

func postID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("id")
	if raw == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		http.Error(w, "Invalid id parameter", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidPost):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
