package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mwrks/plume"
)

// Service is the domain layer the handlers delegate to.
type Service interface {
	Signup(ctx context.Context, in plume.SignupInput) (plume.AuthResult, error)
	Login(ctx context.Context, in plume.LoginInput) (plume.AuthResult, error)
	VerifyToken(token string) (string, error)

	User(ctx context.Context, id string) (plume.Profile, error)
	UpdateUser(ctx context.Context, callerID, id string, upd plume.UserUpdate) (plume.Profile, error)
	UserPosts(ctx context.Context, callerID, id string, page, limit int) (plume.PostPage, error)

	CreatePost(ctx context.Context, callerID, text, image string) (plume.PostView, error)
	Posts(ctx context.Context, q plume.PostQuery) (plume.PostPage, error)
	Post(ctx context.Context, id string) (plume.PostView, error)
	EditPost(ctx context.Context, callerID, id, text string) (plume.PostView, error)
	DeletePost(ctx context.Context, callerID, id string) error
	ToggleLike(ctx context.Context, callerID, id string) (plume.LikeResult, error)

	UploadImage(ctx context.Context, up plume.ImageUpload) (plume.ImageResult, error)
	DeleteImage(ctx context.Context, fileName string) error
	Image(ctx context.Context, fileName string) (plume.BlobInfo, io.ReadCloser, error)

	CreateComment(ctx context.Context, callerID, postID, text string) (plume.CommentView, error)
	Comments(ctx context.Context, postID string) ([]plume.CommentView, error)
	EditComment(ctx context.Context, callerID, id, text string) (plume.CommentView, error)
	DeleteComment(ctx context.Context, callerID, id string) error
}

type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

type HandlerConfig struct {
	CORS CORSConfig
}

// Handler provides HTTP handlers for the feed API.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	return &Handler{
		config:  *config,
		service: service,
	}
}

// Router returns an http.Handler with all API routes configured.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	auth := AuthMiddleware(h.service)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.handleSignup)
			r.Post("/login", h.handleLogin)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/{id}", h.handleGetUser)
			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Put("/{id}", h.handleUpdateUser)
				r.Get("/{id}/posts", h.handleUserPosts)
			})
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.handleListPosts)
			r.Get("/image/{fileName}", h.handleServeImage)

			r.Group(func(r chi.Router) {
				r.Use(auth)
				r.Post("/", h.handleCreatePost)
				r.Post("/upload-image", h.handleUploadImage)
				r.Delete("/delete-image/{fileName}", h.handleDeleteImage)
				r.Put("/{id}", h.handleEditPost)
				r.Delete("/{id}", h.handleDeletePost)
				r.Post("/{id}/like", h.handleToggleLike)
				r.Post("/{id}/comments", h.handleCreateComment)
			})

			r.Get("/{id}", h.handleGetPost)
			r.Get("/{id}/comments", h.handleListComments)
		})

		r.Route("/comments", func(r chi.Router) {
			r.Use(auth)
			r.Put("/{id}", h.handleEditComment)
			r.Delete("/{id}", h.handleDeleteComment)
		})
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Server is running",
	})
}

// Auth

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.Signup(r.Context(), plume.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), plume.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

// Users

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.User(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, profile)
}

type updateUserRequest struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
	Bio    *string `json:"bio"`
}

func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	profile, err := h.service.UpdateUser(r.Context(), callerID(r), chi.URLParam(r, "id"), plume.UserUpdate{
		Name:   req.Name,
		Avatar: req.Avatar,
		Bio:    req.Bio,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	result, err := h.service.UserPosts(r.Context(), callerID(r), chi.URLParam(r, "id"), page, limit)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

// Posts

type postRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (h *Handler) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !decodeBody(w, r, &req) {
		return
	}

	post, err := h.service.CreatePost(r.Context(), callerID(r), req.Text, req.Image)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, post)
}

func (h *Handler) handleListPosts(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	result, err := h.service.Posts(r.Context(), plume.PostQuery{
		Page:   page,
		Limit:  limit,
		UserID: r.URL.Query().Get("userId"),
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.Post(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, post)
}

func (h *Handler) handleEditPost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if !decodeBody(w, r, &req) {
		return
	}

	post, err := h.service.EditPost(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, post)
}

func (h *Handler) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePost(r.Context(), callerID(r), chi.URLParam(r, "id")); err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]string{"msg": "Post removed"})
}

func (h *Handler) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ToggleLike(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

// Images

func (h *Handler) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	upload, err := readImageUpload(w, r)
	if err != nil {
		HandleError(w, err)
		return
	}

	result, err := h.service.UploadImage(r.Context(), upload)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteImage(r.Context(), chi.URLParam(r, "fileName")); err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]string{"msg": "Image deleted"})
}

func (h *Handler) handleServeImage(w http.ResponseWriter, r *http.Request) {
	info, content, err := h.service.Image(r.Context(), chi.URLParam(r, "fileName"))
	if err != nil {
		HandleError(w, err)
		return
	}
	defer func() { _ = content.Close() }()

	w.Header().Set("Content-Type", info.ContentType)
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	_, _ = io.Copy(w, content)
}

// Comments

type commentRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	comment, err := h.service.CreateComment(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, comment)
}

func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.service.Comments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, comments)
}

func (h *Handler) handleEditComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	comment, err := h.service.EditComment(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, comment)
}

func (h *Handler) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteComment(r.Context(), callerID(r), chi.URLParam(r, "id")); err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]string{"msg": "Comment removed"})
}

// Helpers

// decodeBody parses a JSON request body, writing a validation error and
// returning false when the payload is malformed.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pageParams(r *http.Request) (page, limit int) {
	page, limit = 1, 10
	if v := r.URL.Query().Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			page = parsed
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	return page, limit
}
