package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"blogcms/internal/app"
	"blogcms/internal/util"
	"blogcms/pkg/domain"
	"blogcms/pkg/store"
)

const maxBodyBytes = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
}

// Server exposes the public read API and the authenticated admin API.
type Server struct {
	app *app.App
	mux *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app: cfg.App,
		mux: http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler wrapped in the common middleware.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("blogcms", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/login", s.handleLogin)

	// articles
	s.mux.HandleFunc("/api/articles", s.handleArticles)
	s.mux.HandleFunc("/api/articles/", s.handleArticleSubpath)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// adminHandler receives the authenticated admin username.
type adminHandler func(http.ResponseWriter, *http.Request, string)

// authenticated guards mutating routes. A missing token and a failed
// verification are reported differently: 401 versus 403.
func (s *Server) authenticated(next adminHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "No token provided")
			return
		}
		username, ok := s.app.UsernameFromToken(token)
		if !ok {
			writeError(w, http.StatusForbidden, "Invalid or expired token")
			return
		}
		next(w, r, username)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, err := s.app.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, app.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		slog.Error("login failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListArticles(w, r)
	case http.MethodPost:
		s.authenticated(s.handleCreateArticle)(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /api/articles/{id}, plus the export/import admin endpoints.
func (s *Server) handleArticleSubpath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/articles/")
	switch path {
	case "export":
		s.authenticated(s.handleExportArticles)(w, r)
		return
	case "import":
		s.authenticated(s.handleImportArticles)(w, r)
		return
	}
	id, err := strconv.ParseInt(path, 10, 64)
	if err != nil {
		notFound(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleGetArticle(w, r, id)
	case http.MethodPut:
		s.authenticated(func(w http.ResponseWriter, r *http.Request, _ string) {
			s.handleUpdateArticle(w, r, id)
		})(w, r)
	case http.MethodDelete:
		s.authenticated(func(w http.ResponseWriter, r *http.Request, _ string) {
			s.handleDeleteArticle(w, r, id)
		})(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := positiveIntParam(query.Get("page"), 1)
	limit := positiveIntParam(query.Get("limit"), app.DefaultPageLimit)
	filter := domain.ListFilter{
		Query: query.Get("q"),
		Tag:   query.Get("tag"),
	}
	result, err := s.app.ListArticles(page, limit, filter)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	// Listings must never be served from a cache; clients rely on seeing
	// fresh data immediately after an admin mutation.
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetArticle(w http.ResponseWriter, _ *http.Request, id int64) {
	article, err := s.app.GetArticle(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Article not found")
			return
		}
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request, _ string) {
	var article domain.Article
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&article); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	created, err := s.app.CreateArticle(article)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request, id int64) {
	var fields domain.Article
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	updated, err := s.app.UpdateArticle(id, fields)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Article not found")
		case isValidationError(err):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeStorageError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, _ *http.Request, id int64) {
	if err := s.app.DeleteArticle(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Article not found")
			return
		}
		writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportArticles(w http.ResponseWriter, r *http.Request, _ string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	articles, err := s.app.ExportArticles()
	if err != nil {
		writeStorageError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="articles-export.json"`)
	writeJSON(w, http.StatusOK, articles)
}

func (s *Server) handleImportArticles(w http.ResponseWriter, r *http.Request, _ string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var articles []domain.Article
	if err := json.NewDecoder(io.LimitReader(r.Body, 8*maxBodyBytes)).Decode(&articles); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	imported, err := s.app.ImportArticles(articles)
	if err != nil {
		if isValidationError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeStorageError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": imported})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func positiveIntParam(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func isValidationError(err error) bool {
	return errors.Is(err, app.ErrTitleRequired) || errors.Is(err, app.ErrContentRequired)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "Article not found")
}

func writeStorageError(w http.ResponseWriter, err error) {
	slog.Error("storage failure", "err", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]errorBody{"error": {Message: msg}})
}
