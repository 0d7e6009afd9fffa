package app

import (
	"fmt"
	"strings"
	"time"

	"blogcms/pkg/auth"
	"blogcms/pkg/domain"
	"blogcms/pkg/store"
)

// DefaultPageLimit is the listing page size when the caller supplies none.
const DefaultPageLimit = 6

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL       string
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string
	JWTSecret         string
	SessionTTL        time.Duration
	Store             store.ArticleStore
	Sessions          store.SessionStore
}

// App is the core application service wiring together storage and auth logic.
type App struct {
	store    store.ArticleStore
	sessions store.SessionStore

	adminUsername     string
	adminPassword     string
	adminPasswordHash string
}

// New constructs the application with database storage and session issuing.
func New(cfg Config) (*App, error) {
	if strings.TrimSpace(cfg.AdminUsername) == "" {
		return nil, fmt.Errorf("admin username required")
	}
	if cfg.AdminPassword == "" && cfg.AdminPasswordHash == "" {
		return nil, fmt.Errorf("admin password or password hash required")
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessions := cfg.Sessions
	if sessions == nil {
		var err error
		sessions, err = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
	}

	return &App{
		store:             dataStore,
		sessions:          sessions,
		adminUsername:     cfg.AdminUsername,
		adminPassword:     cfg.AdminPassword,
		adminPasswordHash: cfg.AdminPasswordHash,
	}, nil
}

// Login validates the admin credentials and issues a session token.
// Both comparisons run in constant time so the response cannot distinguish
// an unknown username from a wrong password.
func (a *App) Login(username, password string) (string, error) {
	usernameOK := auth.ConstantTimeEquals(username, a.adminUsername)
	var passwordOK bool
	if a.adminPasswordHash != "" {
		passwordOK = auth.CheckPassword(password, a.adminPasswordHash)
	} else {
		passwordOK = auth.ConstantTimeEquals(password, a.adminPassword)
	}
	if !usernameOK || !passwordOK {
		return "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(a.adminUsername)
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	return token, nil
}

// UsernameFromToken resolves the admin identity from a session token.
func (a *App) UsernameFromToken(token string) (string, bool) {
	username, ok, err := a.sessions.UsernameFromToken(token)
	if err != nil || !ok {
		return "", false
	}
	return username, true
}

// ListArticles returns one page of articles plus adjacent page cursors.
func (a *App) ListArticles(page, limit int, filter domain.ListFilter) (domain.ArticlePage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	articles, total, err := a.store.List(page, limit, filter)
	if err != nil {
		return domain.ArticlePage{}, fmt.Errorf("list articles: %w", err)
	}
	if articles == nil {
		articles = []domain.Article{}
	}
	result := domain.ArticlePage{Results: articles}
	offset := (page - 1) * limit
	if int64(offset+limit) < total {
		result.Next = &domain.PageCursor{Page: page + 1, Limit: limit}
	}
	if offset > 0 {
		result.Previous = &domain.PageCursor{Page: page - 1, Limit: limit}
	}
	return result, nil
}

// GetArticle retrieves a single article.
func (a *App) GetArticle(id int64) (domain.Article, error) {
	return a.store.Get(id)
}

// CreateArticle persists a new article and returns it with its assigned id.
// The caller supplies createdAt; when absent, today's date is used so the
// ordering key always exists.
func (a *App) CreateArticle(article domain.Article) (domain.Article, error) {
	if strings.TrimSpace(article.Title) == "" {
		return domain.Article{}, ErrTitleRequired
	}
	if strings.TrimSpace(article.Content) == "" {
		return domain.Article{}, ErrContentRequired
	}
	if strings.TrimSpace(article.CreatedAt) == "" {
		article.CreatedAt = time.Now().UTC().Format("2006-01-02")
	}
	created, err := a.store.Create(article)
	if err != nil {
		return domain.Article{}, fmt.Errorf("create article: %w", err)
	}
	return created, nil
}

// UpdateArticle replaces the settable fields of an existing article.
func (a *App) UpdateArticle(id int64, fields domain.Article) (domain.Article, error) {
	if strings.TrimSpace(fields.Title) == "" {
		return domain.Article{}, ErrTitleRequired
	}
	if strings.TrimSpace(fields.Content) == "" {
		return domain.Article{}, ErrContentRequired
	}
	return a.store.Update(id, fields)
}

// DeleteArticle removes an article permanently.
func (a *App) DeleteArticle(id int64) error {
	return a.store.Delete(id)
}

// ExportArticles returns every article, newest first.
func (a *App) ExportArticles() ([]domain.Article, error) {
	articles, err := a.store.All()
	if err != nil {
		return nil, fmt.Errorf("export articles: %w", err)
	}
	if articles == nil {
		articles = []domain.Article{}
	}
	return articles, nil
}

// ImportArticles creates every supplied article in order, assigning fresh
// ids, and returns how many were created. It stops at the first failure.
func (a *App) ImportArticles(articles []domain.Article) (int, error) {
	for i, article := range articles {
		if _, err := a.CreateArticle(article); err != nil {
			return i, fmt.Errorf("import article %d: %w", i+1, err)
		}
	}
	return len(articles), nil
}
