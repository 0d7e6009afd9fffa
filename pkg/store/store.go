package store

import (
	"errors"

	"blogcms/pkg/domain"
)

// ErrNotFound is returned when no article exists for the requested id.
var ErrNotFound = errors.New("article not found")

// ArticleStore provides durable CRUD over article records.
//
// List returns one window of articles ordered newest-createdAt first plus the
// total row count matching the filter, so callers can decide whether adjacent
// pages exist. Update replaces every settable field in place but never
// touches id or createdAt; it reports ErrNotFound when no row was affected,
// as does Delete.
type ArticleStore interface {
	List(page, limit int, filter domain.ListFilter) ([]domain.Article, int64, error)
	All() ([]domain.Article, error)
	Get(id int64) (domain.Article, error)
	Create(article domain.Article) (domain.Article, error)
	Update(id int64, fields domain.Article) (domain.Article, error)
	Delete(id int64) error
}

// SessionStore issues and validates admin session tokens.
type SessionStore interface {
	NewSession(username string) (string, error)
	UsernameFromToken(token string) (string, bool, error)
}
