package store

import (
	"sort"
	"strings"
	"sync"

	"blogcms/pkg/domain"
)

// MemoryStore keeps articles in-process. It backs handler tests and mirrors
// the GormStore contract, including ordering and ErrNotFound behavior.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	articles map[int64]domain.Article
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		articles: make(map[int64]domain.Article),
	}
}

// List returns one window of articles plus the total matching row count.
func (m *MemoryStore) List(page, limit int, filter domain.ListFilter) ([]domain.Article, int64, error) {
	all := m.matching(filter)
	total := int64(len(all))
	offset := (page - 1) * limit
	if offset >= len(all) {
		return []domain.Article{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// All returns every article, newest first.
func (m *MemoryStore) All() ([]domain.Article, error) {
	return m.matching(domain.ListFilter{}), nil
}

// Get retrieves an article by id.
func (m *MemoryStore) Get(id int64) (domain.Article, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.articles[id]
	if !ok {
		return domain.Article{}, ErrNotFound
	}
	return cloneArticle(a), nil
}

// Create persists a new article and returns it with its assigned id.
func (m *MemoryStore) Create(article domain.Article) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	article.ID = m.nextID
	m.nextID++
	if article.Tags == nil {
		article.Tags = []string{}
	}
	m.articles[article.ID] = cloneArticle(article)
	return article, nil
}

// Update replaces the settable fields in place, keeping id and createdAt.
func (m *MemoryStore) Update(id int64, fields domain.Article) (domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.articles[id]
	if !ok {
		return domain.Article{}, ErrNotFound
	}
	current.Title = fields.Title
	current.Category = fields.Category
	current.Description = fields.Description
	current.Tags = fields.Tags
	if current.Tags == nil {
		current.Tags = []string{}
	}
	current.Content = fields.Content
	current.ReadTime = fields.ReadTime
	m.articles[id] = cloneArticle(current)
	return cloneArticle(current), nil
}

// Delete removes the record permanently.
func (m *MemoryStore) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[id]; !ok {
		return ErrNotFound
	}
	delete(m.articles, id)
	return nil
}

func (m *MemoryStore) matching(filter domain.ListFilter) []domain.Article {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Article, 0, len(m.articles))
	for _, a := range m.articles {
		if matchesFilter(a, filter) {
			res = append(res, cloneArticle(a))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt != res[j].CreatedAt {
			return res[i].CreatedAt > res[j].CreatedAt
		}
		return res[i].ID > res[j].ID
	})
	return res
}

func matchesFilter(a domain.Article, filter domain.ListFilter) bool {
	if q := strings.TrimSpace(filter.Query); q != "" {
		needle := strings.ToLower(q)
		if !strings.Contains(strings.ToLower(a.Title), needle) &&
			!strings.Contains(strings.ToLower(a.Description), needle) &&
			!strings.Contains(strings.ToLower(a.Content), needle) {
			return false
		}
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		found := false
		for _, t := range a.Tags {
			if t == tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func cloneArticle(a domain.Article) domain.Article {
	tags := make([]string, len(a.Tags))
	copy(tags, a.Tags)
	a.Tags = tags
	return a
}
