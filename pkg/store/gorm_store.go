package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"blogcms/pkg/domain"
)

// GormStore implements ArticleStore using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&ArticleModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// List returns one window of articles plus the total matching row count.
func (s *GormStore) List(page, limit int, filter domain.ListFilter) ([]domain.Article, int64, error) {
	var total int64
	tx, err := s.filtered(filter)
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	tx, err = s.filtered(filter)
	if err != nil {
		return nil, 0, err
	}
	var models []ArticleModel
	offset := (page - 1) * limit
	if err := tx.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	articles := make([]domain.Article, 0, len(models))
	for _, m := range models {
		articles = append(articles, articleFromModel(m))
	}
	return articles, total, nil
}

// All returns every article, newest first.
func (s *GormStore) All() ([]domain.Article, error) {
	var models []ArticleModel
	if err := s.db.Order("created_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	articles := make([]domain.Article, 0, len(models))
	for _, m := range models {
		articles = append(articles, articleFromModel(m))
	}
	return articles, nil
}

// Get retrieves an article by id.
func (s *GormStore) Get(id int64) (domain.Article, error) {
	var m ArticleModel
	if err := s.db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Article{}, ErrNotFound
		}
		return domain.Article{}, err
	}
	return articleFromModel(m), nil
}

// Create persists a new article and returns it with its assigned id.
func (s *GormStore) Create(article domain.Article) (domain.Article, error) {
	m, err := articleToModel(article)
	if err != nil {
		return domain.Article{}, err
	}
	m.ID = 0
	if err := s.db.Create(&m).Error; err != nil {
		return domain.Article{}, err
	}
	return articleFromModel(m), nil
}

// Update replaces the settable fields in place. Id and createdAt are never
// altered, even when present in the input.
func (s *GormStore) Update(id int64, fields domain.Article) (domain.Article, error) {
	tags, err := tagsToJSON(fields.Tags)
	if err != nil {
		return domain.Article{}, err
	}
	res := s.db.Model(&ArticleModel{}).Where("id = ?", id).Updates(map[string]any{
		"title":       fields.Title,
		"category":    fields.Category,
		"description": fields.Description,
		"tags":        tags,
		"content":     fields.Content,
		"read_time":   fields.ReadTime,
	})
	if res.Error != nil {
		return domain.Article{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Article{}, ErrNotFound
	}
	return s.Get(id)
}

// Delete removes the record permanently.
func (s *GormStore) Delete(id int64) error {
	res := s.db.Delete(&ArticleModel{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) filtered(filter domain.ListFilter) (*gorm.DB, error) {
	tx := s.db.Model(&ArticleModel{})
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + q + "%"
		tx = tx.Where("title ILIKE ? OR description ILIKE ? OR content ILIKE ?", pattern, pattern, pattern)
	}
	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		member, err := json.Marshal([]string{tag})
		if err != nil {
			return nil, fmt.Errorf("encode tag filter: %w", err)
		}
		tx = tx.Where("tags @> ?", datatypes.JSON(member))
	}
	return tx, nil
}

func articleToModel(a domain.Article) (ArticleModel, error) {
	tags, err := tagsToJSON(a.Tags)
	if err != nil {
		return ArticleModel{}, err
	}
	return ArticleModel{
		ID:          a.ID,
		Title:       a.Title,
		Category:    a.Category,
		Description: a.Description,
		Tags:        tags,
		Content:     a.Content,
		ReadTime:    a.ReadTime,
		CreatedAt:   a.CreatedAt,
	}, nil
}

func articleFromModel(m ArticleModel) domain.Article {
	tags := []string{}
	if len(m.Tags) > 0 {
		// Rows written before tags were stored as JSON arrays hold a bare
		// string; treat those as a single tag rather than failing the read.
		if err := json.Unmarshal(m.Tags, &tags); err != nil {
			var single string
			if json.Unmarshal(m.Tags, &single) == nil && single != "" {
				tags = []string{single}
			}
		}
	}
	return domain.Article{
		ID:          m.ID,
		Title:       m.Title,
		Category:    m.Category,
		Description: m.Description,
		Tags:        tags,
		Content:     m.Content,
		ReadTime:    m.ReadTime,
		CreatedAt:   m.CreatedAt,
	}
}

func tagsToJSON(tags []string) (datatypes.JSON, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return datatypes.JSON(raw), nil
}
