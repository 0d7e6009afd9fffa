package store

import "gorm.io/datatypes"

// GORM model used for persistence.
type ArticleModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Title       string `gorm:"not null"`
	Category    string
	Description string
	Tags        datatypes.JSON `gorm:"type:jsonb"`
	Content     string         `gorm:"type:text;not null"`
	ReadTime    string
	CreatedAt   string `gorm:"type:text;not null;index"`
}

// TableName keeps the legacy table name.
func (ArticleModel) TableName() string { return "articles" }
