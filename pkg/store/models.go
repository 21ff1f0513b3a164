// Package store persists dataset records in SQLite and exports them to
// CSV and Parquet files.
package store

import "time"

// Work is one document's metadata row. FullTextHTML is only populated
// when full text retention is enabled and can be large.
type Work struct {
	CelexID      string     `gorm:"column:celex_id;primaryKey"`
	DocumentType string     `gorm:"column:document_type"`
	Title        string     `gorm:"column:title"`
	DateAdopted  *time.Time `gorm:"column:date_adopted"`
	Language     string     `gorm:"column:language"`
	FullTextHTML string     `gorm:"column:full_text_html;type:text"`

	TextUnits []TextUnit `gorm:"foreignKey:CelexID;references:CelexID;constraint:OnDelete:CASCADE"`
	Relations []Relation `gorm:"foreignKey:CelexSource;references:CelexID;constraint:OnDelete:CASCADE"`
}

// TableName implements the gorm naming override.
func (Work) TableName() string { return "works" }

// TextUnit is one extracted recital, article, or annex row.
type TextUnit struct {
	ID      uint   `gorm:"column:id;primaryKey"`
	CelexID string `gorm:"column:celex_id;index"`
	Type    string `gorm:"column:type"`
	Number  string `gorm:"column:number"`
	Title   string `gorm:"column:title"`
	Text    string `gorm:"column:text;type:text"`
}

// TableName implements the gorm naming override.
func (TextUnit) TableName() string { return "text_units" }

// Relation is one directed typed relation row between two works.
type Relation struct {
	ID           uint   `gorm:"column:id;primaryKey"`
	CelexSource  string `gorm:"column:celex_source;index"`
	CelexTarget  string `gorm:"column:celex_target"`
	RelationType string `gorm:"column:relation_type"`
}

// TableName implements the gorm naming override.
func (Relation) TableName() string { return "relations" }
