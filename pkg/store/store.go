package store

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// defaultBatchSize bounds insert statement size for batched saves.
const defaultBatchSize = 500

// Store wraps the SQLite database holding works, text units, and
// relations.
type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// Open opens (creating if needed) the SQLite database at path and
// migrates the schema. Use ":memory:" for an ephemeral database.
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	if err := db.AutoMigrate(&Work{}, &TextUnit{}, &Relation{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Debugw("database opened", "path", path)
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database connection.
func (store *Store) Close() error {
	sqlDB, err := store.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveWorks inserts work rows in batches.
func (store *Store) SaveWorks(works []Work) error {
	if len(works) == 0 {
		return nil
	}
	if err := store.db.CreateInBatches(works, defaultBatchSize).Error; err != nil {
		return fmt.Errorf("failed to save works: %w", err)
	}
	store.log.Debugw("saved work records", "count", len(works))
	return nil
}

// SaveTextUnits inserts text unit rows in batches.
func (store *Store) SaveTextUnits(units []TextUnit) error {
	if len(units) == 0 {
		return nil
	}
	if err := store.db.CreateInBatches(units, defaultBatchSize).Error; err != nil {
		return fmt.Errorf("failed to save text units: %w", err)
	}
	store.log.Debugw("saved text units", "count", len(units))
	return nil
}

// SaveRelations inserts relation rows in batches.
func (store *Store) SaveRelations(relations []Relation) error {
	if len(relations) == 0 {
		return nil
	}
	if err := store.db.CreateInBatches(relations, defaultBatchSize).Error; err != nil {
		return fmt.Errorf("failed to save relations: %w", err)
	}
	store.log.Debugw("saved relations", "count", len(relations))
	return nil
}

// CountWorks returns the number of stored work rows.
func (store *Store) CountWorks() (int64, error) {
	var count int64
	err := store.db.Model(&Work{}).Count(&count).Error
	return count, err
}

// CountTextUnits returns the number of stored text unit rows.
func (store *Store) CountTextUnits() (int64, error) {
	var count int64
	err := store.db.Model(&TextUnit{}).Count(&count).Error
	return count, err
}

// CountRelations returns the number of stored relation rows.
func (store *Store) CountRelations() (int64, error) {
	var count int64
	err := store.db.Model(&Relation{}).Count(&count).Error
	return count, err
}

// HasWork reports whether a work row with the given identifier exists.
func (store *Store) HasWork(celexID string) (bool, error) {
	var count int64
	err := store.db.Model(&Work{}).Where("celex_id = ?", celexID).Count(&count).Error
	return count > 0, err
}
