package store

import (
	"bitwise74/kidney-api/internal/model"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLMedium keeps a document as one row of the documents table, keyed by
// name. Useful when the service runs without a writable disk.
type SQLMedium struct {
	db   *gorm.DB
	name string
}

func NewSQLMedium(db *gorm.DB, name string) *SQLMedium {
	return &SQLMedium{
		db:   db,
		name: name,
	}
}

func (m *SQLMedium) Name() string {
	return "sql:" + m.name
}

func (m *SQLMedium) Read(ctx context.Context) ([]byte, error) {
	var doc model.Document

	err := m.db.
		WithContext(ctx).
		Where("name = ?", m.name).
		First(&doc).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotExist
		}

		return nil, fmt.Errorf("failed to select document %s, %w", m.name, err)
	}

	return doc.Body, nil
}

func (m *SQLMedium) Write(ctx context.Context, data []byte) error {
	err := m.db.
		WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&model.Document{
			Name:      m.name,
			Body:      data,
			UpdatedAt: time.Now(),
		}).
		Error
	if err != nil {
		return fmt.Errorf("failed to upsert document %s, %w", m.name, err)
	}

	return nil
}
