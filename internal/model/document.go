package model

import "time"

// Document is one whole JSON document kept in a SQL table when the sql
// storage type is used
type Document struct {
	Name      string `gorm:"primaryKey"`
	Body      []byte `gorm:"not null"`
	UpdatedAt time.Time
}
