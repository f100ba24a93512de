package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStatusChanged is returned when a conditional status write matched no row.
var ErrStatusChanged = errors.New("repository: record not in expected status")

// ErrQuotaReached is returned when an author already holds the maximum number of entries.
var ErrQuotaReached = errors.New("repository: submission quota reached")

type scope = func(db *gorm.DB) *gorm.DB

// forUpdate takes a row lock. SQLite ignores the clause.
func forUpdate() scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
}

func paginate(page, pageSize int) scope {
	return func(db *gorm.DB) *gorm.DB {
		if pageSize <= 0 {
			return db
		}
		if page <= 0 {
			page = 1
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}
