package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/inklaunch-api/internal/models"
)

// BookRepository reads published catalog entries.
type BookRepository interface {
	FindByID(ctx context.Context, id uint) (models.Book, error)
}

type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository constructs the catalog repository.
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) FindByID(ctx context.Context, id uint) (models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, id).Error; err != nil {
		return models.Book{}, err
	}
	return book, nil
}
