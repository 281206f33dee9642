package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"librarysys/pkg/models"
)

func (s *Store) CreateAuthor(ctx context.Context, author *models.Author) error {
	return translate(s.conn(ctx).Create(author).Error, "create author")
}

func (s *Store) GetAuthor(ctx context.Context, id uint) (*models.Author, error) {
	var author models.Author
	if err := s.conn(ctx).First(&author, id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("author %d", id))
	}
	return &author, nil
}

func (s *Store) ListAuthors(ctx context.Context, p Page) ([]models.Author, int64, error) {
	var total int64
	if err := s.conn(ctx).Model(&models.Author{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count authors")
	}
	var authors []models.Author
	if err := s.conn(ctx).Scopes(p.scope).Order("id").Find(&authors).Error; err != nil {
		return nil, 0, translate(err, "list authors")
	}
	return authors, total, nil
}

// DeleteAuthor removes the author and every link to a book. The books stay.
func (s *Store) DeleteAuthor(ctx context.Context, id uint) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("author_id = ?", id).Delete(&models.BookAuthor{}).Error; err != nil {
			return translate(err, "delete author links")
		}
		res := tx.Delete(&models.Author{}, id)
		if res.Error != nil {
			return translate(res.Error, fmt.Sprintf("delete author %d", id))
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("author %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

// LinkAuthor attributes a book to an author. Linking the same pair twice
// returns ErrConflict.
func (s *Store) LinkAuthor(ctx context.Context, bookID, authorID uint) (*models.BookAuthor, error) {
	link := &models.BookAuthor{BookID: bookID, AuthorID: authorID}
	if err := s.conn(ctx).Omit("Book", "Author").Create(link).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("link book %d to author %d", bookID, authorID))
	}
	return link, nil
}

func (s *Store) UnlinkAuthor(ctx context.Context, bookID, authorID uint) error {
	res := s.conn(ctx).Where("book_id = ? AND author_id = ?", bookID, authorID).Delete(&models.BookAuthor{})
	if res.Error != nil {
		return translate(res.Error, "unlink author")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("link book %d to author %d: %w", bookID, authorID, ErrNotFound)
	}
	return nil
}

func (s *Store) AuthorsOfBook(ctx context.Context, bookID uint) ([]models.Author, error) {
	var authors []models.Author
	err := s.conn(ctx).
		Joins("JOIN book_authors ON book_authors.author_id = authors.id").
		Where("book_authors.book_id = ?", bookID).
		Order("authors.id").
		Find(&authors).Error
	return authors, translate(err, "authors of book")
}

func (s *Store) BooksOfAuthor(ctx context.Context, authorID uint) ([]models.Book, error) {
	var books []models.Book
	err := s.conn(ctx).
		Joins("JOIN book_authors ON book_authors.book_id = books.id").
		Where("book_authors.author_id = ?", authorID).
		Order("books.id").
		Find(&books).Error
	return books, translate(err, "books of author")
}
