package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"librarysys/pkg/models"
)

type BookFilter struct {
	Page
	ISBN     string
	Category string
	Title    string // substring match
}

func (s *Store) CreateBook(ctx context.Context, book *models.Book) error {
	return translate(s.conn(ctx).Create(book).Error, "create book")
}

func (s *Store) GetBook(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	if err := s.conn(ctx).First(&book, id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("book %d", id))
	}
	return &book, nil
}

func (s *Store) GetBookByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	var book models.Book
	if err := s.conn(ctx).Where("isbn = ?", isbn).First(&book).Error; err != nil {
		return nil, translate(err, "book "+isbn)
	}
	return &book, nil
}

// GetBookByISBNForUpdate loads a book and locks its row for the rest of the
// surrounding transaction.
func (s *Store) GetBookByISBNForUpdate(ctx context.Context, isbn string) (*models.Book, error) {
	var book models.Book
	if err := forUpdate(s.conn(ctx)).Where("isbn = ?", isbn).First(&book).Error; err != nil {
		return nil, translate(err, "book "+isbn)
	}
	return &book, nil
}

func (s *Store) GetBookForUpdate(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	if err := forUpdate(s.conn(ctx)).First(&book, id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("book %d", id))
	}
	return &book, nil
}

// UpdateBook writes every column of book. The ISBN of an existing book
// cannot change.
func (s *Store) UpdateBook(ctx context.Context, book *models.Book) error {
	existing, err := s.GetBook(ctx, book.ID)
	if err != nil {
		return err
	}
	if existing.ISBN != book.ISBN {
		return fmt.Errorf("isbn of book %d: %w", book.ID, ErrImmutableField)
	}
	book.CreatedAt = existing.CreatedAt
	return translate(s.conn(ctx).Save(book).Error, "update book "+book.ISBN)
}

// UpdateAvailableCopies persists only the availability counter.
func (s *Store) UpdateAvailableCopies(ctx context.Context, book *models.Book) error {
	err := s.conn(ctx).Model(book).Update("available_copies", book.AvailableCopies).Error
	return translate(err, "update copies of "+book.ISBN)
}

func (f BookFilter) scope(q *gorm.DB) *gorm.DB {
	if f.ISBN != "" {
		q = q.Where("isbn = ?", f.ISBN)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Title != "" {
		q = q.Where("LOWER(title) LIKE LOWER(?)", "%"+f.Title+"%")
	}
	return q
}

func (s *Store) ListBooks(ctx context.Context, f BookFilter) ([]models.Book, int64, error) {
	var total int64
	if err := s.conn(ctx).Model(&models.Book{}).Scopes(f.scope).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count books")
	}

	var books []models.Book
	if err := s.conn(ctx).Scopes(f.scope, f.Page.scope).Order("id").Find(&books).Error; err != nil {
		return nil, 0, translate(err, "list books")
	}
	return books, total, nil
}

func (s *Store) AllBooks(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	err := s.conn(ctx).Order("id").Find(&books).Error
	return books, translate(err, "list books")
}

// DeleteBook removes the book together with its author links and borrow
// records.
func (s *Store) DeleteBook(ctx context.Context, id uint) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", id).Delete(&models.BookAuthor{}).Error; err != nil {
			return translate(err, "delete author links")
		}
		if err := tx.Where("book_id = ?", id).Delete(&models.BorrowRecord{}).Error; err != nil {
			return translate(err, "delete borrow records")
		}
		res := tx.Delete(&models.Book{}, id)
		if res.Error != nil {
			return translate(res.Error, fmt.Sprintf("delete book %d", id))
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("book %d: %w", id, ErrNotFound)
		}
		return nil
	})
}
