package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"librarysys/pkg/models"
)

type ReaderFilter struct {
	Page
	Status string
}

func (f ReaderFilter) scope(q *gorm.DB) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

func (s *Store) CreateReader(ctx context.Context, reader *models.Reader) error {
	return translate(s.conn(ctx).Create(reader).Error, "create reader")
}

func (s *Store) GetReader(ctx context.Context, id uint) (*models.Reader, error) {
	var reader models.Reader
	if err := s.conn(ctx).First(&reader, id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("reader %d", id))
	}
	return &reader, nil
}

// GetReaderByCard looks a reader up by library card number.
func (s *Store) GetReaderByCard(ctx context.Context, card string) (*models.Reader, error) {
	var reader models.Reader
	if err := s.conn(ctx).Where("reader_id = ?", card).First(&reader).Error; err != nil {
		return nil, translate(err, "reader "+card)
	}
	return &reader, nil
}

// UpdateReader writes every column of reader. The card number cannot change.
func (s *Store) UpdateReader(ctx context.Context, reader *models.Reader) error {
	existing, err := s.GetReader(ctx, reader.ID)
	if err != nil {
		return err
	}
	if existing.Card != reader.Card {
		return fmt.Errorf("card of reader %d: %w", reader.ID, ErrImmutableField)
	}
	reader.CreatedAt = existing.CreatedAt
	return translate(s.conn(ctx).Save(reader).Error, "update reader "+reader.Card)
}

func (s *Store) ListReaders(ctx context.Context, f ReaderFilter) ([]models.Reader, int64, error) {
	var total int64
	if err := s.conn(ctx).Model(&models.Reader{}).Scopes(f.scope).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count readers")
	}
	var readers []models.Reader
	if err := s.conn(ctx).Scopes(f.scope, f.Page.scope).Order("id").Find(&readers).Error; err != nil {
		return nil, 0, translate(err, "list readers")
	}
	return readers, total, nil
}
