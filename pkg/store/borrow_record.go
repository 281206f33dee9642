package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"librarysys/pkg/models"
)

type BorrowFilter struct {
	Page
	ReaderID uint
	BookID   uint
	Status   string
}

func (f BorrowFilter) scope(q *gorm.DB) *gorm.DB {
	if f.ReaderID != 0 {
		q = q.Where("reader_id = ?", f.ReaderID)
	}
	if f.BookID != 0 {
		q = q.Where("book_id = ?", f.BookID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// CreateBorrowRecord inserts the record only; the book and reader it
// points at are never written through it.
func (s *Store) CreateBorrowRecord(ctx context.Context, record *models.BorrowRecord) error {
	err := s.conn(ctx).Omit(clause.Associations).Create(record).Error
	return translate(err, "create borrow record")
}

func (s *Store) UpdateBorrowRecord(ctx context.Context, record *models.BorrowRecord) error {
	err := s.conn(ctx).Omit(clause.Associations).Save(record).Error
	return translate(err, "update borrow record "+record.RecordUid)
}

func (s *Store) GetBorrowRecord(ctx context.Context, id uint) (*models.BorrowRecord, error) {
	var record models.BorrowRecord
	if err := s.conn(ctx).First(&record, id).Error; err != nil {
		return nil, translate(err, fmt.Sprintf("borrow record %d", id))
	}
	return &record, nil
}

// GetBorrowRecordByUid loads a record with its book and reader attached.
func (s *Store) GetBorrowRecordByUid(ctx context.Context, uid string) (*models.BorrowRecord, error) {
	var record models.BorrowRecord
	err := s.conn(ctx).Preload("Book").Preload("Reader").
		Where("record_uid = ?", uid).First(&record).Error
	if err != nil {
		return nil, translate(err, "borrow record "+uid)
	}
	return &record, nil
}

func (s *Store) ListBorrowRecords(ctx context.Context, f BorrowFilter) ([]models.BorrowRecord, int64, error) {
	var total int64
	if err := s.conn(ctx).Model(&models.BorrowRecord{}).Scopes(f.scope).Count(&total).Error; err != nil {
		return nil, 0, translate(err, "count borrow records")
	}
	var records []models.BorrowRecord
	err := s.conn(ctx).Preload("Book").Preload("Reader").
		Scopes(f.scope, f.Page.scope).Order("id").Find(&records).Error
	if err != nil {
		return nil, 0, translate(err, "list borrow records")
	}
	return records, total, nil
}

// ListDueBorrowRecords returns the records still marked borrowed whose due
// date lies before the given date.
func (s *Store) ListDueBorrowRecords(ctx context.Context, before time.Time) ([]models.BorrowRecord, error) {
	var records []models.BorrowRecord
	err := s.conn(ctx).
		Where("status = ? AND due_date < ?", models.StatusBorrowed, before).
		Order("id").Find(&records).Error
	return records, translate(err, "list due borrow records")
}
