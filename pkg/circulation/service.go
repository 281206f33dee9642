package circulation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"librarysys/pkg/lifecycle"
	"librarysys/pkg/models"
	"librarysys/pkg/store"
)

var ErrReaderFrozen = errors.New("reader is frozen")

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type BorrowRequest struct {
	ISBN       string
	ReaderCard string
	BorrowDate *time.Time // defaults to now
	DueDate    *time.Time // defaults to the loan period after BorrowDate
}

type ReturnRequest struct {
	ReturnDate *time.Time // defaults to now
}

type Service struct {
	store  *store.Store
	engine *lifecycle.Engine
	log    *zap.Logger
}

func NewService(st *store.Store, engine *lifecycle.Engine, log *zap.Logger) *Service {
	return &Service{store: st, engine: engine, log: log}
}

func (s *Service) Policy() lifecycle.Policy {
	return s.engine.Policy()
}

// Location is the time zone calendar dates are reckoned in.
func (s *Service) Location() *time.Location {
	return s.engine.Location()
}

// Today is the current calendar date in the library's time zone.
func (s *Service) Today() time.Time {
	return s.engine.DateOf(s.engine.Now())
}

// RecordBorrow lends one copy of a book to a reader. The book row stays
// locked from the availability check until the record is written.
func (s *Service) RecordBorrow(ctx context.Context, req BorrowRequest) (*models.BorrowRecord, error) {
	isbn := strings.TrimSpace(req.ISBN)
	card := strings.TrimSpace(req.ReaderCard)
	if isbn == "" {
		return nil, &ValidationError{Field: "isbn", Reason: "is required"}
	}
	if card == "" {
		return nil, &ValidationError{Field: "readerId", Reason: "is required"}
	}

	borrowDate := s.engine.Now()
	if req.BorrowDate != nil {
		borrowDate = *req.BorrowDate
	}
	var dueDate *time.Time
	if req.DueDate != nil {
		d := s.engine.DateOf(*req.DueDate)
		if d.Before(s.engine.DateOf(borrowDate)) {
			return nil, &ValidationError{Field: "dueDate", Reason: "is before the borrow date"}
		}
		dueDate = &d
	}

	var record *models.BorrowRecord
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		book, err := tx.GetBookByISBNForUpdate(ctx, isbn)
		if err != nil {
			return err
		}
		reader, err := tx.GetReaderByCard(ctx, card)
		if err != nil {
			return err
		}
		if reader.Frozen() && s.engine.Policy() == lifecycle.PolicyStrict {
			return fmt.Errorf("reader %s: %w", reader.Card, ErrReaderFrozen)
		}

		record = &models.BorrowRecord{
			RecordUid:  uuid.New().String(),
			BookID:     book.ID,
			ReaderID:   reader.ID,
			BorrowDate: borrowDate,
			DueDate:    dueDate,
			Status:     models.StatusBorrowed,
		}
		if err := s.apply(ctx, tx, record, book); err != nil {
			return err
		}
		if err := tx.CreateBorrowRecord(ctx, record); err != nil {
			return err
		}
		record.Book = *book
		record.Reader = *reader
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Book borrowed",
		zap.String("record", record.RecordUid),
		zap.String("isbn", record.Book.ISBN),
		zap.String("reader", record.Reader.Card),
		zap.Int("availableCopies", record.Book.AvailableCopies))
	return record, nil
}

// RecordReturn marks a borrow record returned and gives its copy back.
func (s *Service) RecordReturn(ctx context.Context, recordUid string, req ReturnRequest) (*models.BorrowRecord, error) {
	if strings.TrimSpace(recordUid) == "" {
		return nil, &ValidationError{Field: "recordUid", Reason: "is required"}
	}

	returnDate := s.engine.Now()
	if req.ReturnDate != nil {
		returnDate = *req.ReturnDate
	}

	var record *models.BorrowRecord
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		record, err = tx.GetBorrowRecordByUid(ctx, recordUid)
		if err != nil {
			return err
		}
		if record.Status == models.StatusReturned {
			if s.engine.Policy() == lifecycle.PolicyStrict {
				return fmt.Errorf("record %s already returned: %w", recordUid, lifecycle.ErrInvalidTransition)
			}
			return nil
		}
		if s.engine.DateOf(returnDate).Before(s.engine.DateOf(record.BorrowDate)) {
			return &ValidationError{Field: "returnDate", Reason: "is before the borrow date"}
		}
		// A plain date on the borrow day reads as midnight.
		if returnDate.Before(record.BorrowDate) {
			returnDate = record.BorrowDate
		}

		book, err := tx.GetBookForUpdate(ctx, record.BookID)
		if err != nil {
			return err
		}

		record.Status = models.StatusReturned
		record.ReturnDate = &returnDate
		if err := s.apply(ctx, tx, record, book); err != nil {
			return err
		}
		if err := tx.UpdateBorrowRecord(ctx, record); err != nil {
			return err
		}
		record.Book = *book
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Book returned",
		zap.String("record", record.RecordUid),
		zap.String("isbn", record.Book.ISBN),
		zap.Int("availableCopies", record.Book.AvailableCopies))
	return record, nil
}

// Refresh re-evaluates a stored record against the current date, so a read
// never shows a late loan as merely borrowed.
func (s *Service) Refresh(ctx context.Context, recordUid string) (*models.BorrowRecord, error) {
	var record *models.BorrowRecord
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		record, err = tx.GetBorrowRecordByUid(ctx, recordUid)
		if err != nil {
			return err
		}
		if record.Status != models.StatusBorrowed {
			return nil
		}
		changed, err := s.refresh(ctx, tx, record)
		if err != nil || !changed {
			return err
		}
		book, err := tx.GetBook(ctx, record.BookID)
		if err != nil {
			return err
		}
		record.Book = *book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// SweepError lists the records a sweep could not update. The sweep keeps
// going past them.
type SweepError struct {
	Failed []string
	Err    error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("overdue sweep: %d record(s) failed, first: %v", len(e.Failed), e.Err)
}

func (e *SweepError) Unwrap() error {
	return e.Err
}

// SweepOverdue flips every borrowed record past its due date to overdue and
// returns how many changed. Records that fail are reported in a *SweepError.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	due, err := s.store.ListDueBorrowRecords(ctx, s.Today())
	if err != nil {
		return 0, err
	}

	flipped := 0
	var failed *SweepError
	for i := range due {
		if err := ctx.Err(); err != nil {
			return flipped, err
		}
		record := due[i]
		err := s.store.Transaction(ctx, func(tx *store.Store) error {
			changed, err := s.refresh(ctx, tx, &record)
			if err == nil && changed && record.Status == models.StatusOverdue {
				flipped++
			}
			return err
		})
		if err != nil {
			s.log.Warn("Overdue check failed", zap.String("record", record.RecordUid), zap.Error(err))
			if failed == nil {
				failed = &SweepError{Err: err}
			}
			failed.Failed = append(failed.Failed, record.RecordUid)
		}
	}

	if flipped > 0 {
		s.log.Info("Overdue sweep finished", zap.Int("flagged", flipped), zap.Int("candidates", len(due)))
	}
	if failed != nil {
		return flipped, failed
	}
	return flipped, nil
}

func (s *Service) refresh(ctx context.Context, tx *store.Store, record *models.BorrowRecord) (bool, error) {
	book, err := tx.GetBookForUpdate(ctx, record.BookID)
	if err != nil {
		return false, err
	}
	before := *record
	if err := s.apply(ctx, tx, record, book); err != nil {
		return false, err
	}
	if record.Status == before.Status && record.CopyOut == before.CopyOut && sameDate(record.DueDate, before.DueDate) {
		return false, nil
	}
	return true, tx.UpdateBorrowRecord(ctx, record)
}

// apply runs the lifecycle engine and persists the book counter when it
// moved. The record itself is left for the caller to write.
func (s *Service) apply(ctx context.Context, tx *store.Store, record *models.BorrowRecord, book *models.Book) error {
	out, err := s.engine.Apply(record, book)
	if err != nil {
		return err
	}
	if out.CopiesDelta != 0 {
		if err := tx.UpdateAvailableCopies(ctx, book); err != nil {
			return err
		}
	}
	if out.Changed() {
		s.log.Debug("Borrow lifecycle applied",
			zap.String("record", record.RecordUid),
			zap.String("policy", s.engine.Policy().String()),
			zap.Bool("dueDateDefaulted", out.DueDateDefaulted),
			zap.Int("copiesDelta", out.CopiesDelta),
			zap.Bool("becameOverdue", out.BecameOverdue))
	}
	return nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
