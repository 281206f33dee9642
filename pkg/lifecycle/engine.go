// Package lifecycle holds the rules applied to a borrow record every time
// it is created or updated: due date defaulting, accounting of the book's
// available copies, and overdue detection.
//
// Two policies exist. PolicyLegacy keeps the historical behaviour where
// every irregular case degrades silently: a borrow against a book with no
// copy left is still recorded without touching the counter, and a return
// always gives a copy back even past the book's total. PolicyStrict refuses
// those cases with ErrCapacityExceeded or ErrInvalidTransition and leaves
// both record and book untouched.
//
// Both policies move the counter at most once per borrow and once per
// return. The historical behaviour decremented on every save of a borrowed
// record; PolicyLegacy does not reproduce that.
//
// Apply never persists anything. The caller saves the book when
// Outcome.CopiesDelta is non-zero and then saves the record, ideally in the
// same transaction with the book row locked.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"librarysys/pkg/models"
)

var (
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrInvalidTransition = errors.New("invalid transition")
)

type Policy int

const (
	PolicyStrict Policy = iota
	PolicyLegacy
)

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "strict":
		return PolicyStrict, nil
	case "legacy":
		return PolicyLegacy, nil
	}
	return PolicyStrict, fmt.Errorf("unknown borrow policy %q", s)
}

func (p Policy) String() string {
	if p == PolicyLegacy {
		return "legacy"
	}
	return "strict"
}

const DefaultLoanPeriodDays = 30

type Options struct {
	Policy         Policy
	LoanPeriodDays int
	// Location decides which calendar day a timestamp falls on.
	Location *time.Location
	Clock    func() time.Time
}

type Engine struct {
	policy     Policy
	loanPeriod int
	loc        *time.Location
	now        func() time.Time
}

func New(opts Options) *Engine {
	e := &Engine{
		policy:     opts.Policy,
		loanPeriod: opts.LoanPeriodDays,
		loc:        opts.Location,
		now:        opts.Clock,
	}
	if e.loanPeriod <= 0 {
		e.loanPeriod = DefaultLoanPeriodDays
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) Policy() Policy {
	return e.policy
}

func (e *Engine) Now() time.Time {
	return e.now()
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// Outcome reports what Apply changed.
type Outcome struct {
	DueDateDefaulted bool
	CopiesDelta      int // -1 copy lent, +1 copy returned, 0 otherwise
	BecameOverdue    bool
}

func (o Outcome) Changed() bool {
	return o.DueDateDefaulted || o.CopiesDelta != 0 || o.BecameOverdue
}

// Apply brings record and book in line with each other and with the
// current date. book must be the book the record points at.
func (e *Engine) Apply(record *models.BorrowRecord, book *models.Book) (Outcome, error) {
	var out Outcome

	if record.BookID != 0 && book.ID != 0 && record.BookID != book.ID {
		return out, fmt.Errorf("record %s belongs to book %d, got %d: %w",
			record.RecordUid, record.BookID, book.ID, ErrInvalidTransition)
	}
	if record.BorrowDate.IsZero() {
		return out, fmt.Errorf("record %s has no borrow date: %w", record.RecordUid, ErrInvalidTransition)
	}

	delta, err := e.copiesDelta(record, book)
	if err != nil {
		return out, err
	}

	if record.DueDate == nil {
		due := e.DateOf(record.BorrowDate).AddDate(0, 0, e.loanPeriod)
		record.DueDate = &due
		out.DueDateDefaulted = true
	}

	switch delta {
	case -1:
		if book.AvailableCopies > 0 {
			book.AvailableCopies--
			out.CopiesDelta = -1
		}
		record.CopyOut = true
	case 1:
		book.AvailableCopies++
		out.CopiesDelta = 1
		record.CopyOut = false
	}

	if record.Status == models.StatusBorrowed && e.DateOf(e.now()).After(storedDate(*record.DueDate)) {
		record.Status = models.StatusOverdue
		out.BecameOverdue = true
	}

	return out, nil
}

// copiesDelta decides whether the record takes (-1) or gives back (+1) a
// copy, without mutating anything. A record takes a copy once while it is
// borrowed and gives it back once when it is returned.
func (e *Engine) copiesDelta(record *models.BorrowRecord, book *models.Book) (int, error) {
	switch {
	case record.Status == models.StatusBorrowed && record.ReturnDate == nil:
		if record.CopyOut {
			return 0, nil
		}
		if book.AvailableCopies <= 0 && e.policy == PolicyStrict {
			return 0, fmt.Errorf("no copy of %s left to lend: %w", book.ISBN, ErrCapacityExceeded)
		}
		return -1, nil

	case record.Status == models.StatusReturned && record.ReturnDate != nil:
		if !record.CopyOut {
			return 0, nil
		}
		if book.AvailableCopies >= book.TotalCopies && e.policy == PolicyStrict {
			return 0, fmt.Errorf("return would lift %s above %d copies: %w",
				book.ISBN, book.TotalCopies, ErrCapacityExceeded)
		}
		return 1, nil

	case e.policy == PolicyStrict && record.Status == models.StatusReturned:
		return 0, fmt.Errorf("record %s returned without a return date: %w", record.RecordUid, ErrInvalidTransition)

	case e.policy == PolicyStrict && record.ReturnDate != nil:
		return 0, fmt.Errorf("record %s has a return date but status %q: %w",
			record.RecordUid, record.Status, ErrInvalidTransition)

	case e.policy == PolicyStrict && !validStatus(record.Status):
		return 0, fmt.Errorf("record %s has unknown status %q: %w", record.RecordUid, record.Status, ErrInvalidTransition)
	}
	return 0, nil
}

// DateOf returns the calendar day of t in the engine's location, as
// midnight UTC so that stored dates compare equal across time zones.
func (e *Engine) DateOf(t time.Time) time.Time {
	t = t.In(e.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// storedDate normalises a date column read back from the database.
func storedDate(d time.Time) time.Time {
	d = d.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func validStatus(s string) bool {
	switch s {
	case models.StatusBorrowed, models.StatusReturned, models.StatusOverdue:
		return true
	}
	return false
}
