package models

import (
	"time"
)

const (
	StatusBorrowed = "borrowed"
	StatusReturned = "returned"
	StatusOverdue  = "overdue"
)

const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderUnknown = "unknown"
)

const (
	ReaderNormal = "normal"
	ReaderFrozen = "frozen"
)

type Book struct {
	ID              uint       `gorm:"primaryKey" json:"-"`
	ISBN            string     `gorm:"column:isbn;size:20;uniqueIndex;not null" json:"isbn"`
	Title           string     `gorm:"size:255;not null" json:"title"`
	Publisher       string     `gorm:"size:100" json:"publisher,omitempty"`
	PublishDate     *time.Time `gorm:"type:date" json:"publishDate,omitempty"`
	Category        string     `gorm:"size:50;index" json:"category,omitempty"`
	TotalCopies     int        `gorm:"not null;default:0" json:"totalCopies"`
	AvailableCopies int        `gorm:"not null;default:0" json:"availableCopies"`
	Location        string     `gorm:"size:100" json:"location,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type Author struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Biography string    `gorm:"type:text" json:"biography,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BookAuthor links a book and an author. A pair appears at most once and
// the row goes away with either side.
type BookAuthor struct {
	ID       uint `gorm:"primaryKey"`
	BookID   uint `gorm:"not null;uniqueIndex:idx_book_author"`
	AuthorID uint `gorm:"not null;uniqueIndex:idx_book_author;index"`

	Book   Book   `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
	Author Author `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}

type Reader struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	// Card is the library card number, exposed as readerId.
	Card         string    `gorm:"column:reader_id;size:20;uniqueIndex;not null" json:"readerId"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Gender       string    `gorm:"size:10;not null;default:'unknown'" json:"gender"`
	Phone        string    `gorm:"size:20" json:"phone,omitempty"`
	Email        string    `gorm:"size:100" json:"email,omitempty"`
	Address      string    `gorm:"type:text" json:"address,omitempty"`
	RegisterDate time.Time `gorm:"type:date;not null" json:"registerDate"`
	Status       string    `gorm:"size:10;not null;default:'normal';index" json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (r Reader) Frozen() bool {
	return r.Status == ReaderFrozen
}

type BorrowRecord struct {
	ID         uint       `gorm:"primaryKey"`
	RecordUid  string     `gorm:"type:uuid;uniqueIndex;not null"`
	BookID     uint       `gorm:"not null;index"`
	ReaderID   uint       `gorm:"not null;index"`
	BorrowDate time.Time  `gorm:"not null"`
	DueDate    *time.Time `gorm:"type:date;index"`
	ReturnDate *time.Time
	Status     string `gorm:"size:10;not null;index"`
	// CopyOut is set while this record holds one of the book's available copies.
	CopyOut   bool `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Book   Book   `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
	Reader Reader `gorm:"foreignKey:ReaderID;references:ID;constraint:OnDelete:CASCADE"`
}

// All lists every entity for migration.
func All() []interface{} {
	return []interface{}{
		&Book{},
		&Author{},
		&BookAuthor{},
		&Reader{},
		&BorrowRecord{},
	}
}

func ValidGender(g string) bool {
	switch g {
	case GenderMale, GenderFemale, GenderUnknown:
		return true
	}
	return false
}

func ValidReaderStatus(s string) bool {
	return s == ReaderNormal || s == ReaderFrozen
}
