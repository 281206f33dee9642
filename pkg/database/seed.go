package database

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"librarysys/pkg/models"
)

type seedTitle struct {
	book    models.Book
	authors []string
}

var demoCatalog = []seedTitle{
	{
		book: models.Book{
			ISBN:            "9787111213826",
			Title:           "Thinking in Java",
			Publisher:       "China Machine Press",
			Category:        "Programming",
			TotalCopies:     3,
			AvailableCopies: 3,
			Location:        "A-2-14",
		},
		authors: []string{"Bruce Eckel"},
	},
	{
		book: models.Book{
			ISBN:            "9780262033848",
			Title:           "Introduction to Algorithms",
			Publisher:       "MIT Press",
			Category:        "Computer Science",
			TotalCopies:     2,
			AvailableCopies: 2,
			Location:        "A-1-03",
		},
		authors: []string{"Thomas H. Cormen", "Charles E. Leiserson", "Ronald L. Rivest", "Clifford Stein"},
	},
	{
		book: models.Book{
			ISBN:            "9780134190440",
			Title:           "The Go Programming Language",
			Publisher:       "Addison-Wesley",
			Category:        "Programming",
			TotalCopies:     1,
			AvailableCopies: 1,
			Location:        "A-2-07",
		},
		authors: []string{"Alan A. A. Donovan", "Brian W. Kernighan"},
	},
}

var demoReaders = []models.Reader{
	{Card: "R0001", Name: "Li Wei", Gender: models.GenderMale, Email: "li.wei@example.com", Status: models.ReaderNormal},
	{Card: "R0002", Name: "Zhang Min", Gender: models.GenderFemale, Phone: "13800000000", Status: models.ReaderNormal},
}

// Seed inserts a small demo catalog. Rows that already exist are left alone.
func Seed(db *gorm.DB, log *zap.Logger) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, title := range demoCatalog {
			book := title.book
			if err := firstOrCreate(tx, &book, "isbn = ?", book.ISBN); err != nil {
				return fmt.Errorf("failed to seed book %s: %w", book.ISBN, err)
			}
			for _, name := range title.authors {
				author := models.Author{Name: name}
				if err := firstOrCreate(tx, &author, "name = ?", name); err != nil {
					return fmt.Errorf("failed to seed author %s: %w", name, err)
				}
				link := models.BookAuthor{BookID: book.ID, AuthorID: author.ID}
				if err := firstOrCreate(tx, &link, "book_id = ? AND author_id = ?", book.ID, author.ID); err != nil {
					return fmt.Errorf("failed to link %s to %s: %w", name, book.ISBN, err)
				}
			}
		}

		today := time.Now().UTC().Truncate(24 * time.Hour)
		for _, reader := range demoReaders {
			reader.RegisterDate = today
			if err := firstOrCreate(tx, &reader, "reader_id = ?", reader.Card); err != nil {
				return fmt.Errorf("failed to seed reader %s: %w", reader.Card, err)
			}
		}

		log.Info("Demo data seeded",
			zap.Int("books", len(demoCatalog)), zap.Int("readers", len(demoReaders)))
		return nil
	})
}

func firstOrCreate(tx *gorm.DB, dest interface{}, query string, args ...interface{}) error {
	err := tx.Where(query, args...).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Create(dest).Error
	}
	return err
}
