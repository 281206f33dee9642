package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"librarysys/pkg/circulation"
	"librarysys/pkg/models"
	"librarysys/pkg/store"
)

type bookRequest struct {
	ISBN            string `json:"isbn" form:"isbn"`
	Title           string `json:"title" form:"title" binding:"required,max=255"`
	Publisher       string `json:"publisher" form:"publisher" binding:"max=100"`
	PublishDate     string `json:"publishDate" form:"publish_date"`
	Category        string `json:"category" form:"category" binding:"max=50"`
	TotalCopies     int    `json:"totalCopies" form:"total_copies" binding:"min=0"`
	AvailableCopies *int   `json:"availableCopies" form:"available_copies"`
	Location        string `json:"location" form:"location" binding:"max=100"`
}

// apply copies the request onto book. Available copies default to the
// total for a new book and are kept for an existing one.
func (r bookRequest) apply(book *models.Book) error {
	publishDate, err := parseDate("publishDate", r.PublishDate, time.UTC)
	if err != nil {
		return err
	}

	available := book.AvailableCopies
	if book.ID == 0 {
		available = r.TotalCopies
	}
	if r.AvailableCopies != nil {
		available = *r.AvailableCopies
	}
	if available < 0 || available > r.TotalCopies {
		return &circulation.ValidationError{Field: "availableCopies", Reason: "must be between 0 and totalCopies"}
	}

	book.Title = strings.TrimSpace(r.Title)
	book.Publisher = r.Publisher
	book.PublishDate = publishDate
	book.Category = r.Category
	book.TotalCopies = r.TotalCopies
	book.AvailableCopies = available
	book.Location = r.Location
	return nil
}

func bookResponse(book models.Book) gin.H {
	return gin.H{
		"isbn":            book.ISBN,
		"title":           book.Title,
		"publisher":       book.Publisher,
		"publishDate":     formatDate(book.PublishDate),
		"category":        book.Category,
		"totalCopies":     book.TotalCopies,
		"availableCopies": book.AvailableCopies,
		"location":        book.Location,
	}
}

func (h *Handler) createBook(c *gin.Context) {
	var request bookRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	book, err := h.saveNewBook(c, request)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bookResponse(*book))
}

func (h *Handler) saveNewBook(c *gin.Context, request bookRequest) (*models.Book, error) {
	isbn := strings.TrimSpace(request.ISBN)
	if isbn == "" || len(isbn) > 20 {
		return nil, &circulation.ValidationError{Field: "isbn", Reason: "is required and at most 20 characters"}
	}
	book := &models.Book{ISBN: isbn}
	if err := request.apply(book); err != nil {
		return nil, err
	}
	if err := h.store.CreateBook(c.Request.Context(), book); err != nil {
		return nil, err
	}
	return book, nil
}

func (h *Handler) listBooks(c *gin.Context) {
	filter := store.BookFilter{
		Page:     pageParams(c),
		ISBN:     c.Query("isbn"),
		Category: c.Query("category"),
		Title:    c.Query("title"),
	}
	books, total, err := h.store.ListBooks(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]gin.H, len(books))
	for i, book := range books {
		items[i] = bookResponse(book)
	}
	c.JSON(http.StatusOK, paged(filter.Page, total, items))
}

func (h *Handler) getBook(c *gin.Context) {
	book, err := h.store.GetBookByISBN(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookResponse(*book))
}

func (h *Handler) updateBook(c *gin.Context) {
	var request bookRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	book, err := h.store.GetBookByISBN(ctx, c.Param("isbn"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if request.ISBN != "" && request.ISBN != book.ISBN {
		h.respondError(c, &circulation.ValidationError{Field: "isbn", Reason: "cannot be changed"})
		return
	}
	if err := request.apply(book); err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.store.UpdateBook(ctx, book); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookResponse(*book))
}

func (h *Handler) deleteBook(c *gin.Context) {
	ctx := c.Request.Context()
	book, err := h.store.GetBookByISBN(ctx, c.Param("isbn"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.store.DeleteBook(ctx, book.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getBookAuthors(c *gin.Context) {
	ctx := c.Request.Context()
	book, err := h.store.GetBookByISBN(ctx, c.Param("isbn"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	authors, err := h.store.AuthorsOfBook(ctx, book.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]gin.H, len(authors))
	for i, author := range authors {
		items[i] = authorResponse(author)
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) linkBookAuthor(c *gin.Context) {
	var request struct {
		AuthorID uint `json:"authorId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	book, err := h.store.GetBookByISBN(ctx, c.Param("isbn"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	author, err := h.store.GetAuthor(ctx, request.AuthorID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if _, err := h.store.LinkAuthor(ctx, book.ID, author.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"isbn":   book.ISBN,
		"author": authorResponse(*author),
	})
}

func (h *Handler) unlinkBookAuthor(c *gin.Context) {
	authorID, err := idParam(c, "authorId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	book, err := h.store.GetBookByISBN(ctx, c.Param("isbn"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.store.UnlinkAuthor(ctx, book.ID, authorID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
