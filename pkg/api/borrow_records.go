package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"librarysys/pkg/circulation"
	"librarysys/pkg/lifecycle"
	"librarysys/pkg/models"
	"librarysys/pkg/store"
)

func borrowRecordResponse(record models.BorrowRecord) gin.H {
	return gin.H{
		"recordUid":  record.RecordUid,
		"status":     record.Status,
		"borrowDate": formatTime(&record.BorrowDate),
		"dueDate":    formatDate(record.DueDate),
		"returnDate": formatTime(record.ReturnDate),
		"book": gin.H{
			"isbn":            record.Book.ISBN,
			"title":           record.Book.Title,
			"availableCopies": record.Book.AvailableCopies,
		},
		"reader": gin.H{
			"readerId": record.Reader.Card,
			"name":     record.Reader.Name,
		},
	}
}

func (h *Handler) createBorrowRecord(c *gin.Context) {
	var request struct {
		ISBN       string `json:"isbn" binding:"required"`
		ReaderID   string `json:"readerId" binding:"required"`
		BorrowDate string `json:"borrowDate"`
		DueDate    string `json:"dueDate"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}

	loc := h.circulation.Location()
	borrowDate, err := parseDate("borrowDate", request.BorrowDate, loc)
	if err != nil {
		h.respondError(c, err)
		return
	}
	dueDate, err := parseDate("dueDate", request.DueDate, loc)
	if err != nil {
		h.respondError(c, err)
		return
	}

	record, err := h.circulation.RecordBorrow(c.Request.Context(), circulation.BorrowRequest{
		ISBN:       request.ISBN,
		ReaderCard: request.ReaderID,
		BorrowDate: borrowDate,
		DueDate:    dueDate,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Location", "/api/v1/borrow-records/"+record.RecordUid)
	c.JSON(http.StatusCreated, borrowRecordResponse(*record))
}

func (h *Handler) listBorrowRecords(c *gin.Context) {
	ctx := c.Request.Context()
	filter := store.BorrowFilter{Page: pageParams(c), Status: c.Query("status")}

	switch filter.Status {
	case "", models.StatusBorrowed, models.StatusReturned, models.StatusOverdue:
	default:
		h.respondError(c, &circulation.ValidationError{Field: "status", Reason: "must be borrowed, returned or overdue"})
		return
	}
	if card := c.Query("readerId"); card != "" {
		reader, err := h.store.GetReaderByCard(ctx, card)
		if err != nil {
			h.respondError(c, err)
			return
		}
		filter.ReaderID = reader.ID
	}
	if isbn := c.Query("isbn"); isbn != "" {
		book, err := h.store.GetBookByISBN(ctx, isbn)
		if err != nil {
			h.respondError(c, err)
			return
		}
		filter.BookID = book.ID
	}

	records, total, err := h.store.ListBorrowRecords(ctx, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]gin.H, len(records))
	for i, record := range records {
		items[i] = borrowRecordResponse(record)
	}
	c.JSON(http.StatusOK, paged(filter.Page, total, items))
}

func (h *Handler) getBorrowRecord(c *gin.Context) {
	record, err := h.circulation.Refresh(c.Request.Context(), c.Param("recordUid"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, borrowRecordResponse(*record))
}

// returnBorrowRecord handles the only transition a client may ask for.
// Overdue is reached by date alone.
func (h *Handler) returnBorrowRecord(c *gin.Context) {
	var request struct {
		Status     string `json:"status" binding:"required"`
		ReturnDate string `json:"returnDate"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}

	switch request.Status {
	case models.StatusReturned:
	case models.StatusBorrowed, models.StatusOverdue:
		h.respondError(c, fmt.Errorf("set status %q by request: %w", request.Status, lifecycle.ErrInvalidTransition))
		return
	default:
		h.respondError(c, &circulation.ValidationError{Field: "status", Reason: "must be returned"})
		return
	}

	returnDate, err := parseDate("returnDate", request.ReturnDate, h.circulation.Location())
	if err != nil {
		h.respondError(c, err)
		return
	}
	record, err := h.circulation.RecordReturn(c.Request.Context(), c.Param("recordUid"),
		circulation.ReturnRequest{ReturnDate: returnDate})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, borrowRecordResponse(*record))
}
