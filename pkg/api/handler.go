package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"librarysys/pkg/circulation"
	"librarysys/pkg/lifecycle"
	"librarysys/pkg/store"
)

const dateLayout = "2006-01-02"

type Handler struct {
	db          *gorm.DB
	store       *store.Store
	circulation *circulation.Service
	log         *zap.Logger
}

func NewHandler(db *gorm.DB, st *store.Store, svc *circulation.Service, log *zap.Logger) *Handler {
	return &Handler{db: db, store: st, circulation: svc, log: log}
}

func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(requestLogger(h.log))
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/books", h.createBook)
		v1.GET("/books", h.listBooks)
		v1.GET("/books/:isbn", h.getBook)
		v1.PUT("/books/:isbn", h.updateBook)
		v1.DELETE("/books/:isbn", h.deleteBook)
		v1.GET("/books/:isbn/authors", h.getBookAuthors)
		v1.POST("/books/:isbn/authors", h.linkBookAuthor)
		v1.DELETE("/books/:isbn/authors/:authorId", h.unlinkBookAuthor)

		v1.POST("/authors", h.createAuthor)
		v1.GET("/authors", h.listAuthors)
		v1.GET("/authors/:authorId", h.getAuthor)
		v1.GET("/authors/:authorId/books", h.getAuthorBooks)
		v1.DELETE("/authors/:authorId", h.deleteAuthor)

		v1.POST("/readers", h.createReader)
		v1.GET("/readers", h.listReaders)
		v1.GET("/readers/:readerId", h.getReader)
		v1.PATCH("/readers/:readerId", h.updateReader)

		v1.POST("/borrow-records", h.createBorrowRecord)
		v1.GET("/borrow-records", h.listBorrowRecords)
		v1.GET("/borrow-records/:recordUid", h.getBorrowRecord)
		v1.PATCH("/borrow-records/:recordUid", h.returnBorrowRecord)
	}

	router.POST("/book/save/", h.legacySaveBook)
	router.GET("/book/get/", h.legacyGetBooks)

	router.GET("/manage/health", h.healthCheck)
	return router
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("clientIp", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("Request failed", fields...)
		default:
			log.Info("Request handled", fields...)
		}
	}
}

// respondError maps store, lifecycle and circulation errors to a status code.
func (h *Handler) respondError(c *gin.Context, err error) {
	var verr *circulation.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation error", "field": verr.Field, "details": verr.Reason})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found", "details": err.Error()})
	case errors.Is(err, circulation.ErrReaderFrozen):
		c.JSON(http.StatusForbidden, gin.H{"error": "reader is frozen", "details": err.Error()})
	case errors.Is(err, lifecycle.ErrCapacityExceeded):
		c.JSON(http.StatusConflict, gin.H{"error": "capacity exceeded", "details": err.Error()})
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid transition", "details": err.Error()})
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrImmutableField):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "details": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
}

func pageParams(c *gin.Context) store.Page {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil || size < 1 || size > 100 {
		size = 10
	}
	return store.Page{Page: page, Size: size}
}

func paged(p store.Page, total int64, items []gin.H) gin.H {
	return gin.H{
		"page":          p.Page,
		"pageSize":      p.Size,
		"totalElements": total,
		"items":         items,
	}
}

func idParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, &circulation.ValidationError{Field: name, Reason: "must be a positive integer"}
	}
	return uint(id), nil
}

// parseDate accepts a plain date, read as midnight in loc, or an RFC 3339
// timestamp. Empty input yields nil.
func parseDate(field, value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return &t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	return nil, &circulation.ValidationError{Field: field, Reason: "invalid date format, want YYYY-MM-DD or RFC 3339"}
}

func formatDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
