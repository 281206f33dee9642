package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"librarysys/pkg/database"
)

// legacySaveBook accepts the old form post used by the catalogue page.
func (h *Handler) legacySaveBook(c *gin.Context) {
	var request bookRequest
	if err := c.ShouldBind(&request); err != nil {
		c.String(http.StatusBadRequest, "Invalid book: %s", err.Error())
		return
	}
	if _, err := h.saveNewBook(c, request); err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<p>Book saved successfully!</p>"))
}

// legacyGetBooks lists every title, one per line.
func (h *Handler) legacyGetBooks(c *gin.Context) {
	books, err := h.store.AllBooks(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	titles := make([]string, len(books))
	for i, book := range books {
		titles[i] = book.Title
	}
	c.String(http.StatusOK, "%s", strings.Join(titles, "\n"))
}

func (h *Handler) healthCheck(c *gin.Context) {
	if err := database.Ping(h.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"details": "Library service is active",
		"policy":  h.circulation.Policy().String(),
	})
}
