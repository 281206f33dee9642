package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"librarysys/pkg/circulation"
	"librarysys/pkg/models"
)

func authorResponse(author models.Author) gin.H {
	return gin.H{
		"id":        author.ID,
		"name":      author.Name,
		"biography": author.Biography,
	}
}

func (h *Handler) createAuthor(c *gin.Context) {
	var request struct {
		Name      string `json:"name" binding:"required,max=100"`
		Biography string `json:"biography"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	name := strings.TrimSpace(request.Name)
	if name == "" {
		h.respondError(c, &circulation.ValidationError{Field: "name", Reason: "is required"})
		return
	}

	author := &models.Author{Name: name, Biography: request.Biography}
	if err := h.store.CreateAuthor(c.Request.Context(), author); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authorResponse(*author))
}

func (h *Handler) listAuthors(c *gin.Context) {
	p := pageParams(c)
	authors, total, err := h.store.ListAuthors(c.Request.Context(), p)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]gin.H, len(authors))
	for i, author := range authors {
		items[i] = authorResponse(author)
	}
	c.JSON(http.StatusOK, paged(p, total, items))
}

func (h *Handler) getAuthor(c *gin.Context) {
	id, err := idParam(c, "authorId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	author, err := h.store.GetAuthor(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authorResponse(*author))
}

func (h *Handler) getAuthorBooks(c *gin.Context) {
	id, err := idParam(c, "authorId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetAuthor(ctx, id); err != nil {
		h.respondError(c, err)
		return
	}
	books, err := h.store.BooksOfAuthor(ctx, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]gin.H, len(books))
	for i, book := range books {
		items[i] = bookResponse(book)
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) deleteAuthor(c *gin.Context) {
	id, err := idParam(c, "authorId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.store.DeleteAuthor(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
