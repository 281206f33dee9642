package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"librarysys/pkg/circulation"
	"librarysys/pkg/models"
	"librarysys/pkg/store"
)

type readerRequest struct {
	ReaderID     string `json:"readerId" binding:"max=20"`
	Name         string `json:"name" binding:"required,max=100"`
	Gender       string `json:"gender"`
	Phone        string `json:"phone" binding:"max=20"`
	Email        string `json:"email" binding:"omitempty,email,max=100"`
	Address      string `json:"address"`
	RegisterDate string `json:"registerDate"`
}

// readerPatch carries the fields a reader update may touch. Nil fields are
// left alone.
type readerPatch struct {
	Name    *string `json:"name" binding:"omitempty,max=100"`
	Gender  *string `json:"gender"`
	Phone   *string `json:"phone" binding:"omitempty,max=20"`
	Email   *string `json:"email" binding:"omitempty,max=100"`
	Address *string `json:"address"`
	Status  *string `json:"status"`
}

func readerResponse(reader models.Reader) gin.H {
	return gin.H{
		"readerId":     reader.Card,
		"name":         reader.Name,
		"gender":       reader.Gender,
		"phone":        reader.Phone,
		"email":        reader.Email,
		"address":      reader.Address,
		"registerDate": reader.RegisterDate.Format(dateLayout),
		"status":       reader.Status,
	}
}

// newCardNumber issues a library card number for readers registered
// without one.
func newCardNumber() string {
	return "R" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:10])
}

func (h *Handler) createReader(c *gin.Context) {
	var request readerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}

	gender := request.Gender
	if gender == "" {
		gender = models.GenderUnknown
	}
	if !models.ValidGender(gender) {
		h.respondError(c, &circulation.ValidationError{Field: "gender", Reason: "must be male, female or unknown"})
		return
	}
	registerDate, err := parseDate("registerDate", request.RegisterDate, time.UTC)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if registerDate == nil {
		today := h.circulation.Today()
		registerDate = &today
	}
	card := strings.TrimSpace(request.ReaderID)
	if card == "" {
		card = newCardNumber()
	}

	reader := &models.Reader{
		Card:         card,
		Name:         strings.TrimSpace(request.Name),
		Gender:       gender,
		Phone:        request.Phone,
		Email:        request.Email,
		Address:      request.Address,
		RegisterDate: *registerDate,
		Status:       models.ReaderNormal,
	}
	if err := h.store.CreateReader(c.Request.Context(), reader); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, readerResponse(*reader))
}

func (h *Handler) listReaders(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !models.ValidReaderStatus(status) {
		h.respondError(c, &circulation.ValidationError{Field: "status", Reason: "must be normal or frozen"})
		return
	}
	filter := store.ReaderFilter{Page: pageParams(c), Status: status}
	readers, total, err := h.store.ListReaders(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	items := make([]gin.H, len(readers))
	for i, reader := range readers {
		items[i] = readerResponse(reader)
	}
	c.JSON(http.StatusOK, paged(filter.Page, total, items))
}

func (h *Handler) getReader(c *gin.Context) {
	reader, err := h.store.GetReaderByCard(c.Request.Context(), c.Param("readerId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, readerResponse(*reader))
}

func (h *Handler) updateReader(c *gin.Context) {
	var patch readerPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	reader, err := h.store.GetReaderByCard(ctx, c.Param("readerId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			h.respondError(c, &circulation.ValidationError{Field: "name", Reason: "must not be empty"})
			return
		}
		reader.Name = name
	}
	if patch.Gender != nil {
		if !models.ValidGender(*patch.Gender) {
			h.respondError(c, &circulation.ValidationError{Field: "gender", Reason: "must be male, female or unknown"})
			return
		}
		reader.Gender = *patch.Gender
	}
	if patch.Status != nil {
		if !models.ValidReaderStatus(*patch.Status) {
			h.respondError(c, &circulation.ValidationError{Field: "status", Reason: "must be normal or frozen"})
			return
		}
		reader.Status = *patch.Status
	}
	if patch.Phone != nil {
		reader.Phone = *patch.Phone
	}
	if patch.Email != nil {
		reader.Email = *patch.Email
	}
	if patch.Address != nil {
		reader.Address = *patch.Address
	}

	if err := h.store.UpdateReader(ctx, reader); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, readerResponse(*reader))
}
