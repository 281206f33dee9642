package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarysys/pkg/lifecycle"
	"librarysys/pkg/models"
)

func TestBorrowAndReturn(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)
	srv.seedBook(t, "111", 3, 3)
	srv.seedReader(t, "R0001", models.ReaderNormal)

	w, record := srv.do(t, "POST", "/api/v1/borrow-records", gin.H{"isbn": "111", "readerId": "R0001"})
	require.Equal(t, http.StatusCreated, w.Code)
	uid := record["recordUid"].(string)
	assert.Equal(t, "/api/v1/borrow-records/"+uid, w.Header().Get("Location"))
	assert.Equal(t, models.StatusBorrowed, record["status"])
	assert.Equal(t, "2026-03-31", record["dueDate"])
	assert.Nil(t, record["returnDate"])
	assert.Equal(t, 2, srv.available(t, "111"))

	w, record = srv.do(t, "GET", "/api/v1/borrow-records/"+uid, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusBorrowed, record["status"])
	assert.Equal(t, "R0001", record["reader"].(map[string]interface{})["readerId"])

	w, record = srv.do(t, "PATCH", "/api/v1/borrow-records/"+uid, gin.H{"status": "returned", "returnDate": "2026-03-10T15:00:00Z"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusReturned, record["status"])
	assert.Equal(t, "2026-03-10T15:00:00Z", record["returnDate"])
	assert.Equal(t, 3, srv.available(t, "111"))

	w, response := srv.do(t, "PATCH", "/api/v1/borrow-records/"+uid, gin.H{"status": "returned"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid transition", response["error"])
	assert.Equal(t, 3, srv.available(t, "111"))
}

func TestReturnOnBorrowDayWithPlainDate(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)
	srv.seedBook(t, "111", 1, 1)
	srv.seedReader(t, "R0001", models.ReaderNormal)

	w, record := srv.do(t, "POST", "/api/v1/borrow-records", gin.H{"isbn": "111", "readerId": "R0001"})
	require.Equal(t, http.StatusCreated, w.Code)
	uid := record["recordUid"].(string)

	w, record = srv.do(t, "PATCH", "/api/v1/borrow-records/"+uid, gin.H{"status": "returned", "returnDate": "2026-03-01"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusReturned, record["status"])
	assert.Equal(t, 1, srv.available(t, "111"))

	w, _ = srv.do(t, "PATCH", "/api/v1/borrow-records/"+uid, gin.H{"status": "returned", "returnDate": "2026-02-28"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBorrowWithoutCopies(t *testing.T) {
	t.Run("strict rejects", func(t *testing.T) {
		srv := newTestServer(t, lifecycle.PolicyStrict)
		srv.seedBook(t, "111", 1, 0)
		srv.seedReader(t, "R0001", models.ReaderNormal)

		w, response := srv.do(t, "POST", "/api/v1/borrow-records", gin.H{"isbn": "111", "readerId": "R0001"})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "capacity exceeded", response["error"])
		assert.Equal(t, 0, srv.available(t, "111"))
	})

	t.Run("legacy records the loan", func(t *testing.T) {
		srv := newTestServer(t, lifecycle.PolicyLegacy)
		srv.seedBook(t, "111", 1, 0)
		srv.seedReader(t, "R0001", models.ReaderNormal)

		w, record := srv.do(t, "POST", "/api/v1/borrow-records", gin.H{"isbn": "111", "readerId": "R0001"})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, models.StatusBorrowed, record["status"])
		assert.Equal(t, 0, srv.available(t, "111"))
	})
}

func TestBorrowByFrozenReader(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)
	srv.seedBook(t, "111", 1, 1)
	srv.seedReader(t, "R0001", models.ReaderFrozen)

	w, response := srv.do(t, "POST", "/api/v1/borrow-records", gin.H{"isbn": "111", "readerId": "R0001"})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "reader is frozen", response["error"])
	assert.Equal(t, 1, srv.available(t, "111"))
}

func TestBorrowUnknownBookOrReader(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)
	srv.seedBook(t, "111", 1, 1)
	srv.seedReader(t, "R0001", models.ReaderNormal)

	w, _ := srv.do(t, "POST", "/api/v1/borrow-records", gin.H{"isbn": "999", "readerId": "R0001"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = srv.do(t, "POST", "/api/v1/borrow-records", gin.H{"isbn": "111", "readerId": "R9999"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = srv.do(t, "POST", "/api/v1/borrow-records", gin.H{"isbn": "111"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBorrowPastDueIsOverdue(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)
	srv.seedBook(t, "111", 2, 2)
	srv.seedReader(t, "R0001", models.ReaderNormal)

	w, record := srv.do(t, "POST", "/api/v1/borrow-records", gin.H{
		"isbn":       "111",
		"readerId":   "R0001",
		"borrowDate": "2026-01-01",
		"dueDate":    "2026-01-15",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.StatusOverdue, record["status"])
	assert.Equal(t, "2026-01-15", record["dueDate"])
	assert.Equal(t, 1, srv.available(t, "111"))

	w, record = srv.do(t, "PATCH", "/api/v1/borrow-records/"+record["recordUid"].(string), gin.H{"status": "returned"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusReturned, record["status"])
	assert.Equal(t, 2, srv.available(t, "111"))
}

func TestBorrowDueBeforeBorrowDate(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)
	srv.seedBook(t, "111", 1, 1)
	srv.seedReader(t, "R0001", models.ReaderNormal)

	w, response := srv.do(t, "POST", "/api/v1/borrow-records", gin.H{
		"isbn":       "111",
		"readerId":   "R0001",
		"borrowDate": "2026-02-10",
		"dueDate":    "2026-02-01",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "dueDate", response["field"])
}

func TestReturnRejectsOtherStatuses(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)
	srv.seedBook(t, "111", 1, 1)
	srv.seedReader(t, "R0001", models.ReaderNormal)
	_, record := srv.do(t, "POST", "/api/v1/borrow-records", gin.H{"isbn": "111", "readerId": "R0001"})
	path := "/api/v1/borrow-records/" + record["recordUid"].(string)

	w, _ := srv.do(t, "PATCH", path, gin.H{"status": "overdue"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = srv.do(t, "PATCH", path, gin.H{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = srv.do(t, "PATCH", path, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = srv.do(t, "PATCH", "/api/v1/borrow-records/00000000-0000-0000-0000-000000000000", gin.H{"status": "returned"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 0, srv.available(t, "111"))
}

func TestListBorrowRecords(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)
	srv.seedBook(t, "111", 5, 5)
	srv.seedBook(t, "222", 5, 5)
	srv.seedReader(t, "R0001", models.ReaderNormal)
	srv.seedReader(t, "R0002", models.ReaderNormal)

	for _, loan := range []gin.H{
		{"isbn": "111", "readerId": "R0001"},
		{"isbn": "222", "readerId": "R0001"},
		{"isbn": "111", "readerId": "R0002"},
	} {
		w, _ := srv.do(t, "POST", "/api/v1/borrow-records", loan)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/borrow-records?readerId=R0001", nil)
	srv.handler.listBorrowRecords(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalElements":2`)

	_, response := srv.do(t, "GET", "/api/v1/borrow-records?isbn=111&status=borrowed", nil)
	assert.Equal(t, float64(2), response["totalElements"])

	_, response = srv.do(t, "GET", "/api/v1/borrow-records?status=returned", nil)
	assert.Equal(t, float64(0), response["totalElements"])

	w2, _ := srv.do(t, "GET", "/api/v1/borrow-records?readerId=R9999", nil)
	assert.Equal(t, http.StatusNotFound, w2.Code)

	w2, _ = srv.do(t, "GET", "/api/v1/borrow-records?status=lost", nil)
	assert.Equal(t, http.StatusBadRequest, w2.Code)
}
