package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"librarysys/pkg/circulation"
	"librarysys/pkg/lifecycle"
	"librarysys/pkg/models"
	"librarysys/pkg/store"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type testServer struct {
	db      *gorm.DB
	store   *store.Store
	handler *Handler
	router  *gin.Engine
}

func newTestServer(t *testing.T, policy lifecycle.Policy) *testServer {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)
	st := store.New(db)
	engine := lifecycle.New(lifecycle.Options{Policy: policy, Clock: func() time.Time { return now }})
	h := NewHandler(db, st, circulation.NewService(st, engine, zap.NewNop()), zap.NewNop())
	return &testServer{db: db, store: st, handler: h, router: NewRouter(h)}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(w.Body.Bytes(), &response)
	}
	return w, response
}

func (s *testServer) seedBook(t *testing.T, isbn string, total, available int) *models.Book {
	book := &models.Book{ISBN: isbn, Title: "Book " + isbn, Category: "CS", TotalCopies: total, AvailableCopies: available}
	require.NoError(t, s.store.CreateBook(context.Background(), book))
	return book
}

func (s *testServer) seedReader(t *testing.T, card, status string) *models.Reader {
	reader := &models.Reader{Card: card, Name: "Reader " + card, Gender: models.GenderFemale, Status: status, RegisterDate: now}
	require.NoError(t, s.store.CreateReader(context.Background(), reader))
	return reader
}

func (s *testServer) available(t *testing.T, isbn string) int {
	book, err := s.store.GetBookByISBN(context.Background(), isbn)
	require.NoError(t, err)
	return book.AvailableCopies
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/manage/health", nil)

	srv.handler.healthCheck(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "UP", response["status"])
	assert.Equal(t, "strict", response["policy"])
}

func TestHealthCheckDatabaseDown(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)
	sqlDB, err := srv.db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w, response := srv.do(t, "GET", "/manage/health", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "DOWN", response["status"])
}

func TestLegacySaveBook(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)

	form := url.Values{}
	form.Set("isbn", "9787302423287")
	form.Set("title", "Computer Networks")
	form.Set("publisher", "Tsinghua")
	form.Set("publish_date", "2016-01-01")
	form.Set("category", "Networking")
	form.Set("total_copies", "4")
	form.Set("location", "A-3")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/book/save/", strings.NewReader(form.Encode()))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	srv.handler.legacySaveBook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>Book saved successfully!</p>", w.Body.String())

	book, err := srv.store.GetBookByISBN(context.Background(), "9787302423287")
	require.NoError(t, err)
	assert.Equal(t, 4, book.TotalCopies)
	assert.Equal(t, 4, book.AvailableCopies)
	assert.Equal(t, "A-3", book.Location)
	require.NotNil(t, book.PublishDate)
	assert.Equal(t, 2016, book.PublishDate.Year())
}

func TestLegacySaveBookRejectsMissingTitle(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)

	req := httptest.NewRequest("POST", "/book/save/", strings.NewReader("isbn=123&total_copies=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLegacyGetBooks(t *testing.T) {
	srv := newTestServer(t, lifecycle.PolicyStrict)
	srv.seedBook(t, "111", 1, 1)
	srv.seedBook(t, "222", 1, 1)

	req := httptest.NewRequest("GET", "/book/get/", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Book 111\nBook 222", w.Body.String())
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)

	d, err := parseDate("dueDate", "2026-03-15", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, loc), *d)

	d, err = parseDate("borrowDate", "2026-03-15T10:00:00Z", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC), d.UTC())

	d, err = parseDate("dueDate", "  ", loc)
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = parseDate("dueDate", "15/03/2026", loc)
	var verr *circulation.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, "dueDate", verr.Field)
}

func TestPageParams(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/api/v1/books?page=0&size=500", nil)

	p := pageParams(c)

	assert.Equal(t, store.Page{Page: 1, Size: 10}, p)
}
