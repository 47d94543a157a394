package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/config"
	"github.com/jeweluxe/jeweluxe-golang/internal/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestHandlers returns handlers backed by sqlmock. Unmet expectations
// fail the test at cleanup.
func newTestHandlers(t *testing.T) (*Handlers, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return &Handlers{
		DB:         db,
		DBReadOnly: db,
		Config: config.Config{
			BaseURL:               "http://localhost:8080",
			BcryptCost:            bcrypt.MinCost,
			ShippingFee:           decimal.NewFromInt(150),
			FreeShippingThreshold: decimal.NewFromInt(5000),
			UploadDir:             t.TempDir(),
		},
	}, mock
}

// serve runs one request through handler, signed in as userID when > 0.
func serve(method, route, path string, handler gin.HandlerFunc, body any, userID int64) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if userID > 0 {
			c.Set(middleware.UserIDKey, userID)
		}
		c.Next()
	}, handler)

	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRegister_DuplicateEmail(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE email = \?`).
		WithArgs("ana@example.com", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))

	w := serve(http.MethodPost, "/register", "/register", h.Register, map[string]string{
		"username":         "ana_reyes",
		"email":            "Ana@Example.com",
		"password":         "s3cretpass",
		"confirm_password": "s3cretpass",
	}, 0)

	assert.Equal(t, http.StatusConflict, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "email", body["field"])
}

func TestRegister_PasswordMismatch(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serve(http.MethodPost, "/register", "/register", h.Register, map[string]string{
		"username":         "ana_reyes",
		"email":            "ana@example.com",
		"password":         "s3cretpass",
		"confirm_password": "different1",
	}, 0)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "confirm_password", decode(t, w)["field"])
}

func TestRegister_PasswordTooLong(t *testing.T) {
	h, _ := newTestHandlers(t)
	long := strings.Repeat("p", 80)
	w := serve(http.MethodPost, "/register", "/register", h.Register, map[string]string{
		"username":         "ana_reyes",
		"email":            "ana@example.com",
		"password":         long,
		"confirm_password": long,
	}, 0)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "password", decode(t, w)["field"])
}

func TestChangePassword_NewPasswordTooLong(t *testing.T) {
	h, _ := newTestHandlers(t)
	long := strings.Repeat("p", 80)
	w := serve(http.MethodPut, "/profile/password", "/profile/password", h.ChangePassword, map[string]string{
		"current_password": "s3cretpass",
		"new_password":     long,
		"confirm_password": long,
	}, 5)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "new_password", decode(t, w)["field"])
}

func TestSetDefaultAddress(t *testing.T) {
	t.Run("switches the default in one transaction", func(t *testing.T) {
		h, mock := newTestHandlers(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM addresses WHERE id = \? AND user_id = \?`).
			WithArgs(int64(4), int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
		mock.ExpectExec(`UPDATE addresses SET is_default = 0 WHERE user_id = \?`).
			WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`UPDATE addresses SET is_default = 1 WHERE id = \? AND user_id = \?`).
			WithArgs(int64(4), int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		w := serve(http.MethodPatch, "/addresses/:id/default", "/addresses/4/default", h.SetDefaultAddress, nil, 9)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("someone else's address is not found", func(t *testing.T) {
		h, mock := newTestHandlers(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM addresses`).
			WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
		mock.ExpectRollback()

		w := serve(http.MethodPatch, "/addresses/:id/default", "/addresses/4/default", h.SetDefaultAddress, nil, 9)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestAddToCart_ExceedsStock(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM carts WHERE user_id = \?`).
		WithArgs(int64(3)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(`SELECT name, price, stock FROM products WHERE id = \? AND is_archived = 0 FOR UPDATE`).
		WithArgs(int64(20)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}).AddRow("Pearl Studs", "2499.00", 3))
	mock.ExpectQuery(`SELECT quantity FROM cart_items WHERE cart_id = \? AND product_id = \?`).
		WithArgs(int64(11), int64(20)).WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(2))
	mock.ExpectRollback()

	w := serve(http.MethodPost, "/cart/items", "/cart/items", h.AddToCart, map[string]any{"product_id": 20, "quantity": 2}, 3)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decode(t, w)["message"], "Only 3 of Pearl Studs left")
}

func TestAddToCart_ArchivedProduct(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM carts`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectQuery(`SELECT name, price, stock FROM products`).WillReturnRows(sqlmock.NewRows([]string{"name", "price", "stock"}))
	mock.ExpectRollback()

	w := serve(http.MethodPost, "/cart/items", "/cart/items", h.AddToCart, map[string]any{"product_id": 20}, 3)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelOrder_OnlyPending(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, order_number, user_id FROM orders WHERE id = \? AND user_id = \? FOR UPDATE`).
		WithArgs(int64(42), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "order_number", "user_id"}).AddRow("shipped", "JX-20260101-ABCDEF12", 5))
	mock.ExpectRollback()

	w := serve(http.MethodPost, "/orders/:id/cancel", "/orders/42/cancel", h.CancelOrder, nil, 5)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelOrder_RestocksAndNotifies(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, order_number, user_id FROM orders`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "order_number", "user_id"}).AddRow("pending", "JX-20260101-ABCDEF12", 5))
	mock.ExpectExec(`UPDATE products p`).WithArgs(int64(42)).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE payments`).WithArgs(int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE orders SET status = \? WHERE id = \?`).
		WithArgs("cancelled", int64(42)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO notifications`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w := serve(http.MethodPost, "/orders/:id/cancel", "/orders/42/cancel", h.CancelOrder, nil, 5)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChatAssistant_Disabled(t *testing.T) {
	h, _ := newTestHandlers(t)
	w := serve(http.MethodPost, "/assistant/chat", "/assistant/chat", h.ChatAssistant, map[string]string{"message": "Do you have gold rings?"}, 0)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestUploadImage_RejectsNonImages(t *testing.T) {
	h, _ := newTestHandlers(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "payload.exe")
	require.NoError(t, err)
	_, _ = part.Write([]byte("MZ"))
	require.NoError(t, mw.Close())

	r := gin.New()
	r.POST("/uploads", h.UploadImage)
	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "file", decode(t, w)["field"])
}

func TestUploadImage_SavesUnderUUIDName(t *testing.T) {
	h, _ := newTestHandlers(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "Ring Photo.PNG")
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG"))
	require.NoError(t, mw.Close())

	r := gin.New()
	r.POST("/uploads", h.UploadImage)
	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Regexp(t, `^http://localhost:8080/uploads/[0-9a-f-]{36}\.png$`, body["url"])
	assert.FileExists(t, h.Config.UploadDir+"/"+body["filename"].(string))
}

func TestPaginationHelpers(t *testing.T) {
	assert.Equal(t, 0, totalPages(0, 12))
	assert.Equal(t, 1, totalPages(12, 12))
	assert.Equal(t, 2, totalPages(13, 12))
	assert.Equal(t, "?, ?, ?", placeholders(3))
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, []int64{3, 1}, uniqueIDs([]int64{3, 1, 3}))
}

func TestPageParams(t *testing.T) {
	tests := []struct {
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"", 1, 12},
		{"page=3&per_page=24", 3, 24},
		{"page=-4&per_page=0", 1, 12},
		{"per_page=1000", 1, 48},
		{"page=99999999999&per_page=48", math.MaxInt32 / 48, 48},
		{"page=abc", 1, 12},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/products?"+tt.query, nil)
			page, perPage := pageParams(c, 12, 48)
			assert.Equal(t, tt.wantPage, page)
			assert.Equal(t, tt.wantPerPage, perPage)
			assert.LessOrEqual(t, int64(page-1)*int64(perPage), int64(math.MaxInt32))
		})
	}
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%gold ring%", containsPattern("gold ring"))
	assert.Equal(t, "%100!% silver%", containsPattern("100% silver"))
	assert.Equal(t, "%ana!_reyes%", containsPattern("ana_reyes"))
	assert.Equal(t, "%wow!!%", containsPattern("wow!"))

	where, args := productFilter{Query: "50%_off"}.where()
	assert.Contains(t, where, "p.name LIKE ? ESCAPE '!'")
	assert.Contains(t, where, "p.description LIKE ? ESCAPE '!'")
	assert.Equal(t, []any{"%50!%!_off%", "%50!%!_off%"}, args)
}

func TestGetAdminUsers_SearchIsLiteral(t *testing.T) {
	h, mock := newTestHandlers(t)
	term := "%ana!_%"
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE \(username LIKE \? ESCAPE '!' OR email LIKE \? ESCAPE '!'`).
		WithArgs(term, term, term, term).
		WillReturnError(errors.New("stop here"))

	w := serve(http.MethodGet, "/admin/users", "/admin/users?q=ana_", h.GetAdminUsers, nil, 1)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
