package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/auth"
	"github.com/jeweluxe/jeweluxe-golang/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	ok := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "user": CurrentUserID(c)})
	}
	r.GET("/thing", ok)
	r.POST("/thing", ok)
	return r
}

func signIn(t *testing.T, userID int64, isAdmin bool) auth.Session {
	t.Helper()
	sess, err := auth.NewSessionToken(secret, userID, isAdmin, time.Hour)
	require.NoError(t, err)
	return sess
}

func TestSession_Required(t *testing.T) {
	r := newRouter(Session(secret, true))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/thing", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	sess := signIn(t, 7, false)
	req := httptest.NewRequest(http.MethodGet, "/thing", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sess.Token})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":7`)
}

func TestSession_BearerAndOptional(t *testing.T) {
	r := newRouter(Session(secret, false))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/thing", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":0`)

	sess := signIn(t, 3, false)
	req := httptest.NewRequest(http.MethodGet, "/thing", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Body.String(), `"user":3`)

	req = httptest.NewRequest(http.MethodGet, "/thing", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user":0`)
}

func TestCSRF(t *testing.T) {
	r := newRouter(Session(secret, false), CSRF())
	sess := signIn(t, 5, false)

	tests := []struct {
		name   string
		method string
		token  string
		form   string
		signed bool
		want   int
	}{
		{name: "get needs no token", method: http.MethodGet, signed: true, want: http.StatusOK},
		{name: "anonymous post passes", method: http.MethodPost, want: http.StatusOK},
		{name: "missing token", method: http.MethodPost, signed: true, want: http.StatusForbidden},
		{name: "wrong token", method: http.MethodPost, signed: true, token: "nope", want: http.StatusForbidden},
		{name: "header token", method: http.MethodPost, signed: true, token: sess.CSRF, want: http.StatusOK},
		{name: "form token", method: http.MethodPost, signed: true, form: "csrf_token=" + sess.CSRF, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/thing", strings.NewReader(tt.form))
			if tt.form != "" {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			if tt.signed {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sess.Token})
			}
			if tt.token != "" {
				req.Header.Set(CSRFHeader, tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := newRouter(Session(secret, true), RequireAdmin(db))

	mock.ExpectQuery("SELECT is_admin FROM users WHERE id = \\?").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"is_admin"}).AddRow(false))
	mock.ExpectQuery("SELECT is_admin FROM users WHERE id = \\?").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"is_admin"}).AddRow(true))

	for _, tc := range []struct {
		id   int64
		want int
	}{{1, http.StatusForbidden}, {2, http.StatusOK}} {
		sess := signIn(t, tc.id, true)
		req := httptest.NewRequest(http.MethodGet, "/thing", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sess.Token})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "user %d", tc.id)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCORS_Preflight(t *testing.T) {
	r := newRouter(CORS("http://localhost:5173"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/thing", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestDisabledRedisMiddlewarePassThrough(t *testing.T) {
	r := newRouter(
		RateLimit(config.RateLimitConfig{Enabled: true}, nil),
		ResponseCache(config.CacheConfig{Enabled: true}, nil),
	)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/thing", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache"))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json; charset=utf-8"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"success":true}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, hdr.Get("Content-Type"), gotHdr.Get("Content-Type"))
	assert.Equal(t, `{"success":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestCacheKey_VariesByQuery(t *testing.T) {
	a := CacheKey("jx:cache", "/api/products", "page=1")
	b := CacheKey("jx:cache", "/api/products", "page=2")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "jx:cache:"))
}
