package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CSRFHeader is the header a page echoes the session's CSRF token in.
const CSRFHeader = "X-CSRF-Token"

// CSRF rejects state-changing requests on a signed-in session unless they
// carry the session's CSRF token. Anonymous requests have no session secret
// to forge and pass through.
func CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		expected := c.GetString(CSRFTokenKey)
		if expected == "" {
			c.Next()
			return
		}

		got := c.GetHeader(CSRFHeader)
		if got == "" {
			got = c.PostForm("csrf_token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			abortJSON(c, http.StatusForbidden, "Invalid CSRF token. Please refresh the page and try again.")
			return
		}
		c.Next()
	}
}
