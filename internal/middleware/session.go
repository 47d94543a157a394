package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/auth"
)

// SessionCookie is the name of the HttpOnly cookie carrying the session token.
const SessionCookie = "jeweluxe_session"

// Context keys set by Session.
const (
	UserIDKey    = "userID"
	IsAdminKey   = "isAdmin"
	CSRFTokenKey = "csrfToken"
)

// Session reads the session token from the cookie or from a Bearer header.
// When required is false, anonymous requests pass through untouched so public
// pages can still personalise their answer for signed-in users.
func Session(secret string, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. --- Find the token ---
		tokenString := sessionToken(c)
		if tokenString == "" {
			if required {
				abortJSON(c, http.StatusUnauthorized, "Please log in to continue.")
				return
			}
			c.Next()
			return
		}

		// 2. --- Validate it ---
		claims, err := auth.ParseSessionToken(secret, tokenString)
		if err != nil {
			if required {
				abortJSON(c, http.StatusUnauthorized, "Your session has expired. Please log in again.")
				return
			}
			c.Next()
			return
		}
		userID, _ := claims.UserID()

		// 3. --- Success ---
		c.Set(UserIDKey, userID)
		c.Set(IsAdminKey, claims.IsAdmin)
		c.Set(CSRFTokenKey, claims.CSRF)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// CurrentUserID returns the signed-in user or 0.
func CurrentUserID(c *gin.Context) int64 {
	if v, ok := c.Get(UserIDKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

func abortJSON(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
