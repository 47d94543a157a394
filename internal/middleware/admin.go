package middleware

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
)

// RequireAdmin must run after Session(secret, true). The admin flag in the
// token is only a hint; the users table is the authority so a revoked admin
// loses access before the token expires.
func RequireAdmin(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Get userID from Session
		userID := CurrentUserID(c)
		if userID == 0 {
			abortJSON(c, http.StatusUnauthorized, "Please log in to continue.")
			return
		}

		// 2. Query DB for the admin flag
		var isAdmin bool
		err := db.QueryRowContext(c.Request.Context(), "SELECT is_admin FROM users WHERE id = ?", userID).Scan(&isAdmin)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				abortJSON(c, http.StatusUnauthorized, "Invalid user.")
				return
			}
			log := logging.NewPackageLogger("middleware")
			log.Error().Err(err).Int64(logging.USER, userID).Msg("admin check failed")
			abortJSON(c, http.StatusInternalServerError, "Database error checking role.")
			return
		}

		// 3. Check permission
		if !isAdmin {
			abortJSON(c, http.StatusForbidden, "Access denied: administrator only.")
			return
		}

		c.Set(IsAdminKey, true)
		c.Next()
	}
}
