package handlers

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/ai"
	"github.com/jeweluxe/jeweluxe-golang/internal/config"
	"github.com/jeweluxe/jeweluxe-golang/internal/email"
	"github.com/jeweluxe/jeweluxe-golang/internal/events"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	"github.com/jeweluxe/jeweluxe-golang/internal/middleware"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
	"github.com/redis/go-redis/v9"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	DB         *sql.DB // Primary Read/Write connection
	DBReadOnly *sql.DB // Read-Only connection (assistant)
	Config     config.Config
	Cache      *redis.Client // nil when Redis is not configured
	Events     events.Publisher
	Mailer     email.Sender
	AIService  *ai.AIService // nil when GEMINI_API_KEY is empty

	background sync.WaitGroup // goroutines that outlive their request
}

// WaitBackground blocks until work handed off by requests has finished, or
// ctx is done.
func (h *Handlers) WaitBackground(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// currentUserID returns the signed-in user set by the session middleware.
func currentUserID(c *gin.Context) int64 {
	return middleware.CurrentUserID(c)
}

// paramID parses a positive int64 path parameter, answering 400 itself
// when it is malformed.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid "+name+".")
		return 0, false
	}
	return id, true
}

// fail answers {success:false, message}.
func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// failField answers a validation failure naming the offending field.
func failField(c *gin.Context, status int, field, message string) {
	c.JSON(status, gin.H{"success": false, "message": message, "field": field})
}

// failValidation maps a *models.ValidationError to a 422 naming the field.
func failValidation(c *gin.Context, err error) {
	var vErr *models.ValidationError
	if errors.As(err, &vErr) {
		failField(c, http.StatusUnprocessableEntity, vErr.Field, vErr.Field+" "+vErr.Message)
		return
	}
	fail(c, http.StatusBadRequest, "Invalid input.")
}

// serverError logs the cause and answers a generic 500.
func serverError(c *gin.Context, err error, message string) {
	log := logging.NewPackageLogger("handlers")
	ev := log.Error().Err(err).Str("path", c.FullPath())
	if id := currentUserID(c); id > 0 {
		ev = ev.Int64(logging.USER, id)
	}
	ev.Msg(message)
	fail(c, http.StatusInternalServerError, message)
}

// pageParams reads page / per_page with defaults and bounds.
func pageParams(c *gin.Context, defPerPage, maxPerPage int) (page, perPage int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defPerPage)))
	if perPage < 1 {
		perPage = defPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	// keeps (page-1)*perPage a valid OFFSET
	if maxPage := math.MaxInt32 / perPage; page > maxPage {
		page = maxPage
	}
	return page, perPage
}

// likeEscape goes after every LIKE whose pattern came from containsPattern.
const likeEscape = " ESCAPE '!'"

var likeReplacer = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern turns user text into a LIKE pattern that matches it
// literally anywhere in the column.
func containsPattern(q string) string {
	return "%" + likeReplacer.Replace(q) + "%"
}

func totalPages(total, perPage int) int {
	if total == 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
