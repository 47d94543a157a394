package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
)

// ChatInput defines the structure of the JSON request body.
type ChatInput struct {
	Message string `json:"message" binding:"required,max=1000"`
}

// ChatAssistant handles POST /api/assistant/chat, the shopping assistant.
func (h *Handlers) ChatAssistant(c *gin.Context) {
	// 1. Assistant configured?
	if h.AIService == nil {
		fail(c, http.StatusServiceUnavailable, "The shopping assistant is not available right now.")
		return
	}

	// 2. Parse Input
	var input ChatInput
	if err := c.ShouldBindJSON(&input); err != nil || strings.TrimSpace(input.Message) == "" {
		failField(c, http.StatusUnprocessableEntity, "message", "Please type a question.")
		return
	}
	ctx := c.Request.Context()

	// 3. Greet signed-in shoppers by name
	customerName := ""
	userID := currentUserID(c)
	if userID > 0 {
		if u, err := h.loadUser(ctx, h.DB, userID); err == nil {
			customerName = u.FullName()
		}
	}

	// 4. Call the AI Service
	reply, tokensUsed, err := h.AIService.GenerateResponse(ctx, strings.TrimSpace(input.Message), customerName)
	if err != nil {
		log := logging.NewPackageLogger("assistant")
		log.Error().Err(err).Int64(logging.USER, userID).Msg("assistant request failed")
		fail(c, http.StatusBadGateway, "The shopping assistant could not answer. Please try again.")
		return
	}

	log := logging.NewPackageLogger("assistant")
	log.Debug().Int64(logging.USER, userID).Int("tokens", tokensUsed).Msg("assistant answered")

	// 5. Return the Answer
	c.JSON(http.StatusOK, gin.H{"success": true, "reply": reply})
}
