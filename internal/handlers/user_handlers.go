package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/auth"
	"github.com/jeweluxe/jeweluxe-golang/internal/database"
	"github.com/jeweluxe/jeweluxe-golang/internal/middleware"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
)

var usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// --- User Registration ---

// RegisterInput is the body of POST /api/auth/register.
type RegisterInput struct {
	Username        string `json:"username" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	FirstName       string `json:"first_name" binding:"max=100"`
	LastName        string `json:"last_name" binding:"max=100"`
	Phone           string `json:"phone"`
}

// Normalize trims the identity fields.
func (in *RegisterInput) Normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", "")
}

// Validate checks what binding tags cannot express.
func (in *RegisterInput) Validate() error {
	if !usernameRe.MatchString(in.Username) {
		return &models.ValidationError{Field: "username", Message: "must be 3-30 letters, digits or underscores"}
	}
	if err := models.CheckPassword("password", in.Password); err != nil {
		return err
	}
	if in.Password != in.ConfirmPassword {
		return &models.ValidationError{Field: "confirm_password", Message: "does not match password"}
	}
	if in.Phone != "" && !models.ValidPhone(in.Phone) {
		return &models.ValidationError{Field: "phone", Message: "must be a PH mobile number (09XXXXXXXXX or +639XXXXXXXXX)"}
	}
	return nil
}

// Register is the handler for POST /api/auth/register.
// It creates the user and an empty cart, then signs the user in.
func (h *Handlers) Register(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	input.Normalize()
	if err := input.Validate(); err != nil {
		failValidation(c, err)
		return
	}
	ctx := c.Request.Context()

	// 2. --- Check Uniqueness ---
	field, err := h.identityTaken(ctx, h.DB, input.Email, input.Username, 0)
	if err != nil {
		serverError(c, err, "Failed to check account")
		return
	}
	if field != "" {
		failField(c, http.StatusConflict, field, "That "+field+" is already registered.")
		return
	}

	// 3. --- Hash the Password ---
	var password models.Password
	if err := password.Set(input.Password, h.Config.BcryptCost); err != nil {
		serverError(c, err, "Failed to hash password")
		return
	}

	// 4. --- Save User + Cart ---
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		serverError(c, err, "Failed to start transaction")
		return
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, first_name, last_name, phone, is_admin)
		VALUES (?, ?, ?, ?, ?, ?, 0)`,
		input.Username, input.Email, password.Hash, input.FirstName, input.LastName, input.Phone)
	if err != nil {
		if database.IsDuplicateKey(err) {
			// lost a race with another registration
			fail(c, http.StatusConflict, "That email or username is already registered.")
			return
		}
		serverError(c, err, "Failed to create account")
		return
	}
	userID, err := res.LastInsertId()
	if err != nil {
		serverError(c, err, "Failed to create account")
		return
	}
	if _, err := h.getOrCreateCartID(ctx, tx, userID); err != nil {
		serverError(c, err, "Failed to create cart")
		return
	}
	if err := tx.Commit(); err != nil {
		serverError(c, err, "Failed to create account")
		return
	}

	// 5. --- Sign In ---
	sess, err := h.startSession(c, userID, false)
	if err != nil {
		serverError(c, err, "Failed to start session")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Welcome to Jeweluxe! Your account has been created.",
		"csrf_token": sess.CSRF,
		"user": gin.H{
			"id":       userID,
			"username": input.Username,
			"email":    input.Email,
		},
	})
}

// identityTaken returns "email" or "username" when another user (id !=
// exceptID) already holds it.
func (h *Handlers) identityTaken(ctx context.Context, q database.Querier, email, username string, exceptID int64) (string, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?", email, exceptID).Scan(&n); err != nil {
		return "", err
	}
	if n > 0 {
		return "email", nil
	}
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE username = ? AND id <> ?", username, exceptID).Scan(&n); err != nil {
		return "", err
	}
	if n > 0 {
		return "username", nil
	}
	return "", nil
}

// --- User Login ---

// LoginInput accepts an email or a username as identifier.
type LoginInput struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// Login is the handler for POST /api/auth/login.
func (h *Handlers) Login(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Please enter your email or username and password.")
		return
	}
	identifier := strings.TrimSpace(input.Identifier)

	// 2. --- Find User ---
	column := "username"
	if strings.Contains(identifier, "@") {
		column = "email"
		identifier = strings.ToLower(identifier)
	}
	var user models.User
	err := h.DB.QueryRowContext(c.Request.Context(),
		"SELECT id, username, email, password_hash, is_admin FROM users WHERE "+column+" = ?", identifier).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fail(c, http.StatusUnauthorized, "Invalid credentials.")
			return
		}
		serverError(c, err, "Database error")
		return
	}

	// 3. --- Check Password ---
	password := models.Password{Hash: user.PasswordHash}
	match, err := password.Matches(input.Password)
	if err != nil {
		serverError(c, err, "Failed to check password")
		return
	}
	if !match {
		fail(c, http.StatusUnauthorized, "Invalid credentials.")
		return
	}

	// 4. --- Start Session ---
	sess, err := h.startSession(c, user.ID, user.IsAdmin)
	if err != nil {
		serverError(c, err, "Failed to start session")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Login successful",
		"csrf_token": sess.CSRF,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"is_admin": user.IsAdmin,
		},
	})
}

// Logout is the handler for POST /api/auth/logout.
func (h *Handlers) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.Config.CookieSecure, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "You have been logged out."})
}

// GetCSRFToken is the handler for GET /api/auth/csrf.
func (h *Handlers) GetCSRFToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "csrf_token": c.GetString(middleware.CSRFTokenKey)})
}

// startSession signs a session token and sets it as the session cookie.
func (h *Handlers) startSession(c *gin.Context, userID int64, isAdmin bool) (auth.Session, error) {
	sess, err := auth.NewSessionToken(h.Config.JWTSecret, userID, isAdmin, h.Config.SessionTTL)
	if err != nil {
		return auth.Session{}, err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, sess.Token, int(h.Config.SessionTTL.Seconds()), "/", "", h.Config.CookieSecure, true)
	return sess, nil
}

// --- Profile ---

// GetProfile is the handler for GET /api/profile.
func (h *Handlers) GetProfile(c *gin.Context) {
	user, err := h.loadUser(c.Request.Context(), h.DB, currentUserID(c))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fail(c, http.StatusNotFound, "Account not found.")
			return
		}
		serverError(c, err, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *Handlers) loadUser(ctx context.Context, q database.Querier, userID int64) (*models.User, error) {
	var u models.User
	err := q.QueryRowContext(ctx, `
		SELECT id, username, email, first_name, last_name, phone, is_admin, created_at, updated_at
		FROM users WHERE id = ?`, userID).
		Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfileInput is the body of PUT /api/profile.
type UpdateProfileInput struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name" binding:"max=100"`
	LastName  string `json:"last_name" binding:"max=100"`
	Phone     string `json:"phone"`
}

// UpdateProfile is the handler for PUT /api/profile.
func (h *Handlers) UpdateProfile(c *gin.Context) {
	userID := currentUserID(c)

	// 1. --- Bind & Validate ---
	var input UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	reg := RegisterInput{Username: input.Username, Email: input.Email, FirstName: input.FirstName, LastName: input.LastName, Phone: input.Phone}
	reg.Normalize()
	if err := reg.Validate(); err != nil {
		failValidation(c, err)
		return
	}
	ctx := c.Request.Context()

	// 2. --- Re-check uniqueness against other users ---
	field, err := h.identityTaken(ctx, h.DB, reg.Email, reg.Username, userID)
	if err != nil {
		serverError(c, err, "Failed to check account")
		return
	}
	if field != "" {
		failField(c, http.StatusConflict, field, "That "+field+" is already used by another account.")
		return
	}

	// 3. --- Update ---
	_, err = h.DB.ExecContext(ctx, `
		UPDATE users SET username = ?, email = ?, first_name = ?, last_name = ?, phone = ?
		WHERE id = ?`,
		reg.Username, reg.Email, reg.FirstName, reg.LastName, reg.Phone, userID)
	if err != nil {
		if database.IsDuplicateKey(err) {
			fail(c, http.StatusConflict, "That email or username is already used by another account.")
			return
		}
		serverError(c, err, "Failed to update profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile updated."})
}

// ChangePasswordInput is the body of PUT /api/profile/password.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// ChangePassword is the handler for PUT /api/profile/password.
func (h *Handlers) ChangePassword(c *gin.Context) {
	userID := currentUserID(c)
	ctx := c.Request.Context()

	var input ChangePasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if err := models.CheckPassword("new_password", input.NewPassword); err != nil {
		failValidation(c, err)
		return
	}
	if input.NewPassword != input.ConfirmPassword {
		failField(c, http.StatusUnprocessableEntity, "confirm_password", "Passwords do not match.")
		return
	}

	// 1. --- Verify current password ---
	var current models.Password
	if err := h.DB.QueryRowContext(ctx, "SELECT password_hash FROM users WHERE id = ?", userID).Scan(&current.Hash); err != nil {
		serverError(c, err, "Failed to load account")
		return
	}
	match, err := current.Matches(input.CurrentPassword)
	if err != nil {
		serverError(c, err, "Failed to check password")
		return
	}
	if !match {
		failField(c, http.StatusUnprocessableEntity, "current_password", "Current password is incorrect.")
		return
	}

	// 2. --- Store the new hash ---
	var next models.Password
	if err := next.Set(input.NewPassword, h.Config.BcryptCost); err != nil {
		serverError(c, err, "Failed to hash password")
		return
	}
	if _, err := h.DB.ExecContext(ctx, "UPDATE users SET password_hash = ? WHERE id = ?", next.Hash, userID); err != nil {
		serverError(c, err, "Failed to update password")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated."})
}
