package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/database"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
)

//
// --- Address Book ---
//
// A user has at most one default address. Every write that can change the
// default runs in a transaction that clears the other rows first.
//

const addressColumns = "id, user_id, full_name, phone, street, barangay, city, province, postal_code, is_default, created_at, updated_at"

func scanAddress(row interface{ Scan(...any) error }) (*models.Address, error) {
	var a models.Address
	err := row.Scan(&a.ID, &a.UserID, &a.FullName, &a.Phone, &a.Street, &a.Barangay, &a.City,
		&a.Province, &a.PostalCode, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// loadAddress returns sql.ErrNoRows when the address is not the user's.
func (h *Handlers) loadAddress(ctx context.Context, q database.Querier, userID, addressID int64) (*models.Address, error) {
	return scanAddress(q.QueryRowContext(ctx,
		"SELECT "+addressColumns+" FROM addresses WHERE id = ? AND user_id = ?", addressID, userID))
}

// insertAddress saves a new address. The user's first address always
// becomes the default.
func (h *Handlers) insertAddress(ctx context.Context, tx *sql.Tx, a *models.Address) (int64, error) {
	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM addresses WHERE user_id = ?", a.UserID).Scan(&count); err != nil {
		return 0, err
	}
	if count == 0 {
		a.IsDefault = true
	}
	if a.IsDefault {
		if _, err := tx.ExecContext(ctx, "UPDATE addresses SET is_default = 0 WHERE user_id = ?", a.UserID); err != nil {
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO addresses (user_id, full_name, phone, street, barangay, city, province, postal_code, is_default)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.FullName, a.Phone, a.Street, a.Barangay, a.City, a.Province, a.PostalCode, a.IsDefault)
	if err != nil {
		return 0, err
	}
	a.ID, err = res.LastInsertId()
	return a.ID, err
}

// GetAddresses is the handler for GET /api/addresses (default first).
func (h *Handlers) GetAddresses(c *gin.Context) {
	rows, err := h.DB.QueryContext(c.Request.Context(),
		"SELECT "+addressColumns+" FROM addresses WHERE user_id = ? ORDER BY is_default DESC, created_at DESC, id DESC",
		currentUserID(c))
	if err != nil {
		serverError(c, err, "Failed to load addresses")
		return
	}
	defer rows.Close()

	addresses := []*models.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			serverError(c, err, "Failed to scan address")
			return
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		serverError(c, err, "Failed to load addresses")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "addresses": addresses})
}

// CreateAddress is the handler for POST /api/addresses.
func (h *Handlers) CreateAddress(c *gin.Context) {
	userID := currentUserID(c)
	ctx := c.Request.Context()

	var input models.AddressInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	input.Normalize()
	if err := input.Validate(); err != nil {
		failValidation(c, err)
		return
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		serverError(c, err, "Failed to start transaction")
		return
	}
	defer tx.Rollback()

	a := input.ToAddress(userID)
	if _, err := h.insertAddress(ctx, tx, a); err != nil {
		serverError(c, err, "Failed to save address")
		return
	}
	if err := tx.Commit(); err != nil {
		serverError(c, err, "Failed to save address")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Address saved.", "address": a})
}

// UpdateAddress is the handler for PUT /api/addresses/:id.
func (h *Handlers) UpdateAddress(c *gin.Context) {
	userID := currentUserID(c)
	addressID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var input models.AddressInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	input.Normalize()
	if err := input.Validate(); err != nil {
		failValidation(c, err)
		return
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		serverError(c, err, "Failed to start transaction")
		return
	}
	defer tx.Rollback()

	current, err := h.loadAddress(ctx, tx, userID, addressID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fail(c, http.StatusNotFound, "Address not found.")
			return
		}
		serverError(c, err, "Failed to load address")
		return
	}

	// unsetting the only default is ignored; use another address's set-default instead
	isDefault := current.IsDefault || input.IsDefault
	if input.IsDefault && !current.IsDefault {
		if _, err := tx.ExecContext(ctx, "UPDATE addresses SET is_default = 0 WHERE user_id = ?", userID); err != nil {
			serverError(c, err, "Failed to update address")
			return
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE addresses
		SET full_name = ?, phone = ?, street = ?, barangay = ?, city = ?, province = ?, postal_code = ?, is_default = ?
		WHERE id = ? AND user_id = ?`,
		input.FullName, input.Phone, input.Street, input.Barangay, input.City, input.Province, input.PostalCode, isDefault,
		addressID, userID)
	if err != nil {
		serverError(c, err, "Failed to update address")
		return
	}
	if err := tx.Commit(); err != nil {
		serverError(c, err, "Failed to update address")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Address updated."})
}

// SetDefaultAddress is the handler for PATCH /api/addresses/:id/default.
func (h *Handlers) SetDefaultAddress(c *gin.Context) {
	userID := currentUserID(c)
	addressID, ok := paramID(c, "id")
	if !ok {
		return
	}

	err := h.setDefaultAddress(c.Request.Context(), userID, addressID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			fail(c, http.StatusNotFound, "Address not found.")
			return
		}
		serverError(c, err, "Failed to set default address")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Default address updated."})
}

func (h *Handlers) setDefaultAddress(ctx context.Context, userID, addressID int64) error {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Ownership check
	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM addresses WHERE id = ? AND user_id = ?", addressID, userID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return models.ErrNotFound
	}

	// 2. Clear, then set
	if _, err := tx.ExecContext(ctx, "UPDATE addresses SET is_default = 0 WHERE user_id = ?", userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE addresses SET is_default = 1 WHERE id = ? AND user_id = ?", addressID, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteAddress is the handler for DELETE /api/addresses/:id.
// Deleting the default promotes the most recent remaining address.
func (h *Handlers) DeleteAddress(c *gin.Context) {
	userID := currentUserID(c)
	addressID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		serverError(c, err, "Failed to start transaction")
		return
	}
	defer tx.Rollback()

	var wasDefault bool
	err = tx.QueryRowContext(ctx, "SELECT is_default FROM addresses WHERE id = ? AND user_id = ? FOR UPDATE", addressID, userID).Scan(&wasDefault)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fail(c, http.StatusNotFound, "Address not found.")
			return
		}
		serverError(c, err, "Failed to load address")
		return
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM addresses WHERE id = ? AND user_id = ?", addressID, userID); err != nil {
		serverError(c, err, "Failed to delete address")
		return
	}

	if wasDefault {
		_, err := tx.ExecContext(ctx, `
			UPDATE addresses SET is_default = 1
			WHERE user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT 1`, userID)
		if err != nil {
			serverError(c, err, "Failed to promote default address")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		serverError(c, err, "Failed to delete address")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Address deleted."})
}
