package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
)

//
// --- Admin: Order & Payment Management ---
//

// errInvalidTransition is returned for a status change the current status
// does not allow.
var errInvalidTransition = errors.New("invalid status transition")

// GetAdminOrders is the handler for GET /api/admin/orders?status=
func (h *Handlers) GetAdminOrders(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !validOrderStatus(status) {
		fail(c, http.StatusBadRequest, "Unknown order status.")
		return
	}
	page, perPage := pageParams(c, 20, 100)

	orders, total, err := h.listOrders(c.Request.Context(), 0, status, perPage, (page-1)*perPage)
	if err != nil {
		serverError(c, err, "Failed to fetch orders")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orders":  orders,
		"total":   total,
		"page":    page,
		"pages":   totalPages(total, perPage),
	})
}

// GetAdminOrder is the handler for GET /api/admin/orders/:id
func (h *Handlers) GetAdminOrder(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.renderOrder(c, orderID, 0)
}

// OrderStatusInput is the body of PATCH /api/admin/orders/:id/status
type OrderStatusInput struct {
	Status string `json:"status" binding:"required"`
}

// orderStatusMessages is the customer notification per target status.
var orderStatusMessages = map[string]string{
	models.OrderProcessing: "Your order %s is now being prepared.",
	models.OrderShipped:    "Good news! Your order %s has been shipped.",
	models.OrderDelivered:  "Your order %s has been delivered. Enjoy your jewelry!",
	models.OrderCancelled:  "Your order %s has been cancelled.",
}

// changeOrderStatus moves an order along its lifecycle. Cancelling puts the
// stock back; delivering a cash-on-delivery order marks its payment paid.
func (h *Handlers) changeOrderStatus(ctx context.Context, orderID int64, to string) (from string, err error) {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	// 1. Lock
	from, number, userID, err := lockOrder(ctx, tx, orderID, 0)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", models.ErrNotFound
		}
		return "", err
	}
	if !models.CanTransition(from, to) {
		return from, errInvalidTransition
	}

	// 2. Apply
	if to == models.OrderCancelled {
		if err := h.cancelOrderTx(ctx, tx, orderID); err != nil {
			return from, err
		}
	} else {
		if _, err := tx.ExecContext(ctx, "UPDATE orders SET status = ? WHERE id = ?", to, orderID); err != nil {
			return from, err
		}
		if to == models.OrderDelivered {
			if _, err := tx.ExecContext(ctx, `
				UPDATE payments SET status = ?, paid_at = ?
				WHERE order_id = ? AND method = ? AND status = ?`,
				models.PaymentPaid, time.Now().UTC(), orderID, models.PaymentCOD, models.PaymentPending); err != nil {
				return from, err
			}
		}
	}

	// 3. Notify
	if err := h.AddNotification(ctx, tx, userID, models.NotificationOrder,
		fmt.Sprintf(orderStatusMessages[to], number), fmt.Sprintf("/orders/%d", orderID)); err != nil {
		return from, err
	}
	return from, tx.Commit()
}

// UpdateOrderStatus is the handler for PATCH /api/admin/orders/:id/status
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input OrderStatusInput
	if err := c.ShouldBindJSON(&input); err != nil || !validOrderStatus(input.Status) {
		failField(c, http.StatusUnprocessableEntity, "status", "Unknown order status.")
		return
	}

	from, err := h.changeOrderStatus(c.Request.Context(), orderID, input.Status)
	switch {
	case errors.Is(err, models.ErrNotFound):
		fail(c, http.StatusNotFound, "Order not found.")
		return
	case errors.Is(err, errInvalidTransition):
		fail(c, http.StatusConflict, fmt.Sprintf("Cannot move an order from %s to %s.", from, input.Status))
		return
	case err != nil:
		serverError(c, err, "Failed to update order status")
		return
	}

	log := logging.NewPackageLogger("admin")
	log.Info().Int64(logging.ORDER, orderID).Str("from", from).Str("to", input.Status).
		Int64(logging.USER, currentUserID(c)).Msg("order status changed")

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order status updated.", "status": input.Status})
}

// paymentTransitions lists the statuses an admin may set on a payment.
var paymentTransitions = map[string][]string{
	models.PaymentPending: {models.PaymentPaid, models.PaymentFailed},
	models.PaymentPaid:    {models.PaymentRefunded},
}

func canTransitionPayment(from, to string) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentStatusInput is the body of PATCH /api/admin/payments/:id
type PaymentStatusInput struct {
	Status    string `json:"status" binding:"required"`
	Reference string `json:"reference" binding:"max=100"`
}

// UpdatePaymentStatus is the handler for PATCH /api/admin/payments/:id
// Confirming payment on a pending order moves it to processing.
func (h *Handlers) UpdatePaymentStatus(c *gin.Context) {
	paymentID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input PaymentStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		failField(c, http.StatusUnprocessableEntity, "status", "Unknown payment status.")
		return
	}
	ctx := c.Request.Context()

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		serverError(c, err, "Failed to start transaction")
		return
	}
	defer tx.Rollback()

	var (
		orderID           int64
		from, orderStatus string
		orderNumber       string
		customerID        int64
	)
	err = tx.QueryRowContext(ctx, `
		SELECT pay.order_id, pay.status, o.status, o.order_number, o.user_id
		FROM payments pay JOIN orders o ON o.id = pay.order_id
		WHERE pay.id = ? FOR UPDATE`, paymentID).Scan(&orderID, &from, &orderStatus, &orderNumber, &customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fail(c, http.StatusNotFound, "Payment not found.")
			return
		}
		serverError(c, err, "Failed to load payment")
		return
	}
	if !canTransitionPayment(from, input.Status) {
		fail(c, http.StatusConflict, fmt.Sprintf("Cannot move a payment from %s to %s.", from, input.Status))
		return
	}

	var paidAt sql.NullTime
	if input.Status == models.PaymentPaid {
		paidAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}
	var reference sql.NullString
	if input.Reference != "" {
		reference = sql.NullString{String: input.Reference, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = ?, paid_at = COALESCE(?, paid_at), reference = COALESCE(?, reference)
		WHERE id = ?`, input.Status, paidAt, reference, paymentID); err != nil {
		serverError(c, err, "Failed to update payment")
		return
	}

	// A pending order follows its payment: paid starts fulfilment, failed
	// cancels it and releases the reserved stock.
	var notice string
	switch {
	case orderStatus != models.OrderPending:
	case input.Status == models.PaymentPaid:
		if _, err := tx.ExecContext(ctx, "UPDATE orders SET status = ? WHERE id = ?", models.OrderProcessing, orderID); err != nil {
			serverError(c, err, "Failed to update order")
			return
		}
		orderStatus = models.OrderProcessing
		notice = fmt.Sprintf("Payment received for order %s. We are preparing your jewelry.", orderNumber)
	case input.Status == models.PaymentFailed:
		if err := h.cancelOrderTx(ctx, tx, orderID); err != nil {
			serverError(c, err, "Failed to cancel order")
			return
		}
		orderStatus = models.OrderCancelled
		notice = fmt.Sprintf("Payment for order %s failed, so the order was cancelled.", orderNumber)
	}
	if notice != "" {
		if err := h.AddNotification(ctx, tx, customerID, models.NotificationOrder, notice,
			fmt.Sprintf("/orders/%d", orderID)); err != nil {
			serverError(c, err, "Failed to create notification")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		serverError(c, err, "Failed to update payment")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment updated.", "status": input.Status, "order_status": orderStatus})
}
