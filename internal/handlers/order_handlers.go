package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/database"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	"github.com/jeweluxe/jeweluxe-golang/internal/metrics"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
)

//
// --- Order Retrieval Handlers ---
//

const orderColumns = "o.id, o.user_id, o.order_number, o.status, o.subtotal, o.shipping_fee, o.total, o.shipping_address, o.payment_method, o.notes, o.created_at, o.updated_at"

func scanOrder(row interface{ Scan(...any) error }, extra ...any) (*models.Order, error) {
	var o models.Order
	dest := []any{&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.Subtotal, &o.ShippingFee, &o.Total,
		&o.ShippingAddress, &o.PaymentMethod, &o.Notes, &o.CreatedAt, &o.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &o, nil
}

// loadOrder fetches one order. A userID of 0 skips the ownership check
// (admin views).
func (h *Handlers) loadOrder(ctx context.Context, q database.Querier, orderID, userID int64) (*models.Order, error) {
	query := "SELECT " + orderColumns + ", COALESCE(pay.status, '') FROM orders o LEFT JOIN payments pay ON pay.order_id = o.id WHERE o.id = ?"
	args := []any{orderID}
	if userID > 0 {
		query += " AND o.user_id = ?"
		args = append(args, userID)
	}
	var paymentStatus string
	o, err := scanOrder(q.QueryRowContext(ctx, query, args...), &paymentStatus)
	if err != nil {
		return nil, err
	}
	o.PaymentStatus = paymentStatus
	return o, nil
}

func (h *Handlers) loadOrderItems(ctx context.Context, q database.Querier, orderID int64) ([]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, line_total
		FROM order_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []models.OrderItem{}
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (h *Handlers) loadPayment(ctx context.Context, q database.Querier, orderID int64) (*models.Payment, error) {
	var p models.Payment
	err := q.QueryRowContext(ctx, `
		SELECT id, order_id, method, status, amount, reference, paid_at, created_at, updated_at
		FROM payments WHERE order_id = ?`, orderID).
		Scan(&p.ID, &p.OrderID, &p.Method, &p.Status, &p.Amount, &p.Reference, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// paymentJSON flattens the nullable payment columns.
func paymentJSON(p *models.Payment) gin.H {
	if p == nil {
		return nil
	}
	out := gin.H{
		"id":        p.ID,
		"method":    p.Method,
		"status":    p.Status,
		"amount":    p.Amount,
		"reference": p.Reference.String,
		"createdAt": p.CreatedAt,
	}
	if p.PaidAt.Valid {
		out["paidAt"] = p.PaidAt.Time
	}
	return out
}

// listOrders returns orders newest first with item counts. userID 0 lists
// every customer's orders.
func (h *Handlers) listOrders(ctx context.Context, userID int64, status string, limit, offset int) ([]*models.Order, int, error) {
	where := []string{"1 = 1"}
	args := []any{}
	if userID > 0 {
		where = append(where, "o.user_id = ?")
		args = append(args, userID)
	}
	if status != "" {
		where = append(where, "o.status = ?")
		args = append(args, status)
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := h.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders o WHERE "+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + orderColumns + `,
			(SELECT COALESCE(SUM(oi.quantity), 0) FROM order_items oi WHERE oi.order_id = o.id),
			COALESCE(pay.status, ''),
			TRIM(CONCAT(u.first_name, ' ', u.last_name))
		FROM orders o
		JOIN users u ON u.id = o.user_id
		LEFT JOIN payments pay ON pay.order_id = o.id
		WHERE ` + whereSQL + `
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT ? OFFSET ?`
	rows, err := h.DB.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders := []*models.Order{}
	for rows.Next() {
		var (
			itemCount     int
			paymentStatus string
			customer      string
		)
		o, err := scanOrder(rows, &itemCount, &paymentStatus, &customer)
		if err != nil {
			return nil, 0, err
		}
		o.ItemCount = itemCount
		o.PaymentStatus = paymentStatus
		if userID == 0 {
			o.CustomerName = customer
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

func validOrderStatus(s string) bool {
	switch s {
	case models.OrderPending, models.OrderProcessing, models.OrderShipped, models.OrderDelivered, models.OrderCancelled:
		return true
	}
	return false
}

// GetMyOrders is the handler for GET /api/orders?status=
func (h *Handlers) GetMyOrders(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !validOrderStatus(status) {
		fail(c, http.StatusBadRequest, "Unknown order status.")
		return
	}
	page, perPage := pageParams(c, 20, 100)

	orders, total, err := h.listOrders(c.Request.Context(), currentUserID(c), status, perPage, (page-1)*perPage)
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

// GetOrderDetails is the handler for GET /api/orders/:id
func (h *Handlers) GetOrderDetails(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.renderOrder(c, orderID, currentUserID(c))
}

// renderOrder answers an order with its items and payment.
func (h *Handlers) renderOrder(c *gin.Context, orderID, userID int64) {
	ctx := c.Request.Context()

	// 1. --- Fetch Order & Verify Ownership ---
	o, err := h.loadOrder(ctx, h.DB, orderID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fail(c, http.StatusNotFound, "Order not found.")
			return
		}
		serverError(c, err, "Failed to fetch order")
		return
	}

	// 2. --- Items & Payment ---
	items, err := h.loadOrderItems(ctx, h.DB, o.ID)
	if err != nil {
		serverError(c, err, "Failed to fetch order items")
		return
	}
	payment, err := h.loadPayment(ctx, h.DB, o.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		serverError(c, err, "Failed to fetch payment")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   o,
		"items":   items,
		"payment": paymentJSON(payment),
	})
}

//
// --- Order State Changes ---
//

// cancelOrderTx restocks the order's items, settles its payment and marks it
// cancelled. The caller has already checked the transition is allowed.
func (h *Handlers) cancelOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) error {
	// 1. Restock
	if _, err := tx.ExecContext(ctx, `
		UPDATE products p
		JOIN (SELECT product_id, SUM(quantity) AS qty FROM order_items WHERE order_id = ? GROUP BY product_id) oi
			ON oi.product_id = p.id
		SET p.stock = p.stock + oi.qty`, orderID); err != nil {
		return fmt.Errorf("restock order %d: %w", orderID, err)
	}

	// 2. Payment: money taken is refunded, otherwise the payment failed
	if _, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = CASE WHEN status = 'paid' THEN 'refunded' ELSE 'failed' END
		WHERE order_id = ? AND status IN ('pending', 'paid')`, orderID); err != nil {
		return fmt.Errorf("settle payment for order %d: %w", orderID, err)
	}

	// 3. Order
	if _, err := tx.ExecContext(ctx, "UPDATE orders SET status = ? WHERE id = ?", models.OrderCancelled, orderID); err != nil {
		return fmt.Errorf("cancel order %d: %w", orderID, err)
	}
	return nil
}

// lockOrder reads an order's status and number FOR UPDATE.
func lockOrder(ctx context.Context, tx *sql.Tx, orderID, userID int64) (status, number string, ownerID int64, err error) {
	query := "SELECT status, order_number, user_id FROM orders WHERE id = ?"
	args := []any{orderID}
	if userID > 0 {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	err = tx.QueryRowContext(ctx, query+" FOR UPDATE", args...).Scan(&status, &number, &ownerID)
	return status, number, ownerID, err
}

// CancelOrder is the handler for POST /api/orders/:id/cancel
// Customers may only cancel orders that are still pending.
func (h *Handlers) CancelOrder(c *gin.Context) {
	userID := currentUserID(c)
	orderID, ok := paramID(c, "id")
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

	status, number, _, err := lockOrder(ctx, tx, orderID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fail(c, http.StatusNotFound, "Order not found.")
			return
		}
		serverError(c, err, "Failed to fetch order")
		return
	}
	if status != models.OrderPending {
		fail(c, http.StatusConflict, "Only pending orders can be cancelled.")
		return
	}

	if err := h.cancelOrderTx(ctx, tx, orderID); err != nil {
		serverError(c, err, "Failed to cancel order")
		return
	}
	if err := h.AddNotification(ctx, tx, userID, models.NotificationOrder,
		fmt.Sprintf("Your order %s has been cancelled.", number), fmt.Sprintf("/orders/%d", orderID)); err != nil {
		serverError(c, err, "Failed to create notification")
		return
	}
	if err := tx.Commit(); err != nil {
		serverError(c, err, "Failed to cancel order")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order cancelled.", "status": models.OrderCancelled})
}

// PayOrderInput carries the gateway reference of a confirmed payment.
type PayOrderInput struct {
	Reference string `json:"reference" binding:"required,max=100"`
}

// PayOrder is the handler for POST /api/orders/:id/pay
// It records the gateway confirmation of a pending online payment.
func (h *Handlers) PayOrder(c *gin.Context) {
	// 1. Get IDs
	userID := currentUserID(c)
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var input PayOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "A payment reference is required.")
		return
	}

	// 2. Begin Transaction
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		serverError(c, err, "Failed to start transaction")
		return
	}
	defer tx.Rollback()

	// 3. Lock the order and payment rows to prevent double payment
	var (
		status, number, method, payStatus string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT o.status, o.order_number, o.payment_method, pay.status
		FROM orders o JOIN payments pay ON pay.order_id = o.id
		WHERE o.id = ? AND o.user_id = ?
		FOR UPDATE`, orderID, userID).Scan(&status, &number, &method, &payStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fail(c, http.StatusNotFound, "Order not found.")
			return
		}
		serverError(c, err, "Failed to fetch order")
		return
	}
	if !models.IsOnlinePayment(method) {
		fail(c, http.StatusBadRequest, "Cash on delivery orders are paid on delivery.")
		return
	}
	if status != models.OrderPending || payStatus != models.PaymentPending {
		fail(c, http.StatusConflict, "This order is not awaiting payment.")
		return
	}

	// 4. Execute Updates
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"UPDATE payments SET status = ?, reference = ?, paid_at = ? WHERE order_id = ?",
		models.PaymentPaid, strings.TrimSpace(input.Reference), now, orderID); err != nil {
		serverError(c, err, "Failed to record payment")
		return
	}
	if _, err := tx.ExecContext(ctx, "UPDATE orders SET status = ? WHERE id = ?", models.OrderProcessing, orderID); err != nil {
		serverError(c, err, "Failed to update order status")
		return
	}
	if err := h.AddNotification(ctx, tx, userID, models.NotificationOrder,
		fmt.Sprintf("Payment received for order %s. We are preparing your jewelry.", number),
		fmt.Sprintf("/orders/%d", orderID)); err != nil {
		serverError(c, err, "Failed to create notification")
		return
	}

	// 5. Commit
	if err := tx.Commit(); err != nil {
		serverError(c, err, "Failed to commit transaction")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Payment successful",
		"status":   models.OrderProcessing,
		"redirect": fmt.Sprintf("/orders/%d", orderID),
	})
}

// ProcessOverdueOrders cancels online-payment orders that are still unpaid
// after UnpaidOrderTTL and puts their stock back. It returns how many
// orders were cancelled.
func (h *Handlers) ProcessOverdueOrders(ctx context.Context) (int, error) {
	log := logging.NewPackageLogger("sweeper")
	cutoff := time.Now().UTC().Add(-h.Config.UnpaidOrderTTL)

	rows, err := h.DB.QueryContext(ctx, `
		SELECT o.id
		FROM orders o JOIN payments pay ON pay.order_id = o.id
		WHERE o.status = ? AND o.payment_method IN (?, ?) AND pay.status = ? AND o.created_at < ?
		ORDER BY o.id
		LIMIT 200`,
		models.OrderPending, models.PaymentGCash, models.PaymentCard, models.PaymentPending, cutoff)
	if err != nil {
		return 0, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	cancelled := 0
	for _, id := range ids {
		ok, err := h.cancelOverdueOrder(ctx, id)
		if err != nil {
			log.Error().Err(err).Int64(logging.ORDER, id).Msg("failed to cancel unpaid order")
			continue
		}
		if ok {
			cancelled++
		}
	}
	if cancelled > 0 {
		metrics.OrdersSwept.Add(float64(cancelled))
		log.Info().Int("cancelled", cancelled).Msg("cancelled unpaid orders")
	}
	return cancelled, nil
}

// cancelOverdueOrder re-checks the order under lock, since it may have been
// paid between the scan and now.
func (h *Handlers) cancelOverdueOrder(ctx context.Context, orderID int64) (bool, error) {
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var status, payStatus, number string
	var userID int64
	err = tx.QueryRowContext(ctx, `
		SELECT o.status, pay.status, o.order_number, o.user_id
		FROM orders o JOIN payments pay ON pay.order_id = o.id
		WHERE o.id = ? FOR UPDATE`, orderID).Scan(&status, &payStatus, &number, &userID)
	if err != nil {
		return false, err
	}
	if status != models.OrderPending || payStatus != models.PaymentPending {
		return false, nil
	}

	if err := h.cancelOrderTx(ctx, tx, orderID); err != nil {
		return false, err
	}
	if err := h.AddNotification(ctx, tx, userID, models.NotificationOrder,
		fmt.Sprintf("Your order %s was cancelled because payment was not received in time.", number),
		fmt.Sprintf("/orders/%d", orderID)); err != nil {
		return false, err
	}
	return true, tx.Commit()
}
