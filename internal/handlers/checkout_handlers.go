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
	"github.com/google/uuid"
	"github.com/jeweluxe/jeweluxe-golang/internal/events"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	"github.com/jeweluxe/jeweluxe-golang/internal/metrics"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
	"github.com/shopspring/decimal"
)

//
// --- Checkout ---
//

// CheckoutInput is the body of POST /api/checkout.
// Either AddressID or an inline Address must be given.
type CheckoutInput struct {
	CartItemIDs   []int64              `json:"cart_item_ids"` // empty means the whole cart
	AddressID     int64                `json:"address_id"`
	Address       *models.AddressInput `json:"address"`
	SaveAddress   bool                 `json:"save_address"`
	PaymentMethod string               `json:"payment_method"`
	Notes         string               `json:"notes" binding:"max=500"`
}

// Validate checks the payment method and the address source. An inline
// address is normalized in place.
func (in *CheckoutInput) Validate() error {
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if !models.ValidPaymentMethod(in.PaymentMethod) {
		return &models.ValidationError{Field: "payment_method", Message: "must be one of cod, gcash, card"}
	}
	if in.AddressID <= 0 {
		if in.Address == nil {
			return &models.ValidationError{Field: "address", Message: "is required"}
		}
		in.Address.Normalize()
		if err := in.Address.Validate(); err != nil {
			return err
		}
	}
	for _, id := range in.CartItemIDs {
		if id <= 0 {
			return &models.ValidationError{Field: "cart_item_ids", Message: "contains an invalid id"}
		}
	}
	in.Notes = strings.TrimSpace(in.Notes)
	return nil
}

// checkoutLine is a selected cart row with its locked product.
type checkoutLine struct {
	CartItemID int64
	ProductID  int64
	Name       string
	Quantity   int
	Price      decimal.Decimal // current product price
	Stock      int
	Archived   bool
}

// orderTotals is the priced order.
type orderTotals struct {
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	Total       decimal.Decimal
}

// shippingFee is free at or above the threshold.
func (h *Handlers) shippingFee(subtotal decimal.Decimal) decimal.Decimal {
	return shippingFor(subtotal, h.Config.ShippingFee, h.Config.FreeShippingThreshold)
}

func shippingFor(subtotal, fee, threshold decimal.Decimal) decimal.Decimal {
	if threshold.IsPositive() && subtotal.GreaterThanOrEqual(threshold) {
		return decimal.Zero
	}
	return fee
}

// priceLines verifies every line can be fulfilled and totals the order.
func priceLines(lines []checkoutLine, fee, threshold decimal.Decimal) (orderTotals, error) {
	subtotal := decimal.Zero
	for _, l := range lines {
		if l.Archived || l.Stock < l.Quantity {
			available := l.Stock
			if l.Archived {
				available = 0
			}
			return orderTotals{}, &models.StockError{ProductID: l.ProductID, ProductName: l.Name, Requested: l.Quantity, Available: available}
		}
		subtotal = subtotal.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	shipping := shippingFor(subtotal, fee, threshold)
	return orderTotals{Subtotal: subtotal, ShippingFee: shipping, Total: subtotal.Add(shipping)}, nil
}

// newOrderNumber returns JX-YYYYMMDD-XXXXXXXX.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("JX-%s-%s", now.Format("20060102"), suffix)
}

// paymentRedirect is where the page goes after a successful checkout.
func paymentRedirect(method string, orderID int64) string {
	if models.IsOnlinePayment(method) {
		return fmt.Sprintf("/payment/%d", orderID)
	}
	return fmt.Sprintf("/orders/%d", orderID)
}

// Checkout is the handler for POST /api/checkout.
func (h *Handlers) Checkout(c *gin.Context) {
	userID := currentUserID(c)
	ctx := c.Request.Context()

	// 1. --- Bind & Validate ---
	var input CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		metrics.CheckoutFailures.WithLabelValues("validation").Inc()
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if err := input.Validate(); err != nil {
		metrics.CheckoutFailures.WithLabelValues("validation").Inc()
		failValidation(c, err)
		return
	}

	// 2. --- Begin Transaction ---
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		serverError(c, err, "Failed to start transaction")
		return
	}
	defer tx.Rollback() // Safety net

	// 3. --- Resolve Shipping Address ---
	address, err := h.checkoutAddress(ctx, tx, userID, &input)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			metrics.CheckoutFailures.WithLabelValues("validation").Inc()
			failField(c, http.StatusUnprocessableEntity, "address_id", "Please choose one of your saved addresses.")
			return
		}
		serverError(c, err, "Failed to resolve address")
		return
	}

	// 4. --- Lock the selected lines' products ---
	lines, err := selectCheckoutLines(ctx, tx, userID, input.CartItemIDs)
	if err != nil {
		serverError(c, err, "Failed to get cart items")
		return
	}
	if len(lines) == 0 {
		metrics.CheckoutFailures.WithLabelValues("empty").Inc()
		fail(c, http.StatusBadRequest, "Please select at least one item to check out.")
		return
	}
	if len(input.CartItemIDs) > 0 && len(lines) != len(uniqueIDs(input.CartItemIDs)) {
		metrics.CheckoutFailures.WithLabelValues("validation").Inc()
		fail(c, http.StatusBadRequest, "Some selected items are no longer in your cart. Please refresh and try again.")
		return
	}

	// 5. --- Check Stock & Calculate Totals ---
	totals, err := priceLines(lines, h.Config.ShippingFee, h.Config.FreeShippingThreshold)
	if err != nil {
		h.stockConflict(c, err)
		return
	}

	// 6. --- Create Order ---
	now := time.Now().UTC()
	orderNumber := newOrderNumber(now)
	result, err := tx.ExecContext(ctx, `
		INSERT INTO orders (user_id, order_number, status, subtotal, shipping_fee, total, shipping_address, payment_method, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, orderNumber, models.OrderPending, totals.Subtotal, totals.ShippingFee, totals.Total,
		address.Format(), input.PaymentMethod, input.Notes)
	if err != nil {
		serverError(c, err, "Failed to create order")
		return
	}
	orderID, err := result.LastInsertId()
	if err != nil {
		serverError(c, err, "Failed to get new order ID")
		return
	}

	// 7. --- Order Items & Stock ---
	for _, l := range lines {
		lineTotal := l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price, line_total)
			VALUES (?, ?, ?, ?, ?, ?)`,
			orderID, l.ProductID, l.Name, l.Quantity, l.Price, lineTotal); err != nil {
			serverError(c, err, "Failed to save order item")
			return
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?",
			l.Quantity, l.ProductID, l.Quantity)
		if err != nil {
			serverError(c, err, "Failed to deduct stock")
			return
		}
		if n, _ := res.RowsAffected(); n != 1 {
			h.stockConflict(c, &models.StockError{ProductID: l.ProductID, ProductName: l.Name, Requested: l.Quantity, Available: 0})
			return
		}
	}

	// 8. --- Payment Record ---
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO payments (order_id, method, status, amount) VALUES (?, ?, ?, ?)",
		orderID, input.PaymentMethod, models.PaymentPending, totals.Total); err != nil {
		serverError(c, err, "Failed to create payment")
		return
	}

	// 9. --- Remove purchased lines from the cart ---
	ids := make([]interface{}, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.CartItemID)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id IN ("+placeholders(len(ids))+")", ids...); err != nil {
		serverError(c, err, "Failed to clear cart")
		return
	}

	// 10. --- Notify ---
	msg := fmt.Sprintf("Your order %s has been placed.", orderNumber)
	if models.IsOnlinePayment(input.PaymentMethod) {
		msg = fmt.Sprintf("Your order %s has been placed and is awaiting payment.", orderNumber)
	}
	if err := h.AddNotification(ctx, tx, userID, models.NotificationOrder, msg, fmt.Sprintf("/orders/%d", orderID)); err != nil {
		serverError(c, err, "Failed to create notification")
		return
	}

	// 11. --- Commit Transaction ---
	if err := tx.Commit(); err != nil {
		serverError(c, err, "Failed to commit order")
		return
	}

	metrics.OrdersPlaced.WithLabelValues(input.PaymentMethod).Inc()
	log := logging.NewPackageLogger("handlers")
	log.Info().Int64(logging.USER, userID).Int64(logging.ORDER, orderID).
		Str("order_number", orderNumber).Str("total", totals.Total.StringFixed(2)).Msg("order placed")

	h.publishOrderPlaced(userID, orderID, orderNumber, input.PaymentMethod, totals.Total, lines, now)

	// 12. --- Send Success Response ---
	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"message":      "Order placed successfully.",
		"order_id":     orderID,
		"order_number": orderNumber,
		"total":        totals.Total.StringFixed(2),
		"redirect":     paymentRedirect(input.PaymentMethod, orderID),
	})
}

// stockConflict answers 409 naming the product that ran short.
func (h *Handlers) stockConflict(c *gin.Context, err error) {
	var stockErr *models.StockError
	if errors.As(err, &stockErr) {
		metrics.CheckoutFailures.WithLabelValues("stock").Inc()
		c.JSON(http.StatusConflict, gin.H{
			"success":    false,
			"message":    fmt.Sprintf("Sorry, %s does not have enough stock (requested %d, available %d).", stockErr.ProductName, stockErr.Requested, stockErr.Available),
			"product_id": stockErr.ProductID,
		})
		return
	}
	serverError(c, err, "Failed to check stock")
}

// checkoutAddress loads the chosen saved address, or builds the inline one
// and saves it when asked.
func (h *Handlers) checkoutAddress(ctx context.Context, tx *sql.Tx, userID int64, input *CheckoutInput) (*models.Address, error) {
	if input.AddressID > 0 {
		a, err := h.loadAddress(ctx, tx, userID, input.AddressID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return a, err
	}

	a := input.Address.ToAddress(userID)
	if input.SaveAddress {
		if _, err := h.insertAddress(ctx, tx, a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// selectCheckoutLines locks the products of the selected cart lines. Rows
// are locked in product id order so concurrent checkouts cannot deadlock.
func selectCheckoutLines(ctx context.Context, tx *sql.Tx, userID int64, cartItemIDs []int64) ([]checkoutLine, error) {
	query := `
		SELECT ci.id, ci.product_id, p.name, ci.quantity, p.price, p.stock, p.is_archived
		FROM cart_items ci
		JOIN carts ct ON ct.id = ci.cart_id
		JOIN products p ON p.id = ci.product_id
		WHERE ct.user_id = ?`
	args := []interface{}{userID}
	if ids := uniqueIDs(cartItemIDs); len(ids) > 0 {
		query += " AND ci.id IN (" + placeholders(len(ids)) + ")"
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += " ORDER BY p.id FOR UPDATE"

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []checkoutLine
	for rows.Next() {
		var l checkoutLine
		if err := rows.Scan(&l.CartItemID, &l.ProductID, &l.Name, &l.Quantity, &l.Price, &l.Stock, &l.Archived); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// publishOrderPlaced hands the order.placed event to the broker without
// holding up the response. Shutdown waits for it through WaitBackground.
func (h *Handlers) publishOrderPlaced(userID, orderID int64, orderNumber, method string, total decimal.Decimal, lines []checkoutLine, placedAt time.Time) {
	if h.Events == nil {
		return
	}
	items := make([]events.OrderPlacedItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, events.OrderPlacedItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			LineTotal: l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))),
		})
	}

	h.background.Add(1)
	go func() {
		defer h.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ev := events.OrderPlacedEvent{
			OrderID:       orderID,
			OrderNumber:   orderNumber,
			UserID:        userID,
			PaymentMethod: method,
			Total:         total,
			Items:         items,
			PlacedAt:      placedAt,
		}
		if user, err := h.loadUser(ctx, h.DB, userID); err == nil {
			ev.Email = user.Email
			ev.CustomerName = user.FullName()
		}
		// errors are logged by the publisher
		_ = h.Events.PublishOrderPlaced(ctx, ev)
	}()
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
