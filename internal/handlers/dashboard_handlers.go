package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
	"github.com/shopspring/decimal"
)

//
// --- Admin Dashboard Stats ---
//

// lowStockThreshold is the stock level at or below which a live product is
// flagged on the dashboard.
const lowStockThreshold = 5

// DashboardStats is the KPI block of the admin dashboard.
type DashboardStats struct {
	SalesTotal     decimal.Decimal `json:"salesTotal"` // paid payments, refunds excluded
	OrdersByStatus map[string]int  `json:"ordersByStatus"`
	TotalOrders    int             `json:"totalOrders"`
	LowStockCount  int             `json:"lowStockCount"`
	NewMessages    int             `json:"newMessages"`
	PendingReviews int             `json:"pendingReviews"`
	Customers      int             `json:"customers"`
}

// GetDashboard is the handler for GET /api/admin/dashboard
func (h *Handlers) GetDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	stats := DashboardStats{
		OrdersByStatus: map[string]int{
			models.OrderPending:    0,
			models.OrderProcessing: 0,
			models.OrderShipped:    0,
			models.OrderDelivered:  0,
			models.OrderCancelled:  0,
		},
	}

	// 1. Sales
	if err := h.DB.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = ?", models.PaymentPaid).Scan(&stats.SalesTotal); err != nil {
		serverError(c, err, "Failed to sum sales")
		return
	}

	// 2. Orders by status
	rows, err := h.DB.QueryContext(ctx, "SELECT status, COUNT(*) FROM orders GROUP BY status")
	if err != nil {
		serverError(c, err, "Failed to count orders")
		return
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			serverError(c, err, "Failed to count orders")
			return
		}
		stats.OrdersByStatus[status] = n
		stats.TotalOrders += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		serverError(c, err, "Failed to count orders")
		return
	}

	// 3. Counters
	counters := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&stats.LowStockCount, "SELECT COUNT(*) FROM products WHERE is_archived = 0 AND stock <= ?", []any{lowStockThreshold}},
		{&stats.NewMessages, "SELECT COUNT(*) FROM contact_messages WHERE status = ?", []any{models.MessageNew}},
		{&stats.PendingReviews, "SELECT COUNT(*) FROM product_reviews WHERE status = ?", []any{models.ReviewPending}},
		{&stats.Customers, "SELECT COUNT(*) FROM users WHERE is_admin = 0", nil},
	}
	for _, ct := range counters {
		if err := h.DB.QueryRowContext(ctx, ct.query, ct.args...).Scan(ct.dest); err != nil {
			serverError(c, err, "Failed to load dashboard")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}
