package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jeweluxe/jeweluxe-golang/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductInput_Validate(t *testing.T) {
	tests := []struct {
		name  string
		in    ProductInput
		field string
	}{
		{"ok", ProductInput{Name: " Emerald Pendant ", Price: decimal.RequireFromString("12999.50")}, ""},
		{"blank name", ProductInput{Name: "   ", Price: decimal.NewFromInt(10)}, "name"},
		{"zero price", ProductInput{Name: "Anklet", Price: decimal.Zero}, "price"},
		{"fractional centavos", ProductInput{Name: "Anklet", Price: decimal.RequireFromString("10.005")}, "price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			err := in.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				assert.Equal(t, strings.TrimSpace(tt.in.Name), in.Name)
				return
			}
			var vErr *models.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestContactInput_Validate(t *testing.T) {
	in := ContactInput{Name: " Liza ", Email: "LIZA@example.com", Subject: " Sizing ", Message: "  too short "}
	in.Normalize()
	assert.Equal(t, "liza@example.com", in.Email)

	var vErr *models.ValidationError
	require.ErrorAs(t, in.Validate(), &vErr)
	assert.Equal(t, "message", vErr.Field)

	in.Message = "Can this ring be resized to 7?"
	assert.NoError(t, in.Validate())

	in.Message = strings.Repeat("é", 2001)
	assert.Error(t, in.Validate())
}

func TestCanTransitionPayment(t *testing.T) {
	assert.True(t, canTransitionPayment(models.PaymentPending, models.PaymentPaid))
	assert.True(t, canTransitionPayment(models.PaymentPending, models.PaymentFailed))
	assert.True(t, canTransitionPayment(models.PaymentPaid, models.PaymentRefunded))
	assert.False(t, canTransitionPayment(models.PaymentPaid, models.PaymentPending))
	assert.False(t, canTransitionPayment(models.PaymentRefunded, models.PaymentPaid))
	assert.False(t, canTransitionPayment(models.PaymentFailed, models.PaymentPaid))
}

func TestUpdateOrderStatus_RejectsInvalidTransition(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, order_number, user_id FROM orders WHERE id = \? FOR UPDATE`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "order_number", "user_id"}).AddRow("delivered", "JX-20260101-0000ABCD", 4))
	mock.ExpectRollback()

	w := serve(http.MethodPatch, "/admin/orders/:id/status", "/admin/orders/9/status", h.UpdateOrderStatus,
		map[string]string{"status": "pending"}, 1)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decode(t, w)["message"], "from delivered to pending")
}

func TestUpdateOrderStatus_DeliveredCODMarksPaid(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status, order_number, user_id FROM orders`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "order_number", "user_id"}).AddRow("shipped", "JX-20260101-0000ABCD", 4))
	mock.ExpectExec(`UPDATE orders SET status = \? WHERE id = \?`).
		WithArgs("delivered", int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE payments SET status = \?, paid_at = \?`).
		WithArgs("paid", sqlmock.AnyArg(), int64(9), "cod", "pending").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO notifications`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	w := serve(http.MethodPatch, "/admin/orders/:id/status", "/admin/orders/9/status", h.UpdateOrderStatus,
		map[string]string{"status": "delivered"}, 1)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdatePaymentStatus(t *testing.T) {
	paymentRow := func(orderStatus string) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"order_id", "pay_status", "order_status", "order_number", "user_id"}).
			AddRow(9, "pending", orderStatus, "JX-20260101-0000ABCD", 4)
	}

	t.Run("failed payment cancels the pending order and restocks", func(t *testing.T) {
		h, mock := newTestHandlers(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM payments pay JOIN orders o ON o.id = pay.order_id WHERE pay.id = \? FOR UPDATE`).
			WithArgs(int64(5)).
			WillReturnRows(paymentRow("pending"))
		mock.ExpectExec(`UPDATE payments SET status = \?, paid_at`).
			WithArgs("failed", nil, nil, int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE products p`).WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE payments SET status = CASE`).WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`UPDATE orders SET status = \? WHERE id = \?`).
			WithArgs("cancelled", int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO notifications`).
			WithArgs(int64(4), models.NotificationOrder, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := serve(http.MethodPatch, "/admin/payments/:id", "/admin/payments/5", h.UpdatePaymentStatus,
			map[string]string{"status": "failed"}, 1)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "cancelled", decode(t, w)["order_status"])
	})

	t.Run("paid payment moves the order to processing", func(t *testing.T) {
		h, mock := newTestHandlers(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM payments pay JOIN orders o`).WillReturnRows(paymentRow("pending"))
		mock.ExpectExec(`UPDATE payments SET status = \?, paid_at`).
			WithArgs("paid", sqlmock.AnyArg(), "GC-123", int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE orders SET status = \? WHERE id = \?`).
			WithArgs("processing", int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO notifications`).WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		w := serve(http.MethodPatch, "/admin/payments/:id", "/admin/payments/5", h.UpdatePaymentStatus,
			map[string]string{"status": "paid", "reference": "GC-123"}, 1)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "processing", decode(t, w)["order_status"])
	})

	t.Run("failed payment on a shipped order leaves the order alone", func(t *testing.T) {
		h, mock := newTestHandlers(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`FROM payments pay JOIN orders o`).WillReturnRows(paymentRow("shipped"))
		mock.ExpectExec(`UPDATE payments SET status = \?, paid_at`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		w := serve(http.MethodPatch, "/admin/payments/:id", "/admin/payments/5", h.UpdatePaymentStatus,
			map[string]string{"status": "failed"}, 1)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "shipped", decode(t, w)["order_status"])
	})
}

func TestCreateCategory_Duplicate(t *testing.T) {
	h, mock := newTestHandlers(t)
	mock.ExpectExec(`INSERT INTO categories`).
		WithArgs("Rings", "rings").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'rings' for key 'uq_categories_slug'"})

	w := serve(http.MethodPost, "/admin/categories", "/admin/categories", h.CreateCategory,
		map[string]string{"name": "Rings"}, 1)
	assert.Equal(t, http.StatusConflict, w.Code)
}
