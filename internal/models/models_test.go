package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPassword_SetAndMatches(t *testing.T) {
	var p Password
	require.NoError(t, p.Set("correct horse", bcrypt.MinCost))
	assert.NotEqual(t, "correct horse", p.Hash)

	ok, err := p.Matches("correct horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Matches("wrong horse")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"ok", "s3cretpass", false},
		{"too short", "short", true},
		{"exactly 72 bytes", strings.Repeat("a", 72), false},
		{"80 bytes", strings.Repeat("a", 80), true},
		{"multibyte over 72 bytes", strings.Repeat("ñ", 40), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPassword("password", tt.password)
			if !tt.wantErr {
				require.NoError(t, err)
				var p Password
				assert.NoError(t, p.Set(tt.password, bcrypt.MinCost))
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, "password", vErr.Field)
		})
	}
}

func validAddress() AddressInput {
	return AddressInput{
		FullName:   "Maria Santos",
		Phone:      "0917 123 4567",
		Street:     "12 Mabini St.",
		Barangay:   "San Antonio",
		City:       "Makati",
		Province:   "Metro Manila",
		PostalCode: "1203",
	}
}

func TestAddressInput_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*AddressInput)
		wantField string
	}{
		{name: "valid", mutate: func(*AddressInput) {}},
		{name: "international phone", mutate: func(a *AddressInput) { a.Phone = "+639171234567" }},
		{name: "missing street", mutate: func(a *AddressInput) { a.Street = "  " }, wantField: "street"},
		{name: "bad phone", mutate: func(a *AddressInput) { a.Phone = "12345" }, wantField: "phone"},
		{name: "bad postal code", mutate: func(a *AddressInput) { a.PostalCode = "12A4" }, wantField: "postal_code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validAddress()
			tt.mutate(&in)
			in.Normalize()

			err := in.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestAddress_Format(t *testing.T) {
	in := validAddress()
	in.Normalize()
	a := in.ToAddress(7)

	assert.Equal(t, int64(7), a.UserID)
	assert.Equal(t, "Maria Santos (09171234567)\n12 Mabini St., Brgy. San Antonio\nMakati, Metro Manila 1203", a.Format())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(OrderPending, OrderProcessing))
	assert.True(t, CanTransition(OrderProcessing, OrderCancelled))
	assert.True(t, CanTransition(OrderShipped, OrderDelivered))
	assert.False(t, CanTransition(OrderShipped, OrderCancelled))
	assert.False(t, CanTransition(OrderDelivered, OrderPending))
	assert.False(t, CanTransition(OrderCancelled, OrderProcessing))
}

func TestStockError_Unwraps(t *testing.T) {
	err := error(&StockError{ProductID: 3, ProductName: "Pearl Drop Earrings", Requested: 4, Available: 1})
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Contains(t, err.Error(), "Pearl Drop Earrings")
}

func TestPaymentMethods(t *testing.T) {
	assert.True(t, ValidPaymentMethod(PaymentCOD))
	assert.False(t, ValidPaymentMethod("bitcoin"))
	assert.True(t, IsOnlinePayment(PaymentGCash))
	assert.False(t, IsOnlinePayment(PaymentCOD))
}
