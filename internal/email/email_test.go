package email

import (
	"testing"

	"github.com/jeweluxe/jeweluxe-golang/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	to, subject, body string
}

func (r *recordingSender) Send(to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return nil
}

func TestNewSender(t *testing.T) {
	assert.IsType(t, LogSender{}, NewSender(config.SMTPConfig{}))
	assert.IsType(t, &SMTPSender{}, NewSender(config.SMTPConfig{Host: "mail", Port: "25"}))
}

func TestEnvelopeAddress(t *testing.T) {
	assert.Equal(t, "no-reply@jeweluxe.local", envelopeAddress("Jeweluxe <no-reply@jeweluxe.local>"))
	assert.Equal(t, "a@b.c", envelopeAddress("a@b.c"))
}

func TestSendOrderConfirmation(t *testing.T) {
	rec := &recordingSender{}
	err := SendOrderConfirmation(rec, "maria@example.com", "Maria", "JX-20261017-ABCD1234", "gcash",
		decimal.RequireFromString("12500"), []OrderLine{
			{Name: "Gold Hoop Earrings", Quantity: 2, LineTotal: decimal.RequireFromString("12500")},
		})
	require.NoError(t, err)

	assert.Equal(t, "maria@example.com", rec.to)
	assert.Contains(t, rec.subject, "JX-20261017-ABCD1234")
	assert.Contains(t, rec.body, "2 x Gold Hoop Earrings  PHP 12500.00")
	assert.Contains(t, rec.body, "Payment method: GCASH")
}
