package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jeweluxe/jeweluxe-golang/internal/config"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	"github.com/shopspring/decimal"
)

// Sender delivers a plain-text email.
type Sender interface {
	Send(to, subject, body string) error
}

// NewSender returns an SMTP sender when SMTP_HOST is configured and a
// logging placeholder otherwise.
func NewSender(cfg config.SMTPConfig) Sender {
	if cfg.Host == "" {
		return LogSender{}
	}
	return &SMTPSender{cfg: cfg}
}

// LogSender writes the email to the log instead of sending it.
type LogSender struct{}

func (LogSender) Send(to, subject, body string) error {
	log := logging.NewPackageLogger("email")
	log.Info().Str("to", to).Str("subject", subject).Msg("email (not sent, SMTP disabled)\n" + body)
	return nil
}

// SMTPSender sends mail through a plain SMTP relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

func (s *SMTPSender) Send(to, subject, body string) error {
	addr := s.cfg.Host + ":" + s.cfg.Port

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := "From: " + s.cfg.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n" +
		body

	if err := smtp.SendMail(addr, auth, envelopeAddress(s.cfg.From), []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// envelopeAddress extracts "a@b" from "Name <a@b>".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		return strings.TrimSuffix(from[i+1:], ">")
	}
	return from
}

// OrderLine is one purchased item in a confirmation email.
type OrderLine struct {
	Name      string
	Quantity  int
	LineTotal decimal.Decimal
}

// SendOrderConfirmation is a helper that formats and sends the order
// confirmation email.
func SendOrderConfirmation(s Sender, to, customer, orderNumber, paymentMethod string, total decimal.Decimal, lines []OrderLine) error {
	subject := fmt.Sprintf("Your Jeweluxe order %s", orderNumber)

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nThank you for shopping at Jeweluxe! We received your order %s.\n\n", customer, orderNumber)
	for _, l := range lines {
		fmt.Fprintf(&b, "  %d x %s  PHP %s\n", l.Quantity, l.Name, l.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: PHP %s\nPayment method: %s\n", total.StringFixed(2), strings.ToUpper(paymentMethod))
	b.WriteString("\nWe will let you know as soon as your order ships.\n\nJeweluxe")

	return s.Send(to, subject, b.String())
}
