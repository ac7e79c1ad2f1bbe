package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/fundilink/FundiLink/internal/pkg/env"
)

// SendMail sends an email via SMTP. It is a no-op when SMTP_HOST is not
// configured so deployments without a mail relay keep working.
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	if host == "" {
		return nil
	}
	port := env.GetEnv("SMTP_PORT", "25")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	}
	return err
}

// SendPaymentReceipt mails a confirmation after a completed mobile money
// payment. Failures are the caller's problem to log; payments never depend
// on mail delivery.
func SendPaymentReceipt(to string, name string, amount int, receipt string, invoiceID *uint) error {
	subject := "Payment received - FundiLink"
	body := fmt.Sprintf("<p>Hello %s,</p><p>We received your payment of KES %d.</p><p>M-Pesa receipt: <strong>%s</strong></p>", name, amount, receipt)
	if invoiceID != nil {
		body += fmt.Sprintf("<p>The payment has been applied to invoice #%d.</p>", *invoiceID)
	}
	body += "<p>Thank you for using FundiLink.</p>"
	return SendMail(to, subject, body)
}
