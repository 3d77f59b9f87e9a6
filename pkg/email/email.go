package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Send delivers one message to the full recipient list in a single SMTP
// transaction. The provider either accepts the batch or rejects it whole.
func Send(server string, port int, username, password, fromName string, to []string, subject, htmlBody, textBody string) error {
	for _, addr := range to {
		if !strings.Contains(addr, "@") {
			return fmt.Errorf("invalid email address: %s", addr)
		}
	}

	msg := BuildMessage(fromName, username, to, subject, htmlBody, textBody)
	auth := smtp.PlainAuth("", username, password, server)
	addr := fmt.Sprintf("%s:%d", server, port)
	return smtp.SendMail(addr, auth, username, to, msg)
}

// BuildMessage renders a multipart/alternative MIME message with plain
// and HTML bodies.
func BuildMessage(fromName, fromAddr string, to []string, subject, htmlBody, textBody string) []byte {
	const boundary = "np-meal-alert"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", fromName, fromAddr)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(textBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
