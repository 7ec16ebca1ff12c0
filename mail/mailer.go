// Package mail notifies about newly created laboratories. Sending is
// best effort, callers log failures and move on.
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/acme-health/labor/labor"
)

// sending must never stall a create for long
const sendTimeout = 5 * time.Second

// Mailer sends a notification for a laboratory.
type Mailer interface {
	Send(ctx context.Context, l *labor.Labor) error
}

// SMTP sends plain text notifications through an SMTP relay without
// authentication.
type SMTP struct {
	// Addr is the relay address in host:port form.
	Addr string
	From string
	To   string
}

// Send delivers a notification mail for the laboratory.
func (m *SMTP) Send(ctx context.Context, l *labor.Labor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	subject := fmt.Sprintf("Neues Labor %s", l.ID)
	body := fmt.Sprintf("Das Labor %q in %s wurde angelegt.", l.Name, l.Adresse.Ort)
	msg := strings.Join([]string{
		"From: " + m.From,
		"To: " + m.To,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")

	conn, err := net.DialTimeout("tcp", m.Addr, sendTimeout)
	if err != nil {
		return err
	}
	conn.SetDeadline(time.Now().Add(sendTimeout))

	host, _, err := net.SplitHostPort(m.Addr)
	if err != nil {
		conn.Close()
		return err
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if err := client.Mail(m.From); err != nil {
		return err
	}
	if err := client.Rcpt(m.To); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// Discard is a no-op mailer for development and tests.
type Discard struct{}

// Send does nothing.
func (Discard) Send(ctx context.Context, l *labor.Labor) error {
	return nil
}
