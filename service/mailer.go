package service

import (
	"context"
	"fmt"
	"time"

	mail "github.com/go-mail/mail/v2"
)

// Reminder is one overdue notice for a borrower.
type Reminder struct {
	To        string
	Name      string
	BookTitle string
	DueDate   time.Time
}

type ReminderSender interface {
	SendReminder(ctx context.Context, r Reminder) error
}

// Mailer sends reminders over SMTP with mandatory STARTTLS.
type Mailer struct {
	dialer *mail.Dialer
	from   string
}

func NewMailer(host string, port int, username, password, from string) *Mailer {
	d := mail.NewDialer(host, port, username, password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.Timeout = 10 * time.Second
	return &Mailer{dialer: d, from: from}
}

func reminderMessage(from string, r Reminder) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetAddressHeader("To", r.To, r.Name)
	m.SetHeader("Subject", "Overdue: "+r.BookTitle)
	m.SetBody("text/plain", reminderBody(r))
	return m
}

func reminderBody(r Reminder) string {
	return fmt.Sprintf("Hello %s,\n\n%q was due back on %s. Please return it as soon as possible.\n\nThe Library",
		r.Name, r.BookTitle, r.DueDate.Format("2 January 2006"))
}

func (m *Mailer) SendReminder(ctx context.Context, r Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.dialer.DialAndSend(reminderMessage(m.from, r))
}
