package service

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderMessage(t *testing.T) {
	r := Reminder{
		To:        "ada@example.com",
		Name:      "Ada",
		BookTitle: "Dune",
		DueDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	body := reminderBody(r)
	assert.Contains(t, body, "Hello Ada")
	assert.Contains(t, body, `"Dune"`)
	assert.Contains(t, body, "1 March 2026")

	msg := reminderMessage("library@example.com", r)
	assert.Equal(t, []string{"library@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"Overdue: Dune"}, msg.GetHeader("Subject"))

	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ada@example.com")
}

func TestNewMailer(t *testing.T) {
	m := NewMailer("smtp.example.com", 587, "user", "pass", "library@example.com")
	assert.Equal(t, "smtp.example.com", m.dialer.Host)
	assert.Equal(t, 587, m.dialer.Port)
	assert.Equal(t, 10*time.Second, m.dialer.Timeout)
}
