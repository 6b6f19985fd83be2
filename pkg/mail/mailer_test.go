package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledMailerReturnsSentinel(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"visitor@example.com"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestValidateSMTPConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.Error(t, err)

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "mail.example.com"})
	require.Error(t, err)

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "mail.example.com", Port: 587})
	require.NoError(t, err)
}

func TestUniqueAddresses(t *testing.T) {
	out := uniqueAddresses([]string{"a@example.com", " a@example.com ", "", "B@example.com"})
	require.Equal(t, []string{"a@example.com", "B@example.com"}, out)
}

func TestFormatMessageHeaders(t *testing.T) {
	msg := formatMessage("front-desk@example.com", []string{"v@example.com"}, "Your visitor pass", "hello")
	require.Contains(t, msg, "From: front-desk@example.com\r\n")
	require.Contains(t, msg, "Subject: Your visitor pass\r\n")
	require.Contains(t, msg, "\r\nhello\r\n")
}
