package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/visitdesk/visitdesk/internal/visits"
	"github.com/visitdesk/visitdesk/pkg/mail"
)

// Channel is one delivery medium the dispatcher can fan out to. A channel
// elects itself for a recipient by returning a non-empty address.
type Channel interface {
	Name() string
	Address(recipient visits.Recipient) string
	Send(ctx context.Context, address, subject, body string) error
}

// EmailChannel delivers notifications over SMTP.
type EmailChannel struct {
	mailer mail.Mailer
}

// NewEmailChannel wraps a mailer as a dispatch channel.
func NewEmailChannel(mailer mail.Mailer) *EmailChannel {
	return &EmailChannel{mailer: mailer}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Address(recipient visits.Recipient) string {
	return strings.TrimSpace(recipient.Email)
}

func (c *EmailChannel) Send(ctx context.Context, address, subject, body string) error {
	return c.mailer.Send(ctx, mail.Message{
		To:      []string{address},
		Subject: subject,
		Body:    body,
	})
}

// Message templates. Rendering is plain placeholder substitution; anything
// richer belongs to the rendering collaborator, not this core.
type template struct {
	Subject string
	Body    string
}

var templates = map[string]template{
	"visitor_approved": {
		Subject: "Your visit has been approved",
		Body:    "Hello {visitor_name}, {host_name} has approved your visit. Present your QR pass at reception when you arrive.",
	},
	"visitor_rejected": {
		Subject: "Your visit request was declined",
		Body:    "Hello {visitor_name}, unfortunately {host_name} has declined your visit request.",
	},
	"host_arrival": {
		Subject: "Your visitor has arrived",
		Body:    "{visitor_name} has checked in at reception and is waiting for you.",
	},
	"host_departure": {
		Subject: "Your visitor has left",
		Body:    "{visitor_name} has checked out.",
	},
	"operator_test": {
		Subject: "Visitdesk delivery test",
		Body:    "This is a test message confirming the notification channel is configured correctly.",
	},
}

func renderTemplate(name string, data map[string]any) (subject, body string, err error) {
	tpl, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("notify: unknown template %q", name)
	}

	subject = tpl.Subject
	body = tpl.Body

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := fmt.Sprintf("%v", data[key])
		subject = strings.ReplaceAll(subject, "{"+key+"}", value)
		body = strings.ReplaceAll(body, "{"+key+"}", value)
	}
	return subject, body, nil
}
