package app

import (
	"github.com/visitdesk/visitdesk/internal/notify"
	"github.com/visitdesk/visitdesk/pkg/mail"
)

// SMTPSettings converts NotificationConfig to the mail package representation.
func (c NotificationConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// WhatsAppSettings converts NotificationConfig to the notify package representation.
func (c NotificationConfig) WhatsAppSettings() notify.WhatsAppSettings {
	return notify.WhatsAppSettings{
		Enabled: c.WhatsApp.Enabled,
		BaseURL: c.WhatsApp.BaseURL,
		APIKey:  c.WhatsApp.APIKey,
		Timeout: c.WhatsApp.Timeout,
	}
}
