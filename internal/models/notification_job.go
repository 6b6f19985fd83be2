package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification job delivery states.
const (
	JobPending = "pending"
	JobSent    = "sent"
	JobFailed  = "failed"
)

// NotificationJob records one channel delivery attempt for a notification
// decision. Jobs are the operator-visible trail: a failed job never affects
// the visit transition that produced it.
type NotificationJob struct {
	BaseModel

	// VisitID is nil for test dispatches, which bypass the engine.
	VisitID *string `gorm:"type:uuid;index" json:"visit_id,omitempty"`

	Event     string         `gorm:"type:varchar(64);not null;index" json:"event"`
	Channel   string         `gorm:"type:varchar(32);not null" json:"channel"`
	Recipient string         `gorm:"not null" json:"recipient"`
	Template  string         `gorm:"type:varchar(64);not null" json:"template"`
	Payload   datatypes.JSON `json:"payload,omitempty"`

	Status    string     `gorm:"type:varchar(16);default:'pending';index" json:"status"`
	Attempts  int        `gorm:"default:0" json:"attempts"`
	LastError string     `gorm:"type:text" json:"last_error,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}
