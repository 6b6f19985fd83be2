package models

import "time"

// VisitStatus enumerates the lifecycle states of a visit. Status is mutated
// exclusively by the lifecycle engine through the store's guarded update.
type VisitStatus string

const (
	StatusPreRegistered   VisitStatus = "PRE_REGISTERED"
	StatusPendingApproval VisitStatus = "PENDING_APPROVAL"
	StatusApproved        VisitStatus = "APPROVED"
	StatusRejected        VisitStatus = "REJECTED"
	StatusCheckedIn       VisitStatus = "CHECKED_IN"
	StatusCheckedOut      VisitStatus = "CHECKED_OUT"
)

// Valid reports whether the status is a member of the enum.
func (s VisitStatus) Valid() bool {
	switch s {
	case StatusPreRegistered, StatusPendingApproval, StatusApproved,
		StatusRejected, StatusCheckedIn, StatusCheckedOut:
		return true
	}
	return false
}

// Visit is one visitor's single scheduled or walk-in interaction with the
// facility, tracked from creation through checkout.
type Visit struct {
	BaseModel

	// SessionToken is the opaque QR payload bound 1:1 to this visit. It is
	// assigned at creation, never reassigned, and never recycled even after
	// checkout so stale badges stay unambiguous.
	SessionToken string `gorm:"uniqueIndex;not null" json:"session_token"`

	Status VisitStatus `gorm:"type:varchar(32);not null;index" json:"status"`

	VisitorName    string `gorm:"not null" json:"visitor_name"`
	VisitorCompany string `json:"visitor_company,omitempty"`
	VisitorPhone   string `json:"visitor_phone,omitempty"`
	VisitorEmail   string `json:"visitor_email,omitempty"`

	HostID string `gorm:"type:uuid;not null;index" json:"host_id"`
	Host   *Host  `json:"host,omitempty"`

	ExpectedDate time.Time `gorm:"not null;index" json:"expected_date"`

	// Each timestamp is written only by its corresponding transition and is
	// never cleared. Approve/reject may each fire more than once across a
	// reject/re-approve cycle; the column then records the latest occurrence.
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
	CheckInAt  *time.Time `json:"check_in_at,omitempty"`
	CheckOutAt *time.Time `json:"check_out_at,omitempty"`

	CreatedByID   string `gorm:"type:uuid" json:"created_by_id"`
	CreatedByRole Role   `gorm:"type:varchar(32)" json:"created_by_role"`
}

// Settled reports whether the visit has reached a terminal state.
func (v *Visit) Settled() bool {
	return v.Status == StatusCheckedOut
}
