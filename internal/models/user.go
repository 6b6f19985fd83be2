package models

// Role identifies what kind of actor a directory user is. Authentication is
// handled upstream of this service; the role only drives transition guards.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleReception Role = "reception"
	RoleHost      Role = "host"
	RoleKiosk     Role = "kiosk"
)

// Valid reports whether the role is a member of the enum.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleReception, RoleHost, RoleKiosk:
		return true
	}
	return false
}

// User is a directory record for an actor that may invoke gateway operations:
// building admins, reception staff, host contacts, and kiosk service accounts.
type User struct {
	BaseModel

	Name  string `gorm:"not null" json:"name"`
	Email string `gorm:"uniqueIndex" json:"email"`
	Role  Role   `gorm:"type:varchar(32);not null;index" json:"role"`

	// HostID links host-role users to the Host record whose visits they may
	// approve or reject.
	HostID *string `gorm:"type:uuid;index" json:"host_id,omitempty"`
	Host   *Host   `json:"host,omitempty"`

	Active bool `gorm:"default:true" json:"active"`
}
