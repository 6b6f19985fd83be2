package models

// Host is the employee or company contact a visitor is there to see. Hosts
// hold approve/reject authority over pending visits assigned to them and are
// read-only from the lifecycle engine's perspective.
type Host struct {
	BaseModel

	Name    string `gorm:"not null" json:"name"`
	Company string `gorm:"index" json:"company"`
	Email   string `gorm:"index" json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`

	Active bool `gorm:"default:true" json:"active"`

	Users []User `gorm:"foreignKey:HostID" json:"-"`
}
