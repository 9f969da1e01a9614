package models

import "time"

// Registrant statuses. "checked_in" is terminal: nothing in this system
// transitions a record away from it.
const (
	StatusInvited   = "invited"
	StatusCheckedIn = "checked_in"
	StatusCancelled = "cancelled"
)

// Registrant is the durable attendance record for one invitee. The token is
// both the primary key and the payload join key; identity fields are set at
// creation and never updated afterwards.
type Registrant struct {
	Token        string     `gorm:"primaryKey;size:64" json:"token"`
	Name         string     `gorm:"not null" json:"name"`
	Email        string     `gorm:"not null;index" json:"email"`
	Phone        string     `gorm:"not null" json:"phone"`
	ComingIntent bool       `json:"coming_intent"`
	Status       string     `gorm:"not null;default:invited;index" json:"status"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// CheckedIn reports whether the record has reached its terminal status.
func (r *Registrant) CheckedIn() bool {
	return r.Status == StatusCheckedIn
}
