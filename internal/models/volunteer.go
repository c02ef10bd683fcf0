package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Volunteer struct {
	bun.BaseModel `bun:"table:volunteers,alias:volunteer"`

	ID           string     `bun:"id,pk" json:"id"`
	FirstName    string     `bun:"first_name,notnull" json:"first_name"`
	LastName     string     `bun:"last_name,nullzero" json:"last_name,omitempty"`
	Email        string     `bun:"email,notnull,unique" json:"email"`
	Organization string     `bun:"organization,nullzero" json:"organization,omitempty"`
	IsCheckedIn  bool       `bun:"is_checked_in,notnull,default:false" json:"is_checked_in"`
	QRCodeHash   string     `bun:"qr_code_hash,nullzero,unique" json:"qr_code_hash,omitempty"`
	LastCheckIn  *time.Time `bun:"last_check_in,nullzero" json:"last_check_in,omitempty"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// DisplayName joins first and last name for operator-facing messages.
func (v *Volunteer) DisplayName() string {
	if v.LastName == "" {
		return v.FirstName
	}
	return v.FirstName + " " + v.LastName
}
