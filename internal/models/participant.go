package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Participant struct {
	bun.BaseModel `bun:"table:participants,alias:participant"`

	ID          string     `bun:"id,pk" json:"id"`
	Name        string     `bun:"name,notnull" json:"name"`
	Email       string     `bun:"email,notnull" json:"email"`
	TeamID      string     `bun:"team_id,notnull" json:"team_id"`
	LabID       string     `bun:"lab_id,notnull" json:"lab_id"`
	IsCheckedIn bool       `bun:"is_checked_in,notnull,default:false" json:"is_checked_in"`
	QRCodeHash  string     `bun:"qr_code_hash,notnull,unique" json:"qr_code_hash"`
	LastCheckIn *time.Time `bun:"last_check_in,nullzero" json:"last_check_in,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`

	Team *Team `bun:"rel:belongs-to,join:team_id=id" json:"team,omitempty"`
	Lab  *Lab  `bun:"rel:belongs-to,join:lab_id=id" json:"lab,omitempty"`
}
