package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Subject types recorded on scan logs.
const (
	SubjectParticipant = "participant"
	SubjectVolunteer   = "volunteer"
)

// Scan actions. ENTRY and EXIT toggle the checked-in flag, CONSUME redeems
// a meal for the currently selected meal type.
const (
	ActionEntry   = "ENTRY"
	ActionExit    = "EXIT"
	ActionConsume = "CONSUME"
)

// ScanLog is the append-only audit record of a confirmed scan. Rows are never
// updated; they are removed only when the subject itself is deleted.
type ScanLog struct {
	bun.BaseModel `bun:"table:scan_logs,alias:scan_log"`

	ID          string    `bun:"id,pk" json:"id"`
	SubjectID   string    `bun:"subject_id,notnull" json:"subject_id"`
	SubjectType string    `bun:"subject_type,notnull" json:"subject_type"`
	ScannedBy   string    `bun:"scanned_by,notnull" json:"scanned_by"`
	ScanType    string    `bun:"scan_type,notnull" json:"scan_type"`
	MealType    string    `bun:"meal_type,nullzero" json:"meal_type,omitempty"`
	CreatedAt   time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// ScanLogWithSubject pairs a scan log with the participant it belongs to,
// for the recent-scans dashboard feed. Volunteer scans carry no participant.
type ScanLogWithSubject struct {
	ScanLog
	Participant *Participant `json:"participant,omitempty"`
	Volunteer   *Volunteer   `json:"volunteer,omitempty"`
}
