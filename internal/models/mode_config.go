package models

import (
	"time"

	"github.com/uptrace/bun"
)

// System modes. ATTENDANCE toggles check-in state on every scan, MEAL redeems
// the currently selected meal type.
const (
	ModeAttendance = "ATTENDANCE"
	ModeMeal       = "MEAL"
)

// SystemModeConfigID is the primary key of the singleton config row.
const SystemModeConfigID = "global"

// SystemModeConfig is the process-wide scanner configuration. It lives in the
// same store as the subjects so every resolution reads the latest committed
// value; nothing caches it in-process.
type SystemModeConfig struct {
	bun.BaseModel `bun:"table:system_mode_config"`

	ID                string    `bun:"id,pk" json:"id"`
	Mode              string    `bun:"mode,notnull,default:'ATTENDANCE'" json:"mode"`
	SelectedMealType  string    `bun:"selected_meal_type,nullzero" json:"selected_meal_type,omitempty"`
	AllowedLabIDs     []string  `bun:"allowed_lab_ids" json:"allowed_lab_ids"`
	AllowedScannerIDs []string  `bun:"allowed_scanner_ids" json:"allowed_scanner_ids"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// AllowsLab reports whether a lab is eligible for meal redemption under this
// configuration.
func (c *SystemModeConfig) AllowsLab(labID string) bool {
	for _, id := range c.AllowedLabIDs {
		if id == labID {
			return true
		}
	}
	return false
}

// AllowsScanner reports whether the given operator may confirm meal scans.
// An empty allow-list admits every authenticated scanner.
func (c *SystemModeConfig) AllowsScanner(scannerID string) bool {
	if len(c.AllowedScannerIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedScannerIDs {
		if id == scannerID {
			return true
		}
	}
	return false
}
