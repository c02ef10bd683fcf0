package models

import (
	"time"

	"github.com/uptrace/bun"
)

// MealTypes are the four recognized meal services.
var MealTypes = []string{"BREAKFAST", "LUNCH", "SNACKS", "DINNER"}

// ValidMealType reports whether mealType is one of the recognized services.
func ValidMealType(mealType string) bool {
	for _, m := range MealTypes {
		if m == mealType {
			return true
		}
	}
	return false
}

// MealConsumption records a one-time redemption of a meal type by a
// participant. The (participant_id, meal_type) pair is unique at the storage
// level; that constraint is the authoritative duplicate guard.
type MealConsumption struct {
	bun.BaseModel `bun:"table:meal_consumptions,alias:meal_consumption"`

	ID            string    `bun:"id,pk" json:"id"`
	ParticipantID string    `bun:"participant_id,notnull,unique:participant_meal" json:"participant_id"`
	MealType      string    `bun:"meal_type,notnull,unique:participant_meal" json:"meal_type"`
	ConsumedAt    time.Time `bun:"consumed_at,nullzero,default:current_timestamp" json:"consumed_at"`
}
