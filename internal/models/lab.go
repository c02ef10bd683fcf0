package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Lab struct {
	bun.BaseModel `bun:"table:labs,alias:lab"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull,unique" json:"name"`
	Description string    `bun:"description,nullzero" json:"description,omitempty"`
	IsSystem    bool      `bun:"is_system,notnull,default:false" json:"is_system"`
	CreatedAt   time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}
