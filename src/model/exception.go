package model

import "time"

// Exception represents a reconciliation failure that must be persisted
// for auditing, debugging, and monitoring purposes.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "scheduler"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "reconciler"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "Tick"
	UserID  string `gorm:"size:100;index" json:"user_id"`

	// Error information
	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	// debug | info | warn | error | fatal
	Level string `gorm:"size:20;index" json:"level"`

	// Extra context stored as JSON (optional)
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
