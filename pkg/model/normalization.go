// pkg/model/normalization.go
package model

import (
	"time"
)

// NormalizationOperation records one field rewritten by the normalizer
type NormalizationOperation struct {
	Dataset       string    // Name of the owning activity
	ExchangeIndex int       // Position of the exchange, -1 for activity-level fields
	Field         Field     // Field that was rewritten
	OriginalValue string    // Value before normalization
	NewValue      string    // Value after normalization
	Rule          string    // Table that produced the rewrite (e.g. "units")
	NormalizedAt  time.Time // When the rewrite happened
}
