// Package receipt provides domain contracts for receipt auto-numbering.
// Implementations live in infrastructure layer.
package receipt

import (
	"context"
	"time"
)

// Generator generates sequential receipt numbers.
// This is the domain contract - implementations live in infrastructure layer.
//
// Implementations must be safe to call from inside a sale transaction; the
// number is allocated atomically so two registers can never share one.
type Generator interface {
	// GetNextNumber generates the next receipt number.
	// Pattern: PREFIX-YYYYMMDD-XXXX (e.g., RCP-20260901-0001)
	//
	// Supports Strict (DB-level) and Cached (Memory-level) strategies.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber sets the next number value (for migration purposes).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
