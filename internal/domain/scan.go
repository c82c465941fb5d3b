package domain

import "time"

// ScanSummary resume un ciclo del tracker.
type ScanSummary struct {
	StartedAt   time.Time
	Duration    time.Duration
	Markets     int
	Trades      int // trades nuevos puntuados
	Skipped     int // inválidos o ya procesados
	Alerts      int
	Coordinated int
	Errors      int
}
