// Package gather contains the synchronization passes that pull data from
// the provider and persist it. Each pass is a Gatherer: it walks its part
// of the universe, fetches only what the stored watermarks say is missing,
// and reports a Summary.
package gather

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Gatherer is the interface for all synchronization passes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run executes one full pass and returns its summary. Failures on a
	// single instrument are counted, not fatal; Run returns an error only
	// when the pass as a whole cannot proceed.
	Run(ctx context.Context) (*Summary, error)
}

// Summary reports the outcome of one pass.
type Summary struct {
	PassID   string    `json:"pass_id"`
	Gatherer string    `json:"gatherer"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	// Processed counts instruments that were fetched and written.
	Processed int `json:"processed"`
	// Skipped counts instruments already current; no fetch call was made.
	Skipped int `json:"skipped"`
	// Failed counts instruments whose fetch or write failed after retries.
	Failed int `json:"failed"`

	RowsWritten  int `json:"rows_written"`
	RowsRejected int `json:"rows_rejected"`

	// Errors holds one message per failed instrument, capped by the caller.
	Errors []string `json:"errors,omitempty"`
}

// NewSummary starts a summary for the named gatherer.
func NewSummary(name string) *Summary {
	return &Summary{
		PassID:   uuid.NewString(),
		Gatherer: name,
		Started:  time.Now(),
	}
}

// Finish stamps the end time and returns the summary for convenience.
func (s *Summary) Finish() *Summary {
	s.Finished = time.Now()
	return s
}

// Duration is the wall-clock length of the pass.
func (s *Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// maxErrors bounds the per-pass error list so a broken provider cannot
// balloon the summary.
const maxErrors = 50

// AddError records a failed instrument.
func (s *Summary) AddError(msg string) {
	s.Failed++
	if len(s.Errors) < maxErrors {
		s.Errors = append(s.Errors, msg)
	}
}
