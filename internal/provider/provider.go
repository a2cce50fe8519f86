// Package provider abstracts the upstream market-data source. The concrete
// implementation talks to a BaoStock gateway; everything above it sees only
// the Provider interface and the error taxonomy here, which drives the
// retry-or-fail decision in the paced client.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/wateryu2030/newhigh-zh/internal/domain"
)

// Provider fetches market data from the upstream source. All date arguments
// are inclusive YYYY-MM-DD strings.
type Provider interface {
	// Instruments returns the full listed-security universe.
	Instruments(ctx context.Context) ([]domain.Instrument, error)

	// DailyBars returns daily bars for code in [start, end], ordered by
	// trade date ascending.
	DailyBars(ctx context.Context, code, start, end string) ([]domain.DailyBar, error)

	// Financials returns fundamental snapshots for code in [start, end].
	Financials(ctx context.Context, code, start, end string) ([]domain.FinancialSnapshot, error)

	// MoneyFlows returns per-day order-size flow buckets for code.
	MoneyFlows(ctx context.Context, code, start, end string) ([]domain.MoneyFlow, error)

	// ConceptIndustry returns concept and industry labels for all codes.
	ConceptIndustry(ctx context.Context) ([]domain.ConceptIndustry, error)

	// IndexConstituents returns the membership of the named index
	// (hs300, sz50, zz500).
	IndexConstituents(ctx context.Context, indexKey string) ([]domain.IndexConstituent, error)

	// IndexDailyBars returns daily quotes for a market index in [start, end].
	IndexDailyBars(ctx context.Context, indexCode, start, end string) ([]domain.IndexDailyBar, error)
}

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// Kind classifies a provider failure for retry decisions.
type Kind int

const (
	// Transient covers network failures and 5xx responses; retry.
	Transient Kind = iota
	// RateLimited means the upstream throttled the call; retry after backoff.
	RateLimited
	// InvalidCode means the instrument does not exist upstream; do not retry.
	InvalidCode
	// Auth means login failed even after a fresh session attempt; do not
	// retry. Session expiry is handled inside the gateway client.
	Auth
	// SchemaDrift means the response columns no longer match what the
	// decoder expects; do not retry, the decoder needs updating.
	SchemaDrift
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case RateLimited:
		return "rate_limited"
	case InvalidCode:
		return "invalid_code"
	case Auth:
		return "auth"
	case SchemaDrift:
		return "schema_drift"
	default:
		return "unknown"
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s (%s): %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("provider %s (%s): %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf builds a classified error.
func Errf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Retryable reports whether the call that produced err is worth repeating.
// Unclassified errors are treated as transient. Data errors (invalid code,
// schema drift) never are, and neither are auth failures: the gateway
// client already retried once with a fresh session, so an Auth error that
// escapes it is permanent.
func Retryable(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return true
	}
	switch pe.Kind {
	case InvalidCode, SchemaDrift, Auth:
		return false
	default:
		return true
	}
}
