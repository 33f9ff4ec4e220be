package core

import (
	"context"
)

// ProbeRequest carries the context a probe needs for one verification attempt
type ProbeRequest struct {
	Email    string
	Provider string
	LoginURL string
	MXHosts  []string
}

// Probe runs one verification technique against an address. A nil result
// with a nil error means the probe was inconclusive and the next method in
// the sequence should be tried.
type Probe interface {
	Method() Method
	Verify(ctx context.Context, req ProbeRequest) (*VerificationResult, error)
}

// ResultStore persists final classifications and per-address verification
// history. An address belongs to at most one category ledger; once recorded
// it is never re-verified by the orchestrator.
type ResultStore interface {
	// Exists reports whether the address has already been classified,
	// and if so under which category.
	Exists(ctx context.Context, email string) (bool, Category, error)

	// Record persists a final classification. Recording the same category
	// twice is a no-op; recording a different category leaves the ledger
	// unchanged and returns a Conflict describing the disagreement.
	Record(ctx context.Context, result VerificationResult) (*Conflict, error)

	// AppendHistoryEvent stages a history event for an in-flight run so a
	// crash mid-verification still leaves partial history on disk.
	AppendHistoryEvent(ctx context.Context, email string, event HistoryEvent) error

	// FinalizeHistory moves an address's staged events into the permanent
	// per-category history once its final category is known.
	FinalizeHistory(ctx context.Context, email string, category Category) error

	// History returns the ordered event history for an address.
	History(ctx context.Context, email string) ([]HistoryEvent, error)

	// Summary returns per-category classification counts.
	Summary(ctx context.Context) (Summary, error)

	Close() error
}

// MXResolver resolves the mail exchangers for a domain. Resolution failures
// are reported as an empty host list; the orchestrator treats a domain with
// no mail servers as a terminal classification, not an error.
type MXResolver interface {
	LookupMX(ctx context.Context, domain string) []string
}

// ProviderIdentifier maps an address to its mailbox provider and the login
// surface a browser probe would drive, if one is known.
type ProviderIdentifier interface {
	Identify(ctx context.Context, email string) (provider string, loginURL string)
}

// RateLimiter paces outbound probes per target domain. It is advisory: a
// caller waits out the returned backoff, records the request and proceeds.
type RateLimiter interface {
	IsLimited(domain string) bool
	BackoffSeconds(domain string) int
	RecordRequest(domain string)
	SetExplicitBackoff(domain string, seconds int)

	// Wait blocks until the process-wide pacer admits another probe.
	Wait(ctx context.Context) error
}

// VerifyFunc verifies a single address and always yields a classification
type VerifyFunc func(ctx context.Context, email string) VerificationResult

// BatchDispatcher fans a list of addresses across workers. The returned map
// has exactly one entry per distinct input address, whatever happens to
// individual workers.
type BatchDispatcher interface {
	BatchVerify(ctx context.Context, emails []string, verify VerifyFunc) map[string]VerificationResult
}
