package core

import (
	"fmt"
	"time"
)

// Category is the final classification bucket for an email address
type Category string

const (
	CategoryValid   Category = "valid"
	CategoryInvalid Category = "invalid"
	CategoryRisky   Category = "risky"
	CategoryCustom  Category = "custom"
)

// Categories lists every classification bucket in precedence order
var Categories = []Category{CategoryValid, CategoryInvalid, CategoryRisky, CategoryCustom}

// Known returns whether c is one of the four classification buckets
func (c Category) Known() bool {
	switch c {
	case CategoryValid, CategoryInvalid, CategoryRisky, CategoryCustom:
		return true
	}
	return false
}

// Method identifies one verification technique
type Method string

const (
	MethodAPI     Method = "api"
	MethodBrowser Method = "browser"
	MethodSMTP    Method = "smtp"
)

// VerificationResult is the outcome of one verification attempt for an
// address. Results are never mutated after construction; the timestamp is
// supplied by the caller so tests can inject a deterministic clock.
type VerificationResult struct {
	Email     string
	Category  Category
	Reason    string
	Provider  string
	Details   map[string]string
	Timestamp time.Time
}

// NewResult creates a verification result with an explicit timestamp
func NewResult(email string, category Category, reason, provider string, details map[string]string, ts time.Time) VerificationResult {
	return VerificationResult{
		Email:     email,
		Category:  category,
		Reason:    reason,
		Provider:  provider,
		Details:   details,
		Timestamp: ts,
	}
}

// Definitive reports whether the result settles the address outright,
// cutting off any remaining probes in the sequence.
func (r VerificationResult) Definitive() bool {
	return r.Category == CategoryValid || r.Category == CategoryInvalid
}

func (r VerificationResult) String() string {
	return fmt.Sprintf("%s: %s (%s) - %s", r.Email, r.Category, r.Provider, r.Reason)
}

// HistoryEvent is one entry in an address's verification history
type HistoryEvent struct {
	Timestamp time.Time
	Event     string
}

// Conflict is reported when an address is re-recorded with a category that
// differs from the one already persisted. The store keeps the original
// category; callers decide what to do with the disagreement.
type Conflict struct {
	Email    string
	Stored   Category
	Observed Category
}

func (c *Conflict) String() string {
	return fmt.Sprintf("%s: stored as %s, observed %s", c.Email, c.Stored, c.Observed)
}

// Summary holds per-category classification counts
type Summary struct {
	Valid   int
	Invalid int
	Risky   int
	Custom  int
}

// Total returns the number of classified addresses
func (s Summary) Total() int {
	return s.Valid + s.Invalid + s.Risky + s.Custom
}

// Add increments the counter for the given category
func (s *Summary) Add(category Category, n int) {
	switch category {
	case CategoryValid:
		s.Valid += n
	case CategoryInvalid:
		s.Invalid += n
	case CategoryRisky:
		s.Risky += n
	case CategoryCustom:
		s.Custom += n
	}
}
