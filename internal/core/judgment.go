package core

import (
	"time"

	"go.uber.org/zap"
)

// Judge arbitrates between heterogeneous probe results for one address.
// Precedence is fixed and independent of probe order: a single strong
// positive or negative signal dominates any number of weak ones.
type Judge struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewJudge creates a judgment engine. now may be nil, in which case the
// wall clock is used for the degenerate no-results case.
func NewJudge(logger *zap.Logger, now func() time.Time) *Judge {
	if now == nil {
		now = time.Now
	}
	return &Judge{logger: logger, now: now}
}

// Judge picks the single final classification from the collected results.
// Precedence: Valid > Invalid > Risky > Custom; within the winning category
// the most recent timestamp wins and that result is returned verbatim.
func (j *Judge) Judge(email string, results []VerificationResult) VerificationResult {
	if len(results) == 0 {
		// Should be unreachable when every probe returns something, but a
		// sequence of all-inconclusive probes lands here.
		j.logger.Warn("No verification results to judge", zap.String("email", email))
		return NewResult(email, CategoryRisky, "No verification results available", "unknown", nil, j.now())
	}

	for _, category := range Categories {
		if winner, ok := mostRecent(results, category); ok {
			j.logger.Info("Judgment made",
				zap.String("email", email),
				zap.String("category", string(category)),
				zap.String("reason", winner.Reason))
			return winner
		}
	}

	// Unreachable while every result carries a known category.
	j.logger.Error("Could not make a judgment", zap.String("email", email))
	return NewResult(email, CategoryRisky, "Could not make a judgment", "unknown", nil, j.now())
}

// mostRecent returns the latest-timestamped result in the given category
func mostRecent(results []VerificationResult, category Category) (VerificationResult, bool) {
	var winner VerificationResult
	found := false
	for _, r := range results {
		if r.Category != category {
			continue
		}
		if !found || r.Timestamp.After(winner.Timestamp) {
			winner = r
			found = true
		}
	}
	return winner, found
}
