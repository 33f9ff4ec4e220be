package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// VerifierService drives one address through the verification state machine:
// store lookup, static validation, sequence planning, the probe loop with
// definitive early exit, judgment, and persistence.
type VerifierService struct {
	store      ResultStore
	probes     map[Method]Probe
	planner    *Planner
	identifier ProviderIdentifier
	resolver   MXResolver
	limiter    RateLimiter
	dispatcher BatchDispatcher
	judge      *Judge
	logger     *zap.Logger

	whitelist map[string]bool
	blacklist map[string]bool

	now   func() time.Time
	sleep func(time.Duration)

	mu       sync.Mutex
	runCache map[string]VerificationResult
}

// NewVerifierService creates the verification orchestrator. now and sleep
// may be nil; they default to the wall clock and time.Sleep and exist so
// tests can run without waiting.
func NewVerifierService(
	store ResultStore,
	probes map[Method]Probe,
	planner *Planner,
	identifier ProviderIdentifier,
	resolver MXResolver,
	limiter RateLimiter,
	dispatcher BatchDispatcher,
	whitelist []string,
	blacklist []string,
	logger *zap.Logger,
	now func() time.Time,
	sleep func(time.Duration),
) *VerifierService {
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &VerifierService{
		store:      store,
		probes:     probes,
		planner:    planner,
		identifier: identifier,
		resolver:   resolver,
		limiter:    limiter,
		dispatcher: dispatcher,
		judge:      NewJudge(logger, now),
		logger:     logger,
		whitelist:  toDomainSet(whitelist),
		blacklist:  toDomainSet(blacklist),
		now:        now,
		sleep:      sleep,
		runCache:   make(map[string]VerificationResult),
	}
}

func toDomainSet(domains []string) map[string]bool {
	set := make(map[string]bool, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			set[d] = true
		}
	}
	return set
}

// VerifyOne verifies a single email address. It always returns a
// classification; per-probe failures degrade to Risky rather than erroring.
func (s *VerifierService) VerifyOne(ctx context.Context, email string) VerificationResult {
	s.addToHistory(ctx, email, "Verification started")

	// Addresses already in a category ledger are never re-probed.
	if found, category, err := s.store.Exists(ctx, email); err != nil {
		s.logger.Error("Store lookup failed", zap.String("email", email), zap.Error(err))
	} else if found {
		s.addToHistory(ctx, email, fmt.Sprintf("Email found in %s list - using cached result", category))
		result := NewResult(email, category, fmt.Sprintf("Email found in %s list", category), "cached", nil, s.now())
		s.finalizeHistory(ctx, email, category)
		return result
	}

	// Intra-run dedup. Hit here means the address was handled this run but
	// never made the ledger (a failed Record); the staged event from this
	// call still has to be closed out.
	s.mu.Lock()
	cached, hit := s.runCache[email]
	s.mu.Unlock()
	if hit {
		s.finalizeHistory(ctx, email, cached.Category)
		return cached
	}

	if result := s.staticValidate(ctx, email); result != nil {
		return s.finish(ctx, *result)
	}

	domain := domainOf(email)
	mxHosts := s.resolver.LookupMX(ctx, domain)

	provider, loginURL := s.identifier.Identify(ctx, email)
	s.addToHistory(ctx, email, "Provider identified: "+provider)

	sequence := s.planner.Plan(provider)
	s.addToHistory(ctx, email, fmt.Sprintf("Verification order for %s: %s", provider, joinMethods(sequence)))

	req := ProbeRequest{Email: email, Provider: provider, LoginURL: loginURL, MXHosts: mxHosts}

	var collected []VerificationResult
	for _, method := range sequence {
		probe, ok := s.probes[method]
		if !ok {
			s.addToHistory(ctx, email, fmt.Sprintf("No probe registered for method: %s", method))
			continue
		}

		if err := s.gate(ctx, email, domain); err != nil {
			// Cancelled mid-sequence: no more probes, judge what we have.
			s.addToHistory(ctx, email, "Verification interrupted: "+err.Error())
			break
		}

		s.addToHistory(ctx, email, fmt.Sprintf("%s verification started", method))
		result := s.runProbe(ctx, probe, req)
		if result == nil {
			s.addToHistory(ctx, email, fmt.Sprintf("%s verification inconclusive", method))
			continue
		}
		s.addToHistory(ctx, email, fmt.Sprintf("%s verification result: %s (%s)", method, result.Category, result.Reason))

		// A definitive verdict cuts the sequence short; lower-trust probes
		// never get a chance to override it.
		if result.Definitive() {
			return s.finish(ctx, *result)
		}
		collected = append(collected, *result)
	}

	s.addToHistory(ctx, email, "Making final judgment based on all verification methods")
	final := s.judge.Judge(email, collected)
	s.addToHistory(ctx, email, fmt.Sprintf("Final judgment: %s - %q", final.Category, final.Reason))

	return s.finish(ctx, final)
}

// VerifyBatch verifies multiple addresses through the configured dispatcher
func (s *VerifierService) VerifyBatch(ctx context.Context, emails []string) map[string]VerificationResult {
	return s.dispatcher.BatchVerify(ctx, emails, func(ctx context.Context, email string) VerificationResult {
		return s.VerifyOne(ctx, email)
	})
}

// Summary returns per-category counts of every classified address
func (s *VerifierService) Summary(ctx context.Context) (Summary, error) {
	return s.store.Summary(ctx)
}

// History returns the ordered verification history for an address
func (s *VerifierService) History(ctx context.Context, email string) ([]HistoryEvent, error) {
	return s.store.History(ctx, email)
}

// staticValidate applies the checks that terminate verification before any
// probe runs. A nil return means the address proceeds to the probe loop.
func (s *VerifierService) staticValidate(ctx context.Context, email string) *VerificationResult {
	if !emailPattern.MatchString(email) {
		s.addToHistory(ctx, email, "Initial validation: invalid - Invalid email format")
		r := NewResult(email, CategoryInvalid, "Invalid email format", "unknown", nil, s.now())
		return &r
	}

	domain := domainOf(email)

	if s.blacklist[domain] {
		s.addToHistory(ctx, email, "Initial validation: invalid - Domain is blacklisted")
		r := NewResult(email, CategoryInvalid, "Domain is blacklisted", domain, nil, s.now())
		return &r
	}

	// Whitelisted domains are a manual trust override: no probing at all.
	if s.whitelist[domain] {
		s.addToHistory(ctx, email, "Initial validation: valid - Domain in whitelist")
		r := NewResult(email, CategoryValid, "Domain in whitelist", domain, nil, s.now())
		return &r
	}

	if len(s.resolver.LookupMX(ctx, domain)) == 0 {
		s.addToHistory(ctx, email, "Initial validation: invalid - Domain has no mail servers")
		r := NewResult(email, CategoryInvalid, "Domain has no mail servers", "unknown", nil, s.now())
		return &r
	}

	return nil
}

// gate applies rate limiting ahead of one outbound probe. Pacing is
// advisory: wait out the backoff, record the request, proceed. A non-nil
// error means the context was cancelled and the probe must not fire.
func (s *VerifierService) gate(ctx context.Context, email, domain string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if s.limiter.IsLimited(domain) {
		backoff := s.limiter.BackoffSeconds(domain)
		s.addToHistory(ctx, email, fmt.Sprintf("Rate limited for %s, waiting %ds", domain, backoff))
		s.sleep(time.Duration(backoff) * time.Second)
	}
	s.limiter.RecordRequest(domain)
	return nil
}

// runProbe invokes one probe with a guard at the call boundary: a probe
// error or panic becomes a Risky result instead of failing the run.
func (s *VerifierService) runProbe(ctx context.Context, probe Probe, req ProbeRequest) (result *VerificationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Probe panicked",
				zap.String("email", req.Email),
				zap.String("method", string(probe.Method())),
				zap.Any("panic", rec))
			r := NewResult(req.Email, CategoryRisky, fmt.Sprintf("Verification error: %v", rec), "unknown", nil, s.now())
			result = &r
		}
	}()

	res, err := probe.Verify(ctx, req)
	if err != nil {
		s.logger.Warn("Probe failed",
			zap.String("email", req.Email),
			zap.String("method", string(probe.Method())),
			zap.Error(err))
		r := NewResult(req.Email, CategoryRisky, fmt.Sprintf("Verification error: %v", err), "unknown", nil, s.now())
		return &r
	}
	return res
}

// finish persists the final result, caches it for the rest of the run and
// finalizes the address's history.
func (s *VerifierService) finish(ctx context.Context, result VerificationResult) VerificationResult {
	s.mu.Lock()
	s.runCache[result.Email] = result
	s.mu.Unlock()

	conflict, err := s.store.Record(ctx, result)
	if err != nil {
		s.logger.Error("Failed to record result", zap.String("email", result.Email), zap.Error(err))
	}
	if conflict != nil {
		s.logger.Warn("Classification conflict", zap.String("conflict", conflict.String()))
		s.addToHistory(ctx, result.Email, "Classification conflict: "+conflict.String())
	}

	s.finalizeHistory(ctx, result.Email, result.Category)
	return result
}

func (s *VerifierService) addToHistory(ctx context.Context, email, event string) {
	s.logger.Info(event, zap.String("email", email))
	entry := HistoryEvent{Timestamp: s.now(), Event: event}
	if err := s.store.AppendHistoryEvent(ctx, email, entry); err != nil {
		s.logger.Error("Failed to append history event", zap.String("email", email), zap.Error(err))
	}
}

func (s *VerifierService) finalizeHistory(ctx context.Context, email string, category Category) {
	if err := s.store.FinalizeHistory(ctx, email, category); err != nil {
		s.logger.Error("Failed to finalize history", zap.String("email", email), zap.Error(err))
	}
}

func domainOf(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 {
		return strings.ToLower(email[at+1:])
	}
	return ""
}

func joinMethods(methods []Method) string {
	parts := make([]string, len(methods))
	for i, m := range methods {
		parts[i] = string(m)
	}
	return strings.Join(parts, " -> ")
}
