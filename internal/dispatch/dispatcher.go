// Package dispatch fans batch verification across workers. Two dispatchers
// exist: an in-process one running goroutine workers, and a process pool
// that isolates verification in child processes.
package dispatch

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/config"
	"github.com/mailvet/mailvet/internal/core"
)

// Dispatcher runs batch verification with goroutine workers. With a single
// worker it degrades to sequential mode with a randomized pause between
// addresses, which keeps the traffic pattern from looking scripted.
type Dispatcher struct {
	cfg    config.DispatchConfig
	logger *zap.Logger
	sleep  func(time.Duration)
}

func NewDispatcher(cfg config.DispatchConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{cfg: cfg, logger: logger, sleep: time.Sleep}
}

// BatchVerify verifies every distinct address in emails and returns one
// result per address. A panicking worker records Risky for the address it
// was holding and the batch continues.
func (d *Dispatcher) BatchVerify(ctx context.Context, emails []string, verify core.VerifyFunc) map[string]core.VerificationResult {
	emails = dedupe(emails)
	if len(emails) == 0 {
		return map[string]core.VerificationResult{}
	}

	workers := d.workerCount(len(emails))
	if workers <= 1 {
		return d.sequential(ctx, emails, verify)
	}
	return d.parallel(ctx, emails, verify, workers)
}

func (d *Dispatcher) workerCount(batch int) int {
	workers := d.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if d.cfg.MaxWorkers > 0 && workers > d.cfg.MaxWorkers {
		// Soft cap: the operator asked for it, they get it, with a warning.
		d.logger.Warn("Worker count exceeds recommended maximum",
			zap.Int("requested", workers),
			zap.Int("recommended_max", d.cfg.MaxWorkers))
	}
	if workers > batch {
		workers = batch
	}
	return workers
}

func (d *Dispatcher) sequential(ctx context.Context, emails []string, verify core.VerifyFunc) map[string]core.VerificationResult {
	results := make(map[string]core.VerificationResult, len(emails))
	for i, email := range emails {
		if i > 0 {
			d.sleep(d.randomDelay())
		}
		results[email] = d.guardedVerify(ctx, email, verify)
	}
	return results
}

func (d *Dispatcher) parallel(ctx context.Context, emails []string, verify core.VerifyFunc, workers int) map[string]core.VerificationResult {
	queue := make(chan string)
	results := make(map[string]core.VerificationResult, len(emails))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := true
			for email := range queue {
				if !first {
					d.sleep(d.randomDelay())
				}
				first = false
				result := d.guardedVerify(ctx, email, verify)
				mu.Lock()
				results[email] = result
				mu.Unlock()
			}
		}()
	}

	for _, email := range emails {
		queue <- email
	}
	close(queue)
	wg.Wait()

	return results
}

// guardedVerify keeps a worker panic from taking the batch down; the
// affected address becomes Risky.
func (d *Dispatcher) guardedVerify(ctx context.Context, email string, verify core.VerifyFunc) (result core.VerificationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("Worker panicked during verification",
				zap.String("email", email),
				zap.Any("panic", rec))
			result = core.NewResult(email, core.CategoryRisky,
				fmt.Sprintf("Verification error: %v", rec), "unknown", nil, time.Now())
		}
	}()
	return verify(ctx, email)
}

func (d *Dispatcher) randomDelay() time.Duration {
	min, max := d.cfg.MinDelay, d.cfg.MaxDelay
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func dedupe(emails []string) []string {
	seen := make(map[string]bool, len(emails))
	out := emails[:0:0]
	for _, email := range emails {
		if !seen[email] {
			seen[email] = true
			out = append(out, email)
		}
	}
	return out
}
