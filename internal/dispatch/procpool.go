package dispatch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/config"
	"github.com/mailvet/mailvet/internal/core"
)

// ResultLine is the wire form of one verification result on a worker
// process's stdout. One JSON object per line.
type ResultLine struct {
	Email     string            `json:"email"`
	Category  string            `json:"category"`
	Reason    string            `json:"reason"`
	Provider  string            `json:"provider"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// FromResult converts a verification result to its wire form.
func FromResult(r core.VerificationResult) ResultLine {
	return ResultLine{
		Email:     r.Email,
		Category:  string(r.Category),
		Reason:    r.Reason,
		Provider:  r.Provider,
		Details:   r.Details,
		Timestamp: r.Timestamp,
	}
}

func (l ResultLine) toResult() core.VerificationResult {
	category := core.Category(l.Category)
	if !category.Known() {
		category = core.CategoryRisky
	}
	return core.NewResult(l.Email, category, l.Reason, l.Provider, l.Details, l.Timestamp)
}

// ProcessPool verifies a batch in child worker processes. Each worker is
// this binary re-executed in worker mode, fed addresses over stdin and
// emitting one JSON result per line on stdout. A crashing or wedged worker
// only loses the addresses it was holding; those fall back to in-process
// verification.
type ProcessPool struct {
	cfg        config.DispatchConfig
	workerArgs []string
	logger     *zap.Logger

	// binary overrides the worker executable; empty means re-exec self.
	binary string
}

// NewProcessPool builds a process pool dispatcher. workerArgs are the extra
// arguments that put the re-executed binary into worker mode.
func NewProcessPool(cfg config.DispatchConfig, workerArgs []string, logger *zap.Logger) *ProcessPool {
	return &ProcessPool{cfg: cfg, workerArgs: workerArgs, logger: logger}
}

func (p *ProcessPool) BatchVerify(ctx context.Context, emails []string, verify core.VerifyFunc) map[string]core.VerificationResult {
	emails = dedupe(emails)
	results := make(map[string]core.VerificationResult, len(emails))
	if len(emails) == 0 {
		return results
	}

	binary, err := p.workerBinary()
	if err != nil {
		p.logger.Error("Cannot locate worker binary, verifying in process", zap.Error(err))
	} else {
		workers := p.workerCount(len(emails))
		chunks := chunk(emails, workers)

		type workerOutput struct {
			lines []ResultLine
			err   error
		}
		outputs := make(chan workerOutput, len(chunks))
		for _, c := range chunks {
			go func(assigned []string) {
				lines, err := p.runWorker(ctx, binary, assigned)
				outputs <- workerOutput{lines: lines, err: err}
			}(c)
		}

		for range chunks {
			out := <-outputs
			if out.err != nil {
				p.logger.Warn("Worker process failed", zap.Error(out.err))
			}
			for _, line := range out.lines {
				results[line.Email] = line.toResult()
			}
		}
	}

	// Whatever the workers did not deliver is verified right here.
	for _, email := range emails {
		if _, ok := results[email]; !ok {
			p.logger.Info("Falling back to in-process verification", zap.String("email", email))
			results[email] = verify(ctx, email)
		}
	}
	return results
}

func (p *ProcessPool) workerBinary() (string, error) {
	if p.binary != "" {
		return p.binary, nil
	}
	return os.Executable()
}

func (p *ProcessPool) workerCount(batch int) int {
	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if p.cfg.MaxWorkers > 0 && workers > p.cfg.MaxWorkers {
		p.logger.Warn("Worker count exceeds recommended maximum",
			zap.Int("requested", workers),
			zap.Int("recommended_max", p.cfg.MaxWorkers))
	}
	if workers > batch {
		workers = batch
	}
	return workers
}

// runWorker launches one child, feeds it its share of addresses and collects
// its result lines. The child gets a bounded join window; past that it is
// killed and its unfinished addresses are left for the fallback.
func (p *ProcessPool) runWorker(ctx context.Context, binary string, emails []string) ([]ResultLine, error) {
	joinLimit := p.cfg.WorkerJoinLimit
	if joinLimit <= 0 {
		joinLimit = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, joinLimit)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, p.workerArgs...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	go func() {
		defer stdin.Close()
		w := bufio.NewWriter(stdin)
		for _, email := range emails {
			if _, err := io.WriteString(w, email+"\n"); err != nil {
				return
			}
		}
		w.Flush()
	}()

	var lines []ResultLine
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line ResultLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			p.logger.Warn("Discarding malformed worker output", zap.Error(err))
			continue
		}
		lines = append(lines, line)
	}

	if err := cmd.Wait(); err != nil {
		return lines, fmt.Errorf("worker exited abnormally: %w", err)
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("failed reading worker output: %w", err)
	}
	return lines, nil
}

// chunk splits emails into n contiguous slices of near-equal size.
func chunk(emails []string, n int) [][]string {
	if n < 1 {
		n = 1
	}
	chunks := make([][]string, 0, n)
	size := (len(emails) + n - 1) / n
	for start := 0; start < len(emails); start += size {
		end := start + size
		if end > len(emails) {
			end = len(emails)
		}
		chunks = append(chunks, emails[start:end])
	}
	return chunks
}
