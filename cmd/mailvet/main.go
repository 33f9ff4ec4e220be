package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/config"
	"github.com/mailvet/mailvet/internal/core"
	"github.com/mailvet/mailvet/internal/di"
	"github.com/mailvet/mailvet/internal/dispatch"
)

var (
	inputFile   = flag.String("file", "", "File with one email address per line (addresses may also be given as arguments)")
	workers     = flag.Int("workers", 0, "Override the configured dispatch worker count")
	showSummary = flag.Bool("summary", false, "Print per-category counts after the run")
	historyFor  = flag.String("history", "", "Print the verification history for an address and exit")
	verbose     = flag.Bool("verbose", false, "Console logging at debug level")
	jsonLog     = flag.Bool("json-log", false, "Console logs as JSON instead of plain text")
	workerMode  = flag.Bool("worker", false, "Run as a batch worker reading addresses from stdin (internal)")
)

func main() {
	flag.Parse()

	container, err := di.BuildContainer(di.Options{
		WorkerArgs: []string{"-worker"},
		Console:    *verbose || *jsonLog,
		Verbose:    *verbose,
		JSONLog:    *jsonLog,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Flag overrides are applied before any dependent component is built.
	if err := container.Invoke(func(cfg *config.Config) {
		if *workers > 0 {
			cfg.GetViper().Set("dispatch.workers", *workers)
		}
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to apply flag overrides: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *zap.Logger, service *core.VerifierService, store core.ResultStore) error {
	defer logger.Sync()
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close store", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *workerMode {
		return runWorker(ctx, service)
	}

	if *historyFor != "" {
		return printHistory(ctx, service, *historyFor)
	}

	emails, err := collectEmails()
	if err != nil {
		return err
	}
	if len(emails) == 0 {
		return fmt.Errorf("no email addresses given; pass them as arguments or with -file")
	}

	logger.Info("Starting batch verification", zap.Int("addresses", len(emails)))
	results := service.VerifyBatch(ctx, emails)

	sorted := make([]string, 0, len(results))
	for email := range results {
		sorted = append(sorted, email)
	}
	sort.Strings(sorted)
	for _, email := range sorted {
		fmt.Println(results[email].String())
	}

	if *showSummary {
		summary, err := service.Summary(ctx)
		if err != nil {
			return fmt.Errorf("failed to load summary: %w", err)
		}
		fmt.Printf("\nSummary: %d valid, %d invalid, %d risky, %d custom (%d total)\n",
			summary.Valid, summary.Invalid, summary.Risky, summary.Custom, summary.Total())
	}

	return nil
}

// runWorker is the child side of the process pool: addresses arrive one per
// line on stdin, results leave as JSON lines on stdout. Logs go to stderr
// so they never mix with the result stream.
func runWorker(ctx context.Context, service *core.VerifierService) error {
	encoder := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		email := strings.TrimSpace(scanner.Text())
		if email == "" {
			continue
		}
		result := service.VerifyOne(ctx, email)
		if err := encoder.Encode(dispatch.FromResult(result)); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}
	return scanner.Err()
}

func printHistory(ctx context.Context, service *core.VerifierService, email string) error {
	events, err := service.History(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(events) == 0 {
		fmt.Printf("No history for %s\n", email)
		return nil
	}
	for _, event := range events {
		fmt.Printf("%s  %s\n", event.Timestamp.Format("2006-01-02 15:04:05"), event.Event)
	}
	return nil
}

// collectEmails merges addresses given as arguments with those in -file.
func collectEmails() ([]string, error) {
	emails := append([]string(nil), flag.Args()...)

	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			// Accept both one-per-line and comma-separated input.
			for _, field := range strings.Split(line, ",") {
				if field = strings.TrimSpace(field); field != "" {
					emails = append(emails, field)
				}
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
	}

	return emails, nil
}
