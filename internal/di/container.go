package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/config"
	"github.com/mailvet/mailvet/internal/core"
	"github.com/mailvet/mailvet/internal/dnsx"
	"github.com/mailvet/mailvet/internal/factory"
	"github.com/mailvet/mailvet/internal/logging"
	"github.com/mailvet/mailvet/internal/provider"
	"github.com/mailvet/mailvet/internal/ratelimit"
)

// Options carries the few inputs that come from the command line rather
// than the configuration file.
type Options struct {
	WorkerArgs []string

	// Console switches logging to the console-friendly logger instead of
	// the config-driven one; Verbose and JSONLog tune it.
	Console bool
	Verbose bool
	JSONLog bool
}

// BuildContainer creates and configures a dependency injection container
func BuildContainer(opts Options) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(cfg *config.Config) (*zap.Logger, error) {
		if opts.Console {
			return logging.InitConsoleLogger(opts.Verbose, opts.JSONLog)
		}
		return logging.InitLogger(cfg)
	}); err != nil {
		return nil, err
	}

	// Register rate limiter
	if err := container.Provide(func(cfg *config.Config) *ratelimit.Limiter {
		return ratelimit.New(cfg.GetRateLimit())
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(l *ratelimit.Limiter) core.RateLimiter {
		return l
	}); err != nil {
		return nil, err
	}

	// Register MX resolver
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) (core.MXResolver, error) {
		timeout, err := cfg.GetDuration("dns.timeout")
		if err != nil {
			return nil, err
		}
		return dnsx.NewResolver(timeout, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register provider identifier
	if err := container.Provide(func(resolver core.MXResolver, logger *zap.Logger) core.ProviderIdentifier {
		return provider.NewIdentifier(resolver, logger)
	}); err != nil {
		return nil, err
	}

	// Register classification store
	if err := container.Provide(factory.CreateStore); err != nil {
		return nil, err
	}

	// Register probes
	if err := container.Provide(factory.CreateProbes); err != nil {
		return nil, err
	}

	// Register sequence planner
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *core.Planner {
		return core.NewPlanner(cfg.GetMicrosoftAPI().Enabled, cfg.GetBool("browser.enabled"), logger)
	}); err != nil {
		return nil, err
	}

	// Register batch dispatcher
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.BatchDispatcher {
		return factory.CreateDispatcher(cfg, opts.WorkerArgs, logger)
	}); err != nil {
		return nil, err
	}

	// Register the verification service
	if err := container.Provide(func(
		cfg *config.Config,
		store core.ResultStore,
		probes map[core.Method]core.Probe,
		planner *core.Planner,
		identifier core.ProviderIdentifier,
		resolver core.MXResolver,
		limiter core.RateLimiter,
		dispatcher core.BatchDispatcher,
		logger *zap.Logger,
	) *core.VerifierService {
		domains := cfg.GetDomains()
		if len(domains.Whitelist) > 0 {
			logger.Info("Loaded whitelisted domains", zap.Strings("domains", domains.Whitelist))
		}
		if len(domains.Blacklist) > 0 {
			logger.Info("Loaded blacklisted domains", zap.Strings("domains", domains.Blacklist))
		}
		return core.NewVerifierService(
			store, probes, planner, identifier, resolver, limiter, dispatcher,
			domains.Whitelist, domains.Blacklist, logger, nil, nil)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
