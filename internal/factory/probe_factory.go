package factory

import (
	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/adapters/probe"
	"github.com/mailvet/mailvet/internal/config"
	"github.com/mailvet/mailvet/internal/core"
	"github.com/mailvet/mailvet/internal/ratelimit"
)

// CreateProbes creates the probe set enabled by the configuration, keyed by
// verification method. Disabled methods are absent from the map; the
// sequence planner already filters them out of every plan.
func CreateProbes(cfg *config.Config, limiter *ratelimit.Limiter, logger *zap.Logger) map[core.Method]core.Probe {
	probes := map[core.Method]core.Probe{
		core.MethodSMTP: probe.NewSMTPProbe(cfg.GetSMTP(), logger),
	}

	if apiCfg := cfg.GetMicrosoftAPI(); apiCfg.Enabled {
		probes[core.MethodAPI] = probe.NewMicrosoftAPIProbe(apiCfg, limiter, logger)
	}

	if cfg.GetBool("browser.enabled") {
		probes[core.MethodBrowser] = probe.NewStubBrowserProbe(logger)
	}

	return probes
}
