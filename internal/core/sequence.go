package core

import (
	"go.uber.org/zap"
)

// microsoftProviders are the providers served by Microsoft's login
// infrastructure; they share one verification sequence and the API probe.
var microsoftProviders = map[string]bool{
	"outlook.com":   true,
	"hotmail.com":   true,
	"live.com":      true,
	"microsoft.com": true,
	"office365.com": true,
}

// IsMicrosoftProvider reports whether the provider belongs to the Microsoft family
func IsMicrosoftProvider(provider string) bool {
	return microsoftProviders[provider]
}

// googleProviders are native Gmail providers, as opposed to customGoogle
// domains that merely route mail through Google.
var googleProviders = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
}

// IsGoogleProvider reports whether the provider is native Gmail
func IsGoogleProvider(provider string) bool {
	return googleProviders[provider]
}

// Planner determines the ordered probe sequence for a provider. The order
// encodes empirically tuned trust ranking of signal quality per provider and
// must be preserved exactly.
type Planner struct {
	sequences      map[string][]Method
	apiEnabled     bool
	browserEnabled bool
	logger         *zap.Logger
}

// NewPlanner creates a sequence planner. apiEnabled controls the Microsoft
// API step; browserEnabled controls browser-login steps everywhere.
func NewPlanner(apiEnabled, browserEnabled bool, logger *zap.Logger) *Planner {
	sequences := map[string][]Method{
		// Microsoft verification: API -> browser login -> SMTP
		"outlook.com":   {MethodAPI, MethodBrowser, MethodSMTP},
		"hotmail.com":   {MethodAPI, MethodBrowser, MethodSMTP},
		"live.com":      {MethodAPI, MethodBrowser, MethodSMTP},
		"microsoft.com": {MethodAPI, MethodBrowser, MethodSMTP},
		"office365.com": {MethodAPI, MethodBrowser, MethodSMTP},

		// Gmail verification: SMTP -> browser login
		"gmail.com": {MethodSMTP, MethodBrowser},

		// Google-hosted domains that are not native Gmail: browser login -> SMTP
		"customGoogle": {MethodBrowser, MethodSMTP},

		// Yahoo verification: browser login -> SMTP
		"yahoo.com": {MethodBrowser, MethodSMTP},
	}

	return &Planner{
		sequences:      sequences,
		apiEnabled:     apiEnabled,
		browserEnabled: browserEnabled,
		logger:         logger,
	}
}

// defaultSequence is used for unknown providers
var defaultSequence = []Method{MethodSMTP}

// Plan returns the ordered probe methods for a provider, with disabled
// methods filtered out.
func (p *Planner) Plan(provider string) []Method {
	sequence, ok := p.sequences[provider]
	if !ok {
		sequence = defaultSequence
	}

	filtered := make([]Method, 0, len(sequence))
	for _, method := range sequence {
		if method == MethodAPI && !p.apiEnabled && IsMicrosoftProvider(provider) {
			continue
		}
		if method == MethodBrowser && !p.browserEnabled {
			continue
		}
		filtered = append(filtered, method)
	}

	p.logger.Debug("Planned verification sequence",
		zap.String("provider", provider),
		zap.Any("sequence", filtered))
	return filtered
}
