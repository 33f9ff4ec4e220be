package probe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/core"
)

// StubBrowserProbe stands in for browser-automation verification when no
// automation backend is configured. It reports Custom so a real signal from
// any other probe always takes precedence at judgment time.
type StubBrowserProbe struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewStubBrowserProbe(logger *zap.Logger) *StubBrowserProbe {
	return &StubBrowserProbe{logger: logger, now: time.Now}
}

func (p *StubBrowserProbe) Method() core.Method { return core.MethodBrowser }

func (p *StubBrowserProbe) Verify(ctx context.Context, req core.ProbeRequest) (*core.VerificationResult, error) {
	p.logger.Debug("Browser verification requested but no automation backend is configured",
		zap.String("email", req.Email),
		zap.String("login_url", req.LoginURL))
	r := core.NewResult(req.Email, core.CategoryCustom, "Browser verification not configured", req.Provider, nil, p.now())
	return &r, nil
}
