package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/config"
	"github.com/mailvet/mailvet/internal/core"
)

// backoffSetter is the slice of the rate limiter the API probe needs to
// propagate remote throttle signals.
type backoffSetter interface {
	SetExplicitBackoff(domain string, seconds int)
}

// MicrosoftAPIProbe checks account existence for Microsoft-hosted addresses
// through the public credential-type endpoint used by the login page. The
// endpoint answers for any Microsoft consumer or business account without
// authentication.
type MicrosoftAPIProbe struct {
	cfg     config.MicrosoftAPIConfig
	client  *http.Client
	limiter backoffSetter
	logger  *zap.Logger
	sleep   func(time.Duration)
	now     func() time.Time
}

func NewMicrosoftAPIProbe(cfg config.MicrosoftAPIConfig, limiter backoffSetter, logger *zap.Logger) *MicrosoftAPIProbe {
	return &MicrosoftAPIProbe{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		logger:  logger,
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

func (p *MicrosoftAPIProbe) Method() core.Method { return core.MethodAPI }

type credentialTypeRequest struct {
	Username string `json:"username"`
}

type credentialTypeResponse struct {
	IfExistsResult int `json:"IfExistsResult"`
	ThrottleStatus int `json:"ThrottleStatus"`
}

// Verify asks the credential-type endpoint whether the account exists.
// IfExistsResult 0 means the account is known, 1 means unknown. A throttle
// flag backs the domain off and yields no opinion.
func (p *MicrosoftAPIProbe) Verify(ctx context.Context, req core.ProbeRequest) (*core.VerificationResult, error) {
	resp, err := p.query(ctx, req.Email)
	if err != nil {
		p.logger.Debug("Microsoft API query failed", zap.String("email", req.Email), zap.Error(err))
		return nil, nil
	}

	if resp.ThrottleStatus == 1 {
		p.limiter.SetExplicitBackoff(domainOf(req.Email), 60)
		p.logger.Warn("Microsoft API throttled", zap.String("email", req.Email))
		return nil, nil
	}

	switch resp.IfExistsResult {
	case 0:
		if p.cfg.CatchAllDetection && p.domainAnswersForAnyone(ctx, req.Email) {
			// Both probe accounts "exist": the tenant answers positively
			// for anyone.
			r := core.NewResult(req.Email, core.CategoryRisky,
				"Account API reports all addresses as existing", req.Provider, nil, p.now())
			return &r, nil
		}
		r := core.NewResult(req.Email, core.CategoryValid, "Account exists", req.Provider, nil, p.now())
		return &r, nil
	case 1:
		r := core.NewResult(req.Email, core.CategoryInvalid, "Account does not exist", req.Provider, nil, p.now())
		return &r, nil
	default:
		p.logger.Debug("Microsoft API returned unrecognized result",
			zap.String("email", req.Email),
			zap.Int("if_exists_result", resp.IfExistsResult))
		return nil, nil
	}
}

// domainAnswersForAnyone probes two fabricated accounts on the same domain,
// one gibberish and one plausible looking. If the API claims both exist,
// the positive answer for the real address carries no signal.
func (p *MicrosoftAPIProbe) domainAnswersForAnyone(ctx context.Context, email string) bool {
	domain := domainOf(email)
	for _, local := range []string{randomLocalPart(), "john.smith" + randomLocalPart()[:4]} {
		resp, err := p.query(ctx, local+"@"+domain)
		if err != nil || resp.ThrottleStatus == 1 || resp.IfExistsResult != 0 {
			return false
		}
	}
	return true
}

func (p *MicrosoftAPIProbe) query(ctx context.Context, email string) (*credentialTypeResponse, error) {
	body, err := json.Marshal(credentialTypeRequest{Username: email})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			p.sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		// The endpoint serves the interactive login page; plain API traffic
		// without browser headers gets throttled much sooner.
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "application/json")
		httpReq.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

		httpResp, err := p.client.Do(httpReq)
		if err != nil {
			lastErr = err
			continue
		}

		var decoded credentialTypeResponse
		err = json.NewDecoder(httpResp.Body).Decode(&decoded)
		httpResp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to decode response: %w", err)
			continue
		}
		if httpResp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d", httpResp.StatusCode)
			continue
		}
		return &decoded, nil
	}
	return nil, lastErr
}
