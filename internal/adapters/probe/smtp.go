// Package probe contains the verification methods. Each probe implements
// core.Probe and returns nil without error when its signal is inconclusive.
package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"

	"github.com/mailvet/mailvet/internal/config"
	"github.com/mailvet/mailvet/internal/core"
)

// SMTPProbe checks deliverability by opening an SMTP dialog with the
// domain's MX host and watching how RCPT TO is answered. No message is
// ever sent; the dialog stops after the RCPT response.
type SMTPProbe struct {
	cfg    config.SMTPConfig
	dial   func(ctx context.Context, host string) (net.Conn, error)
	logger *zap.Logger
	sleep  func(time.Duration)
	now    func() time.Time
}

func NewSMTPProbe(cfg config.SMTPConfig, logger *zap.Logger) *SMTPProbe {
	p := &SMTPProbe{
		cfg:    cfg,
		logger: logger,
		sleep:  time.Sleep,
		now:    time.Now,
	}
	p.dial = p.dialMX
	return p
}

func (p *SMTPProbe) Method() core.Method { return core.MethodSMTP }

// Verify runs the RCPT dialog against each MX host in preference order,
// with retries across transient failures. Definitive SMTP answers map to
// Valid or Invalid; everything transient comes back inconclusive.
func (p *SMTPProbe) Verify(ctx context.Context, req core.ProbeRequest) (*core.VerificationResult, error) {
	if len(req.MXHosts) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			p.sleep(time.Duration(1<<uint(attempt-1)) * time.Second)
		}
		for _, host := range req.MXHosts {
			outcome, err := p.checkRecipient(ctx, host, req.Email)
			if err != nil {
				lastErr = err
				p.logger.Debug("SMTP dialog failed",
					zap.String("email", req.Email),
					zap.String("mx", host),
					zap.Error(err))
				continue
			}
			return p.resolve(ctx, host, req, outcome)
		}
	}

	p.logger.Debug("SMTP verification exhausted all MX hosts",
		zap.String("email", req.Email),
		zap.Error(lastErr))
	return nil, nil
}

// rcptOutcome captures how the server answered RCPT TO.
type rcptOutcome struct {
	accepted bool
	code     int
}

func (p *SMTPProbe) resolve(ctx context.Context, host string, req core.ProbeRequest, outcome rcptOutcome) (*core.VerificationResult, error) {
	catchAll := false
	if outcome.accepted && p.cfg.CatchAllDetection {
		// A server that also accepts a random local part tells us nothing
		// about the real address.
		random := randomLocalPart() + "@" + domainOf(req.Email)
		if probe, err := p.checkRecipient(ctx, host, random); err == nil && probe.accepted {
			catchAll = true
		}
	}

	result := ClassifySMTP(req.Email, req.Provider, outcome.accepted, outcome.code, catchAll, p.now())
	return result, nil
}

// ClassifySMTP maps an RCPT answer onto a verification result. A nil return
// means the answer was transient and the probe has no opinion. Exported so
// the mapping is testable without a live SMTP dialog.
func ClassifySMTP(email, provider string, accepted bool, code int, catchAll bool, ts time.Time) *core.VerificationResult {
	details := map[string]string{"smtp_code": fmt.Sprintf("%d", code)}

	if accepted {
		if catchAll {
			r := core.NewResult(email, core.CategoryRisky, "Domain accepts all recipients (catch-all)", provider, details, ts)
			return &r
		}
		r := core.NewResult(email, core.CategoryValid, "Mailbox accepts mail (SMTP 250)", provider, details, ts)
		return &r
	}

	switch {
	case code == 550:
		// 550 is ambiguous across providers: mailbox missing, policy
		// rejection or reputation block all share it.
		r := core.NewResult(email, core.CategoryRisky, "Mailbox unavailable (550)", provider, details, ts)
		return &r
	case code == 551 || code == 553:
		r := core.NewResult(email, core.CategoryInvalid, fmt.Sprintf("Recipient rejected (%d)", code), provider, details, ts)
		return &r
	case code >= 500:
		r := core.NewResult(email, core.CategoryInvalid, fmt.Sprintf("Permanent SMTP rejection (%d)", code), provider, details, ts)
		return &r
	default:
		// 4xx and anything unrecognized is transient.
		return nil
	}
}

// checkRecipient runs HELO, MAIL FROM and RCPT TO against one MX host.
func (p *SMTPProbe) checkRecipient(ctx context.Context, host, email string) (rcptOutcome, error) {
	conn, err := p.dial(ctx, host)
	if err != nil {
		return rcptOutcome{}, fmt.Errorf("failed to connect to %s: %w", host, err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := c.Hello(p.cfg.HeloDomain); err != nil {
		return rcptOutcome{}, fmt.Errorf("HELO failed: %w", err)
	}

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return rcptOutcome{}, fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if err := c.Mail(p.cfg.Sender, nil); err != nil {
		return rcptOutcome{}, fmt.Errorf("MAIL FROM failed: %w", err)
	}

	if err := c.Rcpt(email, nil); err != nil {
		var smtpErr *smtp.SMTPError
		if errors.As(err, &smtpErr) {
			return rcptOutcome{accepted: false, code: smtpErr.Code}, nil
		}
		return rcptOutcome{}, fmt.Errorf("RCPT TO failed: %w", err)
	}

	return rcptOutcome{accepted: true, code: 250}, nil
}

func (p *SMTPProbe) dialMX(ctx context.Context, host string) (net.Conn, error) {
	addr := net.JoinHostPort(host, "25")

	if p.cfg.SOCKS5Proxy != "" {
		var auth *proxy.Auth
		if p.cfg.SOCKS5Username != "" {
			auth = &proxy.Auth{User: p.cfg.SOCKS5Username, Password: p.cfg.SOCKS5Password}
		}
		dialer, err := proxy.SOCKS5("tcp", p.cfg.SOCKS5Proxy, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to build SOCKS5 dialer: %w", err)
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			return cd.DialContext(ctx, "tcp", addr)
		}
		return dialer.Dial("tcp", addr)
	}

	d := net.Dialer{Timeout: p.cfg.Timeout}
	return d.DialContext(ctx, "tcp", addr)
}

const localPartAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomLocalPart() string {
	b := make([]byte, 16)
	for i := range b {
		b[i] = localPartAlphabet[rand.Intn(len(localPartAlphabet))]
	}
	return string(b)
}

func domainOf(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return ""
}
