// Package provider maps email domains onto mail providers so the right
// verification sequence can be planned for each address.
package provider

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mailvet/mailvet/internal/core"
)

type knownProvider struct {
	provider string
	loginURL string
}

// wellKnown covers domains whose operator is established. Custom domains
// hosted on big providers are caught by the MX heuristics below.
var wellKnown = map[string]knownProvider{
	"gmail.com":      {"gmail.com", "https://accounts.google.com/signin"},
	"googlemail.com": {"gmail.com", "https://accounts.google.com/signin"},
	"outlook.com":    {"outlook.com", "https://login.live.com"},
	"hotmail.com":    {"hotmail.com", "https://login.live.com"},
	"live.com":       {"live.com", "https://login.live.com"},
	"msn.com":        {"msn.com", "https://login.live.com"},
	"office365.com":  {"office365.com", "https://login.microsoftonline.com"},
	"yahoo.com":      {"yahoo.com", "https://login.yahoo.com"},
	"ymail.com":      {"yahoo.com", "https://login.yahoo.com"},
	"aol.com":        {"aol.com", "https://login.aol.com"},
	"protonmail.com": {"protonmail.com", "https://account.proton.me/login"},
	"proton.me":      {"protonmail.com", "https://account.proton.me/login"},
	"zoho.com":       {"zoho.com", "https://accounts.zoho.com/signin"},
	"mail.ru":        {"mail.ru", "https://account.mail.ru/login"},
	"yandex.ru":      {"yandex.ru", "https://passport.yandex.ru"},
}

// mxHint matches a substring of an MX host to the provider actually
// handling mail for a custom domain.
type mxHint struct {
	substring string
	provider  string
	loginURL  string
}

var mxHints = []mxHint{
	{"google", "customGoogle", "https://accounts.google.com/signin"},
	{"googlemail", "customGoogle", "https://accounts.google.com/signin"},
	{"outlook", "outlook.com", "https://login.microsoftonline.com"},
	{"microsoft", "outlook.com", "https://login.microsoftonline.com"},
	{"office365", "office365.com", "https://login.microsoftonline.com"},
	{"protection.outlook", "outlook.com", "https://login.microsoftonline.com"},
	{"yahoodns", "yahoo.com", "https://login.yahoo.com"},
	{"zoho", "zoho.com", "https://accounts.zoho.com/signin"},
	{"protonmail", "protonmail.com", "https://account.proton.me/login"},
	{"mail.ru", "mail.ru", "https://account.mail.ru/login"},
	{"yandex", "yandex.ru", "https://passport.yandex.ru"},
}

// Identifier resolves the provider behind an address using the static
// domain table first and MX records as a fallback.
type Identifier struct {
	resolver core.MXResolver
	logger   *zap.Logger
}

func NewIdentifier(resolver core.MXResolver, logger *zap.Logger) *Identifier {
	return &Identifier{resolver: resolver, logger: logger}
}

// Identify returns the provider name and its login page URL for an address.
// Unrecognized domains come back as provider "custom" with no login URL.
func (i *Identifier) Identify(ctx context.Context, email string) (string, string) {
	domain := domainOf(email)
	if domain == "" {
		return "custom", ""
	}

	if known, ok := wellKnown[domain]; ok {
		return known.provider, known.loginURL
	}

	for _, host := range i.resolver.LookupMX(ctx, domain) {
		host = strings.ToLower(host)
		for _, hint := range mxHints {
			if strings.Contains(host, hint.substring) {
				i.logger.Debug("Provider identified from MX records",
					zap.String("domain", domain),
					zap.String("mx", host),
					zap.String("provider", hint.provider))
				return hint.provider, hint.loginURL
			}
		}
	}

	return "custom", ""
}

func domainOf(email string) string {
	if at := strings.LastIndex(email, "@"); at >= 0 {
		return strings.ToLower(email[at+1:])
	}
	return ""
}
