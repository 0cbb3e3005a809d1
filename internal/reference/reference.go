// Package reference provides the hot-reloadable reference lists consulted
// by rule conditions: risky email-domain suffixes and active currency codes.
package reference

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/opensource-finance/osprey/internal/domain"
)

// Document is the declarative reference source format.
type Document struct {
	RiskyDomains        []string `json:"riskyDomains" yaml:"riskyDomains"`
	SupportedCurrencies []string `json:"supportedCurrencies" yaml:"supportedCurrencies"`
}

// DefaultRiskyDomains are the suffixes flagged when no source file is
// configured.
var DefaultRiskyDomains = []string{".ru", ".xyz", "fraud.nett"}

// DefaultSupportedCurrencies are the active currency codes used when no
// source file is configured.
var DefaultSupportedCurrencies = []string{"USD", "EUR", "INR"}

// Lists holds the active reference data. Reads never block writes for
// long: lookups take a read lock, reloads swap the underlying slices and
// set under a write lock. Reloadable independently of rules.
type Lists struct {
	mu         sync.RWMutex
	sourcePath string

	riskySuffixes []string
	currencies    map[string]struct{}
}

// NewLists creates reference lists from the given source path. An empty
// path loads the built-in defaults.
func NewLists(sourcePath string) (*Lists, error) {
	l := &Lists{sourcePath: sourcePath}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads the reference source and swaps the active lists.
// Missing or malformed sources are configuration errors: never run with
// partial reference data.
func (l *Lists) Reload() error {
	doc := Document{
		RiskyDomains:        DefaultRiskyDomains,
		SupportedCurrencies: DefaultSupportedCurrencies,
	}

	if l.sourcePath != "" {
		data, err := os.ReadFile(l.sourcePath)
		if err != nil {
			return fmt.Errorf("%w: reading reference source %s: %v", domain.ErrConfiguration, l.sourcePath, err)
		}
		doc = Document{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%w: parsing reference source %s: %v", domain.ErrConfiguration, l.sourcePath, err)
		}
		if len(doc.RiskyDomains) == 0 && len(doc.SupportedCurrencies) == 0 {
			return fmt.Errorf("%w: reference source %s declares no lists", domain.ErrConfiguration, l.sourcePath)
		}
	}

	suffixes := make([]string, 0, len(doc.RiskyDomains))
	for _, s := range doc.RiskyDomains {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			suffixes = append(suffixes, s)
		}
	}

	currencies := make(map[string]struct{}, len(doc.SupportedCurrencies))
	for _, c := range doc.SupportedCurrencies {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			currencies[c] = struct{}{}
		}
	}

	l.mu.Lock()
	l.riskySuffixes = suffixes
	l.currencies = currencies
	l.mu.Unlock()

	return nil
}

// IsRiskyDomain reports whether the email's domain ends with any risky
// suffix. The email is lower-cased and split on "@"; the segment after the
// last "@" is the domain. An email with no domain segment is never risky.
func (l *Lists) IsRiskyDomain(email string) bool {
	lowered := strings.ToLower(email)
	at := strings.LastIndex(lowered, "@")
	if at < 0 || at == len(lowered)-1 {
		return false
	}
	dom := lowered[at+1:]

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, suffix := range l.riskySuffixes {
		if strings.HasSuffix(dom, suffix) {
			return true
		}
	}
	return false
}

// IsSupportedCurrency reports whether the upper-cased currency code is in
// the active currency list. Only this predicate normalizes case; rules
// comparing the currency variable directly see the raw value.
func (l *Lists) IsSupportedCurrency(currency string) bool {
	code := strings.ToUpper(currency)

	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.currencies[code]
	return ok
}

// RiskyDomains returns a copy of the active suffix list.
func (l *Lists) RiskyDomains() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.riskySuffixes))
	copy(out, l.riskySuffixes)
	return out
}

// SupportedCurrencies returns a copy of the active currency codes.
func (l *Lists) SupportedCurrencies() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.currencies))
	for c := range l.currencies {
		out = append(out, c)
	}
	return out
}
