package address

import (
	"regexp"
	"strings"
)

// Validator checks destination addresses per currency. Patterns are
// shape checks only, no checksum verification: the goal is catching
// pastes of the wrong chain's address, not full validation.
type Validator struct {
	patterns map[string]*regexp.Regexp
}

var (
	ethPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	btcPattern = regexp.MustCompile(`^(1|3|bc1)[a-zA-Z0-9]{25,39}$`)
)

// NewValidator builds a validator with the built-in currency patterns.
func NewValidator() *Validator {
	v := &Validator{patterns: make(map[string]*regexp.Regexp)}
	for _, ticker := range []string{"ETH", "USDT", "USDC", "MATIC"} {
		v.Register(ticker, ethPattern)
	}
	v.Register("BTC", btcPattern)
	return v
}

// Register adds or replaces the pattern for a ticker.
func (v *Validator) Register(ticker string, pattern *regexp.Regexp) {
	v.patterns[strings.ToUpper(ticker)] = pattern
}

// Valid reports whether addr is plausible for the given ticker.
// Currencies without a registered pattern only require a non-empty
// address, so an unknown coin never blocks order placement.
func (v *Validator) Valid(ticker, addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	pattern, ok := v.patterns[strings.ToUpper(ticker)]
	if !ok {
		return true
	}
	return pattern.MatchString(addr)
}
