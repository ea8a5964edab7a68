package address

import (
	"regexp"
	"testing"
)

func TestValidator_Valid(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		ticker string
		addr   string
		want   bool
	}{
		{"eth valid", "ETH", "0xABCDEF0123456789ABCDEF0123456789ABCDEF01", true},
		{"eth lower ticker", "eth", "0xabcdef0123456789abcdef0123456789abcdef01", true},
		{"eth garbage", "ETH", "abc123", false},
		{"eth too short", "ETH", "0xABCDEF", false},
		{"eth no prefix", "ETH", "ABCDEF0123456789ABCDEF0123456789ABCDEF0123", false},
		{"usdt uses eth shape", "USDT", "0xABCDEF0123456789ABCDEF0123456789ABCDEF01", true},
		{"usdc uses eth shape", "USDC", "abc123", false},
		{"matic uses eth shape", "MATIC", "0xABCDEF0123456789ABCDEF0123456789ABCDEF01", true},
		{"btc legacy", "BTC", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", true},
		{"btc p2sh", "BTC", "3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy", true},
		{"btc bech32", "BTC", "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq", true},
		{"btc wrong prefix", "BTC", "2A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", false},
		{"btc too short", "BTC", "1A1zP1", false},
		{"unknown coin permissive", "XMR", "48edfHu7V9Z84YzzMa6fUueoELZ9ZRXq9Ve", true},
		{"unknown coin empty rejected", "XMR", "", false},
		{"whitespace only rejected", "ETH", "   ", false},
		{"surrounding whitespace trimmed", "ETH", " 0xABCDEF0123456789ABCDEF0123456789ABCDEF01 ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Valid(tt.ticker, tt.addr); got != tt.want {
				t.Errorf("Valid(%s, %q) = %v, want %v", tt.ticker, tt.addr, got, tt.want)
			}
		})
	}
}

func TestValidator_Register(t *testing.T) {
	v := NewValidator()
	v.Register("DOGE", regexp.MustCompile(`^D[a-zA-Z0-9]{33}$`))

	if !v.Valid("DOGE", "DH5yaieqoZN36fDVciNyRueRGvGLR3mr7L") {
		t.Error("registered pattern should accept a valid address")
	}
	if v.Valid("DOGE", "abc") {
		t.Error("registered pattern should reject garbage")
	}
}
