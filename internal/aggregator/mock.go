package aggregator

import (
	"fmt"
	"sync"
	"time"

	"github.com/kalifa4y/swppr/internal/domain"
)

// fallbackCoins is the fixed catalog served when the live API is
// unreachable or no credential is configured.
var fallbackCoins = []domain.Coin{
	{Ticker: "BTC", Name: "Bitcoin", Image: "https://cryptologos.cc/logos/bitcoin-btc-logo.png"},
	{Ticker: "ETH", Name: "Ethereum", Image: "https://cryptologos.cc/logos/ethereum-eth-logo.png"},
	{Ticker: "USDT", Name: "Tether USD", Image: "https://cryptologos.cc/logos/tether-usdt-logo.png"},
	{Ticker: "USDC", Name: "USD Coin", Image: "https://cryptologos.cc/logos/usd-coin-usdc-logo.png"},
	{Ticker: "XMR", Name: "Monero", Image: "https://cryptologos.cc/logos/monero-xmr-logo.png"},
	{Ticker: "LTC", Name: "Litecoin", Image: "https://cryptologos.cc/logos/litecoin-ltc-logo.png"},
	{Ticker: "DOGE", Name: "Dogecoin", Image: "https://cryptologos.cc/logos/dogecoin-doge-logo.png"},
	{Ticker: "SOL", Name: "Solana", Image: "https://cryptologos.cc/logos/solana-sol-logo.png"},
	{Ticker: "ADA", Name: "Cardano", Image: "https://cryptologos.cc/logos/cardano-ada-logo.png"},
	{Ticker: "TRX", Name: "Tron", Image: "https://cryptologos.cc/logos/tron-trx-logo.png"},
}

// priceTable holds approximate USD values used to derive plausible
// cross rates offline. Unknown tickers fall back to 1.
var priceTable = map[string]float64{
	"BTC":  65000,
	"ETH":  3500,
	"USDT": 1,
	"USDC": 1,
	"SOL":  140,
	"DOGE": 0.12,
	"XMR":  160,
}

// fallbackProviders are the synthetic offer sources, with their ETAs.
var fallbackProviders = []struct {
	name string
	eta  int
}{
	{"ChangeNow", 10},
	{"SimpleSwap", 15},
	{"StealthEX", 12},
	{"LetsExchange", 8},
}

func priceFor(ticker string) float64 {
	if p, ok := priceTable[ticker]; ok {
		return p
	}
	return 1
}

// mockLedger simulates order lifecycles when no backend is available.
// Each registered order walks the linear status chain, one forced
// transition per interval, until finished. Progression handles are
// tracked per order so Close can cancel them all.
type mockLedger struct {
	mu       sync.Mutex
	orders   map[string]domain.Status
	timers   map[string]*time.Timer
	interval time.Duration
	closed   bool
}

func newMockLedger(interval time.Duration) *mockLedger {
	return &mockLedger{
		orders:   make(map[string]domain.Status),
		timers:   make(map[string]*time.Timer),
		interval: interval,
	}
}

// register adds an order at waiting and schedules its first transition.
func (l *mockLedger) register(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.orders[id] = domain.StatusWaiting
	l.timers[id] = time.AfterFunc(l.interval, func() { l.advance(id) })
}

// advance moves the order one step along the chain and reschedules
// itself until the terminal state is reached.
func (l *mockLedger) advance(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	status, ok := l.orders[id]
	if !ok {
		return
	}

	next := status.Next()
	l.orders[id] = next

	if next.IsTerminal() {
		delete(l.timers, id)
		return
	}
	l.timers[id] = time.AfterFunc(l.interval, func() { l.advance(id) })
}

// status looks up the current simulated status.
func (l *mockLedger) status(id string) (domain.Status, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.orders[id]
	return s, ok
}

// close cancels every outstanding progression timer. Statuses freeze
// where they are; lookups keep working.
func (l *mockLedger) close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}

// avatarURL builds the generated-icon fallback used when the upstream
// catalog carries no image for a coin.
func avatarURL(ticker string) string {
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=random&color=fff", ticker)
}
