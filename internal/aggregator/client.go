package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kalifa4y/swppr/internal/domain"
	"github.com/kalifa4y/swppr/internal/infra"
	"github.com/kalifa4y/swppr/internal/infra/swapspace"
)

// maxCatalogSize caps the live coin catalog so selection lists stay
// manageable.
const maxCatalogSize = 50

// Remote is the slice of the SwapSpace client the aggregator needs.
// Kept as an interface so tests can substitute a scripted backend.
type Remote interface {
	Currencies(ctx context.Context) ([]swapspace.Currency, error)
	Amounts(ctx context.Context, from, to string, amount float64) ([]swapspace.AmountOffer, error)
	CreateExchange(ctx context.Context, from, to string, amount float64, address, refundAddress string) (*swapspace.ExchangeResponse, error)
	ExchangeStatus(ctx context.Context, id string) (*swapspace.StatusResponse, error)
}

// Client is the rate/order surface the rest of the application consumes.
type Client interface {
	ListCoins(ctx context.Context) []domain.Coin
	Quote(ctx context.Context, from, to string, amount float64) ([]domain.Offer, error)
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderCreation, error)
	OrderStatus(ctx context.Context, id string) (domain.Status, error)
	Live() bool
	Close()
}

// Service implements Client against the live API with transparent
// degradation to deterministic-ish fallback data. All mutable state
// (mock ledger, jitter source) is owned by the instance; there are no
// package-level singletons.
type Service struct {
	remote  Remote // nil ⇒ permanent mock mode
	breaker *infra.CircuitBreaker
	limiter *infra.RateLimiter

	ledger        *mockLedger
	creationDelay time.Duration

	randMu sync.Mutex
	rand   *rand.Rand
}

// New constructs the aggregator service. remote may be nil, in which case
// every call is served from fallback data.
func New(remote Remote, cfg *infra.Config) *Service {
	return &Service{
		remote:        remote,
		breaker:       infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("swapspace")),
		limiter:       infra.NewRateLimiter(5, 4), // 4 req/s, burst 5
		ledger:        newMockLedger(time.Duration(cfg.Mock.ProgressIntervalMS) * time.Millisecond),
		creationDelay: 300 * time.Millisecond, // perceived work for instant mock creations
		rand:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Live reports whether a remote backend is configured.
func (s *Service) Live() bool {
	return s.remote != nil
}

// Close cancels all outstanding mock progressions.
func (s *Service) Close() {
	s.ledger.close()
}

// ListCoins returns the supported catalog. It never fails: any transport
// or parse problem degrades to the fixed fallback catalog so the UI is
// never blocked on this call.
func (s *Service) ListCoins(ctx context.Context) []domain.Coin {
	if s.remote == nil || !s.breaker.Allow() {
		return fallbackCoins
	}

	s.limiter.Wait()
	currencies, err := s.remote.Currencies(ctx)
	if err != nil {
		s.breaker.RecordFailure()
		slog.Warn("Coin catalog fetch failed, serving fallback", slog.Any("error", err))
		return fallbackCoins
	}
	s.breaker.RecordSuccess()

	coins := make([]domain.Coin, 0, maxCatalogSize)
	for _, c := range currencies {
		if c.ExtraIDName != "" {
			continue // memo/tag currencies need extra UI, skip them
		}
		image := c.Icon
		if image == "" {
			image = avatarURL(c.Code)
		}
		coins = append(coins, domain.Coin{
			Ticker:        strings.ToUpper(c.Code),
			Name:          c.Name,
			Image:         image,
			HasExternalID: false,
			IsFiat:        c.IsFiat,
		})
		if len(coins) == maxCatalogSize {
			break
		}
	}
	if len(coins) == 0 {
		slog.Warn("Live catalog came back empty, serving fallback")
		return fallbackCoins
	}
	return coins
}

// Quote returns provider offers for a directed pair, best rate first.
// Transport or parse failures degrade to synthetic offers derived from
// the price table with ±2% jitter.
func (s *Service) Quote(ctx context.Context, from, to string, amount float64) ([]domain.Offer, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if s.remote == nil || !s.breaker.Allow() {
		return s.syntheticOffers(from, to), nil
	}

	s.limiter.Wait()
	raw, err := s.remote.Amounts(ctx, from, to, amount)
	if err != nil {
		s.breaker.RecordFailure()
		slog.Warn("Quote fetch failed, serving synthetic offers",
			slog.String("from", from), slog.String("to", to), slog.Any("error", err))
		return s.syntheticOffers(from, to), nil
	}
	s.breaker.RecordSuccess()

	offers := make([]domain.Offer, 0, len(raw))
	for _, o := range raw {
		eta := 15
		if o.Duration != "" {
			if n, err := strconv.Atoi(o.Duration); err == nil {
				eta = n
			}
		}
		offers = append(offers, domain.Offer{
			Provider:   o.Partner,
			Rate:       o.EstimatedAmount / amount,
			MinAmount:  o.MinAmount,
			MaxAmount:  o.MaxAmount,
			ETAMinutes: eta,
		})
	}
	sortOffers(offers)
	return offers, nil
}

// syntheticOffers derives plausible offline quotes: the price-table cross
// rate with ±2% jitter per provider, sorted best first.
func (s *Service) syntheticOffers(from, to string) []domain.Offer {
	base := priceFor(from) / priceFor(to)

	offers := make([]domain.Offer, 0, len(fallbackProviders))
	for _, p := range fallbackProviders {
		offers = append(offers, domain.Offer{
			Provider:   p.name,
			Rate:       base * s.jitter(),
			MinAmount:  0.001,
			MaxAmount:  1000,
			ETAMinutes: p.eta,
		})
	}
	sortOffers(offers)
	return offers
}

// jitter returns a factor in [0.98, 1.02).
func (s *Service) jitter() float64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return 0.98 + s.rand.Float64()*0.04
}

func sortOffers(offers []domain.Offer) {
	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].Rate > offers[j].Rate
	})
}

// CreateOrder places an exchange order. On the live path a failure is
// surfaced as CreationError; the mock path never fails.
func (s *Service) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderCreation, error) {
	if s.remote != nil {
		if !s.breaker.Allow() {
			return domain.OrderCreation{}, &CreationError{Err: errors.New("live API unavailable")}
		}
		s.limiter.Wait()
		resp, err := s.remote.CreateExchange(ctx, req.FromTicker, req.ToTicker, req.Amount, req.Address, req.RefundAddress)
		if err != nil {
			s.breaker.RecordFailure()
			return domain.OrderCreation{}, &CreationError{Err: err}
		}
		s.breaker.RecordSuccess()
		return domain.OrderCreation{ID: resp.ID, DepositAddress: resp.AddressDeposit}, nil
	}

	// Mock path: brief simulated latency, then synthesize the order.
	if s.creationDelay > 0 {
		select {
		case <-ctx.Done():
			return domain.OrderCreation{}, ctx.Err()
		case <-time.After(s.creationDelay):
		}
	}

	creation := domain.OrderCreation{
		ID:             "swsp_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:9],
		DepositAddress: s.mockDepositAddress(),
	}
	s.ledger.register(creation.ID)

	slog.Info("Mock order created",
		slog.String("id", creation.ID),
		slog.String("from", req.FromTicker),
		slog.String("to", req.ToTicker))
	return creation, nil
}

// mockDepositAddress builds a 0x-prefixed 40-hex-digit address.
func (s *Service) mockDepositAddress() string {
	const hexDigits = "0123456789abcdef"

	s.randMu.Lock()
	defer s.randMu.Unlock()

	b := make([]byte, 0, 42)
	b = append(b, '0', 'x')
	for i := 0; i < 40; i++ {
		b = append(b, hexDigits[s.rand.Intn(len(hexDigits))])
	}
	return string(b)
}

// OrderStatus looks up the current status of an order.
func (s *Service) OrderStatus(ctx context.Context, id string) (domain.Status, error) {
	if s.remote == nil {
		status, ok := s.ledger.status(id)
		if !ok {
			return "", ErrOrderNotFound
		}
		return status, nil
	}

	resp, err := s.remote.ExchangeStatus(ctx, id)
	if err != nil {
		if errors.Is(err, swapspace.ErrNotFound) {
			return "", ErrOrderNotFound
		}
		return "", err
	}

	status := domain.Status(resp.Status)
	if !status.Valid() {
		slog.Warn("Unknown status from live API, keeping waiting",
			slog.String("id", id), slog.String("status", resp.Status))
		return domain.StatusWaiting, nil
	}
	return status, nil
}
