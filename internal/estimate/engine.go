package estimate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kalifa4y/swppr/internal/domain"
)

// serviceFeeRate is the display-only fee shown next to the estimate.
// Providers already bake their margin into the quoted rate, so nothing
// is ever subtracted from the published amount.
var serviceFeeRate = decimal.NewFromFloat(0.005)

// Quoter is the slice of the aggregator the engine needs.
type Quoter interface {
	Quote(ctx context.Context, from, to string, amount float64) ([]domain.Offer, error)
}

// Result is a published estimate snapshot. A zero Result clears the
// display; a Result with only Err set reports a failed fetch.
type Result struct {
	From      string
	To        string
	Amount    float64
	Receive   string // rate * amount, 6 decimal places
	RateLabel string // "1 BTC ≈ 18.571429 ETH"
	FeeLabel  string // "0.009286 ETH (0.5%)"
	Err       string
	Best      domain.Offer
	Offers    []domain.Offer
}

// Empty reports whether the snapshot carries neither an estimate nor an
// error.
func (r Result) Empty() bool {
	return r.Receive == "" && r.Err == ""
}

// Engine debounces swap-input changes and publishes estimates. Rapid
// edits collapse into one quote per quiet period, and a result whose
// inputs were superseded while the quote was in flight is discarded.
type Engine struct {
	quoter   Quoter
	debounce time.Duration
	onResult func(Result)

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	closed bool
}

// NewEngine builds an engine that pushes results to onResult. The
// callback runs with the engine's lock held, so it must not block and
// must not call back into the engine.
func NewEngine(quoter Quoter, debounce time.Duration, onResult func(Result)) *Engine {
	return &Engine{
		quoter:   quoter,
		debounce: debounce,
		onResult: onResult,
	}
}

// SetInputs records a change to the swap form. Any pending quote is
// rescheduled; invalid inputs cancel it and clear the snapshot without
// fetching anything.
func (e *Engine) SetInputs(from, to string, amount float64) {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return
	}

	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	if !validInputs(from, to, amount) {
		e.onResult(Result{})
		e.mu.Unlock()
		return
	}

	gen := e.gen
	e.timer = time.AfterFunc(e.debounce, func() {
		e.fetch(gen, from, to, amount)
	})
	e.mu.Unlock()
}

func validInputs(from, to string, amount float64) bool {
	if from == "" || to == "" {
		return false
	}
	return amount > 0 && !math.IsInf(amount, 0) && !math.IsNaN(amount)
}

// fetch runs after the quiet period. The generation captured at
// scheduling time gates publication: if the inputs changed while the
// quote was in flight, the result is stale and dropped.
func (e *Engine) fetch(gen uint64, from, to string, amount float64) {
	var result Result

	offers, err := e.quoter.Quote(context.Background(), from, to, amount)
	if err != nil {
		slog.Warn("Estimate fetch failed",
			slog.String("from", from), slog.String("to", to), slog.Any("error", err))
		result = Result{From: from, To: to, Amount: amount, Err: "estimate unavailable"}
	} else if best, ok := domain.BestOffer(offers); ok {
		result = buildResult(from, to, amount, best, offers)
	} else {
		result = Result{From: from, To: to, Amount: amount, Err: "no offers for this pair"}
	}

	// Staleness check and publication share one critical section, so a
	// superseded result can never land after a newer clear or estimate.
	e.mu.Lock()
	if !e.closed && gen == e.gen {
		e.onResult(result)
	}
	e.mu.Unlock()
}

func buildResult(from, to string, amount float64, best domain.Offer, offers []domain.Offer) Result {
	amt := decimal.NewFromFloat(amount)
	rate := decimal.NewFromFloat(best.Rate)

	gross := amt.Mul(rate)
	fee := gross.Mul(serviceFeeRate)

	return Result{
		From:      from,
		To:        to,
		Amount:    amount,
		Receive:   gross.StringFixed(6),
		RateLabel: fmt.Sprintf("1 %s ≈ %s %s", from, rate.StringFixed(6), to),
		FeeLabel:  fmt.Sprintf("%s %s (0.5%%)", fee.StringFixed(6), to),
		Best:      best,
		Offers:    offers,
	}
}

// Close cancels any pending quote and stops publication for good.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}
