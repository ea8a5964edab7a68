package estimate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalifa4y/swppr/internal/domain"
)

// countingQuoter returns a fixed offer and counts invocations. An
// optional gate blocks Quote until released, to pin a quote in flight.
type countingQuoter struct {
	calls atomic.Int64
	gate  chan struct{}
	rate  float64
}

func (q *countingQuoter) Quote(ctx context.Context, from, to string, amount float64) ([]domain.Offer, error) {
	q.calls.Add(1)
	if q.gate != nil {
		<-q.gate
	}
	return []domain.Offer{{Provider: "ChangeNow", Rate: q.rate, ETAMinutes: 10}}, nil
}

func collectResults() (func(Result), func() []Result) {
	var mu sync.Mutex
	var results []Result
	record := func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}
	snapshot := func() []Result {
		mu.Lock()
		defer mu.Unlock()
		return append([]Result(nil), results...)
	}
	return record, snapshot
}

func TestEngine_DebounceCollapsesEdits(t *testing.T) {
	quoter := &countingQuoter{rate: 18.57}
	record, snapshot := collectResults()
	e := NewEngine(quoter, 20*time.Millisecond, record)
	defer e.Close()

	// Five rapid edits within the quiet period.
	for _, amount := range []float64{0.1, 0.2, 0.3, 0.4, 0.5} {
		e.SetInputs("BTC", "ETH", amount)
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	if got := quoter.calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 quote call, got %d", got)
	}
	results := snapshot()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Amount != 0.5 {
		t.Errorf("result reflects amount %f, want the last edit 0.5", results[0].Amount)
	}
}

func TestEngine_InvalidInputsClearWithoutFetching(t *testing.T) {
	quoter := &countingQuoter{rate: 18.57}
	record, snapshot := collectResults()
	e := NewEngine(quoter, 10*time.Millisecond, record)
	defer e.Close()

	e.SetInputs("BTC", "ETH", 0)
	e.SetInputs("BTC", "ETH", -5)
	e.SetInputs("", "ETH", 1)
	e.SetInputs("BTC", "", 1)

	time.Sleep(60 * time.Millisecond)

	if got := quoter.calls.Load(); got != 0 {
		t.Errorf("invalid inputs must not trigger a quote, got %d calls", got)
	}
	for _, r := range snapshot() {
		if !r.Empty() {
			t.Errorf("invalid inputs must only clear the snapshot, got %+v", r)
		}
	}
}

func TestEngine_InvalidEditCancelsPending(t *testing.T) {
	quoter := &countingQuoter{rate: 18.57}
	record, snapshot := collectResults()
	e := NewEngine(quoter, 20*time.Millisecond, record)
	defer e.Close()

	e.SetInputs("BTC", "ETH", 0.1)
	time.Sleep(5 * time.Millisecond)
	e.SetInputs("BTC", "ETH", 0) // cleared the amount field

	time.Sleep(80 * time.Millisecond)

	if got := quoter.calls.Load(); got != 0 {
		t.Errorf("cancelled edit still fetched %d times", got)
	}
	for _, r := range snapshot() {
		if !r.Empty() {
			t.Errorf("cancelled edit still published an estimate: %+v", r)
		}
	}
}

type failingQuoter struct{}

func (failingQuoter) Quote(ctx context.Context, from, to string, amount float64) ([]domain.Offer, error) {
	return nil, errors.New("boom")
}

func TestEngine_FetchFailurePublishesError(t *testing.T) {
	record, snapshot := collectResults()
	e := NewEngine(failingQuoter{}, 5*time.Millisecond, record)
	defer e.Close()

	e.SetInputs("BTC", "ETH", 0.1)
	time.Sleep(60 * time.Millisecond)

	results := snapshot()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Err == "" || results[0].Receive != "" {
		t.Errorf("failure should publish an error snapshot, got %+v", results[0])
	}
}

func TestEngine_StaleResultDiscarded(t *testing.T) {
	quoter := &countingQuoter{rate: 18.57, gate: make(chan struct{})}
	record, snapshot := collectResults()
	e := NewEngine(quoter, 5*time.Millisecond, record)
	defer e.Close()

	e.SetInputs("BTC", "ETH", 0.1)

	// Wait for the first quote to be in flight, then supersede it.
	deadline := time.Now().Add(time.Second)
	for quoter.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first quote never started")
		}
		time.Sleep(time.Millisecond)
	}
	e.SetInputs("BTC", "ETH", 0.2)

	// Release both quotes.
	close(quoter.gate)
	time.Sleep(100 * time.Millisecond)

	results := snapshot()
	if len(results) != 1 {
		t.Fatalf("expected only the fresh result, got %d", len(results))
	}
	if results[0].Amount != 0.2 {
		t.Errorf("published amount %f, want 0.2", results[0].Amount)
	}
}

func TestEngine_CloseDropsInFlight(t *testing.T) {
	quoter := &countingQuoter{rate: 18.57, gate: make(chan struct{})}
	record, snapshot := collectResults()
	e := NewEngine(quoter, 5*time.Millisecond, record)

	e.SetInputs("BTC", "ETH", 0.1)
	deadline := time.Now().Add(time.Second)
	for quoter.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("quote never started")
		}
		time.Sleep(time.Millisecond)
	}

	e.Close()
	close(quoter.gate)
	time.Sleep(50 * time.Millisecond)

	if len(snapshot()) != 0 {
		t.Error("result published after Close")
	}
}

func TestBuildResult_Formatting(t *testing.T) {
	best := domain.Offer{Provider: "ChangeNow", Rate: 18.571429}
	r := buildResult("BTC", "ETH", 0.1, best, []domain.Offer{best})

	// The fee is informational only: Receive is the full rate*amount,
	// never reduced by it.
	if r.Receive != "1.857143" {
		t.Errorf("Receive = %s, want gross rate*amount 1.857143", r.Receive)
	}
	if r.RateLabel != "1 BTC ≈ 18.571429 ETH" {
		t.Errorf("RateLabel = %s", r.RateLabel)
	}
	if r.FeeLabel != "0.009286 ETH (0.5%)" {
		t.Errorf("FeeLabel = %s", r.FeeLabel)
	}
}

func TestEngine_ClearNotResurrectedByStaleResult(t *testing.T) {
	quoter := &countingQuoter{rate: 18.57, gate: make(chan struct{})}
	record, snapshot := collectResults()
	e := NewEngine(quoter, 5*time.Millisecond, record)
	defer e.Close()

	e.SetInputs("BTC", "ETH", 0.1)
	deadline := time.Now().Add(time.Second)
	for quoter.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("quote never started")
		}
		time.Sleep(time.Millisecond)
	}

	// Clearing the amount supersedes the in-flight quote.
	e.SetInputs("BTC", "ETH", 0)
	close(quoter.gate)
	time.Sleep(50 * time.Millisecond)

	results := snapshot()
	if len(results) == 0 {
		t.Fatal("clear was never published")
	}
	if last := results[len(results)-1]; !last.Empty() {
		t.Errorf("stale estimate published after the clear: %+v", last)
	}
}
