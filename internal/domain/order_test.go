package domain

import "testing"

func TestStatusProgressionChain(t *testing.T) {
	tests := []struct {
		from Status
		want Status
	}{
		{StatusWaiting, StatusConfirming},
		{StatusConfirming, StatusExchanging},
		{StatusExchanging, StatusSending},
		{StatusSending, StatusFinished},
		{StatusFinished, StatusFinished}, // stops permanently
		{StatusFailed, StatusFailed},
		{StatusRefunded, StatusRefunded},
	}

	for _, tt := range tests {
		if got := tt.from.Next(); got != tt.want {
			t.Errorf("Next(%s) = %s, want %s", tt.from, got, tt.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusFinished, StatusFailed, StatusRefunded}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	active := []Status{StatusWaiting, StatusConfirming, StatusExchanging, StatusSending}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestBestOffer(t *testing.T) {
	offers := []Offer{
		{Provider: "ChangeNow", Rate: 18.2},
		{Provider: "SimpleSwap", Rate: 18.9},
		{Provider: "StealthEX", Rate: 18.9}, // tie: first wins
		{Provider: "LetsExchange", Rate: 17.5},
	}

	best, ok := BestOffer(offers)
	if !ok {
		t.Fatal("expected an offer")
	}
	if best.Provider != "SimpleSwap" {
		t.Errorf("best provider = %s, want SimpleSwap", best.Provider)
	}
	for _, o := range offers {
		if best.Rate < o.Rate {
			t.Errorf("best rate %f is below %s rate %f", best.Rate, o.Provider, o.Rate)
		}
	}

	if _, ok := BestOffer(nil); ok {
		t.Error("empty list must not yield an offer")
	}
}
