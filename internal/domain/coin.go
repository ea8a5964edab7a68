package domain

// Coin is immutable reference data for a supported currency.
// The catalog is fetched once at startup and lives for the process lifetime.
type Coin struct {
	Ticker        string `json:"ticker"` // canonical upper-case
	Name          string `json:"name"`
	Image         string `json:"image"` // icon URL
	HasExternalID bool   `json:"has_external_id"`
	IsFiat        bool   `json:"is_fiat"`
}

// Offer is a quoted conversion ratio from one provider for a directed pair.
// Ephemeral: produced by a quote request, never persisted.
type Offer struct {
	Provider   string  `json:"provider"`
	Rate       float64 `json:"rate"` // units of `to` per 1 unit of `from`
	MinAmount  float64 `json:"min_amount"`
	MaxAmount  float64 `json:"max_amount"`
	ETAMinutes int     `json:"eta_minutes"`
}

// BestOffer returns the offer with the maximum rate.
// Ties are broken by first encounter, so selection is stable.
func BestOffer(offers []Offer) (Offer, bool) {
	if len(offers) == 0 {
		return Offer{}, false
	}
	best := offers[0]
	for _, o := range offers[1:] {
		if o.Rate > best.Rate {
			best = o
		}
	}
	return best, true
}
