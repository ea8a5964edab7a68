package swapspace

// Wire types for the SwapSpace v2 REST API. Field names follow the
// upstream JSON, mapping to domain types happens in the client.

// Currency is one entry of GET /currencies.
type Currency struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	ExtraIDName string `json:"extraIdName"`
	IsFiat      bool   `json:"isFiat"`
}

// AmountOffer is one entry of the GET /amounts list.
type AmountOffer struct {
	Partner         string  `json:"partner"`
	EstimatedAmount float64 `json:"estimatedAmount"`
	MinAmount       float64 `json:"minAmount"`
	MaxAmount       float64 `json:"maxAmount"`
	Duration        string  `json:"duration"` // minutes, as a string upstream
}

// amountsResponse wraps the offer list.
type amountsResponse struct {
	List []AmountOffer `json:"list"`
}

// exchangeRequest is the POST /exchange body.
type exchangeRequest struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	Amount        float64 `json:"amount"`
	Address       string  `json:"address"`
	RefundAddress string  `json:"refundAddress,omitempty"`
}

// ExchangeResponse is the answer to a successful POST /exchange.
type ExchangeResponse struct {
	ID              string `json:"id"`
	AddressDeposit  string `json:"addressDeposit"`
	AmountDeposit   string `json:"amountDeposit"`
	CurrencyDeposit string `json:"currencyDeposit"`
	CurrencyReceive string `json:"currencyReceive"`
	AddressReceive  string `json:"addressReceive"`
	ExtraIDDeposit  string `json:"extraIdDeposit,omitempty"`
}

// StatusResponse is the answer to GET /exchange/{id}.
type StatusResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	HashIn    string `json:"hashIn,omitempty"`
	HashOut   string `json:"hashOut,omitempty"`
	CreatedAt string `json:"createdAt"`
}
