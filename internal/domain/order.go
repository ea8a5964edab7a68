package domain

import "time"

// Status is the lifecycle state of an exchange order.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusConfirming Status = "confirming"
	StatusExchanging Status = "exchanging"
	StatusSending    Status = "sending"
	StatusFinished   Status = "finished"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
)

// progression is the forced linear chain the simulated backend walks.
// failed/refunded exist for live-API compatibility only and are never
// produced by the simulation.
var progression = []Status{
	StatusWaiting,
	StatusConfirming,
	StatusExchanging,
	StatusSending,
	StatusFinished,
}

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusRefunded
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusConfirming, StatusExchanging,
		StatusSending, StatusFinished, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// Next returns the status after s on the simulated linear chain.
// Terminal states return themselves.
func (s Status) Next() Status {
	for i, st := range progression {
		if st == s && i+1 < len(progression) {
			return progression[i+1]
		}
	}
	return s
}

// OrderRequest carries the parameters for creating an exchange order.
type OrderRequest struct {
	FromTicker    string
	ToTicker      string
	Amount        float64
	Address       string // recipient address on the `to` chain
	RefundAddress string // optional
}

// OrderCreation is the provider's answer to a successful order request.
type OrderCreation struct {
	ID             string `json:"id"`
	DepositAddress string `json:"deposit_address"`
}

// ExchangeRecord is one requested conversion with its lifecycle status.
// Created exactly once when an order is placed; Status is the only field
// mutated afterwards, and only via an explicit status refresh.
type ExchangeRecord struct {
	ID               string    `json:"id"`
	FromTicker       string    `json:"from"`
	ToTicker         string    `json:"to"`
	SentAmount       float64   `json:"amount"`
	EstimatedReceive float64   `json:"receive_estimate"`
	CreatedAt        time.Time `json:"created_at"`
	Status           Status    `json:"status"`
	DepositAddress   string    `json:"deposit_address"`
}
