package flow

import (
	"fmt"
	"sync"

	"github.com/kalifa4y/swppr/internal/domain"
)

// Screen identifies one of the application's views.
type Screen string

const (
	ScreenHome     Screen = "home"
	ScreenRates    Screen = "rates"
	ScreenExchange Screen = "exchange"
	ScreenHistory  Screen = "history"
	ScreenSettings Screen = "settings"
)

// Valid reports whether s is a known screen.
func (s Screen) Valid() bool {
	switch s {
	case ScreenHome, ScreenRates, ScreenExchange, ScreenHistory, ScreenSettings:
		return true
	}
	return false
}

// Controller tracks which screen is active and enforces the allowed
// transitions. Rates is only reachable through a successful rate search,
// and Exchange only through placing an order or opening a history
// record; the remaining screens are direct navigation targets.
//
// The controller also owns the ephemeral offer list: replaced on every
// successful search, dropped as soon as the rates screen is left.
type Controller struct {
	mu       sync.Mutex
	current  Screen
	offers   []domain.Offer
	selected int
}

// NewController starts on the home screen.
func NewController() *Controller {
	return &Controller{current: ScreenHome, selected: -1}
}

// Current returns the active screen.
func (c *Controller) Current() Screen {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// RatesFound moves to the rates screen after a search produced offers.
// Searches start on the home screen; searching again while already on
// rates replaces the list. The first (best) offer starts selected.
func (c *Controller) RatesFound(offers []domain.Offer) error {
	if len(offers) == 0 {
		return fmt.Errorf("flow: no offers to show")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != ScreenHome && c.current != ScreenRates {
		return fmt.Errorf("flow: cannot search rates from %s", c.current)
	}
	c.current = ScreenRates
	c.offers = append([]domain.Offer(nil), offers...)
	c.selected = 0
	return nil
}

// Offers returns the current offer list, empty outside the rates flow.
func (c *Controller) Offers() []domain.Offer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Offer(nil), c.offers...)
}

// SelectOffer changes which offer is highlighted on the rates screen.
func (c *Controller) SelectOffer(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != ScreenRates {
		return fmt.Errorf("flow: cannot select an offer from %s", c.current)
	}
	if index < 0 || index >= len(c.offers) {
		return fmt.Errorf("flow: offer index %d out of range", index)
	}
	c.selected = index
	return nil
}

// Selected returns the highlighted offer, if any.
func (c *Controller) Selected() (domain.Offer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected < 0 || c.selected >= len(c.offers) {
		return domain.Offer{}, false
	}
	return c.offers[c.selected], true
}

// OrderPlaced moves to the exchange screen after an order was created.
// Only the rates screen can place an order; its offer list is dropped on
// the way out.
func (c *Controller) OrderPlaced() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != ScreenRates {
		return fmt.Errorf("flow: cannot place an order from %s", c.current)
	}
	c.current = ScreenExchange
	c.dropOffers()
	return nil
}

func (c *Controller) dropOffers() {
	c.offers = nil
	c.selected = -1
}

// RecordOpened moves to the exchange screen for a stored order. Only
// the history screen lists records to open.
func (c *Controller) RecordOpened() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != ScreenHistory {
		return fmt.Errorf("flow: cannot open a record from %s", c.current)
	}
	c.current = ScreenExchange
	return nil
}

// Navigate jumps to one of the direct navigation targets. Rates and
// Exchange are not direct targets; they require their entry transitions.
func (c *Controller) Navigate(target Screen) error {
	switch target {
	case ScreenHome, ScreenHistory, ScreenSettings:
	default:
		return fmt.Errorf("flow: %s is not a direct navigation target", target)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = target
	c.dropOffers()
	return nil
}
