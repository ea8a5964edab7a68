package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kalifa4y/swppr/internal/address"
	"github.com/kalifa4y/swppr/internal/aggregator"
	"github.com/kalifa4y/swppr/internal/domain"
	"github.com/kalifa4y/swppr/internal/storage"
)

// ErrInvalidAddress rejects order placement before anything is sent to
// the backend.
var ErrInvalidAddress = errors.New("exchange: destination address is not valid for this currency")

// ErrNoExport is returned by ImportHistory when no export file exists.
var ErrNoExport = errors.New("exchange: no export to import")

// StatusUpdate is pushed to subscribers whenever a stored order's
// status changes.
type StatusUpdate struct {
	ID     string        `json:"id"`
	Status domain.Status `json:"status"`
}

// Service owns the exchange lifecycle: placement, persisted history and
// status refresh.
type Service struct {
	agg       aggregator.Client
	store     *storage.HistoryStore
	validator *address.Validator
	exporter  *storage.ExportManager

	subMu sync.Mutex
	subs  map[chan StatusUpdate]struct{}
}

// NewService wires the lifecycle service. exporter may be nil to
// disable history exports.
func NewService(agg aggregator.Client, store *storage.HistoryStore, validator *address.Validator, exporter *storage.ExportManager) *Service {
	return &Service{
		agg:       agg,
		store:     store,
		validator: validator,
		exporter:  exporter,
		subs:      make(map[chan StatusUpdate]struct{}),
	}
}

// PlaceOrder validates the destination address, creates the order and
// persists it at the head of the history. rate is the selected offer's
// conversion ratio, used for the stored receive estimate.
func (s *Service) PlaceOrder(ctx context.Context, req domain.OrderRequest, rate float64) (domain.ExchangeRecord, error) {
	if !s.validator.Valid(req.ToTicker, req.Address) {
		return domain.ExchangeRecord{}, ErrInvalidAddress
	}

	creation, err := s.agg.CreateOrder(ctx, req)
	if err != nil {
		return domain.ExchangeRecord{}, fmt.Errorf("place order: %w", err)
	}

	record := domain.ExchangeRecord{
		ID:               creation.ID,
		FromTicker:       req.FromTicker,
		ToTicker:         req.ToTicker,
		SentAmount:       req.Amount,
		EstimatedReceive: req.Amount * rate,
		CreatedAt:        time.Now(),
		Status:           domain.StatusWaiting,
		DepositAddress:   creation.DepositAddress,
	}

	if err := s.store.Append(ctx, record); err != nil {
		// The order exists upstream even if persistence failed.
		slog.Error("Order placed but not persisted",
			slog.String("id", record.ID), slog.Any("error", err))
		return record, nil
	}

	slog.Info("Order placed",
		slog.String("id", record.ID),
		slog.String("from", record.FromTicker),
		slog.String("to", record.ToTicker))

	s.publish(StatusUpdate{ID: record.ID, Status: record.Status})
	return record, nil
}

// History returns the persisted records, newest first.
func (s *Service) History(ctx context.Context) ([]domain.ExchangeRecord, error) {
	return s.store.Load(ctx)
}

// RefreshStatus re-polls one order's status and persists any change.
// Terminal orders are left alone; an order unknown upstream keeps its
// stored status.
func (s *Service) RefreshStatus(ctx context.Context, id string) (domain.Status, error) {
	records, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}

	var current *domain.ExchangeRecord
	for i := range records {
		if records[i].ID == id {
			current = &records[i]
			break
		}
	}
	if current == nil {
		return "", aggregator.ErrOrderNotFound
	}
	if current.Status.IsTerminal() {
		return current.Status, nil
	}

	status, err := s.agg.OrderStatus(ctx, id)
	if err != nil {
		if errors.Is(err, aggregator.ErrOrderNotFound) {
			slog.Warn("Order unknown upstream, keeping stored status",
				slog.String("id", id), slog.String("status", string(current.Status)))
			return current.Status, nil
		}
		return "", fmt.Errorf("refresh status: %w", err)
	}

	if status != current.Status {
		if err := s.store.UpdateStatus(ctx, id, status); err != nil {
			return "", err
		}
		s.publish(StatusUpdate{ID: id, Status: status})
	}
	return status, nil
}

// RefreshAll refreshes every non-terminal order in the history.
func (s *Service) RefreshAll(ctx context.Context) {
	records, err := s.store.Load(ctx)
	if err != nil {
		slog.Warn("History load failed during refresh", slog.Any("error", err))
		return
	}
	for _, r := range records {
		if r.Status.IsTerminal() {
			continue
		}
		if _, err := s.RefreshStatus(ctx, r.ID); err != nil {
			slog.Warn("Status refresh failed",
				slog.String("id", r.ID), slog.Any("error", err))
		}
	}
}

// ClearHistory wipes the persisted records.
func (s *Service) ClearHistory(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// ExportHistory writes the current history to a JSON file and returns
// its path.
func (s *Service) ExportHistory(ctx context.Context) (string, error) {
	if s.exporter == nil {
		return "", errors.New("exchange: exports disabled")
	}
	records, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	return s.exporter.Save(records)
}

// ImportHistory merges the most recent export back into the history.
// Records whose ids are already stored are left untouched; restored
// ones keep the export's ordering and land after the current list.
func (s *Service) ImportHistory(ctx context.Context) (int, error) {
	if s.exporter == nil {
		return 0, errors.New("exchange: exports disabled")
	}

	exp, err := s.exporter.LoadLatest()
	if err != nil {
		return 0, err
	}
	if exp == nil {
		return 0, ErrNoExport
	}

	current, err := s.store.Load(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(current))
	for _, r := range current {
		seen[r.ID] = struct{}{}
	}

	var missing []domain.ExchangeRecord
	for _, r := range exp.Records {
		if _, ok := seen[r.ID]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}

	if err := s.store.Replace(ctx, append(current, missing...)); err != nil {
		return 0, err
	}

	slog.Info("History restored from export", slog.Int("records", len(missing)))
	return len(missing), nil
}

// Subscribe registers a status-update channel. Slow consumers drop
// updates instead of blocking the publisher.
func (s *Service) Subscribe() chan StatusUpdate {
	ch := make(chan StatusUpdate, 16)
	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel from Subscribe.
func (s *Service) Unsubscribe(ch chan StatusUpdate) {
	s.subMu.Lock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
	s.subMu.Unlock()
}

func (s *Service) publish(update StatusUpdate) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- update:
		default:
		}
	}
}
