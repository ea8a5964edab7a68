package exchange

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/kalifa4y/swppr/internal/address"
	"github.com/kalifa4y/swppr/internal/aggregator"
	"github.com/kalifa4y/swppr/internal/domain"
	"github.com/kalifa4y/swppr/internal/storage"
)

// fakeAggregator scripts order creation and status lookups.
type fakeAggregator struct {
	nextID     string
	createErr  error
	statuses   map[string]domain.Status
	statusErr  error
	statusCall int
}

func (f *fakeAggregator) ListCoins(ctx context.Context) []domain.Coin { return nil }

func (f *fakeAggregator) Quote(ctx context.Context, from, to string, amount float64) ([]domain.Offer, error) {
	return nil, nil
}

func (f *fakeAggregator) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderCreation, error) {
	if f.createErr != nil {
		return domain.OrderCreation{}, f.createErr
	}
	return domain.OrderCreation{ID: f.nextID, DepositAddress: "0xdeadbeef"}, nil
}

func (f *fakeAggregator) OrderStatus(ctx context.Context, id string) (domain.Status, error) {
	f.statusCall++
	if f.statusErr != nil {
		return "", f.statusErr
	}
	status, ok := f.statuses[id]
	if !ok {
		return "", aggregator.ErrOrderNotFound
	}
	return status, nil
}

func (f *fakeAggregator) Live() bool { return false }
func (f *fakeAggregator) Close()     {}

func testService(t *testing.T, agg *fakeAggregator) *Service {
	t.Helper()
	store, err := storage.NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(agg, store, address.NewValidator(), storage.NewExportManager(t.TempDir()))
}

func ethRequest(amount float64) domain.OrderRequest {
	return domain.OrderRequest{
		FromTicker: "BTC",
		ToTicker:   "ETH",
		Amount:     amount,
		Address:    "0xABCDEF0123456789ABCDEF0123456789ABCDEF01",
	}
}

func TestPlaceOrder_PersistsNewestFirst(t *testing.T) {
	agg := &fakeAggregator{nextID: "swsp_first"}
	svc := testService(t, agg)
	ctx := context.Background()

	if _, err := svc.PlaceOrder(ctx, ethRequest(0.1), 18.5); err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	agg.nextID = "swsp_second"
	if _, err := svc.PlaceOrder(ctx, ethRequest(0.2), 18.5); err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	records, err := svc.History(ctx)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "swsp_second" || records[1].ID != "swsp_first" {
		t.Errorf("history not newest first: %s, %s", records[0].ID, records[1].ID)
	}
	if records[1].EstimatedReceive != 0.1*18.5 {
		t.Errorf("receive estimate = %f, want %f", records[1].EstimatedReceive, 0.1*18.5)
	}
	if records[1].Status != domain.StatusWaiting {
		t.Errorf("fresh record status = %s, want waiting", records[1].Status)
	}
}

func TestPlaceOrder_RejectsBadAddress(t *testing.T) {
	svc := testService(t, &fakeAggregator{nextID: "swsp_x"})

	req := ethRequest(0.1)
	req.Address = "abc123"
	if _, err := svc.PlaceOrder(context.Background(), req, 18.5); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}

	records, _ := svc.History(context.Background())
	if len(records) != 0 {
		t.Error("rejected order must not be persisted")
	}
}

func TestPlaceOrder_CreationFailureSurfaces(t *testing.T) {
	agg := &fakeAggregator{createErr: &aggregator.CreationError{Err: errors.New("rejected")}}
	svc := testService(t, agg)

	_, err := svc.PlaceOrder(context.Background(), ethRequest(0.1), 18.5)
	var ce *aggregator.CreationError
	if !errors.As(err, &ce) {
		t.Errorf("expected wrapped CreationError, got %v", err)
	}
}

func TestRefreshStatus_PersistsChange(t *testing.T) {
	agg := &fakeAggregator{nextID: "swsp_a", statuses: map[string]domain.Status{}}
	svc := testService(t, agg)
	ctx := context.Background()

	svc.PlaceOrder(ctx, ethRequest(0.1), 18.5)
	agg.statuses["swsp_a"] = domain.StatusConfirming

	status, err := svc.RefreshStatus(ctx, "swsp_a")
	if err != nil {
		t.Fatalf("RefreshStatus failed: %v", err)
	}
	if status != domain.StatusConfirming {
		t.Errorf("status = %s, want confirming", status)
	}

	records, _ := svc.History(ctx)
	if records[0].Status != domain.StatusConfirming {
		t.Errorf("stored status = %s, want confirming", records[0].Status)
	}
}

func TestRefreshStatus_TerminalIsNoOp(t *testing.T) {
	agg := &fakeAggregator{nextID: "swsp_a", statuses: map[string]domain.Status{"swsp_a": domain.StatusConfirming}}
	svc := testService(t, agg)
	ctx := context.Background()

	svc.PlaceOrder(ctx, ethRequest(0.1), 18.5)
	svc.store.UpdateStatus(ctx, "swsp_a", domain.StatusFinished)

	status, err := svc.RefreshStatus(ctx, "swsp_a")
	if err != nil {
		t.Fatalf("RefreshStatus failed: %v", err)
	}
	if status != domain.StatusFinished {
		t.Errorf("terminal refresh returned %s, want finished", status)
	}
	if agg.statusCall != 0 {
		t.Errorf("terminal refresh must not hit the backend, got %d calls", agg.statusCall)
	}
}

func TestRefreshStatus_UnknownUpstreamKeepsStored(t *testing.T) {
	agg := &fakeAggregator{nextID: "swsp_a", statuses: map[string]domain.Status{}}
	svc := testService(t, agg)
	ctx := context.Background()

	svc.PlaceOrder(ctx, ethRequest(0.1), 18.5)

	status, err := svc.RefreshStatus(ctx, "swsp_a")
	if err != nil {
		t.Fatalf("unknown-upstream refresh must not fail: %v", err)
	}
	if status != domain.StatusWaiting {
		t.Errorf("status = %s, want stored waiting", status)
	}
}

func TestRefreshStatus_UnknownLocallyFails(t *testing.T) {
	svc := testService(t, &fakeAggregator{})

	if _, err := svc.RefreshStatus(context.Background(), "swsp_missing"); !errors.Is(err, aggregator.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestSubscribe_ReceivesStatusUpdates(t *testing.T) {
	agg := &fakeAggregator{nextID: "swsp_a", statuses: map[string]domain.Status{}}
	svc := testService(t, agg)
	ctx := context.Background()

	ch := svc.Subscribe()
	defer svc.Unsubscribe(ch)

	svc.PlaceOrder(ctx, ethRequest(0.1), 18.5)
	select {
	case update := <-ch:
		if update.ID != "swsp_a" || update.Status != domain.StatusWaiting {
			t.Errorf("unexpected update: %+v", update)
		}
	default:
		t.Fatal("no update published on placement")
	}

	agg.statuses["swsp_a"] = domain.StatusExchanging
	svc.RefreshStatus(ctx, "swsp_a")
	select {
	case update := <-ch:
		if update.Status != domain.StatusExchanging {
			t.Errorf("unexpected update: %+v", update)
		}
	default:
		t.Fatal("no update published on status change")
	}
}

func TestClearHistory(t *testing.T) {
	agg := &fakeAggregator{nextID: "swsp_a"}
	svc := testService(t, agg)
	ctx := context.Background()

	svc.PlaceOrder(ctx, ethRequest(0.1), 18.5)
	if err := svc.ClearHistory(ctx); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}

	records, _ := svc.History(ctx)
	if len(records) != 0 {
		t.Errorf("history not cleared, %d remain", len(records))
	}
}

func TestExportHistory(t *testing.T) {
	agg := &fakeAggregator{nextID: "swsp_a"}
	svc := testService(t, agg)
	ctx := context.Background()

	svc.PlaceOrder(ctx, ethRequest(0.1), 18.5)
	path, err := svc.ExportHistory(ctx)
	if err != nil {
		t.Fatalf("ExportHistory failed: %v", err)
	}
	if path == "" {
		t.Error("export path is empty")
	}
}

func TestImportHistory_RestoresClearedRecords(t *testing.T) {
	agg := &fakeAggregator{nextID: "swsp_a"}
	svc := testService(t, agg)
	ctx := context.Background()

	svc.PlaceOrder(ctx, ethRequest(0.1), 18.5)
	if _, err := svc.ExportHistory(ctx); err != nil {
		t.Fatalf("ExportHistory failed: %v", err)
	}
	if err := svc.ClearHistory(ctx); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}

	count, err := svc.ImportHistory(ctx)
	if err != nil {
		t.Fatalf("ImportHistory failed: %v", err)
	}
	if count != 1 {
		t.Errorf("imported %d records, want 1", count)
	}

	records, _ := svc.History(ctx)
	if len(records) != 1 || records[0].ID != "swsp_a" {
		t.Errorf("restored history is wrong: %+v", records)
	}

	// Importing again finds nothing new.
	count, err = svc.ImportHistory(ctx)
	if err != nil {
		t.Fatalf("second ImportHistory failed: %v", err)
	}
	if count != 0 {
		t.Errorf("second import restored %d records, want 0", count)
	}
}

func TestImportHistory_NoExport(t *testing.T) {
	svc := testService(t, &fakeAggregator{})

	if _, err := svc.ImportHistory(context.Background()); !errors.Is(err, ErrNoExport) {
		t.Errorf("expected ErrNoExport, got %v", err)
	}
}
