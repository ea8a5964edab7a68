package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/kalifa4y/swppr/internal/aggregator"
	"github.com/kalifa4y/swppr/internal/domain"
	"github.com/kalifa4y/swppr/internal/exchange"
	"github.com/kalifa4y/swppr/internal/flow"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Response encode failed", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

// GET /api/coins
func (s *Server) handleCoins(w http.ResponseWriter, r *http.Request) {
	coins := s.agg.ListCoins(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"coins": coins,
		"live":  s.agg.Live(),
	})
}

type swapInputsRequest struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// POST /api/swap/inputs
func (s *Server) handleSwapInputs(w http.ResponseWriter, r *http.Request) {
	var req swapInputsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.engine.SetInputs(req.From, req.To, req.Amount)
	w.WriteHeader(http.StatusAccepted)
}

// GET /api/swap/estimate
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	latest := s.latestEstimate()
	if latest == nil {
		writeError(w, http.StatusNotFound, "no estimate yet")
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

type findRatesRequest struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Amount float64 `json:"amount"`
}

// POST /api/swap/rates
func (s *Server) handleFindRates(w http.ResponseWriter, r *http.Request) {
	var req findRatesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	offers, err := s.agg.Quote(r.Context(), req.From, req.To, req.Amount)
	if err != nil {
		if errors.Is(err, aggregator.ErrInvalidAmount) {
			writeError(w, http.StatusBadRequest, "amount must be positive")
			return
		}
		writeError(w, http.StatusBadGateway, "rate search failed")
		return
	}

	if len(offers) == 0 {
		writeError(w, http.StatusNotFound, "no offers for this pair")
		return
	}
	if err := s.flow.RatesFound(offers); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"offers": offers,
		"screen": s.flow.Current(),
	})
}

// POST /api/swap/offers/{index}/select
func (s *Server) handleSelectOffer(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "offer index must be a number")
		return
	}
	if err := s.flow.SelectOffer(index); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	selected, _ := s.flow.Selected()
	writeJSON(w, http.StatusOK, map[string]any{"selected": selected})
}

type createOrderRequest struct {
	From          string  `json:"from"`
	To            string  `json:"to"`
	Amount        float64 `json:"amount"`
	Address       string  `json:"address"`
	RefundAddress string  `json:"refund_address"`
}

// POST /api/orders
//
// The rate always comes from the offer selected on the rates screen;
// clients cannot supply their own.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	selected, ok := s.flow.Selected()
	if !ok {
		writeError(w, http.StatusConflict, "no offer selected, search rates first")
		return
	}

	record, err := s.exchange.PlaceOrder(r.Context(), domain.OrderRequest{
		FromTicker:    req.From,
		ToTicker:      req.To,
		Amount:        req.Amount,
		Address:       req.Address,
		RefundAddress: req.RefundAddress,
	}, selected.Rate)
	if err != nil {
		if errors.Is(err, exchange.ErrInvalidAddress) {
			writeError(w, http.StatusBadRequest, "destination address is not valid for this currency")
			return
		}
		var ce *aggregator.CreationError
		if errors.As(err, &ce) {
			writeError(w, http.StatusBadGateway, "order creation failed, no funds were moved")
			return
		}
		writeError(w, http.StatusInternalServerError, "order creation failed")
		return
	}

	if err := s.flow.OrderPlaced(); err != nil {
		// Out-of-band API use; the order itself is fine.
		slog.Warn("Screen transition skipped", slog.Any("error", err))
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"order":  record,
		"screen": s.flow.Current(),
	})
}

// POST /api/orders/{id}/refresh
func (s *Server) handleRefreshOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, err := s.exchange.RefreshStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, aggregator.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "unknown order")
			return
		}
		writeError(w, http.StatusBadGateway, "status refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     id,
		"status": status,
	})
}

// GET /api/orders/{id}/qr
func (s *Server) handleOrderQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	records, err := s.exchange.History(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	for _, rec := range records {
		if rec.ID == id {
			qr := fmt.Sprintf("https://api.qrserver.com/v1/create-qr-code/?size=220x220&data=%s",
				url.QueryEscape(rec.DepositAddress))
			writeJSON(w, http.StatusOK, map[string]string{
				"deposit_address": rec.DepositAddress,
				"qr_url":          qr,
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown order")
}

// GET /api/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.exchange.History(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// DELETE /api/history?confirm=true
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusBadRequest, "clearing history requires confirm=true")
		return
	}
	if err := s.exchange.ClearHistory(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/history/export
func (s *Server) handleExportHistory(w http.ResponseWriter, r *http.Request) {
	path, err := s.exchange.ExportHistory(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// POST /api/history/import
func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	count, err := s.exchange.ImportHistory(r.Context())
	if err != nil {
		if errors.Is(err, exchange.ErrNoExport) {
			writeError(w, http.StatusNotFound, "no export to import")
			return
		}
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": count})
}

// POST /api/history/{id}/open
func (s *Server) handleOpenRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	records, err := s.exchange.History(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	for _, rec := range records {
		if rec.ID == id {
			if err := s.flow.RecordOpened(); err != nil {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"order":  rec,
				"screen": s.flow.Current(),
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown order")
}

// GET /api/screen
func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"screen": s.flow.Current()})
}

type navigateRequest struct {
	Screen flow.Screen `json:"screen"`
}

// POST /api/screen
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.flow.Navigate(req.Screen); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"screen": s.flow.Current()})
}

// GET /ws/status upgrades to a websocket carrying status updates for
// every stored order as they happen.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", slog.Any("error", err))
		return
	}

	updates := s.exchange.Subscribe()
	defer s.exchange.Unsubscribe(updates)
	defer conn.Close()

	// Reader goroutine: we never expect client messages, but reading is
	// what surfaces the close frame.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-done:
			return
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		}
	}
}
