package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rustyeddy/scantrade/journal"
	"github.com/rustyeddy/scantrade/portfolio"
	"github.com/rustyeddy/scantrade/scanners"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// limitParam reads ?limit=, falling back to def. Bad or non-positive
// values are an error.
func limitParam(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return n, nil
}

func (s *Server) history(w http.ResponseWriter) (journal.History, bool) {
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "journal not configured")
		return nil, false
	}
	return s.deps.History, true
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "ScanTrade API",
		"version": s.deps.Version,
		"status":  "running",
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"engine_running": s.deps.Engine.Running(),
	})
}

// dashboard

func (s *Server) healthScore(w http.ResponseWriter, _ *http.Request) {
	st := s.deps.Engine.SystemStatus()
	writeJSON(w, http.StatusOK, map[string]any{"score": st.HealthScore, "status": st.HealthStatus})
}

func (s *Server) systemStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Engine.SystemStatus())
}

type quickStats struct {
	PortfolioValue float64         `json:"portfolio_value"`
	TotalPnL       float64         `json:"total_pnl"`
	TotalPnLPct    float64         `json:"total_pnl_pct"`
	Cash           float64         `json:"cash"`
	ExposurePct    float64         `json:"exposure_pct"`
	OpenPositions  int             `json:"open_positions"`
	TotalTrades    int             `json:"total_trades"`
	WinRate        float64         `json:"win_rate"`
	SharpeRatio    portfolio.Ratio `json:"sharpe_ratio"`
	SortinoRatio   portfolio.Ratio `json:"sortino_ratio"`
	MaxDrawdown    float64         `json:"max_drawdown"`
}

func (s *Server) quickStats(w http.ResponseWriter, _ *http.Request) {
	st := s.deps.Engine.Ledger().Stats()
	writeJSON(w, http.StatusOK, quickStats{
		PortfolioValue: st.PortfolioValue,
		TotalPnL:       st.TotalPnL,
		TotalPnLPct:    st.TotalPnLPct,
		Cash:           st.Cash,
		ExposurePct:    st.ExposurePct,
		OpenPositions:  st.OpenPositions,
		TotalTrades:    st.TotalTrades,
		WinRate:        st.WinRate,
		SharpeRatio:    st.SharpeRatio,
		SortinoRatio:   st.SortinoRatio,
		MaxDrawdown:    st.MaxDrawdown,
	})
}

func (s *Server) portfolio(w http.ResponseWriter, _ *http.Request) {
	l := s.deps.Engine.Ledger()
	writeJSON(w, http.StatusOK, map[string]any{
		"stats":     l.Stats(),
		"positions": l.Positions(),
	})
}

// scanners

type scannerSummary struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Condition  string        `json:"condition"`
	Signal     scanners.Kind `json:"signal"`
	LastUpdate *time.Time    `json:"lastUpdate"`
	Status     string        `json:"status"`
	Signals    int           `json:"signals"`
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

// latestKind prefers the scanner's in-memory signal and falls back to
// the journal, so the list survives a restart.
func (s *Server) latestKind(r *http.Request, sc *scanners.Scanner) scanners.Kind {
	if sig, ok := sc.Latest(); ok {
		return sig.Kind
	}
	if s.deps.History != nil {
		if sig, err := s.deps.History.LatestSignal(r.Context(), sc.ID()); err == nil {
			return sig.Kind
		}
	}
	return scanners.Neutral
}

func (s *Server) listScanners(w http.ResponseWriter, r *http.Request) {
	out := []scannerSummary{}
	for _, sc := range s.deps.Engine.Scanners() {
		st := sc.Status()
		out = append(out, scannerSummary{
			ID:         st.ID,
			Name:       st.Name,
			Condition:  st.Condition,
			Signal:     s.latestKind(r, sc),
			LastUpdate: st.LastScan,
			Status:     activeLabel(st.Active),
			Signals:    st.SignalsGenerated,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) scanner(w http.ResponseWriter, r *http.Request) (*scanners.Scanner, bool) {
	sc, ok := s.deps.Engine.Scanner(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Scanner not found")
	}
	return sc, ok
}

func (s *Server) getScanner(w http.ResponseWriter, r *http.Request) {
	if sc, ok := s.scanner(w, r); ok {
		writeJSON(w, http.StatusOK, sc.Status())
	}
}

func (s *Server) toggleScanner(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.scanner(w, r)
	if !ok {
		return
	}
	active := sc.Toggle()
	s.log.Info().Str("scanner", sc.ID()).Bool("active", active).Msg("scanner toggled")
	writeJSON(w, http.StatusOK, map[string]string{"status": activeLabel(active)})
}

func (s *Server) scannerSignals(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.scanner(w, r)
	if !ok {
		return
	}
	limit, err := limitParam(r, journal.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, ok := s.history(w)
	if !ok {
		return
	}
	sigs, err := h.ListSignals(r.Context(), journal.SignalFilter{ScannerID: sc.ID(), Limit: limit})
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sigs))
}

// bots

func (s *Server) listBots(w http.ResponseWriter, _ *http.Request) {
	out := make([]any, 0, len(s.deps.Engine.Bots()))
	for _, b := range s.deps.Engine.Bots() {
		out = append(out, b.Status())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getBot(w http.ResponseWriter, r *http.Request) {
	b, ok := s.deps.Engine.Bot(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Bot not found")
		return
	}
	writeJSON(w, http.StatusOK, b.Status())
}

func (s *Server) toggleBot(w http.ResponseWriter, r *http.Request) {
	b, ok := s.deps.Engine.Bot(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Bot not found")
		return
	}
	st := b.Toggle()
	s.log.Info().Str("bot", b.ID()).Str("state", string(st)).Msg("bot toggled")
	writeJSON(w, http.StatusOK, map[string]string{"status": string(st)})
}

func (s *Server) botTrades(w http.ResponseWriter, r *http.Request) {
	b, ok := s.deps.Engine.Bot(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Bot not found")
		return
	}
	limit, err := limitParam(r, journal.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, ok := s.history(w)
	if !ok {
		return
	}
	trades, err := h.ListTrades(r.Context(), journal.TradeFilter{BotID: b.ID(), Limit: limit})
	if err != nil {
		s.internal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(trades))
}

// governance

func (s *Server) riskLimits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Engine.Governor().Status())
}

func (s *Server) rules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rules": s.deps.Engine.Governor().Rules()})
}

// logs

const logLimit = 50

type tradeLog struct {
	ID        string              `json:"id"`
	Timestamp time.Time           `json:"timestamp"`
	Type      string              `json:"type"`
	Symbol    string              `json:"symbol"`
	Direction portfolio.Direction `json:"direction"`
	Quantity  float64             `json:"quantity"`
	Price     float64             `json:"price"`
	PnL       float64             `json:"pnl"`
	BotID     string              `json:"bot_id"`
	Status    string              `json:"status"`
	Reason    string              `json:"reason"`
}

func toTradeLog(t portfolio.Trade) tradeLog {
	l := tradeLog{
		ID: t.ID, Timestamp: t.Timestamp, Type: "trade", Symbol: t.Symbol,
		Direction: t.Direction, Quantity: t.Quantity, PnL: t.RealizedPnL,
		BotID: t.BotID, Status: string(t.Status),
		Price: t.ExitPrice, Reason: t.ExitReason,
	}
	if t.Direction == portfolio.Buy {
		l.Price, l.Reason = t.EntryPrice, t.EntryReason
	}
	return l
}

func (s *Server) tradeLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, logLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, ok := s.history(w)
	if !ok {
		return
	}
	trades, err := h.ListTrades(r.Context(), journal.TradeFilter{Limit: limit})
	if err != nil {
		s.internal(w, r, err)
		return
	}
	out := make([]tradeLog, len(trades))
	for i, t := range trades {
		out[i] = toTradeLog(t)
	}
	writeJSON(w, http.StatusOK, out)
}

type signalLog struct {
	scanners.Signal
	Type string `json:"type"`
}

func (s *Server) signalLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, logLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, ok := s.history(w)
	if !ok {
		return
	}
	sigs, err := h.ListSignals(r.Context(), journal.SignalFilter{Limit: limit})
	if err != nil {
		s.internal(w, r, err)
		return
	}
	out := make([]signalLog, len(sigs))
	for i, sig := range sigs {
		out[i] = signalLog{Signal: sig, Type: "signal"}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) systemLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, logLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Engine.Governor().Events(limit))
}

func (s *Server) internal(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error().Err(err).Str("request_id", RequestID(r.Context())).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
