package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/avolkov/pricevault/internal/feed"
	"github.com/avolkov/pricevault/internal/model"
	"github.com/avolkov/pricevault/internal/query"
)

// defaultTolerance is the lookup window in seconds when the caller omits one.
const defaultTolerance = 60

type priceResponse struct {
	Symbol             string          `json:"symbol"`
	Price              decimal.Decimal `json:"price"`
	Timestamp          int64           `json:"timestamp"`
	RequestedTimestamp int64           `json:"requested_timestamp"`
	Seq                uint64          `json:"seq"`
	Source             model.Tier      `json:"source"`
	TimeInfo           query.TimeInfo  `json:"time_info"`
}

type latestEntry struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
	Seq       uint64          `json:"seq"`
	TimeInfo  query.TimeInfo  `json:"time_info"`
}

type latestResponse struct {
	Prices []latestEntry `json:"prices"`
}

type healthResponse struct {
	Status     string           `json:"status"`
	Timestamp  int64            `json:"timestamp"`
	Instance   string           `json:"instance"`
	SourceMode string           `json:"source_mode"`
	Symbols    []string         `json:"symbols"`
	LastSeen   map[string]int64 `json:"last_seen"`

	// StreamConnected is null when no push feed is configured.
	StreamConnected *bool `json:"stream_connected"`

	TimeInfo query.TimeInfo `json:"time_info"`
}

type timezonesInfo struct {
	UTC                 string `json:"utc"`
	ET                  string `json:"et"`
	BufferMaxAgeSeconds int64  `json:"buffer_max_age_seconds"`
	DataRetentionHours  int64  `json:"data_retention_hours"`
}

type timezonesResponse struct {
	CurrentTimestamp int64         `json:"current_timestamp"`
	TimeInfo         timezonesInfo `json:"time_info"`
}

// handlePrice answers a point lookup. The timestamp parameter is required;
// tolerance defaults to 60 seconds.
func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := feed.NormalizeSymbol(mux.Vars(r)["symbol"])

	if !s.deps.Engine.Supported(symbol) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("symbol %s not supported", symbol))
		return
	}

	tsParam := r.URL.Query().Get("timestamp")
	if tsParam == "" {
		writeError(w, http.StatusBadRequest, "timestamp parameter required")
		return
	}
	target, err := strconv.ParseInt(tsParam, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid timestamp")
		return
	}

	tolerance := int64(defaultTolerance)
	if tolParam := r.URL.Query().Get("tolerance"); tolParam != "" {
		tolerance, err = strconv.ParseInt(tolParam, 10, 64)
		if err != nil || tolerance < 0 {
			writeError(w, http.StatusBadRequest, "invalid tolerance")
			return
		}
	}

	match, ok := s.deps.Engine.Lookup(symbol, target, tolerance)
	if !ok {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("no price found for %s at timestamp %d (±%ds)", symbol, target, tolerance))
		return
	}

	obs := match.Observation
	writeJSON(w, http.StatusOK, priceResponse{
		Symbol:             obs.Symbol,
		Price:              obs.Price,
		Timestamp:          obs.ObservedAt,
		RequestedTimestamp: match.RequestedAt,
		Seq:                obs.Seq,
		Source:             match.Tier,
		TimeInfo:           s.deps.Engine.TimeInfo(obs.ObservedAt),
	})
}

// handleLatest returns the newest observation per symbol from the durable tier.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	matches := s.deps.Engine.Latest()

	entries := make([]latestEntry, 0, len(matches))
	for _, m := range matches {
		obs := m.Observation
		entries = append(entries, latestEntry{
			Symbol:    obs.Symbol,
			Price:     obs.Price,
			Timestamp: obs.ObservedAt,
			Seq:       obs.Seq,
			TimeInfo:  s.deps.Engine.TimeInfo(obs.ObservedAt),
		})
	}

	writeJSON(w, http.StatusOK, latestResponse{Prices: entries})
}

// handleHealth reports liveness and per-symbol freshness. Symbols that have
// not produced an observation yet report a last-seen of 0.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now().Unix()
	symbols := s.deps.Engine.Symbols()

	lastSeen := make(map[string]int64, len(symbols))
	for _, sym := range symbols {
		lastSeen[sym] = 0
	}
	if s.deps.Pipeline != nil {
		for sym, ts := range s.deps.Pipeline.LastSeen() {
			lastSeen[sym] = ts
		}
	}

	var streamConnected *bool
	if s.deps.Stream != nil {
		connected := s.deps.Stream.IsConnected()
		streamConnected = &connected
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:          "ok",
		Timestamp:       now,
		Instance:        s.deps.Instance,
		SourceMode:      s.deps.SourceMode,
		Symbols:         symbols,
		LastSeen:        lastSeen,
		StreamConnected: streamConnected,
		TimeInfo:        s.deps.Engine.TimeInfo(now),
	})
}

// handleTimezones reports the display zones and the tier windows.
func (s *Server) handleTimezones(w http.ResponseWriter, r *http.Request) {
	now := s.now().Unix()
	info := s.deps.Engine.TimeInfo(now)

	writeJSON(w, http.StatusOK, timezonesResponse{
		CurrentTimestamp: now,
		TimeInfo: timezonesInfo{
			UTC:                 info.UTC,
			ET:                  info.ET,
			BufferMaxAgeSeconds: int64(s.deps.BufferAge.Seconds()),
			DataRetentionHours:  int64(s.deps.Retention.Hours()),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
