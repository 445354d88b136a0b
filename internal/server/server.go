// Package server exposes the backend over HTTP: the websocket relay
// endpoint, a small JSON API for rules, state, sessions, and push
// subscriptions, and Prometheus metrics.
package server

import (
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luki/smoker/internal/logging"
	"github.com/luki/smoker/internal/notify"
	"github.com/luki/smoker/internal/rules"
	"github.com/luki/smoker/internal/sample"
	"github.com/luki/smoker/internal/state"
	"github.com/luki/smoker/internal/store"
	"github.com/luki/smoker/internal/ws"
)

// The device and the terminal clients connect from arbitrary origins.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server wires the HTTP surface to its collaborators.
type Server struct {
	store  *store.Store
	states *state.File
	hub    *ws.Hub
}

// New builds the server.
func New(st *store.Store, states *state.File, hub *ws.Hub) *Server {
	return &Server{store: st, states: states, hub: hub}
}

// Router assembles all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWS)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleGetState)
		r.Put("/state", s.handlePutState)
		r.Get("/rules", s.handleGetRules)
		r.Put("/rules", s.handlePutRules)
		r.Post("/subscriptions", s.handleAddSubscription)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/current/temps", s.handleCurrentTemps)
		r.Get("/sessions/{id}/temps", s.handleSessionTemps)
	})

	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	ws.NewClient(s.hub, conn).Start()
}

// ── State ────────────────────────────────────────────────────────────

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	st, err := s.states.Current()
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handlePutState replaces the session state and tells live viewers which
// smoke is current now.
func (s *Server) handlePutState(w http.ResponseWriter, r *http.Request) {
	var st state.State
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if st.Smoking && st.SmokeID == "" {
		st.SmokeID = rules.NewID()
	}
	if err := s.states.Set(st); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	s.hub.Broadcast(ws.ChannelSmokeUpdate, st.SmokeID)
	logging.Info().Str("smoke_id", st.SmokeID).Bool("smoking", st.Smoking).Msg("session state updated")
	writeJSON(w, http.StatusOK, st)
}

// ── Rules ────────────────────────────────────────────────────────────

func (s *Server) handleGetRules(w http.ResponseWriter, r *http.Request) {
	rs, err := s.store.LoadRules()
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	if rs == nil {
		rs = []*rules.Rule{}
	}
	writeJSON(w, http.StatusOK, rs)
}

// handlePutRules replaces the rule set wholesale. Rules without an id
// get one assigned; the response carries the stored set.
func (s *Server) handlePutRules(w http.ResponseWriter, r *http.Request) {
	var rs []*rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rs); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	for _, rule := range rs {
		if err := rule.Validate(); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		if rule.ID == "" {
			rule.ID = rules.NewID()
		}
	}

	if err := s.store.SaveRules(rs); err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	if rs == nil {
		rs = []*rules.Rule{}
	}
	writeJSON(w, http.StatusOK, rs)
}

// ── Subscriptions ────────────────────────────────────────────────────

func (s *Server) handleAddSubscription(w http.ResponseWriter, r *http.Request) {
	var sub notify.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if sub.Endpoint == "" {
		httpError(w, http.StatusBadRequest, errors.New("subscription: empty endpoint"))
		return
	}

	err := s.store.AddSubscription(sub)
	if errors.Is(err, store.ErrSubscriptionExists) {
		httpError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	logging.Info().Str("endpoint", sub.Endpoint).Msg("push subscriber registered")
	w.WriteHeader(http.StatusCreated)
}

// ── Sessions ─────────────────────────────────────────────────────────

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListSessions()
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	if sessions == nil {
		sessions = []string{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSessionTemps(w http.ResponseWriter, r *http.Request) {
	s.writeTemps(w, chi.URLParam(r, "id"))
}

// handleCurrentTemps serves the live session's stored samples, so a
// viewer joining mid-smoke can backfill its chart.
func (s *Server) handleCurrentTemps(w http.ResponseWriter, r *http.Request) {
	st, err := s.states.Current()
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	if st.SmokeID == "" {
		writeJSON(w, http.StatusOK, []tempRow{})
		return
	}
	s.writeTemps(w, st.SmokeID)
}

// tempRow mirrors the device event shape, raw strings included, so
// stored and live data look identical to clients.
type tempRow struct {
	ProbeTemp1  string `json:"probeTemp1"`
	ProbeTemp2  string `json:"probeTemp2"`
	ProbeTemp3  string `json:"probeTemp3"`
	ChamberTemp string `json:"chamberTemp"`
	Date        string `json:"date"`
}

func rowFromRecord(rec sample.Record) tempRow {
	return tempRow{
		ProbeTemp1:  rec.Probe1Raw,
		ProbeTemp2:  rec.Probe2Raw,
		ProbeTemp3:  rec.Probe3Raw,
		ChamberTemp: rec.ChamberRaw,
		Date:        rec.Time.Format(time.RFC3339),
	}
}

func (s *Server) writeTemps(w http.ResponseWriter, id string) {
	recs, err := s.store.LoadSession(id)
	if errors.Is(err, fs.ErrNotExist) {
		// A session that has not logged yet reads as empty, not missing.
		writeJSON(w, http.StatusOK, []tempRow{})
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}

	rows := make([]tempRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, rowFromRecord(rec))
	}
	writeJSON(w, http.StatusOK, rows)
}

// ── Helpers ──────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("encode response")
	}
}

func httpError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		logging.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
