// Package api exposes the engine to out-of-process UI collaborators: a
// small HTTP surface for status and calibration, and a websocket feed
// mirroring the per-frame update callback.
package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/swingdata/repwatch/internal/engine"
	"github.com/swingdata/repwatch/internal/monitoring"
	"github.com/swingdata/repwatch/internal/session"
	"github.com/swingdata/repwatch/internal/units"
)

// Server bridges the frame loop and HTTP clients. It never touches the
// engine directly: updates arrive via Publish from the frame goroutine, and
// calibration requests go back through the injected callback so the
// single-writer discipline around the engine stays with its owner.
type Server struct {
	router    *mux.Router
	upgrader  websocket.Upgrader
	calibrate func(heightMeters float64) error
	units     string

	mu      sync.RWMutex
	last    engine.Update
	hasLast bool

	clientsMu sync.Mutex
	clients   map[chan []byte]struct{}
}

// NewServer builds the HTTP surface. calibrate is invoked on POST
// /api/calibrate and must be safe to call from an HTTP goroutine (the
// caller wraps it in whatever excludes it from the frame loop).
// displayUnits selects the unit for converted velocity fields.
func NewServer(calibrate func(heightMeters float64) error, displayUnits string) *Server {
	if !units.IsValid(displayUnits) {
		displayUnits = units.MPS
	}
	s := &Server{
		router:    mux.NewRouter(),
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		calibrate: calibrate,
		units:     displayUnits,
		clients:   make(map[chan []byte]struct{}),
	}
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/calibrate", s.handleCalibrate).Methods(http.MethodPost)
	s.router.HandleFunc("/api/live", s.handleLive).Methods(http.MethodGet)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// envelope is the tagged wire format for the live feed.
type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Publish records the latest engine update and fans it out to live
// subscribers. Called once per frame from the frame goroutine; slow
// subscribers are skipped, never allowed to stall the frame path.
func (s *Server) Publish(u engine.Update) {
	s.mu.Lock()
	s.last = u
	s.hasLast = true
	s.mu.Unlock()
	s.broadcast(envelope{Type: "update", Data: u})
}

// PublishRep fans out one credited rep event.
func (s *Server) PublishRep(e session.RepEvent) {
	s.broadcast(envelope{Type: "rep", Data: e})
}

func (s *Server) broadcast(env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		monitoring.Logf("api: marshal broadcast: %v", err)
		return
	}
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for ch := range s.clients {
		select {
		case ch <- payload:
		default: // subscriber lagging; drop the message
		}
	}
}

type statusResponse struct {
	engine.Update
	Units             string  `json:"units"`
	VelocityDisplay   float64 `json:"velocity"`
	PeakDisplay       float64 `json:"peak_velocity"`
	HasProcessedFrame bool    `json:"has_processed_frame"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	u, ok := s.last, s.hasLast
	s.mu.RUnlock()

	resp := statusResponse{
		Update:            u,
		Units:             s.units,
		VelocityDisplay:   units.ConvertVelocity(u.Velocity, s.units),
		PeakDisplay:       units.ConvertVelocity(u.Peak, s.units),
		HasProcessedFrame: ok,
	}
	writeJSON(w, http.StatusOK, resp)
}

type calibrateRequest struct {
	HeightMeters float64 `json:"height_m"`
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	var req calibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if s.calibrate == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "calibration unavailable"})
		return
	}
	if err := s.calibrate(req.HeightMeters); err != nil {
		// Rejection is a user-facing warning, not a server fault.
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "calibrated"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("api: websocket upgrade: %v", err)
		return
	}

	ch := make(chan []byte, 16)
	s.clientsMu.Lock()
	s.clients[ch] = struct{}{}
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, ch)
		s.clientsMu.Unlock()
		conn.Close()
	}()

	// Reader goroutine only to detect disconnect; the feed is one-way.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case payload := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("api: encode response: %v", err)
	}
}
