// Package api exposes the break scheduler over HTTP JSON plus an SSE
// stream of reservation changes.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"descansos/internal/events"
	"descansos/internal/identity"
	"descansos/internal/service"
)

// HTTPServer serves the reservation API.
type HTTPServer struct {
	svc      *service.BreakService
	idents   *identity.Service
	feed     *events.Feed
	slotMins int
	logger   zerolog.Logger
	srv      *http.Server
}

// NewHTTPServer wires the API routes.
func NewHTTPServer(port int, svc *service.BreakService, idents *identity.Service, feed *events.Feed, slotMinutes int, logger zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		svc:      svc,
		idents:   idents,
		feed:     feed,
		slotMins: slotMinutes,
		logger:   logger.With().Str("component", "api").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", s.handleRegister)
	mux.HandleFunc("/api/reservations", s.handleReservations)
	mux.HandleFunc("/api/reservations/", s.handleReservationByID)
	mux.HandleFunc("/api/reservations/slots", s.handleSlotReservations)
	mux.HandleFunc("/api/reservations/repeat", s.handleRepeatDay)
	mux.HandleFunc("/api/shifts/active", s.handleActiveShift)
	mux.HandleFunc("/api/shifts/occurrence", s.handleOccurrence)
	mux.HandleFunc("/api/slots", s.handleSlotGrid)
	mux.HandleFunc("/api/conflicts", s.handleConflicts)
	mux.HandleFunc("/api/budget", s.handleBudget)
	mux.HandleFunc("/api/stream", s.handleStream)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", s.srv.Addr).Msg("API server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// resolveIdentity maps request owner fields to an identity: a known
// email, or a guest display name.
func (s *HTTPServer) resolveIdentity(r *http.Request, email, guestName string) (identity.Identity, error) {
	return s.idents.Resolve(r.Context(), email, guestName)
}

// parseRef parses an optional ?at= reference instant (RFC 3339 or
// YYYY-MM-DD in the organizational timezone), defaulting to now.
func (s *HTTPServer) parseRef(r *http.Request, param string) (time.Time, error) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		return time.Now(), nil
	}
	loc := s.svc.Calendar().Location()
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		// Noon keeps date-only references away from the night
		// shift's wraparound branches.
		return t.Add(12 * time.Hour), nil
	}
	return time.Time{}, fmt.Errorf("invalid %s; expected RFC 3339 or YYYY-MM-DD", param)
}
