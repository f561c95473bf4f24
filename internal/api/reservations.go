package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"descansos/internal/metrics"
	"descansos/internal/models"
	"descansos/internal/schedule"
	"descansos/internal/service"
)

// OwnerFields identify the caller: a registered email or a guest name.
type OwnerFields struct {
	Email     string `json:"email,omitempty"`
	GuestName string `json:"guest_name,omitempty"`
}

// CreateReservationRequest is the body for POST /api/reservations.
type CreateReservationRequest struct {
	OwnerFields
	ShiftID         string `json:"shift_id"`
	Start           string `json:"start"` // RFC 3339
	DurationMinutes int    `json:"duration_minutes"`
	Notes           string `json:"notes,omitempty"`
}

// CreateReservationResponse reports the admission outcome.
type CreateReservationResponse struct {
	Decision    schedule.Decision   `json:"decision"`
	Reservation *models.Reservation `json:"reservation,omitempty"`
}

// RegisterRequest is the body for POST /api/register.
type RegisterRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("register")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req RegisterRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ident, err := s.idents.Register(r.Context(), req.Email, req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

// handleReservations serves GET (list a shift occurrence) and POST
// (create) on /api/reservations.
func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listReservations(w, r)
	case http.MethodPost:
		s.createReservation(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_list")

	shiftID := r.URL.Query().Get("shift")
	if shiftID == "" {
		writeError(w, http.StatusBadRequest, "shift query parameter is required")
		return
	}
	ref, err := s.parseRef(r, "at")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occ, reservations, err := s.svc.Snapshot(r.Context(), shiftID, ref)
	if err != nil {
		if errors.Is(err, service.ErrUnknownShift) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("snapshot failed")
		writeError(w, http.StatusInternalServerError, "failed to load reservations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"occurrence":   occ,
		"reservations": reservations,
	})
}

func (s *HTTPServer) createReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_create")

	var req CreateReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start; expected RFC 3339")
		return
	}

	ident, err := s.resolveIdentity(r, req.Email, req.GuestName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, decision, err := s.svc.Create(r.Context(), ident, req.ShiftID, start, req.DurationMinutes, req.Notes)
	if err != nil {
		if errors.Is(err, service.ErrUnknownShift) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("create reservation failed")
		writeError(w, http.StatusInternalServerError, "failed to create reservation")
		return
	}

	status := http.StatusCreated
	if !decision.Admitted {
		status = http.StatusConflict
	}
	writeJSON(w, status, CreateReservationResponse{Decision: decision, Reservation: res})
}

// handleReservationByID serves DELETE /api/reservations/{id}.
func (s *HTTPServer) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_delete")

	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use DELETE")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/reservations/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	ident, err := s.resolveIdentity(r, r.URL.Query().Get("email"), r.URL.Query().Get("guest_name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch err := s.svc.Delete(r.Context(), ident, id); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "reservation not found")
	case errors.Is(err, service.ErrNotOwner):
		writeError(w, http.StatusForbidden, "only the owner can delete a reservation")
	default:
		s.logger.Error().Err(err).Int64("id", id).Msg("delete reservation failed")
		writeError(w, http.StatusInternalServerError, "failed to delete reservation")
	}
}

// SlotReservationRequest is the body for POST /api/reservations/slots:
// a grid selection of atomic cell start times.
type SlotReservationRequest struct {
	OwnerFields
	ShiftID    string   `json:"shift_id"`
	SlotStarts []string `json:"slot_starts"` // RFC 3339
}

func (s *HTTPServer) handleSlotReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_slots")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req SlotReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.SlotStarts) == 0 {
		writeError(w, http.StatusBadRequest, "slot_starts must not be empty")
		return
	}

	picks := make([]time.Time, 0, len(req.SlotStarts))
	for _, raw := range req.SlotStarts {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid slot start; expected RFC 3339")
			return
		}
		picks = append(picks, t)
	}

	ident, err := s.resolveIdentity(r, req.Email, req.GuestName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.svc.CreateFromSlots(r.Context(), ident, req.ShiftID, picks, s.slotMins)
	if err != nil {
		if errors.Is(err, service.ErrUnknownShift) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("slot reservation failed")
		writeError(w, http.StatusInternalServerError, "failed to create slot reservations")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// RepeatDayRequest is the body for POST /api/reservations/repeat.
type RepeatDayRequest struct {
	OwnerFields
	ShiftID    string `json:"shift_id"`
	SourceDate string `json:"source_date"` // YYYY-MM-DD
	TargetDate string `json:"target_date"` // YYYY-MM-DD
}

func (s *HTTPServer) handleRepeatDay(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservations_repeat")

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req RepeatDayRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	loc := s.svc.Calendar().Location()
	source, err := time.ParseInLocation("2006-01-02", req.SourceDate, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source_date; expected YYYY-MM-DD")
		return
	}
	target, err := time.ParseInLocation("2006-01-02", req.TargetDate, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target_date; expected YYYY-MM-DD")
		return
	}

	ident, err := s.resolveIdentity(r, req.Email, req.GuestName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Noon anchors keep date-only references on the intended day for
	// every shift, including the wrapping night shift.
	report, err := s.svc.RepeatDay(r.Context(), ident, req.ShiftID, source.Add(12*time.Hour), target.Add(12*time.Hour))
	if err != nil {
		if errors.Is(err, service.ErrUnknownShift) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("repeat day failed")
		// Partial success: report what was admitted before the failure.
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  "some reservations could not be written",
			"report": report,
		})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
