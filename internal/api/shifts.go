package api

import (
	"errors"
	"net/http"

	"descansos/internal/metrics"
	"descansos/internal/service"
)

// handleActiveShift serves GET /api/shifts/active?at=.
func (s *HTTPServer) handleActiveShift(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("shifts_active")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	ref, err := s.parseRef(r, "at")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	active := s.svc.ActiveShift(ref)
	occ := s.svc.Calendar().OccurrenceOf(active, ref)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shift":      active,
		"occurrence": occ,
	})
}

// handleOccurrence serves GET /api/shifts/occurrence?shift=&at=.
func (s *HTTPServer) handleOccurrence(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("shifts_occurrence")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	shiftID := r.URL.Query().Get("shift")
	sh, ok := s.svc.Calendar().ByID(shiftID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown shift")
		return
	}

	ref, err := s.parseRef(r, "at")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"shift":      sh,
		"occurrence": s.svc.Calendar().OccurrenceOf(sh, ref),
	})
}

// handleSlotGrid serves GET /api/slots?shift=&at=.
func (s *HTTPServer) handleSlotGrid(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("slots_grid")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	ref, err := s.parseRef(r, "at")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cells, err := s.svc.Grid(r.Context(), r.URL.Query().Get("shift"), ref, s.slotMins)
	if err != nil {
		if errors.Is(err, service.ErrUnknownShift) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("slot grid failed")
		writeError(w, http.StatusInternalServerError, "failed to build slot grid")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slots": cells})
}

// handleConflicts serves GET /api/conflicts?shift=&at=: the
// post-refresh double-booking report.
func (s *HTTPServer) handleConflicts(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("conflicts")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	ref, err := s.parseRef(r, "at")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conflicts, err := s.svc.ConflictReport(r.Context(), r.URL.Query().Get("shift"), ref)
	if err != nil {
		if errors.Is(err, service.ErrUnknownShift) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("conflict report failed")
		writeError(w, http.StatusInternalServerError, "failed to build conflict report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"conflicts": conflicts})
}

// handleBudget serves GET /api/budget?shift=&at=&email=|guest_name=.
func (s *HTTPServer) handleBudget(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("budget")

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	ref, err := s.parseRef(r, "at")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ident, err := s.resolveIdentity(r, r.URL.Query().Get("email"), r.URL.Query().Get("guest_name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	remaining, err := s.svc.RemainingBudget(r.Context(), ident, r.URL.Query().Get("shift"), ref)
	if err != nil {
		if errors.Is(err, service.ErrUnknownShift) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("budget lookup failed")
		writeError(w, http.StatusInternalServerError, "failed to compute budget")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ceiling_minutes":   s.svc.BudgetCeiling(),
		"remaining_minutes": remaining,
	})
}
