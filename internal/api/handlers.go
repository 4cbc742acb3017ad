package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netdash/netdash-core/internal/registry"
)

// handleListClients returns the live client list enriched with stored
// metadata.
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	live := s.scanner.List(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"clients": s.store.Enrich(live),
	})
}

// handleGetExposure returns the current exposure level.
func (s *Server) handleGetExposure(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"level": s.engine.Level()})
}

// exposureRequest is the body for POST /exposure.
type exposureRequest struct {
	Level *int `json:"level"`
}

// handleSetExposure applies a direct exposure write. Out-of-range
// levels are clamped, not rejected; the response carries the applied
// value.
func (s *Server) handleSetExposure(w http.ResponseWriter, r *http.Request) {
	var req exposureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Level == nil {
		writeBadRequest(w, "level is required")
		return
	}

	applied := s.engine.SetLevel(r.Context(), *req.Level)
	writeJSON(w, http.StatusOK, map[string]int{"level": applied})
}

// deviceUpdateRequest is the body for PATCH /devices/{mac}. Absent
// fields are left untouched.
type deviceUpdateRequest struct {
	Category    *string `json:"category"`
	Sensitivity *string `json:"sensitivity"`
	Status      *string `json:"status"`
}

// handleUpdateDevice merges a partial metadata write into the device
// record. A status change additionally triggers WAN enforcement and a
// fleet recompute, so the exposure level tracks the new fleet shape.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	mac := registry.NormalizeMAC(chi.URLParam(r, "mac"))

	var req deviceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Category == nil && req.Sensitivity == nil && req.Status == nil {
		writeBadRequest(w, "no fields to update")
		return
	}

	attrs := registry.Attributes{Category: req.Category}
	if req.Sensitivity != nil {
		sens := registry.Sensitivity(*req.Sensitivity)
		attrs.Sensitivity = &sens
	}
	if req.Status != nil {
		status := registry.Status(*req.Status)
		attrs.Status = &status
	}

	record, err := s.store.SetAttributes(mac, attrs)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrInvalidMAC):
			writeBadRequest(w, "invalid mac address")
		case errors.Is(err, registry.ErrInvalidStatus),
			errors.Is(err, registry.ErrInvalidSensitivity):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		default:
			s.logger.Error("device update failed", "mac", mac, "error", err)
			writeInternalError(w, "failed to persist device record")
		}
		return
	}

	if attrs.Status != nil {
		if s.access != nil {
			s.access.Enforce(r.Context(), mac, *attrs.Status)
		}
		if s.sink != nil {
			s.sink.DeviceStatusChanged(mac, *attrs.Status)
		}
		// The fleet changed shape; let the engine re-derive and
		// broadcast.
		s.engine.Recompute(r.Context())
	}

	writeJSON(w, http.StatusOK, record)
}

// handlePlugToggle publishes a toggle command for the smart plug.
func (s *Server) handlePlugToggle(w http.ResponseWriter, _ *http.Request) {
	if s.plug == nil {
		writeUnavailable(w, "no plug configured")
		return
	}
	if err := s.plug.PlugToggle(); err != nil {
		s.logger.Warn("plug toggle failed", "error", err)
		writeUnavailable(w, "plug command could not be delivered")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"toggled": true})
}
