package api

import (
	"encoding/json"
	"net/http"
)

// Input roles recognised in the config's inputs.roles map.
const (
	// RoleExposureDial marks the encoder wired to the exposure dial.
	RoleExposureDial = "exposure-dial"
)

// Event types carried by POST /events.
const (
	EventTypeRotate = "rotate"
	EventTypeButton = "button"
)

// Event is one hardware or UI event ingested for broadcast.
type Event struct {
	Type    string `json:"type"`
	Device  string `json:"device"`
	Payload string `json:"payload"`
}

// handleIngestEvent is the Event Broadcaster ingress. Events from a
// device whose configured role is the exposure dial are translated into
// exposure operations; everything else is broadcast verbatim. Side
// effects always complete before the broadcast goes out.
func (s *Server) handleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeBadRequest(w, "invalid event body")
		return
	}
	if ev.Type == "" {
		writeBadRequest(w, "event type is required")
		return
	}

	if s.roles[ev.Device] == RoleExposureDial {
		switch ev.Type {
		case EventTypeRotate:
			// The engine broadcasts the resulting level itself, and
			// swallows the event while the motor guard is active.
			level, _ := s.engine.HandleRotate(r.Context(), ev.Payload)
			writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "level": level})
			return
		case EventTypeButton:
			level := s.engine.HandlePress(r.Context())
			writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "level": level})
			return
		}
	}

	s.hub.Broadcast(ev.Type, map[string]any{
		"device":  ev.Device,
		"payload": ev.Payload,
	})
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}
