package handlers

import (
	"errors"
	"net/http"

	"github.com/clinicops/trainingdesk/internal/guard"
)

// EntryRequest carries the location the UI was opened with.
type EntryRequest struct {
	Location string `json:"location"`
}

// EntryResponse returns the location with trigger parameters removed. The UI
// replaces its address with it without navigating.
type EntryResponse struct {
	Location string        `json:"location"`
	Outcome  guard.Outcome `json:"outcome,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Entry handles a console mount. Any feedback trigger in the location is
// acknowledged at most once per id.
func (h *Handler) Entry(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := decode(r, &req); err != nil || req.Location == "" {
		h.Error(w, http.StatusBadRequest, "location is required")
		return
	}

	entry, err := guard.ParseEntry(req.Location)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid location")
		return
	}

	outcome, err := h.Feedback.HandleEntry(r.Context(), entry)
	resp := EntryResponse{Location: entry.String(), Outcome: outcome}
	switch {
	case errors.Is(err, guard.ErrNoTrigger):
		h.JSON(w, http.StatusOK, resp)
	case err != nil:
		resp.Error = err.Error()
		h.JSON(w, http.StatusBadGateway, resp)
	default:
		h.JSON(w, http.StatusOK, resp)
	}
}
