package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tryonegg/Higher-Ed-Hero-Video-Crawler/internal/progress/sinks"
)

// Board is the read side of the live progress board.
type Board interface {
	Slots() []sinks.SlotState
	Summary() sinks.Summary
}

// ProgressHandler exposes read-only run progress endpoints.
type ProgressHandler struct {
	board  Board
	logger *zap.Logger
}

// NewProgressHandler wires the board and logger.
func NewProgressHandler(board Board, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{board: board, logger: logger}
}

// ListSlots handles GET /v1/slots?busy=true. It returns {"slots": [...]}
// ordered by slot index, 400 for an invalid filter, or 503 without a board.
func (h *ProgressHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		writeError(w, http.StatusServiceUnavailable, "progress board unavailable")
		return
	}
	slots := h.board.Slots()
	if raw := strings.TrimSpace(r.URL.Query().Get("busy")); raw != "" {
		busy, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "busy must be a boolean")
			return
		}
		filtered := slots[:0]
		for _, s := range slots {
			if s.Busy == busy {
				filtered = append(filtered, s)
			}
		}
		slots = filtered
	}
	if slots == nil {
		slots = []sinks.SlotState{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"slots": slots})
}

// GetSlot handles GET /v1/slots/{slot}.
func (h *ProgressHandler) GetSlot(w http.ResponseWriter, r *http.Request) {
	if h.board == nil {
		writeError(w, http.StatusServiceUnavailable, "progress board unavailable")
		return
	}
	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil || slot < 0 {
		writeError(w, http.StatusBadRequest, "slot must be a non-negative integer")
		return
	}
	for _, s := range h.board.Slots() {
		if s.Slot == slot {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeError(w, http.StatusNotFound, "slot not found")
}

// GetSummary handles GET /v1/summary.
func (h *ProgressHandler) GetSummary(w http.ResponseWriter, _ *http.Request) {
	if h.board == nil {
		writeError(w, http.StatusServiceUnavailable, "progress board unavailable")
		return
	}
	writeJSON(w, http.StatusOK, h.board.Summary())
}
