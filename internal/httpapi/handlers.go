// v0
// internal/httpapi/handlers.go
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"nrgchamp/buildingrl/internal/building"
	"nrgchamp/buildingrl/internal/env"
	"nrgchamp/buildingrl/internal/session"
)

// Handlers serves the control and read API of one session.
type Handlers struct {
	Log     *slog.Logger
	Session *session.Session

	ready atomic.Bool
}

// SetReady flips the readiness probe.
func (h *Handlers) SetReady(v bool) { h.ready.Store(v) }

type stepRequest struct {
	Floor  int    `json:"floor"`
	Action string `json:"action"`
}

type stepResponse struct {
	Building   building.Snapshot `json:"building"`
	Reward     float64           `json:"reward"`
	Terminated bool              `json:"terminated"`
	Status     session.Status    `json:"status"`
}

type temperatureRequest struct {
	Value *int `json:"value"`
}

var errMissingValue = errors.New("value is required")

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ts": time.Now().UTC()})
}

func (h *Handlers) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "live"})
}

func (h *Handlers) Ready(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handlers) Building(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Snapshot())
}

func (h *Handlers) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Status())
}

func (h *Handlers) Reset(w http.ResponseWriter, _ *http.Request) {
	snap := h.Session.Reset()
	h.Log.Info("episode_reset", slog.Int("episode", h.Session.Status().Episode))
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) Step(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, fmt.Sprintf("invalid body: %v", err))
		return
	}
	kind, err := env.ParseActionKind(req.Action)
	if err != nil {
		h.fail(w, err)
		return
	}
	snap, reward, done, err := h.Session.Step(env.Action{Floor: req.Floor, Kind: kind})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{
		Building:   snap,
		Reward:     reward,
		Terminated: done,
		Status:     h.Session.Status(),
	})
}

func (h *Handlers) FloorOp(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		h.badRequest(w, fmt.Sprintf("invalid floor index %q", vars["index"]))
		return
	}
	op, err := session.ParseOp(vars["op"])
	if err != nil {
		h.fail(w, err)
		return
	}
	snap, err := h.Session.Apply(index, op)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handlers) OutsideTemperature(w http.ResponseWriter, r *http.Request) {
	var req temperatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if req.Value == nil {
		h.badRequest(w, errMissingValue.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Session.SetOutsideTemperature(*req.Value))
}

// fail maps domain errors onto status codes.
func (h *Handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, env.ErrFloorOutOfRange),
		errors.Is(err, env.ErrUnknownAction),
		errors.Is(err, building.ErrNoOccupants):
		h.badRequest(w, err.Error())
	case errors.Is(err, env.ErrEpisodeTerminated):
		h.Log.Warn("step_after_termination", slog.Any("err", err))
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		h.Log.Error("request_failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (h *Handlers) badRequest(w http.ResponseWriter, msg string) {
	h.Log.Warn("bad_request", slog.String("error", msg))
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
