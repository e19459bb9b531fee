// Package rest exposes the adaptation state over HTTP and bridges the
// environment machine to engine clients over a websocket.
package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/soundstage/internal/core/domain"
	"github.com/ewilliams-labs/soundstage/internal/core/ports"
	"github.com/ewilliams-labs/soundstage/internal/core/services"
	"github.com/ewilliams-labs/soundstage/internal/difficulty"
)

const defaultHistoryLimit = 20

// StateView is the published snapshot plus what the game derives from it.
type StateView struct {
	domain.Snapshot
	Difficulty  difficulty.Params `json:"difficulty"`
	PollerState string            `json:"poller_state,omitempty"`
	Scene       string            `json:"scene,omitempty"`
}

type pollerStatus interface {
	State() services.PollerState
}

type sceneStatus interface {
	CurrentScene() string
}

// Deps are the handler's collaborators. Poller, Scenes, History and Hub are
// optional.
type Deps struct {
	Board     *services.StateBoard
	Modulator *difficulty.Modulator
	Poller    pollerStatus
	Scenes    sceneStatus
	History   ports.PlayHistory
	Hub       *Hub
	Logger    *zap.Logger
}

// Handler manages the HTTP interface for our application.
type Handler struct {
	deps   Deps
	logger *zap.Logger
	router *http.ServeMux
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		deps:   deps,
		logger: logger,
		router: http.NewServeMux(),
	}

	h.routes()

	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.router.HandleFunc("GET /health", h.HealthCheck)
	h.router.HandleFunc("GET /state", h.GetState)
	h.router.HandleFunc("GET /history", h.GetHistory)
	if h.deps.Hub != nil {
		h.router.HandleFunc("GET /ws", h.deps.Hub.ServeWS)
	}
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok", "message": "Soundstage is live 🎶"}
	if h.deps.Poller != nil {
		body["poller"] = h.deps.Poller.State().String()
	}
	if h.deps.Hub != nil {
		body["engine_clients"] = h.deps.Hub.Clients()
	}
	h.writeJSON(w, http.StatusOK, body)
}

// GetState handles GET /state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.View(h.deps.Board.Current()))
}

// GetHistory handles GET /history?limit=N
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		http.Error(w, "play history is not enabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	plays, err := h.deps.History.RecentPlays(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to load play history", zap.Error(err))
		http.Error(w, "failed to load play history", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, plays)
}

// View derives the full state view from a snapshot.
func (h *Handler) View(snap domain.Snapshot) StateView {
	view := StateView{
		Snapshot:   snap,
		Difficulty: h.deps.Modulator.Compute(snap.Features.Energy, snap.Genre),
	}
	if h.deps.Poller != nil {
		view.PollerState = h.deps.Poller.State().String()
	}
	if h.deps.Scenes != nil {
		view.Scene = h.deps.Scenes.CurrentScene()
	}
	return view
}

// PublishState forwards a snapshot to engine clients. It is meant to be
// registered with StateBoard.Subscribe.
func (h *Handler) PublishState(snap domain.Snapshot) {
	if h.deps.Hub == nil {
		return
	}
	h.deps.Hub.BroadcastState(h.View(snap))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}
