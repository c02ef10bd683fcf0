package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/sse"
	"ms-attendance/internal/stats"
	"ms-attendance/internal/utils"
)

type Handler struct {
	StatsService *stats.Service
	Emitter      *sse.ScanEventEmitter
	Logger       *logger.Logger
}

func NewHandler(statsService *stats.Service, emitter *sse.ScanEventEmitter, log *logger.Logger) *Handler {
	return &Handler{StatsService: statsService, Emitter: emitter, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stats", func(r chi.Router) {
		r.Get("/", h.GetOverview)
		r.Get("/live", h.GetLiveStats)
		r.Get("/meals", h.GetMealCounts)
	})
	r.Route("/scans", func(r chi.Router) {
		r.Get("/recent", h.GetRecentScans)
		r.Get("/stream", h.StreamScans)
	})
}

func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.StatsService.GetOverview(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to fetch stats")
		return
	}
	h.writeJSON(w, overview)
}

func (h *Handler) GetLiveStats(w http.ResponseWriter, r *http.Request) {
	live, err := h.StatsService.GetLiveStats(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to fetch live stats")
		return
	}
	h.writeJSON(w, live)
}

func (h *Handler) GetMealCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.StatsService.GetMealCounts(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to fetch meal counts")
		return
	}
	h.writeJSON(w, counts)
}

func (h *Handler) GetRecentScans(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	scans, err := h.StatsService.GetRecentScans(r.Context(), limit)
	if err != nil {
		h.writeError(w, err, "failed to fetch recent scans")
		return
	}
	h.writeJSON(w, scans)
}

// StreamScans pushes confirmed scans to the dashboard over SSE.
func (h *Handler) StreamScans(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := h.Emitter.Subscribe(r.Context())
	h.Logger.Info("SSE", "dashboard client subscribed to scan stream")

	for {
		select {
		case <-r.Context().Done():
			h.Logger.Info("SSE", "dashboard client disconnected from scan stream")
			return
		case scanLog, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(scanLog)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("failed to marshal scan event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: scan\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	h.Logger.Error("STATS", fmt.Sprintf("%s: %v", fallback, err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(utils.FailureResponse("InternalError", fallback))
}
