package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/mode"
	"ms-attendance/internal/models"
	"ms-attendance/internal/utils"
)

type Handler struct {
	ModeService *mode.Service
	Logger      *logger.Logger
}

func NewHandler(modeService *mode.Service, log *logger.Logger) *Handler {
	return &Handler{ModeService: modeService, Logger: log}
}

// GetMode handles GET /api/attendance/mode.
func (h *Handler) GetMode(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.ModeService.GetMode(r.Context())
	if err != nil {
		h.Logger.Error("MODE", fmt.Sprintf("failed to load mode config: %v", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(utils.FailureResponse("InternalError", "failed to load mode config"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

type updateModeRequest struct {
	Mode              string   `json:"mode"`
	SelectedMealType  string   `json:"selected_meal_type"`
	AllowedLabIDs     []string `json:"allowed_lab_ids"`
	AllowedScannerIDs []string `json:"allowed_scanner_ids"`
}

// UpdateMode handles PUT /api/attendance/mode. A rejected save leaves the previous
// configuration in place.
func (h *Handler) UpdateMode(w http.ResponseWriter, r *http.Request) {
	var req updateModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(utils.FailureResponse("ValidationError", "invalid request body"))
		return
	}

	saved, err := h.ModeService.SetMode(r.Context(), models.SystemModeConfig{
		Mode:              req.Mode,
		SelectedMealType:  req.SelectedMealType,
		AllowedLabIDs:     req.AllowedLabIDs,
		AllowedScannerIDs: req.AllowedScannerIDs,
	})
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		if errors.Is(err, mode.ErrInvalidModeConfig) {
			h.Logger.Warn("MODE", fmt.Sprintf("rejected mode update: %v", err))
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(utils.FailureResponse(mode.ReasonInvalidModeConfig, err.Error()))
			return
		}
		h.Logger.Error("MODE", fmt.Sprintf("failed to save mode config: %v", err))
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(utils.FailureResponse("InternalError", "failed to save mode config"))
		return
	}

	h.Logger.LogMode(saved.Mode, "system mode updated")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(saved)
}
