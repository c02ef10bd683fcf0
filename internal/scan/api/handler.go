package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-attendance/internal/auth"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/scan"
	"ms-attendance/internal/utils"
)

type Handler struct {
	ScanService *scan.Service
	Logger      *logger.Logger
}

func NewHandler(scanService *scan.Service, log *logger.Logger) *Handler {
	return &Handler{ScanService: scanService, Logger: log}
}

type previewRequest struct {
	QRHash string `json:"qr_hash"`
}

type confirmRequest struct {
	QRHash   string `json:"qr_hash"`
	Action   string `json:"action"`
	MealType string `json:"meal_type,omitempty"`
}

type previewResponse struct {
	Success bool `json:"success"`
	*scan.ResolvedScan
}

type confirmResponse struct {
	Success bool `json:"success"`
	*scan.Result
}

// Preview handles POST /api/scan/preview. Read-only: it resolves the badge
// and reports the action a confirm would take, so the operator sees a
// confirmation prompt before anything is written.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFailure(w, http.StatusBadRequest, scan.ReasonValidationError, "invalid request body")
		return
	}
	if req.QRHash == "" {
		h.writeFailure(w, http.StatusBadRequest, scan.ReasonValidationError, "qr_hash is required")
		return
	}

	actorID := h.actorID(r)

	resolved, err := h.ScanService.Resolve(r.Context(), req.QRHash, actorID)
	if err != nil {
		h.writeScanError(w, err, "preview")
		return
	}

	h.Logger.LogScan("PREVIEW", resolved.SubjectID, fmt.Sprintf("proposed %s for %s", resolved.ProposedAction, resolved.Name))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(previewResponse{Success: true, ResolvedScan: resolved})
}

// Confirm handles POST /api/scan/confirm. The action is the one the operator
// was shown at preview time; it is committed exactly once or rejected with a
// specific reason.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFailure(w, http.StatusBadRequest, scan.ReasonValidationError, "invalid request body")
		return
	}
	if req.QRHash == "" {
		h.writeFailure(w, http.StatusBadRequest, scan.ReasonValidationError, "qr_hash is required")
		return
	}
	if req.Action == "" {
		h.writeFailure(w, http.StatusBadRequest, scan.ReasonValidationError, "action is required")
		return
	}

	actorID := h.actorID(r)

	result, err := h.ScanService.Confirm(r.Context(), req.QRHash, req.Action, req.MealType, actorID)
	if err != nil {
		h.writeScanError(w, err, "confirm")
		return
	}

	h.Logger.LogScan(req.Action, req.QRHash, result.Message)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(confirmResponse{Success: true, Result: result})
}

// actorID identifies the operator behind the scanner from the bearer token.
func (h *Handler) actorID(r *http.Request) string {
	if uid := auth.UserID(r.Context()); uid != "" {
		return uid
	}
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		return "unknown"
	}
	uid, err := auth.ExtractUserIDFromJWT(token)
	if err != nil {
		return "unknown"
	}
	return uid
}

// writeScanError renders expected outcomes as structured failures and
// everything else as a generic try-again message.
func (h *Handler) writeScanError(w http.ResponseWriter, err error, phase string) {
	if reason, ok := scan.Reason(err); ok {
		status := http.StatusConflict
		switch reason {
		case scan.ReasonNotFound:
			status = http.StatusNotFound
		case scan.ReasonValidationError:
			status = http.StatusBadRequest
		}
		h.Logger.Warn("SCAN", fmt.Sprintf("%s rejected: %s", phase, reason))
		h.writeFailure(w, status, reason, err.Error())
		return
	}

	h.Logger.Error("SCAN", fmt.Sprintf("%s failed: %v", phase, err))
	h.writeFailure(w, http.StatusInternalServerError, "InternalError", "something went wrong, try again")
}

func (h *Handler) writeFailure(w http.ResponseWriter, status int, reason, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(utils.FailureResponse(reason, message))
}
