package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-attendance/internal/auth"
	"ms-attendance/internal/badge"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/registry"
	"ms-attendance/internal/utils"
)

type Handler struct {
	RegistryService *registry.Service
	Badges          *badge.Generator
	Logger          *logger.Logger
}

func NewHandler(registryService *registry.Service, badges *badge.Generator, log *logger.Logger) *Handler {
	return &Handler{RegistryService: registryService, Badges: badges, Logger: log}
}

// RegisterRoutes mounts the admin registry under the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/teams", func(r chi.Router) {
		r.Get("/", h.ListTeams)
		r.Post("/", h.CreateTeam)
		r.Delete("/{teamID}", h.DeleteTeam)
	})

	r.Route("/labs", func(r chi.Router) {
		r.Get("/", h.ListLabs)
		r.Post("/", h.CreateLab)
		r.Delete("/{labID}", h.DeleteLab)
		r.Get("/{labID}/teams", h.TeamsByLab)
	})

	r.Route("/participants", func(r chi.Router) {
		r.Get("/", h.ListParticipants)
		r.Post("/", h.CreateParticipant)
		r.Post("/checkout-all", h.CheckoutAll)
		r.Get("/{participantID}", h.GetParticipant)
		r.Put("/{participantID}", h.UpdateParticipant)
		r.Delete("/{participantID}", h.DeleteParticipant)
		r.Get("/{participantID}/badge", h.ParticipantBadge)
		r.Delete("/{participantID}/meals", h.ResetMeals)
	})

	r.Route("/volunteers", func(r chi.Router) {
		r.Get("/", h.ListVolunteers)
		r.Post("/", h.CreateVolunteer)
		r.Put("/{volunteerID}", h.UpdateVolunteer)
		r.Delete("/{volunteerID}", h.DeleteVolunteer)
		r.Post("/{volunteerID}/qr", h.GenerateVolunteerQR)
		r.Get("/{volunteerID}/badge", h.VolunteerBadge)
	})
}

// ---------------- TEAMS ----------------

func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	teams, err := h.RegistryService.ListTeams(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to fetch teams")
		return
	}
	h.writeJSON(w, http.StatusOK, teams)
}

func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.writeValidation(w, "name is required")
		return
	}

	team, err := h.RegistryService.CreateTeam(r.Context(), req.Name, req.Description, auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, err, "failed to create team")
		return
	}
	h.writeJSON(w, http.StatusCreated, team)
}

func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	if err := h.RegistryService.DeleteTeam(r.Context(), chi.URLParam(r, "teamID")); err != nil {
		h.writeError(w, err, "failed to delete team")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) TeamsByLab(w http.ResponseWriter, r *http.Request) {
	teams, err := h.RegistryService.TeamsByLab(r.Context(), chi.URLParam(r, "labID"))
	if err != nil {
		h.writeError(w, err, "failed to fetch teams for lab")
		return
	}
	h.writeJSON(w, http.StatusOK, teams)
}

// ---------------- LABS ----------------

func (h *Handler) ListLabs(w http.ResponseWriter, r *http.Request) {
	labs, err := h.RegistryService.ListLabs(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to fetch labs")
		return
	}
	h.writeJSON(w, http.StatusOK, labs)
}

func (h *Handler) CreateLab(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.writeValidation(w, "name is required")
		return
	}

	lab, err := h.RegistryService.CreateLab(r.Context(), req.Name, req.Description)
	if err != nil {
		h.writeError(w, err, "failed to create lab")
		return
	}
	h.writeJSON(w, http.StatusCreated, lab)
}

func (h *Handler) DeleteLab(w http.ResponseWriter, r *http.Request) {
	if err := h.RegistryService.DeleteLab(r.Context(), chi.URLParam(r, "labID")); err != nil {
		h.writeError(w, err, "failed to delete lab")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---------------- PARTICIPANTS ----------------

func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.RegistryService.ListParticipants(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to fetch participants")
		return
	}
	h.writeJSON(w, http.StatusOK, participants)
}

func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	participant, err := h.RegistryService.GetParticipant(r.Context(), chi.URLParam(r, "participantID"))
	if err != nil {
		h.writeError(w, err, "failed to fetch participant")
		return
	}
	h.writeJSON(w, http.StatusOK, participant)
}

type participantRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	TeamID string `json:"team_id"`
	LabID  string `json:"lab_id"`
}

func (h *Handler) CreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeValidation(w, "invalid request body")
		return
	}
	if req.Name == "" || req.Email == "" || req.TeamID == "" || req.LabID == "" {
		h.writeValidation(w, "name, email, team_id and lab_id are required")
		return
	}

	participant, err := h.RegistryService.CreateParticipant(r.Context(), req.Name, req.Email, req.TeamID, req.LabID)
	if err != nil {
		h.writeError(w, err, "failed to create participant")
		return
	}
	h.writeJSON(w, http.StatusCreated, participant)
}

func (h *Handler) UpdateParticipant(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeValidation(w, "invalid request body")
		return
	}

	participant, err := h.RegistryService.UpdateParticipant(r.Context(),
		chi.URLParam(r, "participantID"), req.Name, req.Email, req.TeamID, req.LabID)
	if err != nil {
		h.writeError(w, err, "failed to update participant")
		return
	}
	h.writeJSON(w, http.StatusOK, participant)
}

func (h *Handler) DeleteParticipant(w http.ResponseWriter, r *http.Request) {
	if err := h.RegistryService.DeleteParticipant(r.Context(), chi.URLParam(r, "participantID")); err != nil {
		h.writeError(w, err, "failed to delete participant")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CheckoutAll(w http.ResponseWriter, r *http.Request) {
	count, err := h.RegistryService.CheckoutAll(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to check out participants")
		return
	}
	h.Logger.Info("REGISTRY", fmt.Sprintf("checked out %d participants", count))
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("Checked out %d participants", count), nil))
}

func (h *Handler) ResetMeals(w http.ResponseWriter, r *http.Request) {
	count, err := h.RegistryService.ResetMeals(r.Context(), chi.URLParam(r, "participantID"))
	if err != nil {
		h.writeError(w, err, "failed to reset meals")
		return
	}
	h.writeJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("Reset %d meal records", count), nil))
}

func (h *Handler) ParticipantBadge(w http.ResponseWriter, r *http.Request) {
	participant, err := h.RegistryService.GetParticipant(r.Context(), chi.URLParam(r, "participantID"))
	if err != nil {
		h.writeError(w, err, "failed to fetch participant")
		return
	}
	h.writeBadge(w, participant.QRCodeHash)
}

// ---------------- VOLUNTEERS ----------------

func (h *Handler) ListVolunteers(w http.ResponseWriter, r *http.Request) {
	volunteers, err := h.RegistryService.ListVolunteers(r.Context())
	if err != nil {
		h.writeError(w, err, "failed to fetch volunteers")
		return
	}
	h.writeJSON(w, http.StatusOK, volunteers)
}

type volunteerRequest struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Organization string `json:"organization"`
}

func (h *Handler) CreateVolunteer(w http.ResponseWriter, r *http.Request) {
	var req volunteerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeValidation(w, "invalid request body")
		return
	}
	if req.FirstName == "" || req.Email == "" {
		h.writeValidation(w, "first_name and email are required")
		return
	}

	volunteer, err := h.RegistryService.CreateVolunteer(r.Context(), req.FirstName, req.LastName, req.Email, req.Organization)
	if err != nil {
		h.writeError(w, err, "failed to create volunteer")
		return
	}
	h.writeJSON(w, http.StatusCreated, volunteer)
}

func (h *Handler) UpdateVolunteer(w http.ResponseWriter, r *http.Request) {
	var req volunteerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeValidation(w, "invalid request body")
		return
	}

	volunteer, err := h.RegistryService.UpdateVolunteer(r.Context(),
		chi.URLParam(r, "volunteerID"), req.FirstName, req.LastName, req.Email, req.Organization)
	if err != nil {
		h.writeError(w, err, "failed to update volunteer")
		return
	}
	h.writeJSON(w, http.StatusOK, volunteer)
}

func (h *Handler) DeleteVolunteer(w http.ResponseWriter, r *http.Request) {
	if err := h.RegistryService.DeleteVolunteer(r.Context(), chi.URLParam(r, "volunteerID")); err != nil {
		h.writeError(w, err, "failed to delete volunteer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GenerateVolunteerQR(w http.ResponseWriter, r *http.Request) {
	qrHash, err := h.RegistryService.GenerateVolunteerQRHash(r.Context(), chi.URLParam(r, "volunteerID"))
	if err != nil {
		h.writeError(w, err, "failed to generate volunteer QR hash")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"qr_code_hash": qrHash})
}

func (h *Handler) VolunteerBadge(w http.ResponseWriter, r *http.Request) {
	volunteer, err := h.RegistryService.GetVolunteer(r.Context(), chi.URLParam(r, "volunteerID"))
	if err != nil {
		h.writeError(w, err, "failed to fetch volunteer")
		return
	}
	h.writeBadge(w, volunteer.QRCodeHash)
}

// ---------------- HELPERS ----------------

func (h *Handler) writeBadge(w http.ResponseWriter, qrHash string) {
	png, err := h.Badges.GeneratePNG(qrHash)
	if err != nil {
		h.writeValidation(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeValidation(w http.ResponseWriter, message string) {
	h.writeJSON(w, http.StatusBadRequest, utils.FailureResponse("ValidationError", message))
}

func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		h.writeJSON(w, http.StatusNotFound, utils.FailureResponse("NotFound", err.Error()))
	case errors.Is(err, registry.ErrDuplicate):
		h.writeJSON(w, http.StatusConflict, utils.FailureResponse("Duplicate", err.Error()))
	default:
		h.Logger.Error("REGISTRY", fmt.Sprintf("%s: %v", fallback, err))
		h.writeJSON(w, http.StatusInternalServerError, utils.FailureResponse("InternalError", fallback))
	}
}
