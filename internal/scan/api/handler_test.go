package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
	"ms-attendance/internal/scan"
	"ms-attendance/internal/scan/api"
)

// fakeStore simulates the scan store behavior in memory.
type fakeStore struct {
	participants map[string]*models.Participant
	volunteers   map[string]*models.Volunteer
	consumed     map[string]bool
	config       *models.SystemModeConfig
	shouldFailOn string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		participants: make(map[string]*models.Participant),
		volunteers:   make(map[string]*models.Volunteer),
		consumed:     make(map[string]bool),
		config:       &models.SystemModeConfig{ID: models.SystemModeConfigID, Mode: models.ModeAttendance},
	}
}

func (f *fakeStore) GetParticipantByQRHash(_ context.Context, qrHash string) (*models.Participant, error) {
	if f.shouldFailOn == "GetParticipantByQRHash" {
		return nil, errors.New("connection refused")
	}
	for _, p := range f.participants {
		if p.QRCodeHash == qrHash {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetVolunteerByQRHash(_ context.Context, qrHash string) (*models.Volunteer, error) {
	for _, v := range f.volunteers {
		if v.QRCodeHash == qrHash {
			return v, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SetParticipantCheckedIn(_ context.Context, id string, checkedIn bool) (*models.Participant, error) {
	p, ok := f.participants[id]
	if !ok || p.IsCheckedIn == checkedIn {
		return nil, scan.ErrStateConflict
	}
	p.IsCheckedIn = checkedIn
	return p, nil
}

func (f *fakeStore) SetVolunteerCheckedIn(_ context.Context, id string, checkedIn bool) (*models.Volunteer, error) {
	v, ok := f.volunteers[id]
	if !ok || v.IsCheckedIn == checkedIn {
		return nil, scan.ErrStateConflict
	}
	v.IsCheckedIn = checkedIn
	return v, nil
}

func (f *fakeStore) HasConsumedMeal(_ context.Context, participantID, mealType string) (bool, error) {
	return f.consumed[participantID+":"+mealType], nil
}

func (f *fakeStore) InsertMealConsumption(_ context.Context, c models.MealConsumption) error {
	key := c.ParticipantID + ":" + c.MealType
	if f.consumed[key] {
		return scan.ErrDuplicateMeal
	}
	f.consumed[key] = true
	return nil
}

func (f *fakeStore) AppendScanLog(_ context.Context, _ models.ScanLog) error {
	return nil
}

func (f *fakeStore) GetModeConfig(_ context.Context) (*models.SystemModeConfig, error) {
	return f.config, nil
}

func setupHandler(t *testing.T) (*fakeStore, *chi.Mux) {
	store := newFakeStore()
	svc := scan.NewService(store, nil, nil)
	h := api.NewHandler(svc, logger.NewLogger())

	r := chi.NewRouter()
	r.Post("/api/attendance/scan/preview", h.Preview)
	r.Post("/api/attendance/scan/confirm", h.Confirm)
	return store, r
}

func postJSON(t *testing.T, r http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPreviewSuccess(t *testing.T) {
	store, r := setupHandler(t)
	store.participants["part001"] = &models.Participant{
		ID:         "part001",
		Name:       "Alice Silva",
		LabID:      "lab001",
		QRCodeHash: "hash1",
	}

	rec := postJSON(t, r, "/api/attendance/scan/preview", map[string]string{"qr_hash": "hash1"})

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success        bool   `json:"success"`
		ProposedAction string `json:"proposed_action"`
		Name           string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, models.ActionEntry, resp.ProposedAction)
	assert.Equal(t, "Alice Silva", resp.Name)
}

func TestPreviewUnknownBadge(t *testing.T) {
	_, r := setupHandler(t)

	rec := postJSON(t, r, "/api/attendance/scan/preview", map[string]string{"qr_hash": "ghost"})

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp struct {
		Success bool   `json:"success"`
		Reason  string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, scan.ReasonNotFound, resp.Reason)
}

func TestPreviewMissingHash(t *testing.T) {
	_, r := setupHandler(t)

	rec := postJSON(t, r, "/api/attendance/scan/preview", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmEntryThenDuplicate(t *testing.T) {
	store, r := setupHandler(t)
	store.participants["part001"] = &models.Participant{
		ID:         "part001",
		Name:       "Alice Silva",
		LabID:      "lab001",
		QRCodeHash: "hash1",
	}

	body := map[string]string{"qr_hash": "hash1", "action": models.ActionEntry}

	rec := postJSON(t, r, "/api/attendance/scan/confirm", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	var ok struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.True(t, ok.Success)
	assert.Equal(t, "Checked in Alice Silva", ok.Message)

	// Confirming the same ENTRY again conflicts.
	rec = postJSON(t, r, "/api/attendance/scan/confirm", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var fail struct {
		Success bool   `json:"success"`
		Reason  string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fail))
	assert.False(t, fail.Success)
	assert.Equal(t, scan.ReasonAlreadyCheckedIn, fail.Reason)
}

func TestConfirmConsumeReplay(t *testing.T) {
	store, r := setupHandler(t)
	store.config = &models.SystemModeConfig{
		ID:               models.SystemModeConfigID,
		Mode:             models.ModeMeal,
		SelectedMealType: "LUNCH",
		AllowedLabIDs:    []string{"lab001"},
	}
	store.participants["part001"] = &models.Participant{
		ID:         "part001",
		Name:       "Alice Silva",
		LabID:      "lab001",
		QRCodeHash: "hash1",
	}

	body := map[string]string{"qr_hash": "hash1", "action": models.ActionConsume, "meal_type": "LUNCH"}

	rec := postJSON(t, r, "/api/attendance/scan/confirm", body)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, r, "/api/attendance/scan/confirm", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var fail struct {
		Reason string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fail))
	assert.Equal(t, scan.ReasonAlreadyConsumed, fail.Reason)
}

func TestConfirmMissingAction(t *testing.T) {
	_, r := setupHandler(t)

	rec := postJSON(t, r, "/api/attendance/scan/confirm", map[string]string{"qr_hash": "hash1"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewInfrastructureFailure(t *testing.T) {
	store, r := setupHandler(t)
	store.shouldFailOn = "GetParticipantByQRHash"

	rec := postJSON(t, r, "/api/attendance/scan/preview", map[string]string{"qr_hash": "hash1"})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// Infrastructure failures never leak details to the scanner.
	var resp struct {
		Reason  string `json:"reason"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "InternalError", resp.Reason)
	assert.Equal(t, "something went wrong, try again", resp.Message)
}
