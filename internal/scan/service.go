package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-attendance/internal/models"
	"ms-attendance/internal/utils"
)

// Storage-level sentinels returned by the DB layer. ErrStateConflict means a
// conditional checked-in update matched no row (the subject was already in the
// target state at the moment of write); ErrDuplicateMeal means the
// (participant, meal_type) uniqueness constraint rejected the insert.
var (
	ErrStateConflict = errors.New("subject state changed since preview")
	ErrDuplicateMeal = errors.New("meal consumption already recorded")
)

type DBLayer interface {
	GetParticipantByQRHash(ctx context.Context, qrHash string) (*models.Participant, error)
	GetVolunteerByQRHash(ctx context.Context, qrHash string) (*models.Volunteer, error)
	SetParticipantCheckedIn(ctx context.Context, id string, checkedIn bool) (*models.Participant, error)
	SetVolunteerCheckedIn(ctx context.Context, id string, checkedIn bool) (*models.Volunteer, error)
	HasConsumedMeal(ctx context.Context, participantID, mealType string) (bool, error)
	InsertMealConsumption(ctx context.Context, consumption models.MealConsumption) error
	AppendScanLog(ctx context.Context, log models.ScanLog) error
	GetModeConfig(ctx context.Context) (*models.SystemModeConfig, error)
}

// ConfirmGuard sheds duplicate confirm submissions of the same badge within a
// short window. It is an optimization only: the conditional write in the DB
// layer is what holds the at-most-once guarantee.
type ConfirmGuard interface {
	Reserve(ctx context.Context, qrHash, action string) (bool, error)
	Release(ctx context.Context, qrHash, action string) error
}

type EventPublisher interface {
	PublishScanEvent(log models.ScanLog) error
}

type Service struct {
	DB    DBLayer
	Guard ConfirmGuard
	Kafka EventPublisher
}

func NewService(db DBLayer, guard ConfirmGuard, kafka EventPublisher) *Service {
	return &Service{DB: db, Guard: guard, Kafka: kafka}
}

// ResolvedScan is the read-only preview of what confirming a scan would do.
type ResolvedScan struct {
	SubjectID      string `json:"subject_id"`
	SubjectType    string `json:"subject_type"`
	Name           string `json:"name"`
	TeamName       string `json:"team_name,omitempty"`
	LabName        string `json:"lab_name,omitempty"`
	CheckedIn      bool   `json:"checked_in"`
	ProposedAction string `json:"proposed_action"`
	Mode           string `json:"mode"`
	MealType       string `json:"meal_type,omitempty"`
}

// Result is the outcome of a confirmed scan: the updated subject snapshot plus
// an operator-facing message.
type Result struct {
	Message     string              `json:"message"`
	SubjectType string              `json:"subject_type"`
	Participant *models.Participant `json:"participant,omitempty"`
	Volunteer   *models.Volunteer   `json:"volunteer,omitempty"`
}

// Resolve translates a scanned token into a proposed action without touching
// any state. Participants are looked up first, then volunteers; tokens are
// unique across both tables so the order only decides which branch is hit.
func (s *Service) Resolve(ctx context.Context, qrHash, actorID string) (*ResolvedScan, error) {
	if qrHash == "" {
		return nil, ErrNotFound
	}

	cfg, err := s.DB.GetModeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load mode config: %w", err)
	}

	participant, err := s.DB.GetParticipantByQRHash(ctx, qrHash)
	if err != nil {
		return nil, fmt.Errorf("participant lookup failed: %w", err)
	}
	if participant != nil {
		return s.resolveParticipant(ctx, participant, cfg, actorID)
	}

	volunteer, err := s.DB.GetVolunteerByQRHash(ctx, qrHash)
	if err != nil {
		return nil, fmt.Errorf("volunteer lookup failed: %w", err)
	}
	if volunteer != nil {
		return s.resolveVolunteer(volunteer, cfg)
	}

	return nil, ErrNotFound
}

func (s *Service) resolveParticipant(ctx context.Context, p *models.Participant, cfg *models.SystemModeConfig, actorID string) (*ResolvedScan, error) {
	resolved := &ResolvedScan{
		SubjectID:   p.ID,
		SubjectType: models.SubjectParticipant,
		Name:        p.Name,
		CheckedIn:   p.IsCheckedIn,
		Mode:        cfg.Mode,
	}
	if p.Team != nil {
		resolved.TeamName = p.Team.Name
	}
	if p.Lab != nil {
		resolved.LabName = p.Lab.Name
	}

	if cfg.Mode == models.ModeMeal {
		if !cfg.AllowsScanner(actorID) {
			return nil, ErrScannerNotAllowed
		}
		if !cfg.AllowsLab(p.LabID) {
			return nil, ErrLabNotEligible
		}
		consumed, err := s.DB.HasConsumedMeal(ctx, p.ID, cfg.SelectedMealType)
		if err != nil {
			return nil, fmt.Errorf("meal lookup failed: %w", err)
		}
		if consumed {
			return nil, ErrAlreadyConsumed
		}
		resolved.ProposedAction = models.ActionConsume
		resolved.MealType = cfg.SelectedMealType
		return resolved, nil
	}

	resolved.ProposedAction = toggleAction(p.IsCheckedIn)
	return resolved, nil
}

func (s *Service) resolveVolunteer(v *models.Volunteer, cfg *models.SystemModeConfig) (*ResolvedScan, error) {
	// Meals are participant-only provisioning; a volunteer badge in MEAL mode
	// is rejected outright rather than silently toggled.
	if cfg.Mode == models.ModeMeal {
		return nil, ErrVolunteerNotEligible
	}

	return &ResolvedScan{
		SubjectID:      v.ID,
		SubjectType:    models.SubjectVolunteer,
		Name:           v.DisplayName(),
		CheckedIn:      v.IsCheckedIn,
		ProposedAction: toggleAction(v.IsCheckedIn),
		Mode:           cfg.Mode,
	}, nil
}

func toggleAction(checkedIn bool) string {
	if checkedIn {
		return models.ActionExit
	}
	return models.ActionEntry
}

func oppositeAction(action string) string {
	if action == models.ActionEntry {
		return models.ActionExit
	}
	return models.ActionEntry
}

// Confirm performs the transition the operator accepted. The action comes from
// the caller, not a re-resolve, so the write always reflects exactly what was
// shown on screen; the state is re-checked atomically at write time to catch
// a concurrent scan of the same badge.
func (s *Service) Confirm(ctx context.Context, qrHash, action, mealType, actorID string) (*Result, error) {
	if qrHash == "" {
		return nil, ErrNotFound
	}

	switch action {
	case models.ActionEntry, models.ActionExit, models.ActionConsume:
	default:
		return nil, ErrInvalidAction
	}

	participant, err := s.DB.GetParticipantByQRHash(ctx, qrHash)
	if err != nil {
		return nil, fmt.Errorf("participant lookup failed: %w", err)
	}
	if participant == nil {
		volunteer, err := s.DB.GetVolunteerByQRHash(ctx, qrHash)
		if err != nil {
			return nil, fmt.Errorf("volunteer lookup failed: %w", err)
		}
		if volunteer == nil {
			return nil, ErrNotFound
		}
		return s.confirmVolunteer(ctx, volunteer, qrHash, action, actorID)
	}
	return s.confirmParticipant(ctx, participant, qrHash, action, mealType, actorID)
}

// reserve consults the duplicate-submission guard. A successful toggle
// releases the opposite direction for the badge, so a held reservation can
// only mean the same transition was just confirmed and the caller gets the
// answer the authoritative write would give. Guard failures fall through to
// the DB.
func (s *Service) reserve(ctx context.Context, qrHash, action string) error {
	if s.Guard == nil {
		return nil
	}
	ok, err := s.Guard.Reserve(ctx, qrHash, action)
	if err != nil {
		fmt.Printf("scan guard unavailable, relying on store: %v\n", err)
		return nil
	}
	if ok {
		return nil
	}
	switch action {
	case models.ActionEntry:
		return ErrAlreadyCheckedIn
	case models.ActionExit:
		return ErrAlreadyCheckedOut
	default:
		return ErrAlreadyConsumed
	}
}

// release frees the guard window after a write failed on infrastructure, so
// the operator's retry is not debounced into a bogus duplicate answer.
func (s *Service) release(ctx context.Context, qrHash, action string) {
	if s.Guard == nil {
		return
	}
	if err := s.Guard.Release(ctx, qrHash, action); err != nil {
		fmt.Printf("failed to release scan guard for %s: %v\n", action, err)
	}
}

func (s *Service) confirmParticipant(ctx context.Context, p *models.Participant, qrHash, action, mealType, actorID string) (*Result, error) {
	switch action {
	case models.ActionEntry, models.ActionExit:
		checkedIn := action == models.ActionEntry
		if err := s.reserve(ctx, qrHash, action); err != nil {
			return nil, err
		}
		updated, err := s.DB.SetParticipantCheckedIn(ctx, p.ID, checkedIn)
		if err != nil {
			if errors.Is(err, ErrStateConflict) {
				if checkedIn {
					return nil, ErrAlreadyCheckedIn
				}
				return nil, ErrAlreadyCheckedOut
			}
			s.release(ctx, qrHash, action)
			return nil, fmt.Errorf("failed to update check-in state: %w", err)
		}
		// The toggle succeeded, so the reverse transition is legitimate again
		// even inside the debounce window.
		s.release(ctx, qrHash, oppositeAction(action))
		s.record(ctx, models.ScanLog{
			SubjectID:   p.ID,
			SubjectType: models.SubjectParticipant,
			ScannedBy:   actorID,
			ScanType:    action,
		})
		return &Result{
			Message:     checkInMessage(p.Name, checkedIn),
			SubjectType: models.SubjectParticipant,
			Participant: updated,
		}, nil

	case models.ActionConsume:
		cfg, err := s.DB.GetModeConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load mode config: %w", err)
		}
		if mealType == "" {
			mealType = cfg.SelectedMealType
		}
		if !models.ValidMealType(mealType) {
			return nil, ErrInvalidAction
		}
		if !cfg.AllowsScanner(actorID) {
			return nil, ErrScannerNotAllowed
		}
		if !cfg.AllowsLab(p.LabID) {
			return nil, ErrLabNotEligible
		}
		if err := s.reserve(ctx, qrHash, action); err != nil {
			return nil, err
		}

		// The insert itself is the concurrency guard: the unique
		// (participant, meal_type) index turns a replay into ErrDuplicateMeal.
		consumption := models.MealConsumption{
			ID:            utils.NewID(),
			ParticipantID: p.ID,
			MealType:      mealType,
			ConsumedAt:    time.Now(),
		}
		if err := s.DB.InsertMealConsumption(ctx, consumption); err != nil {
			if errors.Is(err, ErrDuplicateMeal) {
				return nil, ErrAlreadyConsumed
			}
			s.release(ctx, qrHash, action)
			return nil, fmt.Errorf("failed to record meal consumption: %w", err)
		}
		s.record(ctx, models.ScanLog{
			SubjectID:   p.ID,
			SubjectType: models.SubjectParticipant,
			ScannedBy:   actorID,
			ScanType:    models.ActionConsume,
			MealType:    mealType,
		})
		return &Result{
			Message:     fmt.Sprintf("%s consumed for %s", mealType, p.Name),
			SubjectType: models.SubjectParticipant,
			Participant: p,
		}, nil
	}

	return nil, ErrInvalidAction
}

func (s *Service) confirmVolunteer(ctx context.Context, v *models.Volunteer, qrHash, action, actorID string) (*Result, error) {
	if action == models.ActionConsume {
		return nil, ErrVolunteerNotEligible
	}

	// Preview rejects volunteer badges while meals are being served; a confirm
	// that skipped preview gets the same answer.
	cfg, err := s.DB.GetModeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load mode config: %w", err)
	}
	if cfg.Mode == models.ModeMeal {
		return nil, ErrVolunteerNotEligible
	}

	if err := s.reserve(ctx, qrHash, action); err != nil {
		return nil, err
	}

	checkedIn := action == models.ActionEntry
	updated, err := s.DB.SetVolunteerCheckedIn(ctx, v.ID, checkedIn)
	if err != nil {
		if errors.Is(err, ErrStateConflict) {
			if checkedIn {
				return nil, ErrAlreadyCheckedIn
			}
			return nil, ErrAlreadyCheckedOut
		}
		s.release(ctx, qrHash, action)
		return nil, fmt.Errorf("failed to update check-in state: %w", err)
	}
	s.release(ctx, qrHash, oppositeAction(action))
	s.record(ctx, models.ScanLog{
		SubjectID:   v.ID,
		SubjectType: models.SubjectVolunteer,
		ScannedBy:   actorID,
		ScanType:    action,
	})
	return &Result{
		Message:     checkInMessage(v.DisplayName(), checkedIn),
		SubjectType: models.SubjectVolunteer,
		Volunteer:   updated,
	}, nil
}

// record appends the audit log entry and streams it to Kafka. Neither is
// allowed to fail the scan that already committed.
func (s *Service) record(ctx context.Context, log models.ScanLog) {
	log.ID = utils.NewID()
	log.CreatedAt = time.Now()

	if err := s.DB.AppendScanLog(ctx, log); err != nil {
		fmt.Printf("failed to append scan log for %s: %v\n", log.SubjectID, err)
	}
	if s.Kafka != nil {
		if err := s.Kafka.PublishScanEvent(log); err != nil {
			fmt.Printf("kafka publish error (scan event): %v\n", err)
		}
	}
}

func checkInMessage(name string, checkedIn bool) string {
	if checkedIn {
		return fmt.Sprintf("Checked in %s", name)
	}
	return fmt.Sprintf("Checked out %s", name)
}
