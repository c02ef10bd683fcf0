package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"ms-attendance/internal/models"
	"ms-attendance/internal/scan"
)

type DB struct {
	Bun *bun.DB
}

// GetParticipantByQRHash resolves a badge token to a participant with team
// and lab loaded. Returns (nil, nil) when no participant carries the token so
// the caller can fall through to the volunteer lookup.
func (d *DB) GetParticipantByQRHash(ctx context.Context, qrHash string) (*models.Participant, error) {
	var participant models.Participant
	err := d.Bun.NewSelect().
		Model(&participant).
		Relation("Team").
		Relation("Lab").
		Where("participant.qr_code_hash = ?", qrHash).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (d *DB) GetVolunteerByQRHash(ctx context.Context, qrHash string) (*models.Volunteer, error) {
	var volunteer models.Volunteer
	err := d.Bun.NewSelect().
		Model(&volunteer).
		Where("qr_code_hash = ?", qrHash).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &volunteer, nil
}

// SetParticipantCheckedIn flips the checked-in flag with a single conditional
// UPDATE. The WHERE clause requires the opposite state, so of two concurrent
// confirms for the same participant exactly one matches a row; the loser gets
// scan.ErrStateConflict.
func (d *DB) SetParticipantCheckedIn(ctx context.Context, id string, checkedIn bool) (*models.Participant, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Participant)(nil)).
		Set("is_checked_in = ?", checkedIn).
		Set("last_check_in = ?", checkInTimestamp(checkedIn)).
		Where("id = ?", id).
		Where("is_checked_in = ?", !checkedIn).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, scan.ErrStateConflict
	}

	var participant models.Participant
	err = d.Bun.NewSelect().
		Model(&participant).
		Relation("Team").
		Relation("Lab").
		Where("participant.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (d *DB) SetVolunteerCheckedIn(ctx context.Context, id string, checkedIn bool) (*models.Volunteer, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Volunteer)(nil)).
		Set("is_checked_in = ?", checkedIn).
		Set("last_check_in = ?", checkInTimestamp(checkedIn)).
		Where("id = ?", id).
		Where("is_checked_in = ?", !checkedIn).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, scan.ErrStateConflict
	}

	var volunteer models.Volunteer
	err = d.Bun.NewSelect().
		Model(&volunteer).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &volunteer, nil
}

func (d *DB) HasConsumedMeal(ctx context.Context, participantID, mealType string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.MealConsumption)(nil)).
		Where("participant_id = ?", participantID).
		Where("meal_type = ?", mealType).
		Exists(ctx)
}

// InsertMealConsumption attempts the write and lets the unique
// (participant_id, meal_type) index decide. A constraint violation comes back
// as scan.ErrDuplicateMeal, anything else is an infrastructure failure.
func (d *DB) InsertMealConsumption(ctx context.Context, consumption models.MealConsumption) error {
	_, err := d.Bun.NewInsert().Model(&consumption).Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		return scan.ErrDuplicateMeal
	}
	return err
}

func (d *DB) AppendScanLog(ctx context.Context, log models.ScanLog) error {
	_, err := d.Bun.NewInsert().Model(&log).Exec(ctx)
	return err
}

// GetModeConfig reads the singleton config row fresh on every call; nothing
// caches it across scans. A missing row falls back to ATTENDANCE defaults.
func (d *DB) GetModeConfig(ctx context.Context) (*models.SystemModeConfig, error) {
	var cfg models.SystemModeConfig
	err := d.Bun.NewSelect().
		Model(&cfg).
		Where("id = ?", models.SystemModeConfigID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.SystemModeConfig{
			ID:   models.SystemModeConfigID,
			Mode: models.ModeAttendance,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveModeConfig upserts the singleton row. Last write wins; there is no
// merge logic, the admin's save replaces the whole configuration.
func (d *DB) SaveModeConfig(ctx context.Context, cfg models.SystemModeConfig) (*models.SystemModeConfig, error) {
	cfg.ID = models.SystemModeConfigID
	cfg.UpdatedAt = time.Now()
	_, err := d.Bun.NewInsert().
		Model(&cfg).
		On("CONFLICT (id) DO UPDATE").
		Set("mode = EXCLUDED.mode").
		Set("selected_meal_type = EXCLUDED.selected_meal_type").
		Set("allowed_lab_ids = EXCLUDED.allowed_lab_ids").
		Set("allowed_scanner_ids = EXCLUDED.allowed_scanner_ids").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func checkInTimestamp(checkedIn bool) *time.Time {
	if !checkedIn {
		return nil
	}
	now := time.Now()
	return &now
}

// isUniqueViolation recognizes duplicate-key failures from postgres (23505)
// and from the sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
