package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-attendance/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- TEAMS ----------------

func (d *DB) GetTeams(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	err := d.Bun.NewSelect().
		Model(&teams).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (d *DB) GetTeamByID(ctx context.Context, id string) (*models.Team, error) {
	var team models.Team
	err := d.Bun.NewSelect().
		Model(&team).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (d *DB) GetTeamByName(ctx context.Context, name string) (*models.Team, error) {
	var team models.Team
	err := d.Bun.NewSelect().
		Model(&team).
		Where("name = ?", name).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// GetTeamsByLab returns teams that have at least one participant in the lab.
func (d *DB) GetTeamsByLab(ctx context.Context, labID string) ([]models.Team, error) {
	var teams []models.Team
	err := d.Bun.NewSelect().
		Model(&teams).
		Distinct().
		Join("JOIN participants p ON p.team_id = team.id").
		Where("p.lab_id = ?", labID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (d *DB) CreateTeam(ctx context.Context, team models.Team) error {
	_, err := d.Bun.NewInsert().Model(&team).Exec(ctx)
	return err
}

// DeleteTeam removes the team and everything hanging off it.
func (d *DB) DeleteTeam(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var participantIDs []string
		err := tx.NewSelect().
			Model((*models.Participant)(nil)).
			Column("id").
			Where("team_id = ?", id).
			Scan(ctx, &participantIDs)
		if err != nil {
			return err
		}
		if len(participantIDs) > 0 {
			if _, err := tx.NewDelete().
				Model((*models.ScanLog)(nil)).
				Where("subject_id IN (?)", bun.In(participantIDs)).
				Exec(ctx); err != nil {
				return err
			}
			if _, err := tx.NewDelete().
				Model((*models.MealConsumption)(nil)).
				Where("participant_id IN (?)", bun.In(participantIDs)).
				Exec(ctx); err != nil {
				return err
			}
			if _, err := tx.NewDelete().
				Model((*models.Participant)(nil)).
				Where("team_id = ?", id).
				Exec(ctx); err != nil {
				return err
			}
		}
		_, err = tx.NewDelete().
			Model((*models.Team)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

// ---------------- LABS ----------------

func (d *DB) GetLabs(ctx context.Context) ([]models.Lab, error) {
	var labs []models.Lab
	err := d.Bun.NewSelect().
		Model(&labs).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return labs, nil
}

func (d *DB) GetLabByName(ctx context.Context, name string) (*models.Lab, error) {
	var lab models.Lab
	err := d.Bun.NewSelect().
		Model(&lab).
		Where("name = ?", name).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lab, nil
}

func (d *DB) CreateLab(ctx context.Context, lab models.Lab) error {
	_, err := d.Bun.NewInsert().Model(&lab).Exec(ctx)
	return err
}

func (d *DB) DeleteLab(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var participantIDs []string
		err := tx.NewSelect().
			Model((*models.Participant)(nil)).
			Column("id").
			Where("lab_id = ?", id).
			Scan(ctx, &participantIDs)
		if err != nil {
			return err
		}
		if len(participantIDs) > 0 {
			if _, err := tx.NewDelete().
				Model((*models.ScanLog)(nil)).
				Where("subject_id IN (?)", bun.In(participantIDs)).
				Exec(ctx); err != nil {
				return err
			}
			if _, err := tx.NewDelete().
				Model((*models.MealConsumption)(nil)).
				Where("participant_id IN (?)", bun.In(participantIDs)).
				Exec(ctx); err != nil {
				return err
			}
			if _, err := tx.NewDelete().
				Model((*models.Participant)(nil)).
				Where("lab_id = ?", id).
				Exec(ctx); err != nil {
				return err
			}
		}
		_, err = tx.NewDelete().
			Model((*models.Lab)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

// ---------------- PARTICIPANTS ----------------

func (d *DB) GetParticipants(ctx context.Context) ([]models.Participant, error) {
	var participants []models.Participant
	err := d.Bun.NewSelect().
		Model(&participants).
		Relation("Team").
		Relation("Lab").
		Order("participant.created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (d *DB) GetParticipantByID(ctx context.Context, id string) (*models.Participant, error) {
	var participant models.Participant
	err := d.Bun.NewSelect().
		Model(&participant).
		Relation("Team").
		Relation("Lab").
		Where("participant.id = ?", id).
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

func (d *DB) GetParticipantByEmail(ctx context.Context, email string) (*models.Participant, error) {
	var participant models.Participant
	err := d.Bun.NewSelect().
		Model(&participant).
		Where("email = ?", email).
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

func (d *DB) CreateParticipant(ctx context.Context, participant models.Participant) error {
	_, err := d.Bun.NewInsert().Model(&participant).Exec(ctx)
	return err
}

func (d *DB) UpdateParticipant(ctx context.Context, participant models.Participant) error {
	_, err := d.Bun.NewUpdate().
		Model(&participant).
		Column("name", "email", "team_id", "lab_id").
		Where("id = ?", participant.ID).
		Exec(ctx)
	return err
}

func (d *DB) DeleteParticipant(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.ScanLog)(nil)).
			Where("subject_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*models.MealConsumption)(nil)).
			Where("participant_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Participant)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

// CheckoutAllParticipants resets every checked-in participant, typically at
// end of day.
func (d *DB) CheckoutAllParticipants(ctx context.Context) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Participant)(nil)).
		Set("is_checked_in = ?", false).
		Set("last_check_in = NULL").
		Where("is_checked_in = ?", true).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResetMeals deletes the participant's consumption rows, returning every meal
// type to UNCONSUMED for them.
func (d *DB) ResetMeals(ctx context.Context, participantID string) (int64, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.MealConsumption)(nil)).
		Where("participant_id = ?", participantID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---------------- VOLUNTEERS ----------------

func (d *DB) GetVolunteers(ctx context.Context) ([]models.Volunteer, error) {
	var volunteers []models.Volunteer
	err := d.Bun.NewSelect().
		Model(&volunteers).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return volunteers, nil
}

func (d *DB) GetVolunteerByID(ctx context.Context, id string) (*models.Volunteer, error) {
	var volunteer models.Volunteer
	err := d.Bun.NewSelect().
		Model(&volunteer).
		Where("id = ?", id).
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

func (d *DB) CreateVolunteer(ctx context.Context, volunteer models.Volunteer) error {
	_, err := d.Bun.NewInsert().Model(&volunteer).Exec(ctx)
	return err
}

func (d *DB) UpdateVolunteer(ctx context.Context, volunteer models.Volunteer) error {
	_, err := d.Bun.NewUpdate().
		Model(&volunteer).
		Column("first_name", "last_name", "email", "organization").
		Where("id = ?", volunteer.ID).
		Exec(ctx)
	return err
}

func (d *DB) SetVolunteerQRHash(ctx context.Context, id, qrHash string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Volunteer)(nil)).
		Set("qr_code_hash = ?", qrHash).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) DeleteVolunteer(ctx context.Context, id string) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.ScanLog)(nil)).
			Where("subject_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Volunteer)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}
