package registry_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-attendance/internal/models"
	"ms-attendance/internal/registry"
	registry_db "ms-attendance/internal/registry/db"
)

func setupService(t *testing.T) (*registry.Service, *bun.DB) {
	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, m := range []interface{}{
		(*models.Team)(nil),
		(*models.Lab)(nil),
		(*models.Participant)(nil),
		(*models.Volunteer)(nil),
		(*models.ScanLog)(nil),
		(*models.MealConsumption)(nil),
	} {
		require.NoError(t, bunDB.ResetModel(ctx, m))
	}

	return registry.NewService(&registry_db.DB{Bun: bunDB}), bunDB
}

func TestCreateTeamAndDuplicate(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	team, err := svc.CreateTeam(ctx, "Null Pointers", "first floor crew", "admin")
	assert.NoError(t, err)
	assert.NotEmpty(t, team.ID)

	_, err = svc.CreateTeam(ctx, "Null Pointers", "", "admin")
	assert.ErrorIs(t, err, registry.ErrDuplicate)

	teams, err := svc.ListTeams(ctx)
	assert.NoError(t, err)
	assert.Len(t, teams, 1)
}

func TestCreateParticipantMintsBadge(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	team, err := svc.CreateTeam(ctx, "Null Pointers", "", "admin")
	require.NoError(t, err)
	lab, err := svc.CreateLab(ctx, "Lab A", "")
	require.NoError(t, err)

	p, err := svc.CreateParticipant(ctx, "Alice Silva", "alice@example.com", team.ID, lab.ID)
	assert.NoError(t, err)
	assert.NotEmpty(t, p.QRCodeHash, "Provisioning must mint a badge token")
	assert.False(t, p.IsCheckedIn)

	// Email is the duplicate key for participants.
	_, err = svc.CreateParticipant(ctx, "Alice Clone", "alice@example.com", team.ID, lab.ID)
	assert.ErrorIs(t, err, registry.ErrDuplicate)

	// Each participant gets a distinct token.
	other, err := svc.CreateParticipant(ctx, "Bob Perera", "bob@example.com", team.ID, lab.ID)
	assert.NoError(t, err)
	assert.NotEqual(t, p.QRCodeHash, other.QRCodeHash)
}

func TestDeleteTeamCascades(t *testing.T) {
	svc, bunDB := setupService(t)
	ctx := context.Background()

	team, err := svc.CreateTeam(ctx, "Null Pointers", "", "admin")
	require.NoError(t, err)
	lab, err := svc.CreateLab(ctx, "Lab A", "")
	require.NoError(t, err)
	p, err := svc.CreateParticipant(ctx, "Alice Silva", "alice@example.com", team.ID, lab.ID)
	require.NoError(t, err)

	// Attach history to the participant.
	consumption := models.MealConsumption{ID: "meal001", ParticipantID: p.ID, MealType: "LUNCH", ConsumedAt: time.Now()}
	_, err = bunDB.NewInsert().Model(&consumption).Exec(ctx)
	require.NoError(t, err)
	log := models.ScanLog{ID: "log001", SubjectID: p.ID, SubjectType: models.SubjectParticipant, ScannedBy: "op", ScanType: models.ActionEntry, CreatedAt: time.Now()}
	_, err = bunDB.NewInsert().Model(&log).Exec(ctx)
	require.NoError(t, err)

	assert.NoError(t, svc.DeleteTeam(ctx, team.ID))

	for _, m := range []interface{}{
		(*models.Participant)(nil),
		(*models.MealConsumption)(nil),
		(*models.ScanLog)(nil),
	} {
		count, err := bunDB.NewSelect().Model(m).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count, "Team deletion must take participant history with it")
	}
}

func TestDeleteTeamNotFound(t *testing.T) {
	svc, _ := setupService(t)

	err := svc.DeleteTeam(context.Background(), "no-such-team")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestCheckoutAll(t *testing.T) {
	svc, bunDB := setupService(t)
	ctx := context.Background()

	team, err := svc.CreateTeam(ctx, "Null Pointers", "", "admin")
	require.NoError(t, err)
	lab, err := svc.CreateLab(ctx, "Lab A", "")
	require.NoError(t, err)

	emails := []string{"a@example.com", "b@example.com", "c@example.com"}
	for i, email := range emails {
		p, err := svc.CreateParticipant(ctx, email, email, team.ID, lab.ID)
		require.NoError(t, err)
		// Check in the first two.
		if i < 2 {
			_, err = bunDB.NewUpdate().
				Model((*models.Participant)(nil)).
				Set("is_checked_in = ?", true).
				Where("id = ?", p.ID).
				Exec(ctx)
			require.NoError(t, err)
		}
	}

	affected, err := svc.CheckoutAll(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), affected, "Only checked-in participants count")

	affected, err = svc.CheckoutAll(ctx)
	assert.NoError(t, err)
	assert.Zero(t, affected)
}

func TestResetMeals(t *testing.T) {
	svc, bunDB := setupService(t)
	ctx := context.Background()

	team, err := svc.CreateTeam(ctx, "Null Pointers", "", "admin")
	require.NoError(t, err)
	lab, err := svc.CreateLab(ctx, "Lab A", "")
	require.NoError(t, err)
	p, err := svc.CreateParticipant(ctx, "Alice Silva", "alice@example.com", team.ID, lab.ID)
	require.NoError(t, err)

	for _, meal := range []string{"BREAKFAST", "LUNCH"} {
		c := models.MealConsumption{ID: "meal-" + meal, ParticipantID: p.ID, MealType: meal, ConsumedAt: time.Now()}
		_, err = bunDB.NewInsert().Model(&c).Exec(ctx)
		require.NoError(t, err)
	}

	affected, err := svc.ResetMeals(ctx, p.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	// A reset participant can take the meal again; the slate is clean.
	count, err := bunDB.NewSelect().Model((*models.MealConsumption)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = svc.ResetMeals(ctx, "no-such-participant")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestVolunteerQRLifecycle(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	v, err := svc.CreateVolunteer(ctx, "Dana", "Fernando", "dana@example.com", "Ops Crew")
	assert.NoError(t, err)
	assert.Empty(t, v.QRCodeHash, "Volunteers start without a badge token")

	hash, err := svc.GenerateVolunteerQRHash(ctx, v.ID)
	assert.NoError(t, err)
	assert.NotEmpty(t, hash)

	// Re-minting replaces the token and invalidates the old badge.
	rehash, err := svc.GenerateVolunteerQRHash(ctx, v.ID)
	assert.NoError(t, err)
	assert.NotEqual(t, hash, rehash)

	stored, err := svc.GetVolunteer(ctx, v.ID)
	assert.NoError(t, err)
	assert.Equal(t, rehash, stored.QRCodeHash)

	_, err = svc.GenerateVolunteerQRHash(ctx, "no-such-volunteer")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestUpdateParticipant(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	team, err := svc.CreateTeam(ctx, "Null Pointers", "", "admin")
	require.NoError(t, err)
	lab, err := svc.CreateLab(ctx, "Lab A", "")
	require.NoError(t, err)
	labB, err := svc.CreateLab(ctx, "Lab B", "")
	require.NoError(t, err)
	p, err := svc.CreateParticipant(ctx, "Alice Silva", "alice@example.com", team.ID, lab.ID)
	require.NoError(t, err)

	updated, err := svc.UpdateParticipant(ctx, p.ID, "Alice d'Silva", "alice@example.com", team.ID, labB.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Alice d'Silva", updated.Name)
	assert.Equal(t, labB.ID, updated.LabID)
	// The badge token survives edits; reprints are not needed for a rename.
	assert.Equal(t, p.QRCodeHash, updated.QRCodeHash)
}
