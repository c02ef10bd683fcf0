package db_test

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
	"ms-attendance/internal/scan"
	"ms-attendance/internal/scan/db"
)

func setupTestDB(t *testing.T) *db.DB {
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
		(*models.SystemModeConfig)(nil),
	} {
		require.NoError(t, bunDB.ResetModel(ctx, m))
	}

	return &db.DB{Bun: bunDB}
}

func seedParticipant(t *testing.T, store *db.DB, checkedIn bool) *models.Participant {
	ctx := context.Background()

	team := models.Team{ID: "team001", Name: "Null Pointers", CreatedBy: "test", CreatedAt: time.Now()}
	_, err := store.Bun.NewInsert().Model(&team).Exec(ctx)
	require.NoError(t, err)

	lab := models.Lab{ID: "lab001", Name: "Lab A", CreatedAt: time.Now()}
	_, err = store.Bun.NewInsert().Model(&lab).Exec(ctx)
	require.NoError(t, err)

	p := models.Participant{
		ID:          "part001",
		Name:        "Alice Silva",
		Email:       "alice@example.com",
		TeamID:      team.ID,
		LabID:       lab.ID,
		IsCheckedIn: checkedIn,
		QRCodeHash:  "hash-part001",
		CreatedAt:   time.Now(),
	}
	_, err = store.Bun.NewInsert().Model(&p).Exec(ctx)
	require.NoError(t, err)
	return &p
}

func TestGetParticipantByQRHash(t *testing.T) {
	store := setupTestDB(t)
	seedParticipant(t, store, false)
	ctx := context.Background()

	found, err := store.GetParticipantByQRHash(ctx, "hash-part001")
	assert.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "part001", found.ID)
	require.NotNil(t, found.Team)
	assert.Equal(t, "Null Pointers", found.Team.Name)
	require.NotNil(t, found.Lab)
	assert.Equal(t, "Lab A", found.Lab.Name)

	// Unknown hash is not an error, just an empty result.
	missing, err := store.GetParticipantByQRHash(ctx, "no-such-hash")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSetParticipantCheckedInToggle(t *testing.T) {
	store := setupTestDB(t)
	p := seedParticipant(t, store, false)
	ctx := context.Background()

	updated, err := store.SetParticipantCheckedIn(ctx, p.ID, true)
	assert.NoError(t, err)
	assert.True(t, updated.IsCheckedIn)
	assert.NotNil(t, updated.LastCheckIn)

	updated, err = store.SetParticipantCheckedIn(ctx, p.ID, false)
	assert.NoError(t, err)
	assert.False(t, updated.IsCheckedIn)
	assert.Nil(t, updated.LastCheckIn)
}

func TestSetParticipantCheckedInConflict(t *testing.T) {
	store := setupTestDB(t)
	p := seedParticipant(t, store, false)
	ctx := context.Background()

	// First confirm wins the row.
	_, err := store.SetParticipantCheckedIn(ctx, p.ID, true)
	require.NoError(t, err)

	// A second ENTRY for the same participant matches no row: the WHERE
	// clause requires the opposite state.
	_, err = store.SetParticipantCheckedIn(ctx, p.ID, true)
	assert.ErrorIs(t, err, scan.ErrStateConflict)

	// The state is untouched by the losing write.
	current, err := store.GetParticipantByQRHash(ctx, p.QRCodeHash)
	require.NoError(t, err)
	assert.True(t, current.IsCheckedIn)
}

func TestSetParticipantCheckedInUnknownID(t *testing.T) {
	store := setupTestDB(t)
	seedParticipant(t, store, false)

	_, err := store.SetParticipantCheckedIn(context.Background(), "no-such-id", true)
	assert.ErrorIs(t, err, scan.ErrStateConflict)
}

func TestSetVolunteerCheckedIn(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	v := models.Volunteer{
		ID:         "vol001",
		FirstName:  "Dana",
		Email:      "dana@example.com",
		QRCodeHash: "hash-vol001",
		CreatedAt:  time.Now(),
	}
	_, err := store.Bun.NewInsert().Model(&v).Exec(ctx)
	require.NoError(t, err)

	updated, err := store.SetVolunteerCheckedIn(ctx, v.ID, true)
	assert.NoError(t, err)
	assert.True(t, updated.IsCheckedIn)

	_, err = store.SetVolunteerCheckedIn(ctx, v.ID, true)
	assert.ErrorIs(t, err, scan.ErrStateConflict)
}

func TestInsertMealConsumptionDuplicate(t *testing.T) {
	store := setupTestDB(t)
	p := seedParticipant(t, store, true)
	ctx := context.Background()

	first := models.MealConsumption{
		ID:            "meal001",
		ParticipantID: p.ID,
		MealType:      "LUNCH",
		ConsumedAt:    time.Now(),
	}
	assert.NoError(t, store.InsertMealConsumption(ctx, first))

	// Replay of the same meal for the same participant is rejected by the
	// unique index, even with a fresh row ID.
	replay := models.MealConsumption{
		ID:            "meal002",
		ParticipantID: p.ID,
		MealType:      "LUNCH",
		ConsumedAt:    time.Now(),
	}
	assert.ErrorIs(t, store.InsertMealConsumption(ctx, replay), scan.ErrDuplicateMeal)

	// A different meal type for the same participant is fine.
	dinner := models.MealConsumption{
		ID:            "meal003",
		ParticipantID: p.ID,
		MealType:      "DINNER",
		ConsumedAt:    time.Now(),
	}
	assert.NoError(t, store.InsertMealConsumption(ctx, dinner))

	consumed, err := store.HasConsumedMeal(ctx, p.ID, "LUNCH")
	assert.NoError(t, err)
	assert.True(t, consumed)

	consumed, err = store.HasConsumedMeal(ctx, p.ID, "SNACKS")
	assert.NoError(t, err)
	assert.False(t, consumed)
}

func TestModeConfigDefaultAndUpsert(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	// No row yet: readers get ATTENDANCE defaults instead of an error.
	cfg, err := store.GetModeConfig(ctx)
	assert.NoError(t, err)
	assert.Equal(t, models.ModeAttendance, cfg.Mode)

	saved, err := store.SaveModeConfig(ctx, models.SystemModeConfig{
		Mode:             models.ModeMeal,
		SelectedMealType: "DINNER",
		AllowedLabIDs:    []string{"lab001", "lab002"},
	})
	assert.NoError(t, err)
	assert.Equal(t, models.SystemModeConfigID, saved.ID)

	cfg, err = store.GetModeConfig(ctx)
	assert.NoError(t, err)
	assert.Equal(t, models.ModeMeal, cfg.Mode)
	assert.Equal(t, "DINNER", cfg.SelectedMealType)
	assert.Equal(t, []string{"lab001", "lab002"}, cfg.AllowedLabIDs)

	// Saving again replaces the whole row, it does not merge.
	_, err = store.SaveModeConfig(ctx, models.SystemModeConfig{Mode: models.ModeAttendance})
	assert.NoError(t, err)

	cfg, err = store.GetModeConfig(ctx)
	assert.NoError(t, err)
	assert.Equal(t, models.ModeAttendance, cfg.Mode)
	assert.Empty(t, cfg.SelectedMealType)
	assert.Empty(t, cfg.AllowedLabIDs)
}

func TestAppendScanLog(t *testing.T) {
	store := setupTestDB(t)
	p := seedParticipant(t, store, false)
	ctx := context.Background()

	log := models.ScanLog{
		ID:          "log001",
		SubjectID:   p.ID,
		SubjectType: models.SubjectParticipant,
		ScannedBy:   "operator1",
		ScanType:    models.ActionEntry,
		CreatedAt:   time.Now(),
	}
	assert.NoError(t, store.AppendScanLog(ctx, log))

	count, err := store.Bun.NewSelect().Model((*models.ScanLog)(nil)).Count(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
