package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"

	"ms-attendance/internal/models"
)

// Service aggregates attendance reporting: headline counts from the store and
// live scan counters maintained in redis by the kafka consumer bridge.
type Service struct {
	db    *bun.DB
	redis *redis.Client
}

func NewService(db *bun.DB, redisClient *redis.Client) *Service {
	return &Service{db: db, redis: redisClient}
}

// Overview is the headline dashboard block.
type Overview struct {
	Total      int `json:"total"`
	CheckedIn  int `json:"checked_in"`
	Percentage int `json:"percentage"`
	TeamCount  int `json:"team_count"`
}

func (s *Service) GetOverview(ctx context.Context) (*Overview, error) {
	total, err := s.db.NewSelect().
		Model((*models.Participant)(nil)).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}

	checkedIn, err := s.db.NewSelect().
		Model((*models.Participant)(nil)).
		Where("is_checked_in = ?", true).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count checked-in participants: %w", err)
	}

	teamCount, err := s.db.NewSelect().
		Model((*models.Team)(nil)).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count teams: %w", err)
	}

	percentage := 0
	if total > 0 {
		percentage = int(math.Round(float64(checkedIn) / float64(total) * 100))
	}

	return &Overview{
		Total:      total,
		CheckedIn:  checkedIn,
		Percentage: percentage,
		TeamCount:  teamCount,
	}, nil
}

// GetRecentScans returns the latest scan logs with their subjects attached.
func (s *Service) GetRecentScans(ctx context.Context, limit int) ([]models.ScanLogWithSubject, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var logs []models.ScanLog
	err := s.db.NewSelect().
		Model(&logs).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scan logs: %w", err)
	}

	scans := make([]models.ScanLogWithSubject, 0, len(logs))
	for _, log := range logs {
		entry := models.ScanLogWithSubject{ScanLog: log}
		switch log.SubjectType {
		case models.SubjectParticipant:
			var participant models.Participant
			err := s.db.NewSelect().
				Model(&participant).
				Relation("Team").
				Relation("Lab").
				Where("participant.id = ?", log.SubjectID).
				Scan(ctx)
			if err == nil {
				entry.Participant = &participant
			} else if !errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("failed to load participant for scan %s: %w", log.ID, err)
			}
		case models.SubjectVolunteer:
			var volunteer models.Volunteer
			err := s.db.NewSelect().
				Model(&volunteer).
				Where("id = ?", log.SubjectID).
				Scan(ctx)
			if err == nil {
				entry.Volunteer = &volunteer
			} else if !errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("failed to load volunteer for scan %s: %w", log.ID, err)
			}
		}
		scans = append(scans, entry)
	}
	return scans, nil
}

// GetMealCounts returns consumption totals per meal type.
func (s *Service) GetMealCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(models.MealTypes))
	for _, mealType := range models.MealTypes {
		n, err := s.db.NewSelect().
			Model((*models.MealConsumption)(nil)).
			Where("meal_type = ?", mealType).
			Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s consumptions: %w", mealType, err)
		}
		counts[mealType] = n
	}
	return counts, nil
}

// ---------------- LIVE COUNTERS ----------------

func liveCounterKey(scanType string) string {
	return "attendance:live:" + scanType
}

// HandleScanEvent is the kafka consumer bridge: each scan event bumps the
// matching live counter. Counter loss on redis restart is acceptable; the
// store remains the source of truth for real reporting.
func (s *Service) HandleScanEvent(log models.ScanLog) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Incr(context.Background(), liveCounterKey(log.ScanType)).Err(); err != nil {
		fmt.Printf("failed to bump live counter for %s: %v\n", log.ScanType, err)
	}
}

// GetLiveStats reads the redis scan counters for the live dashboard tiles.
func (s *Service) GetLiveStats(ctx context.Context) (map[string]int64, error) {
	if s.redis == nil {
		return map[string]int64{}, nil
	}

	live := make(map[string]int64, 3)
	for _, scanType := range []string{models.ActionEntry, models.ActionExit, models.ActionConsume} {
		val, err := s.redis.Get(ctx, liveCounterKey(scanType)).Int64()
		if err == redis.Nil {
			val = 0
		} else if err != nil {
			return nil, fmt.Errorf("failed to read live counter %s: %w", scanType, err)
		}
		live[scanType] = val
	}
	return live, nil
}
