package mode

import (
	"context"
	"errors"
	"fmt"

	"ms-attendance/internal/models"
)

// ErrInvalidModeConfig rejects a save that would leave the scanner in an
// unusable state, such as MEAL mode without a meal selected. The prior
// configuration stays untouched.
var ErrInvalidModeConfig = errors.New("invalid system mode configuration")

const ReasonInvalidModeConfig = "InvalidModeConfig"

type DBLayer interface {
	GetModeConfig(ctx context.Context) (*models.SystemModeConfig, error)
	SaveModeConfig(ctx context.Context, cfg models.SystemModeConfig) (*models.SystemModeConfig, error)
}

type Publisher interface {
	PublishModeUpdated(cfg models.SystemModeConfig) error
}

// Service is the single write path for the system mode. Reads always come
// from the store so a scan never acts on a stale mode.
type Service struct {
	DB    DBLayer
	Kafka Publisher
}

func NewService(db DBLayer, kafka Publisher) *Service {
	return &Service{DB: db, Kafka: kafka}
}

func (s *Service) GetMode(ctx context.Context) (*models.SystemModeConfig, error) {
	cfg, err := s.DB.GetModeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load mode config: %w", err)
	}
	return cfg, nil
}

// SetMode validates and commits a new configuration. MEAL mode needs a
// recognized meal type and at least one eligible lab; ATTENDANCE mode clears
// the meal-specific fields so a later switch starts clean.
func (s *Service) SetMode(ctx context.Context, cfg models.SystemModeConfig) (*models.SystemModeConfig, error) {
	switch cfg.Mode {
	case models.ModeMeal:
		if !models.ValidMealType(cfg.SelectedMealType) {
			return nil, fmt.Errorf("%w: selected_meal_type must be one of %v", ErrInvalidModeConfig, models.MealTypes)
		}
		if len(cfg.AllowedLabIDs) == 0 {
			return nil, fmt.Errorf("%w: allowed_lab_ids must not be empty in MEAL mode", ErrInvalidModeConfig)
		}
	case models.ModeAttendance:
		cfg.SelectedMealType = ""
		cfg.AllowedLabIDs = nil
		cfg.AllowedScannerIDs = nil
	default:
		return nil, fmt.Errorf("%w: mode must be ATTENDANCE or MEAL", ErrInvalidModeConfig)
	}

	saved, err := s.DB.SaveModeConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to save mode config: %w", err)
	}

	if s.Kafka != nil {
		if err := s.Kafka.PublishModeUpdated(*saved); err != nil {
			fmt.Printf("kafka publish error (mode updated): %v\n", err)
		}
	}
	return saved, nil
}
