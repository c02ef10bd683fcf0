package registry

import (
	"context"
	"errors"
	"fmt"

	"ms-attendance/internal/models"
	"ms-attendance/internal/utils"
)

// Expected registry outcomes, rendered as structured failures by the API.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type DBLayer interface {
	GetTeams(ctx context.Context) ([]models.Team, error)
	GetTeamByID(ctx context.Context, id string) (*models.Team, error)
	GetTeamByName(ctx context.Context, name string) (*models.Team, error)
	GetTeamsByLab(ctx context.Context, labID string) ([]models.Team, error)
	CreateTeam(ctx context.Context, team models.Team) error
	DeleteTeam(ctx context.Context, id string) error

	GetLabs(ctx context.Context) ([]models.Lab, error)
	GetLabByName(ctx context.Context, name string) (*models.Lab, error)
	CreateLab(ctx context.Context, lab models.Lab) error
	DeleteLab(ctx context.Context, id string) error

	GetParticipants(ctx context.Context) ([]models.Participant, error)
	GetParticipantByID(ctx context.Context, id string) (*models.Participant, error)
	GetParticipantByEmail(ctx context.Context, email string) (*models.Participant, error)
	CreateParticipant(ctx context.Context, participant models.Participant) error
	UpdateParticipant(ctx context.Context, participant models.Participant) error
	DeleteParticipant(ctx context.Context, id string) error
	CheckoutAllParticipants(ctx context.Context) (int64, error)
	ResetMeals(ctx context.Context, participantID string) (int64, error)

	GetVolunteers(ctx context.Context) ([]models.Volunteer, error)
	GetVolunteerByID(ctx context.Context, id string) (*models.Volunteer, error)
	CreateVolunteer(ctx context.Context, volunteer models.Volunteer) error
	UpdateVolunteer(ctx context.Context, volunteer models.Volunteer) error
	SetVolunteerQRHash(ctx context.Context, id, qrHash string) error
	DeleteVolunteer(ctx context.Context, id string) error
}

// Service is the admin-facing provisioning layer: teams, labs, participants,
// volunteers, and their badge tokens.
type Service struct {
	DB DBLayer
}

func NewService(db DBLayer) *Service {
	return &Service{DB: db}
}

// ---------------- TEAMS ----------------

func (s *Service) ListTeams(ctx context.Context) ([]models.Team, error) {
	return s.DB.GetTeams(ctx)
}

func (s *Service) TeamsByLab(ctx context.Context, labID string) ([]models.Team, error) {
	return s.DB.GetTeamsByLab(ctx, labID)
}

func (s *Service) CreateTeam(ctx context.Context, name, description, createdBy string) (*models.Team, error) {
	existing, err := s.DB.GetTeamByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("team lookup failed: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: team %q", ErrDuplicate, name)
	}

	team := models.Team{
		ID:          utils.NewID(),
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
	}
	if err := s.DB.CreateTeam(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return &team, nil
}

func (s *Service) DeleteTeam(ctx context.Context, id string) error {
	team, err := s.DB.GetTeamByID(ctx, id)
	if err != nil {
		return fmt.Errorf("team lookup failed: %w", err)
	}
	if team == nil {
		return fmt.Errorf("%w: team %s", ErrNotFound, id)
	}
	return s.DB.DeleteTeam(ctx, id)
}

// ---------------- LABS ----------------

func (s *Service) ListLabs(ctx context.Context) ([]models.Lab, error) {
	return s.DB.GetLabs(ctx)
}

func (s *Service) CreateLab(ctx context.Context, name, description string) (*models.Lab, error) {
	existing, err := s.DB.GetLabByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("lab lookup failed: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: lab %q", ErrDuplicate, name)
	}

	lab := models.Lab{
		ID:          utils.NewID(),
		Name:        name,
		Description: description,
	}
	if err := s.DB.CreateLab(ctx, lab); err != nil {
		return nil, fmt.Errorf("failed to create lab: %w", err)
	}
	return &lab, nil
}

func (s *Service) DeleteLab(ctx context.Context, id string) error {
	return s.DB.DeleteLab(ctx, id)
}

// ---------------- PARTICIPANTS ----------------

func (s *Service) ListParticipants(ctx context.Context) ([]models.Participant, error) {
	return s.DB.GetParticipants(ctx)
}

func (s *Service) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	participant, err := s.DB.GetParticipantByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("participant lookup failed: %w", err)
	}
	if participant == nil {
		return nil, fmt.Errorf("%w: participant %s", ErrNotFound, id)
	}
	return participant, nil
}

// CreateParticipant provisions a participant and mints their badge token.
func (s *Service) CreateParticipant(ctx context.Context, name, email, teamID, labID string) (*models.Participant, error) {
	existing, err := s.DB.GetParticipantByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("participant lookup failed: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: participant with email %q", ErrDuplicate, email)
	}

	id := utils.NewID()
	participant := models.Participant{
		ID:         id,
		Name:       name,
		Email:      email,
		TeamID:     teamID,
		LabID:      labID,
		QRCodeHash: utils.GenerateQRHash(id, email),
	}
	if err := s.DB.CreateParticipant(ctx, participant); err != nil {
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	return &participant, nil
}

func (s *Service) UpdateParticipant(ctx context.Context, id, name, email, teamID, labID string) (*models.Participant, error) {
	participant, err := s.GetParticipant(ctx, id)
	if err != nil {
		return nil, err
	}

	participant.Name = name
	participant.Email = email
	participant.TeamID = teamID
	participant.LabID = labID
	if err := s.DB.UpdateParticipant(ctx, *participant); err != nil {
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}
	return s.GetParticipant(ctx, id)
}

func (s *Service) DeleteParticipant(ctx context.Context, id string) error {
	if _, err := s.GetParticipant(ctx, id); err != nil {
		return err
	}
	return s.DB.DeleteParticipant(ctx, id)
}

func (s *Service) CheckoutAll(ctx context.Context) (int64, error) {
	return s.DB.CheckoutAllParticipants(ctx)
}

func (s *Service) ResetMeals(ctx context.Context, participantID string) (int64, error) {
	if _, err := s.GetParticipant(ctx, participantID); err != nil {
		return 0, err
	}
	return s.DB.ResetMeals(ctx, participantID)
}

// ---------------- VOLUNTEERS ----------------

func (s *Service) ListVolunteers(ctx context.Context) ([]models.Volunteer, error) {
	return s.DB.GetVolunteers(ctx)
}

func (s *Service) GetVolunteer(ctx context.Context, id string) (*models.Volunteer, error) {
	volunteer, err := s.DB.GetVolunteerByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("volunteer lookup failed: %w", err)
	}
	if volunteer == nil {
		return nil, fmt.Errorf("%w: volunteer %s", ErrNotFound, id)
	}
	return volunteer, nil
}

func (s *Service) CreateVolunteer(ctx context.Context, firstName, lastName, email, organization string) (*models.Volunteer, error) {
	volunteer := models.Volunteer{
		ID:           utils.NewID(),
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		Organization: organization,
	}
	if err := s.DB.CreateVolunteer(ctx, volunteer); err != nil {
		return nil, fmt.Errorf("failed to create volunteer: %w", err)
	}
	return &volunteer, nil
}

func (s *Service) UpdateVolunteer(ctx context.Context, id, firstName, lastName, email, organization string) (*models.Volunteer, error) {
	volunteer, err := s.GetVolunteer(ctx, id)
	if err != nil {
		return nil, err
	}

	volunteer.FirstName = firstName
	volunteer.LastName = lastName
	volunteer.Email = email
	volunteer.Organization = organization
	if err := s.DB.UpdateVolunteer(ctx, *volunteer); err != nil {
		return nil, fmt.Errorf("failed to update volunteer: %w", err)
	}
	return s.GetVolunteer(ctx, id)
}

// GenerateVolunteerQRHash mints (or re-mints) a volunteer badge token. An
// existing token is replaced, which invalidates any badge already printed.
func (s *Service) GenerateVolunteerQRHash(ctx context.Context, id string) (string, error) {
	volunteer, err := s.GetVolunteer(ctx, id)
	if err != nil {
		return "", err
	}

	qrHash := utils.GenerateQRHash(volunteer.ID, volunteer.Email)
	if err := s.DB.SetVolunteerQRHash(ctx, id, qrHash); err != nil {
		return "", fmt.Errorf("failed to store volunteer QR hash: %w", err)
	}
	return qrHash, nil
}

func (s *Service) DeleteVolunteer(ctx context.Context, id string) error {
	if _, err := s.GetVolunteer(ctx, id); err != nil {
		return err
	}
	return s.DB.DeleteVolunteer(ctx, id)
}
