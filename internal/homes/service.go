package homes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"energy-advisor/internal/shared/metrics"
	"energy-advisor/internal/shared/telemetry"
)

// Service contains business logic for homes.
type Service struct {
	Repo Repo
	Now  func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// CreateFromJSON validates a raw payload and persists the resulting home.
func (s *Service) CreateFromJSON(ctx context.Context, body []byte) (Home, error) {
	in, err := ParseCreate(body, s.now())
	if err != nil {
		return Home{}, err
	}
	return s.Create(ctx, in)
}

// Create persists a validated home and assigns its identity.
func (s *Service) Create(ctx context.Context, in CreateInput) (Home, error) {
	home := Home{
		ID:                uuid.NewString(),
		SizeSqft:          in.SizeSqft,
		YearBuilt:         in.YearBuilt,
		HeatingType:       in.HeatingType,
		InsulationLevel:   in.InsulationLevel,
		WindowsType:       in.WindowsType,
		RoofType:          in.RoofType,
		NumOccupants:      in.NumOccupants,
		MonthlyEnergyBill: roundCents(in.MonthlyEnergyBill),
		CreatedAt:         s.now(),
	}
	if in.Location != nil {
		home.Location = strings.TrimSpace(*in.Location)
	}
	if err := s.Repo.Create(ctx, home); err != nil {
		return Home{}, err
	}
	metrics.IncHomesCreated()
	telemetry.Info("homes.created", map[string]any{
		"home_id":      home.ID,
		"heating_type": string(home.HeatingType),
		"year_built":   home.YearBuilt,
	})
	return home, nil
}

// Get returns a home by ID.
func (s *Service) Get(ctx context.Context, homeID string) (Home, error) {
	homeID = strings.TrimSpace(homeID)
	if homeID == "" {
		return Home{}, ErrNotFound
	}
	if _, err := uuid.Parse(homeID); err != nil {
		return Home{}, ErrNotFound
	}
	home, err := s.Repo.GetByID(ctx, homeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Home{}, ErrNotFound
		}
		return Home{}, err
	}
	return home, nil
}
