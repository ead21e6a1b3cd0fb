package homes

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new home.
func (r *PGRepo) Create(ctx context.Context, home Home) error {
	const query = `
INSERT INTO homes (
	id, size_sqft, year_built, heating_type, insulation_level, windows_type,
	roof_type, num_occupants, monthly_energy_bill, location, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.DB.ExecContext(ctx, query,
		home.ID,
		home.SizeSqft,
		home.YearBuilt,
		string(home.HeatingType),
		string(home.InsulationLevel),
		string(home.WindowsType),
		string(home.RoofType),
		home.NumOccupants,
		home.MonthlyEnergyBill,
		nullString(home.Location),
		home.CreatedAt,
	)
	return err
}

// GetByID returns a home by ID.
func (r *PGRepo) GetByID(ctx context.Context, homeID string) (Home, error) {
	const query = `
SELECT id, size_sqft, year_built, heating_type, insulation_level, windows_type,
       roof_type, num_occupants, monthly_energy_bill, location, created_at, updated_at
FROM homes
WHERE id = $1
LIMIT 1`
	var h Home
	var location sql.NullString
	var updatedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, homeID).Scan(
		&h.ID,
		&h.SizeSqft,
		&h.YearBuilt,
		&h.HeatingType,
		&h.InsulationLevel,
		&h.WindowsType,
		&h.RoofType,
		&h.NumOccupants,
		&h.MonthlyEnergyBill,
		&location,
		&h.CreatedAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Home{}, ErrNotFound
		}
		return Home{}, err
	}
	if location.Valid {
		h.Location = location.String
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		h.UpdatedAt = &t
	}
	return h, nil
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
