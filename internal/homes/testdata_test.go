package homes

import (
	"context"
	"time"
)

func sampleHome(id string) Home {
	return Home{
		ID:                id,
		SizeSqft:          1800,
		YearBuilt:         1978,
		HeatingType:       HeatingGas,
		InsulationLevel:   InsulationMinimal,
		WindowsType:       WindowsSingle,
		RoofType:          RoofPitched,
		NumOccupants:      4,
		MonthlyEnergyBill: 245.5,
		Location:          "Lyon",
		CreatedAt:         time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

type countingRepo struct {
	Repo
	gets int
}

func (r *countingRepo) GetByID(ctx context.Context, homeID string) (Home, error) {
	r.gets++
	return r.Repo.GetByID(ctx, homeID)
}
