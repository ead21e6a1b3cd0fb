package homes

import "time"

// HomeResponse is the API representation of a home.
type HomeResponse struct {
	ID                string     `json:"id"`
	SizeSqft          int        `json:"size_sqft"`
	YearBuilt         int        `json:"year_built"`
	HeatingType       string     `json:"heating_type"`
	InsulationLevel   string     `json:"insulation_level"`
	WindowsType       string     `json:"windows_type"`
	RoofType          string     `json:"roof_type"`
	NumOccupants      int        `json:"num_occupants"`
	MonthlyEnergyBill float64    `json:"monthly_energy_bill"`
	Location          *string    `json:"location"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at"`
}

// ToResponse maps a Home to its API shape.
func ToResponse(h Home) HomeResponse {
	resp := HomeResponse{
		ID:                h.ID,
		SizeSqft:          h.SizeSqft,
		YearBuilt:         h.YearBuilt,
		HeatingType:       string(h.HeatingType),
		InsulationLevel:   string(h.InsulationLevel),
		WindowsType:       string(h.WindowsType),
		RoofType:          string(h.RoofType),
		NumOccupants:      h.NumOccupants,
		MonthlyEnergyBill: h.MonthlyEnergyBill,
		CreatedAt:         h.CreatedAt,
		UpdatedAt:         h.UpdatedAt,
	}
	if h.Location != "" {
		loc := h.Location
		resp.Location = &loc
	}
	return resp
}
