package homes

import "time"

// HeatingType is the primary heating system of a home.
type HeatingType string

const (
	HeatingGas      HeatingType = "gas"
	HeatingElectric HeatingType = "electric"
	HeatingOil      HeatingType = "oil"
	HeatingHeatPump HeatingType = "heat_pump"
	HeatingSolar    HeatingType = "solar"
)

// InsulationLevel describes the current insulation quality.
type InsulationLevel string

const (
	InsulationMinimal   InsulationLevel = "minimal"
	InsulationModerate  InsulationLevel = "moderate"
	InsulationGood      InsulationLevel = "good"
	InsulationExcellent InsulationLevel = "excellent"
)

// WindowsType is the glazing of the windows.
type WindowsType string

const (
	WindowsSingle WindowsType = "single"
	WindowsDouble WindowsType = "double"
	WindowsTriple WindowsType = "triple"
)

// RoofType is the construction of the roof.
type RoofType string

const (
	RoofFlat    RoofType = "flat"
	RoofPitched RoofType = "pitched"
	RoofMetal   RoofType = "metal"
	RoofTile    RoofType = "tile"
)

// Home is a persisted home profile.
type Home struct {
	ID                string          `json:"id"`
	SizeSqft          int             `json:"size_sqft"`
	YearBuilt         int             `json:"year_built"`
	HeatingType       HeatingType     `json:"heating_type"`
	InsulationLevel   InsulationLevel `json:"insulation_level"`
	WindowsType       WindowsType     `json:"windows_type"`
	RoofType          RoofType        `json:"roof_type"`
	NumOccupants      int             `json:"num_occupants"`
	MonthlyEnergyBill float64         `json:"monthly_energy_bill"`
	Location          string          `json:"location,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         *time.Time      `json:"updated_at,omitempty"`
}
