package advice

import (
	_ "embed"
	"strconv"
	"strings"
	"time"

	"energy-advisor/internal/homes"
)

// PromptVersion identifies the embedded prompt template.
const PromptVersion = "energy_v1"

//go:embed prompts/energy_v1.txt
var promptEnergyV1 string

// BuildPrompt renders the retrofit prompt for a home. The home's age is
// computed against now so the output is deterministic for a fixed clock.
func BuildPrompt(home homes.Home, now time.Time) string {
	location := strings.TrimSpace(home.Location)
	if location == "" {
		location = "unspecified"
	}
	r := strings.NewReplacer(
		"{{SIZE_SQFT}}", strconv.Itoa(home.SizeSqft),
		"{{AGE}}", strconv.Itoa(now.Year()-home.YearBuilt),
		"{{YEAR_BUILT}}", strconv.Itoa(home.YearBuilt),
		"{{LOCATION}}", location,
		"{{HEATING}}", string(home.HeatingType),
		"{{INSULATION}}", string(home.InsulationLevel),
		"{{WINDOWS}}", string(home.WindowsType),
		"{{ROOF}}", string(home.RoofType),
		"{{OCCUPANTS}}", strconv.Itoa(home.NumOccupants),
		"{{MONTHLY_BILL}}", strconv.FormatFloat(home.MonthlyEnergyBill, 'f', -1, 64),
	)
	return r.Replace(promptEnergyV1)
}
