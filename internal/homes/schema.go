package homes

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/home_create.json
var createSchemaJSON []byte

var createSchema = mustCompile(createSchemaJSON)

func mustCompile(raw []byte) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("homes: compile schema: %v", err))
	}
	return schema
}

// CreateInput is a validated home payload.
type CreateInput struct {
	SizeSqft          int             `json:"size_sqft"`
	YearBuilt         int             `json:"year_built"`
	HeatingType       HeatingType     `json:"heating_type"`
	InsulationLevel   InsulationLevel `json:"insulation_level"`
	WindowsType       WindowsType     `json:"windows_type"`
	RoofType          RoofType        `json:"roof_type"`
	NumOccupants      int             `json:"num_occupants"`
	MonthlyEnergyBill float64         `json:"monthly_energy_bill"`
	Location          *string         `json:"location"`
}

// ParseCreate validates a raw JSON payload against the home schema and the
// rules that depend on the current time, and decodes it.
func ParseCreate(body []byte, now time.Time) (CreateInput, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return CreateInput{}, &ValidationError{Fields: []FieldError{{Field: "body", Issue: "request body is required"}}}
	}
	result, err := createSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return CreateInput{}, &ValidationError{Fields: []FieldError{{Field: "body", Issue: "invalid JSON"}}}
	}

	var fields []FieldError
	if !result.Valid() {
		for _, re := range result.Errors() {
			fields = append(fields, FieldError{Field: fieldName(re), Issue: re.Description()})
		}
	}

	var in CreateInput
	if len(fields) == 0 {
		if err := json.Unmarshal(body, &in); err != nil {
			return CreateInput{}, &ValidationError{Fields: []FieldError{{Field: "body", Issue: "invalid JSON"}}}
		}
		if in.YearBuilt > now.Year() {
			fields = append(fields, FieldError{
				Field: "year_built",
				Issue: fmt.Sprintf("Must be less than or equal to %d", now.Year()),
			})
		}
	}
	if len(fields) > 0 {
		sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return CreateInput{}, &ValidationError{Fields: fields}
	}

	in.MonthlyEnergyBill = roundCents(in.MonthlyEnergyBill)
	if in.Location != nil {
		loc := strings.TrimSpace(*in.Location)
		in.Location = &loc
	}
	return in, nil
}

func fieldName(re gojsonschema.ResultError) string {
	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok {
			return prop
		}
	}
	field := re.Field()
	if field == "(root)" {
		return "body"
	}
	return field
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
