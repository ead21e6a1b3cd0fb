package advice

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	maxTitleRunes    = 60
	titleCutRunes    = 57
	defaultTitle     = "Energy Recommendation"
	notAvailable     = "N/A"
	fallbackCategory = CategoryHabits
)

type categoryKeywords struct {
	category Category
	keywords []string
}

// Checked in order; the first category with a matching keyword wins.
var categoryTable = []categoryKeywords{
	{CategoryInsulation, []string{"insulation", "insulate", "attic", "wall", "ceiling", "floor", "r-value"}},
	{CategoryWindows, []string{"window", "door", "seal", "draft", "weatherstrip", "caulk", "glazing", "pane"}},
	{CategoryHeating, []string{"heating", "furnace", "boiler", "thermostat", "heat pump", "hvac", "radiator", "temperature"}},
	{CategoryAppliances, []string{"appliance", "refrigerator", "washer", "dryer", "led", "light", "bulb", "energy star"}},
	{CategoryRenewable, []string{"solar", "renewable", "panel", "wind", "geothermal", "photovoltaic"}},
	{CategoryHabits, []string{"habit", "behavior", "schedule", "adjust", "turn off", "unplug", "routine"}},
}

var validCategories = map[Category]struct{}{
	CategoryHeating:    {},
	CategoryInsulation: {},
	CategoryWindows:    {},
	CategoryAppliances: {},
	CategoryHabits:     {},
	CategoryRenewable:  {},
}

// Normalize maps a raw backend entry to a Recommendation. position is the
// 1-based index of the entry and provides the default id.
func Normalize(raw RawRecommendation, position int) (Recommendation, error) {
	rec := Recommendation{
		ID:               stringField(raw, "id"),
		Description:      firstNonEmpty(stringField(raw, "details"), stringField(raw, "description")),
		EstimatedCost:    firstNonEmpty(stringField(raw, "estimate_cost"), stringField(raw, "estimated_cost"), notAvailable),
		EstimatedSavings: firstNonEmpty(stringField(raw, "saving_cost"), stringField(raw, "estimated_savings"), notAvailable),
		Priority:         normalizePriority(stringField(raw, "priority")),
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("R%d", position)
	}

	if title := stringField(raw, "title"); title != "" {
		rec.Title = truncateTitle(title)
	} else {
		rec.Title = DeriveTitle(rec.Description)
	}

	if rawCategory := strings.ToLower(stringField(raw, "category")); rawCategory != "" {
		category := Category(rawCategory)
		if _, ok := validCategories[category]; !ok {
			return Recommendation{}, fmt.Errorf("%w: %q", ErrInvalidCategory, rawCategory)
		}
		rec.Category = category
	} else {
		rec.Category = InferCategory(rec.Title + " " + rec.Description)
	}
	return rec, nil
}

// DeriveTitle returns the first sentence of text, cut to the title limit. An
// empty first sentence yields the placeholder title.
func DeriveTitle(text string) string {
	first, _, _ := strings.Cut(text, ".")
	first = strings.TrimSpace(first)
	if first == "" {
		return defaultTitle
	}
	return truncateTitle(first)
}

func truncateTitle(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= maxTitleRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:titleCutRunes]) + "..."
}

// InferCategory classifies text by keyword, falling back to habits.
func InferCategory(text string) Category {
	lower := strings.ToLower(text)
	for _, entry := range categoryTable {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return fallbackCategory
}

func normalizePriority(v string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(v)))
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p
	default:
		return PriorityMedium
	}
}

// stringField renders scalar values as text. Numbers never use exponent form.
func stringField(raw RawRecommendation, key string) string {
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return v.String()
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
