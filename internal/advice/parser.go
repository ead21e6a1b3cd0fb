package advice

import (
	"encoding/json"
	"regexp"
	"strings"

	"energy-advisor/internal/shared/telemetry"
	"energy-advisor/internal/shared/util"
)

const parsePreviewRunes = 200

// Matches an opening or closing code fence and an optional language tag.
var fencePattern = regexp.MustCompile("```[A-Za-z0-9_-]*\\s*")

// ParseRecommendations extracts the recommendations array from backend output.
// Malformed output yields an empty list rather than an error.
func ParseRecommendations(text string) []RawRecommendation {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(text, ""))

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		telemetry.Warn("advice.parse.invalid_json", map[string]any{
			"error":   err.Error(),
			"preview": util.Preview(cleaned, parsePreviewRunes),
		})
		return nil
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		telemetry.Warn("advice.parse.not_object", map[string]any{
			"preview": util.Preview(cleaned, parsePreviewRunes),
		})
		return nil
	}
	list, ok := obj["recommendations"].([]any)
	if !ok {
		telemetry.Warn("advice.parse.missing_recommendations", map[string]any{
			"preview": util.Preview(cleaned, parsePreviewRunes),
		})
		return nil
	}

	out := make([]RawRecommendation, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			telemetry.Warn("advice.parse.drop_entry", map[string]any{
				"index": i,
			})
			continue
		}
		out = append(out, RawRecommendation(m))
	}
	return out
}
