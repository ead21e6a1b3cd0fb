package advice

// Priority ranks a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Category groups recommendations by the kind of upgrade.
type Category string

const (
	CategoryHeating    Category = "heating"
	CategoryInsulation Category = "insulation"
	CategoryWindows    Category = "windows"
	CategoryAppliances Category = "appliances"
	CategoryHabits     Category = "habits"
	CategoryRenewable  Category = "renewable"
)

// Recommendation is the canonical form sent to clients.
type Recommendation struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	EstimatedCost    string   `json:"estimated_cost"`
	EstimatedSavings string   `json:"estimated_savings"`
	Priority         Priority `json:"priority"`
	Category         Category `json:"category"`
}

// RawRecommendation is one untyped entry of the backend's recommendations array.
type RawRecommendation map[string]any

// EventType identifies a stream event.
type EventType string

const (
	EventConnected      EventType = "connected"
	EventRecommendation EventType = "recommendation"
	EventComplete       EventType = "complete"
	EventError          EventType = "error"
)

// Event is one message of an advice stream.
type Event struct {
	Type           EventType       `json:"type"`
	HomeID         string          `json:"home_id,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Error          string          `json:"error,omitempty"`
}
