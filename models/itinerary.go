package models

// TripSummary is the headline block of a canonical itinerary.
type TripSummary struct {
	Destination  string  `json:"destination"`
	StartDate    string  `json:"start_date,omitempty"`
	EndDate      string  `json:"end_date,omitempty"`
	DurationDays int     `json:"duration_days"`
	TotalBudget  float64 `json:"total_budget,omitempty"`
}

// ReviewInsights is aggregated review sentiment attached to an activity.
type ReviewInsights struct {
	Sentiment  string   `json:"sentiment,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Strengths  []string `json:"strengths,omitempty"`
	Weaknesses []string `json:"weaknesses,omitempty"`
}

// Activity is one itinerary entry. Details carries the raw per-activity blob
// so coordinate shapes survive re-normalization.
type Activity struct {
	ID             string          `json:"id"`
	Time           string          `json:"time,omitempty"`
	Title          string          `json:"title"`
	Category       string          `json:"category"`
	Icon           string          `json:"icon,omitempty"`
	Location       *GeoPoint       `json:"location,omitempty"`
	Details        map[string]any  `json:"details,omitempty"`
	ReviewInsights *ReviewInsights `json:"review_insights,omitempty"`
}

// DayPlan is one day of the trip. Activities is never nil.
type DayPlan struct {
	DayNumber  int        `json:"day_number"`
	Date       string     `json:"date,omitempty"`
	Activities []Activity `json:"activities"`
}

// CanonicalItinerary is the single itinerary shape every view renders. Days
// are contiguous starting at 1; len(Days) always matches the summary's
// duration when a summary is present.
type CanonicalItinerary struct {
	TripSummary *TripSummary `json:"trip_summary,omitempty"`
	Days        []DayPlan    `json:"days"`
}

// Day returns the plan for a 1-based day number, or nil when out of range.
func (it *CanonicalItinerary) Day(n int) *DayPlan {
	if n < 1 || n > len(it.Days) {
		return nil
	}
	return &it.Days[n-1]
}
