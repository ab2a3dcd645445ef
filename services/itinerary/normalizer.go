// File: services/itinerary/normalizer.go
package itinerary

import (
	"encoding/json"
	"regexp"
	"sort"

	"tripsync/models"
	"tripsync/services/geo"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Normalizer converts whatever itinerary payload the backend happened to send
// into the canonical model. It is a total function: every input, including
// garbage, yields a valid itinerary, so consumers never handle parse errors.
//
// Accepted inputs: a canonical object, a JSON-encoded string, an object nested
// under itinerary/data.itinerary/response (the latter possibly a JSON string
// itself), and a daily_itinerary that is either a keyed map ("day_3", "Day 3",
// "3") or a plain array.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer returns a Normalizer. A nil logger disables logging.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize builds a CanonicalItinerary from an arbitrary payload. It never
// returns nil and never panics; re-normalizing its own output reproduces it.
func (n *Normalizer) Normalize(input any) *models.CanonicalItinerary {
	raw, ok := toJSON(input)
	if !ok {
		n.logger.Debug("unparseable itinerary payload, using default")
		return n.defaultItinerary()
	}

	doc, ok := unwrap(gjson.ParseBytes(raw), 0)
	if !ok {
		n.logger.Debug("no itinerary structure found, using default")
		return n.defaultItinerary()
	}

	return n.build(doc)
}

// toJSON coerces the input to raw JSON bytes.
func toJSON(input any) ([]byte, bool) {
	switch v := input.(type) {
	case nil:
		return nil, false
	case string:
		if !gjson.Valid(v) {
			return nil, false
		}
		return []byte(v), true
	case []byte:
		if !gjson.ValidBytes(v) {
			return nil, false
		}
		return v, true
	case json.RawMessage:
		if !gjson.ValidBytes(v) {
			return nil, false
		}
		return v, true
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		return data, true
	}
}

// unwrap digs through known nesting shapes until it finds something that looks
// like an itinerary. Probe order: direct shape, .itinerary, .data.itinerary,
// .response (possibly a JSON string, unwrapped recursively). First match wins.
func unwrap(doc gjson.Result, depth int) (gjson.Result, bool) {
	if depth > 3 {
		return doc, false
	}

	// A nested value may itself be a JSON-encoded string.
	if doc.Type == gjson.String {
		inner := doc.String()
		if !gjson.Valid(inner) {
			return doc, false
		}
		return unwrap(gjson.Parse(inner), depth+1)
	}

	if !doc.IsObject() {
		return doc, false
	}

	if doc.Get("trip_summary").Exists() || doc.Get("daily_itinerary").Exists() || doc.Get("days").Exists() {
		return doc, true
	}
	if it := doc.Get("itinerary"); it.Exists() {
		return unwrap(it, depth+1)
	}
	if it := doc.Get("data.itinerary"); it.Exists() {
		return unwrap(it, depth+1)
	}
	if r := doc.Get("response"); r.Exists() {
		return unwrap(r, depth+1)
	}
	return doc, false
}

type dayEntry struct {
	num        int
	date       string
	activities []models.Activity
}

func (n *Normalizer) build(doc gjson.Result) *models.CanonicalItinerary {
	summary := parseSummary(doc.Get("trip_summary"))
	entries := collectDayEntries(doc)

	byNum := make(map[int]dayEntry, len(entries))
	for _, e := range entries {
		if existing, ok := byNum[e.num]; ok {
			existing.activities = append(existing.activities, e.activities...)
			byNum[e.num] = existing
			continue
		}
		byNum[e.num] = e
	}

	// Union of summary-implied and explicitly keyed days: the day count is
	// whichever source is richest, counting distinct day numbers only, and
	// gaps are synthesized as empty days so day tabs never index out of range.
	dayCount := 0
	if summary != nil {
		dayCount = summary.DurationDays
	}
	for num := range byNum {
		if num > dayCount {
			dayCount = num
		}
	}
	if dayCount < len(byNum) {
		dayCount = len(byNum)
	}

	if dayCount == 0 {
		return n.defaultItinerary()
	}

	days := make([]models.DayPlan, 0, dayCount)
	for i := 1; i <= dayCount; i++ {
		day := models.DayPlan{DayNumber: i, Activities: []models.Activity{}}
		if e, ok := byNum[i]; ok {
			day.Date = e.date
			day.Activities = e.activities
		}
		days = append(days, day)
	}

	if summary != nil {
		// Keep the summary consistent with the synthesized day range.
		summary.DurationDays = dayCount
	}

	return &models.CanonicalItinerary{TripSummary: summary, Days: days}
}

func parseSummary(res gjson.Result) *models.TripSummary {
	if !res.IsObject() {
		return nil
	}

	s := &models.TripSummary{
		Destination:  res.Get("destination").String(),
		StartDate:    res.Get("start_date").String(),
		EndDate:      res.Get("end_date").String(),
		DurationDays: int(res.Get("duration_days").Int()),
		TotalBudget:  res.Get("total_budget").Float(),
	}
	if s.TotalBudget == 0 {
		s.TotalBudget = res.Get("budget").Float()
	}
	if s.DurationDays < 0 {
		s.DurationDays = 0
	}
	if s.TotalBudget < 0 {
		s.TotalBudget = 0
	}
	return s
}

// collectDayEntries gathers day plans from either the backend's
// daily_itinerary (keyed map or array) or canonical days output.
func collectDayEntries(doc gjson.Result) []dayEntry {
	source := doc.Get("daily_itinerary")
	if !source.Exists() {
		source = doc.Get("days")
	}
	if !source.Exists() {
		return nil
	}

	var entries []dayEntry
	position := 0
	source.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			position++
			return true
		}

		num := 0
		if source.IsArray() {
			num = int(value.Get("day_number").Int())
			if num < 1 {
				num = dayNumberFromKey(value.Get("day").String(), position)
			}
		} else {
			num = dayNumberFromKey(key.String(), position)
		}

		entries = append(entries, dayEntry{
			num:        num,
			date:       value.Get("date").String(),
			activities: coerceActivities(value.Get("activities")),
		})
		position++
		return true
	})

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].num < entries[j].num })
	return entries
}

var trailingInt = regexp.MustCompile(`(\d+)\s*$`)

// dayNumberFromKey extracts a day number from textual keys like "day_3",
// "Day 3" or "3", falling back to the positional index when no digit is found.
func dayNumberFromKey(key string, position int) int {
	if m := trailingInt.FindStringSubmatch(key); m != nil {
		n := 0
		for _, c := range m[1] {
			n = n*10 + int(c-'0')
		}
		if n >= 1 {
			return n
		}
	}
	return position + 1
}

// coerceActivities flattens an activities value to an ordered slice whether
// the source used an array or an object-of-objects. Input order is preserved,
// never re-sorted.
func coerceActivities(res gjson.Result) []models.Activity {
	activities := []models.Activity{}
	if !res.Exists() {
		return activities
	}
	res.ForEach(func(_, value gjson.Result) bool {
		if value.IsObject() {
			activities = append(activities, parseActivity(value))
		}
		return true
	})
	return activities
}

func parseActivity(res gjson.Result) models.Activity {
	id := res.Get("id").String()
	if id == "" {
		// Generated once so later references (e.g. a map highlight) do not
		// recompute per render.
		id = uuid.NewString()
	}

	title := res.Get("title").String()
	if title == "" {
		title = res.Get("name").String()
	}
	if title == "" {
		title = res.Get("activity").String()
	}

	category := res.Get("category").String()
	if category == "" {
		category = res.Get("type").String()
	}
	if category == "" {
		category = "Other"
	}

	activity := models.Activity{
		ID:       id,
		Time:     res.Get("time").String(),
		Title:    title,
		Category: category,
		Icon:     IconFor(category, title),
		Location: geo.CoerceLocation(res),
	}

	if details := res.Get("details"); details.IsObject() {
		var m map[string]any
		if err := json.Unmarshal([]byte(details.Raw), &m); err == nil {
			activity.Details = m
		}
	}

	if insights := res.Get("review_insights"); insights.IsObject() {
		activity.ReviewInsights = parseReviewInsights(insights)
	}

	return activity
}

func parseReviewInsights(res gjson.Result) *models.ReviewInsights {
	ri := &models.ReviewInsights{
		Sentiment: res.Get("sentiment").String(),
		Summary:   res.Get("summary").String(),
	}
	for _, s := range res.Get("strengths").Array() {
		ri.Strengths = append(ri.Strengths, s.String())
	}
	for _, w := range res.Get("weaknesses").Array() {
		ri.Weaknesses = append(ri.Weaknesses, w.String())
	}
	return ri
}

// defaultItinerary is the minimal single-day plan emitted when no usable
// structure is found anywhere. Returning it instead of an error keeps every
// consumer free of parse-failure handling.
func (n *Normalizer) defaultItinerary() *models.CanonicalItinerary {
	return &models.CanonicalItinerary{
		TripSummary: &models.TripSummary{
			Destination:  "Your Trip",
			DurationDays: 1,
		},
		Days: []models.DayPlan{
			{
				DayNumber: 1,
				Activities: []models.Activity{
					{
						ID:       uuid.NewString(),
						Title:    "Itinerary coming soon",
						Category: "Other",
						Icon:     IconPin,
					},
				},
			},
		},
	}
}
