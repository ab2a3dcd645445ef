// File: services/itinerary/icons.go
package itinerary

import "strings"

// Icon identifiers understood by the map and itinerary views.
const (
	IconMeal     = "meal"
	IconCulture  = "culture"
	IconFlight   = "flight"
	IconLodging  = "lodging"
	IconOutdoors = "outdoors"
	IconExplore  = "explore"
	IconPin      = "pin"
)

type iconRule struct {
	keywords []string
	icon     string
}

// iconRules is an order-sensitive priority list; the first matching rule wins.
var iconRules = []iconRule{
	{[]string{"dining", "restaurant", "food", "cafe", "breakfast", "lunch", "dinner", "meal"}, IconMeal},
	{[]string{"museum", "gallery", "landmark", "culture", "cultural", "historic", "temple", "cathedral"}, IconCulture},
	{[]string{"transportation", "transport", "flight", "airport", "train", "transfer"}, IconFlight},
	{[]string{"hotel", "lodging", "accommodation", "check-in", "checkin", "hostel"}, IconLodging},
	{[]string{"park", "nature", "garden", "hike", "beach", "outdoor"}, IconOutdoors},
	{[]string{"tour", "explore", "sightseeing", "walk"}, IconExplore},
}

// IconFor derives an activity icon purely from keyword matching against its
// category and title.
func IconFor(category, title string) string {
	haystack := strings.ToLower(category + " " + title)
	for _, rule := range iconRules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return rule.icon
			}
		}
	}
	return IconPin
}
