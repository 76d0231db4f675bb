package router

import (
	"fmt"
	"strings"

	"github.com/hupe1980/recallmesh/core"
)

// Category is a routing label.
type Category string

const (
	TouristAttraction        Category = "tourist_attraction"
	ItineraryPlanning        Category = "itinerary_planning"
	RestaurantRecommendation Category = "restaurant_recommendations"
	ExploringTravelIdeas     Category = "exploring_travel_ideas"
	Others                   Category = "others"
)

// Categories returns every known category in routing-prompt order.
func Categories() []Category {
	return []Category{TouristAttraction, ItineraryPlanning, RestaurantRecommendation, ExploringTravelIdeas, Others}
}

// DefaultPrompts maps each category to its responder system prompt.
var DefaultPrompts = map[Category]string{
	TouristAttraction:        "You are an expert in finding tourist attractions.",
	ItineraryPlanning:        "You are an expert in travel itinerary planning.",
	RestaurantRecommendation: "You are an expert in restaurant recommendations.",
	ExploringTravelIdeas:     "You are an expert in recommending travel ideas.",
	Others:                   "You are a friendly and helpful chatbot.",
}

// ParseCategory normalizes a classifier label. Surrounding quotes,
// punctuation and case are ignored.
func ParseCategory(label string) (Category, error) {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(label), "\"'`.!,;: \n"))
	s = strings.ReplaceAll(s, " ", "_")

	for _, c := range Categories() {
		if string(c) == s {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: unknown service type %q", core.ErrUnknownCapability, label)
}

// RoutePrompt is the classifier system instruction.
func RoutePrompt() string {
	cats := Categories()
	quoted := make([]string, 0, len(cats)-1)

	for _, c := range cats[:len(cats)-1] {
		quoted = append(quoted, "'"+string(c)+"'")
	}

	return fmt.Sprintf(
		"Route the user's message to either %s, or '%s' if it doesn't fit into the previous categories. "+
			"Reply with the category label only.",
		strings.Join(quoted, ", "), Others,
	)
}
