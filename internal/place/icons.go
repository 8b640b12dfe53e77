package place

import "strings"

// icons maps a category family to its display glyph.
var icons = map[string]string{
	"restaurant":    "🍽️",
	"cafe":          "☕",
	"bar":           "🍺",
	"hotel":         "🏨",
	"park":          "🌳",
	"museum":        "🏛️",
	"pharmacy":      "💊",
	"hospital":      "🏥",
	"supermarket":   "🛒",
	"petrol":        "⛽",
	"cinema":        "🎬",
	"bank":          "🏦",
	"clothing":      "👗",
	"gym":           "🏋️",
	"school":        "🏫",
	"airport":       "✈️",
	"train_station": "🚉",
	"bus_station":   "🚌",
	"parking":       "🅿️",
	"beauty":        "💇",
	"default":       "📍",
}

// iconRules maps category substrings to an icon key, checked in order.
var iconRules = []struct {
	tokens []string
	key    string
}{
	{[]string{"restaurant", "food", "dining"}, "restaurant"},
	{[]string{"cafe", "coffee"}, "cafe"},
	{[]string{"bar", "pub"}, "bar"},
	{[]string{"hotel", "lodging", "accommodation"}, "hotel"},
	{[]string{"park", "playground"}, "park"},
	{[]string{"museum", "gallery", "tourism"}, "museum"},
	{[]string{"pharmacy", "chemist"}, "pharmacy"},
	{[]string{"hospital", "clinic"}, "hospital"},
	{[]string{"supermarket", "grocery", "market"}, "supermarket"},
	{[]string{"fuel", "petrol", "gas"}, "petrol"},
	{[]string{"cinema", "movie"}, "cinema"},
	{[]string{"bank", "atm"}, "bank"},
	{[]string{"clothing", "shop"}, "clothing"},
	{[]string{"gym", "fitness"}, "gym"},
	{[]string{"school", "college", "university"}, "school"},
	{[]string{"airport"}, "airport"},
	{[]string{"train", "rail"}, "train_station"},
	{[]string{"bus", "coach", "station"}, "bus_station"},
	{[]string{"parking"}, "parking"},
	{[]string{"beauty", "salon"}, "beauty"},
}

// Icon returns the display glyph for a feature based on its categories.
// Categories may arrive as a list or a delimited string; matching is by
// substring over normalized tokens, first rule wins. Unmatched categories
// fall back to the default pin.
func Icon(f Feature) string {
	for _, cat := range categoryTokens(f) {
		for _, rule := range iconRules {
			for _, token := range rule.tokens {
				if strings.Contains(cat, token) {
					return icons[rule.key]
				}
			}
		}
	}
	return icons["default"]
}

func categoryTokens(f Feature) []string {
	if f.Properties == nil {
		return nil
	}
	if len(f.Properties.Categories) > 0 {
		out := make([]string, 0, len(f.Properties.Categories))
		for _, c := range f.Properties.Categories {
			c = strings.ToLower(strings.TrimSpace(c))
			if c != "" {
				out = append(out, c)
			}
		}
		return out
	}
	var out []string
	for _, c := range strings.FieldsFunc(f.Properties.Category, func(r rune) bool {
		return r == ',' || r == ' ' || r == '|' || r == '\t'
	}) {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
