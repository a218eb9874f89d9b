package catalog

import "strings"

// VibeProfile maps a vibe to the genres it pulls in and a BPM range.
type VibeProfile struct {
	Genres []string
	BPM    string
}

// VibeGenres drives the designer brief's genre scoring.
var VibeGenres = map[string]VibeProfile{
	"sophisticated": {Genres: []string{"jazz", "soul", "lounge", "deep house", "bossa nova"}, BPM: "90-115"},
	"trendy":        {Genres: []string{"nu-disco", "indie dance", "deep house", "future funk"}, BPM: "105-122"},
	"warm":          {Genres: []string{"acoustic", "soul", "folk", "soft pop"}, BPM: "80-100"},
	"relaxed":       {Genres: []string{"chillout", "acoustic", "downtempo", "bossa nova"}, BPM: "70-95"},
	"zen":           {Genres: []string{"ambient", "new age", "nature sounds", "minimal piano"}, BPM: "55-75"},
	"tropical":      {Genres: []string{"tropical house", "reggae", "latin", "balearic"}, BPM: "100-118"},
	"energetic":     {Genres: []string{"house", "funk", "disco", "pop"}, BPM: "115-128"},
	"romantic":      {Genres: []string{"soul", "r&b", "jazz ballads", "french pop"}, BPM: "70-95"},
	"elegant":       {Genres: []string{"classical crossover", "jazz", "piano", "string quartet"}, BPM: "65-90"},
	"rustic":        {Genres: []string{"folk", "americana", "blues", "country soul"}, BPM: "85-105"},
	"vibrant":       {Genres: []string{"afrobeat", "latin", "funk", "world groove"}, BPM: "108-124"},
	"minimal":       {Genres: []string{"minimal techno", "ambient", "electronica", "neo-classical"}, BPM: "80-110"},
}

// vibeKeywords feed the matcher's text scoring, +0.5 per hit.
var vibeKeywords = map[string][]string{
	"sophisticated": {"sophisticated", "elegant", "refined", "classy", "jazz", "cocktail"},
	"trendy":        {"trendy", "modern", "stylish", "contemporary", "fresh", "hip"},
	"warm":          {"warm", "cozy", "inviting", "comfort", "mellow"},
	"relaxed":       {"relaxed", "laid back", "easy", "calm", "chill", "gentle"},
	"zen":           {"zen", "meditative", "peaceful", "serene", "spa", "tranquil"},
	"tropical":      {"tropical", "island", "beach", "summer", "sunshine", "breeze"},
	"energetic":     {"energetic", "upbeat", "lively", "dance", "party", "groove"},
	"romantic":      {"romantic", "intimate", "candlelight", "dreamy", "soulful"},
	"elegant":       {"elegant", "graceful", "timeless", "classical", "piano"},
	"rustic":        {"rustic", "organic", "earthy", "acoustic", "handmade"},
	"vibrant":       {"vibrant", "colorful", "rhythmic", "world", "latin", "afro"},
	"minimal":       {"minimal", "clean", "subtle", "understated", "ambient"},
}

// VibeKeywords returns the keyword list for a vibe, nil when unknown.
func VibeKeywords(vibe string) []string {
	return vibeKeywords[strings.ToLower(strings.TrimSpace(vibe))]
}

// venueCategories maps a venue type to the catalog categories it matches.
var venueCategories = map[string][]string{
	"hotel-lobby": {"hotel", "lounge"},
	"hotel":       {"hotel", "lounge"},
	"resort":      {"hotel", "lounge"},
	"bar-lounge":  {"bar", "lounge"},
	"bar":         {"bar"},
	"rooftop-bar": {"bar", "lounge"},
	"restaurant":  {"restaurant", "lounge"},
	"fine-dining": {"restaurant", "lounge"},
	"cafe":        {"cafe"},
	"coffee-shop": {"cafe"},
	"spa":         {"spa"},
	"wellness":    {"spa"},
	"retail":      {"store"},
	"store":       {"store"},
	"boutique":    {"store"},
}

// VenueCategories returns the target catalog categories for a venue type.
func VenueCategories(venueType string) []string {
	return venueCategories[strings.ToLower(strings.TrimSpace(venueType))]
}

// venueGenres boosts genres typical for a venue type, +0.5 each in the
// designer brief.
var venueGenres = map[string][]string{
	"hotel-lobby": {"jazz", "lounge", "bossa nova", "piano"},
	"hotel":       {"jazz", "lounge", "bossa nova", "piano"},
	"resort":      {"tropical house", "balearic", "chillout"},
	"bar-lounge":  {"deep house", "nu-disco", "lounge", "funk"},
	"bar":         {"funk", "disco", "house"},
	"rooftop-bar": {"deep house", "balearic", "nu-disco"},
	"restaurant":  {"jazz", "soul", "bossa nova"},
	"fine-dining": {"jazz ballads", "classical crossover", "piano"},
	"cafe":        {"acoustic", "folk", "soft pop", "chillout"},
	"coffee-shop": {"acoustic", "folk", "soft pop"},
	"spa":         {"ambient", "new age", "nature sounds"},
	"wellness":    {"ambient", "new age", "minimal piano"},
	"retail":      {"indie dance", "pop", "electronica"},
	"store":       {"indie dance", "pop", "electronica"},
	"boutique":    {"nu-disco", "indie dance", "french pop"},
}

// VenueGenreBoost returns the booster genre list for a venue type.
func VenueGenreBoost(venueType string) []string {
	return venueGenres[strings.ToLower(strings.TrimSpace(venueType))]
}

// HumanizeVenueType turns a slug like "bar-lounge" into "bar lounge".
func HumanizeVenueType(venueType string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(venueType)), "-", " ")
}
