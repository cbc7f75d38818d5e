package places

import (
	"strings"
	"unicode"

	"snapybara-server/models"
)

// categoryPriority decides between several matching categories: earlier wins.
var categoryPriority = []models.Category{
	models.CategoryMountain,
	models.CategoryForest,
	models.CategoryWaterfall,
	models.CategoryBeach,
	models.CategoryReligious,
	models.CategoryHistorical,
	models.CategoryArchitecture,
	models.CategoryLandscape,
	models.CategoryUrban,
	models.CategoryOther,
}

func priority(c models.Category) int {
	for i, p := range categoryPriority {
		if p == c {
			return i
		}
	}
	return len(categoryPriority)
}

var typeCategories = map[string]models.Category{
	"mountain":    models.CategoryMountain,
	"hiking_area": models.CategoryMountain,
	"ski_resort":  models.CategoryMountain,

	"park":          models.CategoryForest,
	"national_park": models.CategoryForest,
	"campground":    models.CategoryForest,
	"forest":        models.CategoryForest,

	"waterfall": models.CategoryWaterfall,

	"beach": models.CategoryBeach,

	"church":           models.CategoryReligious,
	"mosque":           models.CategoryReligious,
	"synagogue":        models.CategoryReligious,
	"hindu_temple":     models.CategoryReligious,
	"place_of_worship": models.CategoryReligious,

	"museum":              models.CategoryHistorical,
	"historical_landmark": models.CategoryHistorical,
	"monument":            models.CategoryHistorical,
	"castle":              models.CategoryHistorical,

	"city_hall":   models.CategoryArchitecture,
	"courthouse":  models.CategoryArchitecture,
	"library":     models.CategoryArchitecture,
	"stadium":     models.CategoryArchitecture,
	"bridge":      models.CategoryArchitecture,
	"art_gallery": models.CategoryArchitecture,

	"tourist_attraction": models.CategoryLandscape,
	"natural_feature":    models.CategoryLandscape,
	"scenic_point":       models.CategoryLandscape,
	"viewpoint":          models.CategoryLandscape,

	"locality":        models.CategoryUrban,
	"neighborhood":    models.CategoryUrban,
	"sublocality":     models.CategoryUrban,
	"town_square":     models.CategoryUrban,
	"plaza":           models.CategoryUrban,
	"amusement_park":  models.CategoryUrban,
	"zoo":             models.CategoryUrban,
	"aquarium":        models.CategoryUrban,
	"colloquial_area": models.CategoryUrban,
}

// nameKeywords compensate for generic provider types such as "establishment".
// They are checked in category priority order.
var nameKeywords = []struct {
	category models.Category
	words    []string
}{
	{models.CategoryMountain, []string{"mont", "montagne", "mountain", "pic", "peak", "sommet", "col", "puy", "aiguille"}},
	{models.CategoryForest, []string{"forêt", "foret", "forest", "bois", "woods"}},
	{models.CategoryWaterfall, []string{"cascade", "cascades", "waterfall", "chute", "chutes", "lac", "lake"}},
	{models.CategoryBeach, []string{"plage", "beach", "crique", "calanque", "anse"}},
	{models.CategoryReligious, []string{"église", "eglise", "church", "cathédrale", "cathedrale", "cathedral", "chapelle", "chapel", "abbaye", "abbey", "basilique", "basilica", "mosquée", "mosque", "temple", "synagogue"}},
	{models.CategoryHistorical, []string{"château", "chateau", "castle", "fort", "forteresse", "ruines", "ruins", "citadelle", "remparts"}},
}

// genericTypes say nothing about the place and are ignored by the filter.
var genericTypes = map[string]bool{
	"point_of_interest": true,
	"establishment":     true,
	"premise":           true,
	"geocode":           true,
}

// excludedTypes are commerce and services a POI explorer never shows unless
// the place also carries a natural or touristic signal.
var excludedTypes = map[string]bool{
	"accounting": true, "airport": true, "atm": true, "bakery": true, "bank": true,
	"bar": true, "beauty_salon": true, "bus_station": true, "cafe": true, "car_dealer": true,
	"car_rental": true, "car_repair": true, "car_wash": true, "clothing_store": true,
	"convenience_store": true, "dentist": true, "department_store": true, "doctor": true,
	"electrician": true, "electronics_store": true, "furniture_store": true, "gas_station": true,
	"grocery_or_supermarket": true, "gym": true, "hair_care": true, "hardware_store": true,
	"home_goods_store": true, "hospital": true, "insurance_agency": true, "laundry": true,
	"lawyer": true, "locksmith": true, "lodging": true, "meal_delivery": true,
	"meal_takeaway": true, "moving_company": true, "painter": true, "parking": true,
	"pharmacy": true, "plumber": true, "police": true, "post_office": true,
	"real_estate_agency": true, "restaurant": true, "roofing_contractor": true,
	"school": true, "shoe_store": true, "shopping_mall": true, "storage": true, "store": true,
	"subway_station": true, "supermarket": true, "taxi_stand": true, "train_station": true,
	"transit_station": true, "travel_agency": true, "veterinary_care": true,
}

func nameWords(name string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		words[w] = true
	}
	return words
}

// weakKeywords are short words that also appear in ordinary street and
// business names ("Banque du Fort", "Pharmacie du Mont"). They still pick a
// category but never rescue an excluded place on their own.
var weakKeywords = map[string]bool{
	"mont": true, "pic": true, "col": true, "puy": true,
	"fort": true, "anse": true, "bois": true,
}

func categoryFromName(name string, strongOnly bool) (models.Category, bool) {
	words := nameWords(name)
	for _, kw := range nameKeywords {
		for _, w := range kw.words {
			if strongOnly && weakKeywords[w] {
				continue
			}
			if words[w] {
				return kw.category, true
			}
		}
	}
	return "", false
}

func categoryFromTypes(types []string) (models.Category, bool) {
	best, found := models.CategoryOther, false
	for _, t := range types {
		c, ok := typeCategories[t]
		if !ok {
			continue
		}
		if !found || priority(c) < priority(best) {
			best, found = c, true
		}
	}
	return best, found
}

// MapCategory maps provider types to the local enum, letting a name keyword
// override the type-based choice.
func MapCategory(name string, types []string) models.Category {
	if c, ok := categoryFromName(name, false); ok {
		return c
	}
	c, _ := categoryFromTypes(types)
	return c
}

// IsRelevant drops places whose every meaningful type is excluded, unless the
// name or a type signals a natural or touristic place.
func IsRelevant(name string, types []string) bool {
	if _, ok := categoryFromTypes(types); ok {
		return true
	}
	if _, ok := categoryFromName(name, true); ok {
		return true
	}

	meaningful := 0
	for _, t := range types {
		if genericTypes[t] {
			continue
		}
		meaningful++
		if !excludedTypes[t] {
			return true
		}
	}
	return meaningful == 0
}

// searchKeyword is the provider keyword used to narrow a nearby search to a category.
func searchKeyword(c models.Category) string {
	switch c {
	case models.CategoryMountain:
		return "montagne"
	case models.CategoryForest:
		return "forêt"
	case models.CategoryWaterfall:
		return "cascade"
	case models.CategoryBeach:
		return "plage"
	case models.CategoryReligious:
		return "église"
	case models.CategoryHistorical:
		return "monument historique"
	case models.CategoryArchitecture:
		return "architecture"
	case models.CategoryLandscape:
		return "point de vue"
	case models.CategoryUrban:
		return "place"
	default:
		return ""
	}
}
