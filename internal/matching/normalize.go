package matching

import "strings"

// countryAliases maps common spellings and ISO codes onto one canonical
// form so that checkout addresses and IP geolocation agree.
var countryAliases = map[string]string{
	"brasil": "brazil",
	"br":     "brazil",
	"us":     "united states",
	"usa":    "united states",
	"pt":     "portugal",
}

// normalizeCountry lowercases, trims and resolves known aliases.
func normalizeCountry(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if canonical, ok := countryAliases[s]; ok {
		return canonical
	}
	return s
}

// stateAliases maps two-letter state abbreviations onto full names.
// Checkout forms report the abbreviation while IP geolocation returns the
// full region name, so both sides are resolved before comparison.
var stateAliases = map[string]string{
	"sp": "sao paulo",
	"rj": "rio de janeiro",
	"mg": "minas gerais",
	"pr": "parana",
	"rs": "rio grande do sul",
	"sc": "santa catarina",
	"ba": "bahia",
	"pe": "pernambuco",
	"ce": "ceara",
	"go": "goias",
	"df": "distrito federal",
}

// normalizeRegion lowercases, trims and resolves known state abbreviations.
func normalizeRegion(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if full, ok := stateAliases[s]; ok {
		return full
	}
	return s
}

// regionsMatch reports whether two state/region names refer to the same
// place. After alias resolution, containment in either direction counts
// ("sao paulo" vs "Sao Paulo (SP)" region strings from geo providers).
func regionsMatch(a, b string) bool {
	a, b = normalizeRegion(a), normalizeRegion(b)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// citiesMatch is a case-insensitive exact comparison.
func citiesMatch(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return a == b
}
