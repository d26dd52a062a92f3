// Package geo turns free-form location tokens into city names.
package geo

import "strings"

// airportCities maps IATA codes to the city they serve.
var airportCities = map[string]string{
	"SFO": "San Francisco",
	"LAX": "Los Angeles",
	"JFK": "New York",
	"LGA": "New York",
	"EWR": "Newark",
	"ORD": "Chicago",
	"DFW": "Dallas",
	"ATL": "Atlanta",
	"MIA": "Miami",
	"SEA": "Seattle",
	"DEN": "Denver",
	"LAS": "Las Vegas",
	"PHX": "Phoenix",
	"BOS": "Boston",
	"IAD": "Washington",
	"DCA": "Washington",
	"SJC": "San Jose",
	"OAK": "Oakland",
	"PDX": "Portland",
	"SAN": "San Diego",
}

// abbreviations maps common shorthand to city names.
var abbreviations = map[string]string{
	"NYC": "New York",
	"NY":  "New York",
	"SF":  "San Francisco",
	"LA":  "Los Angeles",
	"CHI": "Chicago",
	"DC":  "Washington",
	"LV":  "Las Vegas",
	"SD":  "San Diego",
}

// Resolver maps airport codes and abbreviations to canonical city names.
// The zero value uses the built-in tables.
type Resolver struct {
	extra map[string]string
}

// NewResolver returns a Resolver that also knows the given token → city pairs.
func NewResolver(extra map[string]string) *Resolver {
	r := &Resolver{extra: make(map[string]string, len(extra))}
	for k, v := range extra {
		r.extra[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	return r
}

// Resolve returns the city for token, or token itself (trimmed) when it is not
// recognized.
func (r *Resolver) Resolve(token string) string {
	token = strings.TrimSpace(token)
	key := strings.ToUpper(token)
	if r != nil {
		if city, ok := r.extra[key]; ok {
			return city
		}
	}
	if city, ok := airportCities[key]; ok {
		return city
	}
	if city, ok := abbreviations[key]; ok {
		return city
	}
	return token
}
