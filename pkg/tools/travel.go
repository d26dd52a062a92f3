package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/naviable/naviable-go/internal/logger"
)

// WeatherLookup renders current conditions for a city as markdown.
type WeatherLookup interface {
	Lookup(ctx context.Context, city string) string
}

// CityResolver maps airport codes and abbreviations to city names.
type CityResolver interface {
	Resolve(token string) string
}

// WeatherTool lets an agent fetch current weather for a city.
type WeatherTool struct {
	weather WeatherLookup
	cities  CityResolver
}

// NewWeatherTool creates a new WeatherTool
func NewWeatherTool(weather WeatherLookup, cities CityResolver) *WeatherTool {
	return &WeatherTool{weather: weather, cities: cities}
}

// Name returns the name of the tool
func (t *WeatherTool) Name() string { return "get_weather" }

// Description returns the description of the tool
func (t *WeatherTool) Description() string {
	return "Returns the current weather for a city as markdown. Accepts city names or airport codes."
}

// Schema returns the argument schema
func (t *WeatherTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"city":{"type":"string","description":"City name or airport code"}},"required":["city"]}`)
}

// Run runs the tool
func (t *WeatherTool) Run(ctx context.Context, args map[string]any) (string, error) {
	city, err := stringArg(args, "city")
	if err != nil {
		return "", err
	}
	city = t.cities.Resolve(city)
	logger.L.Debug("weather tool invoked", "city", city)
	return t.weather.Lookup(ctx, city), nil
}

// CityTool converts airport codes and abbreviations into full city names.
type CityTool struct {
	cities CityResolver
}

// NewCityTool creates a new CityTool
func NewCityTool(cities CityResolver) *CityTool {
	return &CityTool{cities: cities}
}

// Name returns the name of the tool
func (t *CityTool) Name() string { return "resolve_city" }

// Description returns the description of the tool
func (t *CityTool) Description() string {
	return "Converts an airport code, abbreviation or partial city name into the full city name."
}

// Schema returns the argument schema
func (t *CityTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"location":{"type":"string"}},"required":["location"]}`)
}

// Run runs the tool
func (t *CityTool) Run(_ context.Context, args map[string]any) (string, error) {
	location, err := stringArg(args, "location")
	if err != nil {
		return "", err
	}
	return t.cities.Resolve(location), nil
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", errors.New("missing required argument: " + key)
	}
	return v, nil
}
