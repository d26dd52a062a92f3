// Package weather fetches current conditions from OpenWeatherMap and renders
// them as markdown snippets for flight answers.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/naviable/naviable-go/internal/config"
	"github.com/naviable/naviable-go/internal/logger"
)

// ErrNoAPIKey is returned by Fetch when no OpenWeatherMap key is configured.
var ErrNoAPIKey = errors.New("weather api key not set")

// Report holds the current conditions for one city.
type Report struct {
	City        string
	Description string
	Temp        float64
	FeelsLike   float64
	Humidity    int
	Wind        float64
}

// Markdown renders the report as a single bold-labelled line.
func (r Report) Markdown() string {
	return fmt.Sprintf("**Weather in %s**: %s, %.1f°C (feels like %.1f°C), Humidity: %d%%, Wind: %.1f m/s",
		r.City, r.Description, r.Temp, r.FeelsLike, r.Humidity, r.Wind)
}

// Unavailable is the snippet used when no report can be produced for city.
func Unavailable(city string) string {
	return fmt.Sprintf("Weather for %s: unavailable.", city)
}

// Client is a client for the OpenWeatherMap current weather API.
type Client struct {
	cfg    config.WeatherConfig
	client *http.Client
	cache  *cache.Cache
}

// NewClient creates a new Client. Reports are cached for cfg.CacheTTL.
func NewClient(cfg config.WeatherConfig) *Client {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  cache.New(ttl, 2*ttl),
	}
}

// Lookup returns a markdown snippet for city. Failures are logged and turned
// into the unavailable snippet; Lookup never returns an error.
func (c *Client) Lookup(ctx context.Context, city string) string {
	city = strings.TrimSpace(city)
	if city == "" {
		return Unavailable("unknown city")
	}
	report, err := c.Fetch(ctx, city)
	if err != nil {
		logger.L.Warn("weather lookup failed", "city", city, "error", err)
		return Unavailable(city)
	}
	return report.Markdown()
}

// Fetch retrieves the current conditions for city, using the cache when possible.
func (c *Client) Fetch(ctx context.Context, city string) (Report, error) {
	key := strings.ToLower(city)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(Report), nil
	}
	if c.cfg.APIKey == "" {
		return Report{}, ErrNoAPIKey
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", "metric")
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/weather?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Report{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Report{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Report{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var payload struct {
		Name    string `json:"name"`
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Report{}, err
	}
	if len(payload.Weather) == 0 {
		return Report{}, errors.New("weather response has no conditions")
	}

	report := Report{
		City:        titleCase(city),
		Description: capitalize(payload.Weather[0].Description),
		Temp:        payload.Main.Temp,
		FeelsLike:   payload.Main.FeelsLike,
		Humidity:    payload.Main.Humidity,
		Wind:        payload.Wind.Speed,
	}
	c.cache.SetDefault(key, report)
	return report, nil
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(strings.Join(strings.Fields(s), " "))
}
