package agent

import (
	"context"

	"github.com/naviable/naviable-go/internal/geo"
	"github.com/naviable/naviable-go/internal/logger"
)

// WeatherLookup renders current conditions for a city as markdown.
type WeatherLookup interface {
	Lookup(ctx context.Context, city string) string
}

// CityResolver maps location tokens to city names.
type CityResolver interface {
	Resolve(token string) string
}

// WithWeather attaches weather for both ends of the route found in the latest
// user message. Degraded results and messages without a recognizable route get
// no weather.
func WithWeather(a Agent, cities CityResolver, weather WeatherLookup) Agent {
	return Func(func(ctx context.Context, req Request) (Result, error) {
		res, err := a.Invoke(ctx, req)
		if err != nil || res.Degraded {
			return res, err
		}

		msg, ok := req.Transcript.LastUser()
		if !ok {
			return res, nil
		}
		route, ok := geo.ExtractRoute(msg.Content)
		if !ok {
			return res, nil
		}
		from, to := cities.Resolve(route.From), cities.Resolve(route.To)
		logger.L.Info("resolved route for weather", "from", route.From, "fromCity", from, "to", route.To, "toCity", to)
		res.Weather = weather.Lookup(ctx, from) + "\n\n" + weather.Lookup(ctx, to)
		return res, nil
	})
}
