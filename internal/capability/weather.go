package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"factotum/internal/tool"
)

const (
	geocodeURL      = "https://geocoding-api.open-meteo.com/v1/search"
	forecastURL     = "https://api.open-meteo.com/v1/forecast"
	weatherTimeout  = 15 * time.Second
	maxForecastDays = 7
)

// NewWeather builds the weather agent backed by the Open-Meteo public API
// (no key required).
func NewWeather() *Agent {
	w := &weatherClient{client: &http.Client{Timeout: weatherTimeout}}

	current := tool.New("weather_current",
		"Get the current weather for a city: temperature, wind, and conditions.",
		tool.NewSchema(
			tool.Field{Name: "city", Type: tool.TypeString, Description: "City name, e.g. 'Hanoi' or 'San Francisco'", Required: true},
		),
		w.current,
	)

	forecast := tool.New("weather_forecast",
		"Get a daily min/max temperature forecast for a city for the next few days.",
		tool.NewSchema(
			tool.Field{Name: "city", Type: tool.TypeString, Description: "City name", Required: true},
			tool.Field{Name: "days", Type: tool.TypeInteger, Description: "Number of days (1-7, default 3)"},
		),
		w.forecast,
	)

	return New("weather",
		"Current conditions and short-range forecasts for any city.",
		"When the user asks about weather, resolve the city with the weather tools instead of guessing. Report temperatures with units.",
		current, forecast,
	)
}

type weatherClient struct {
	client *http.Client
}

type cityArgs struct {
	City string `json:"city"`
}

type forecastArgs struct {
	City string `json:"city"`
	Days int    `json:"days"`
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		Time    []string  `json:"time"`
		TempMax []float64 `json:"temperature_2m_max"`
		TempMin []float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

func (w *weatherClient) current(ctx context.Context, args cityArgs) (string, error) {
	place, lat, lon, err := w.geocode(ctx, args.City)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("current", "temperature_2m,wind_speed_10m,weather_code")

	var fc forecastResponse
	if err := w.getJSON(ctx, forecastURL+"?"+q.Encode(), &fc); err != nil {
		return "", fmt.Errorf("weather lookup for %s: %w", place, err)
	}

	return fmt.Sprintf("Current weather in %s: %s, %.1f°C, wind %.1f km/h",
		place, describeWeatherCode(fc.Current.WeatherCode), fc.Current.Temperature, fc.Current.WindSpeed), nil
}

func (w *weatherClient) forecast(ctx context.Context, args forecastArgs) (string, error) {
	days := args.Days
	if days <= 0 {
		days = 3
	}
	if days > maxForecastDays {
		days = maxForecastDays
	}

	place, lat, lon, err := w.geocode(ctx, args.City)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", lat))
	q.Set("longitude", fmt.Sprintf("%.4f", lon))
	q.Set("daily", "temperature_2m_max,temperature_2m_min")
	q.Set("forecast_days", fmt.Sprintf("%d", days))

	var fc forecastResponse
	if err := w.getJSON(ctx, forecastURL+"?"+q.Encode(), &fc); err != nil {
		return "", fmt.Errorf("forecast lookup for %s: %w", place, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Forecast for %s:\n", place)
	for i := range fc.Daily.Time {
		if i >= len(fc.Daily.TempMax) || i >= len(fc.Daily.TempMin) {
			break
		}
		fmt.Fprintf(&b, "- %s: %.1f°C to %.1f°C\n", fc.Daily.Time[i], fc.Daily.TempMin[i], fc.Daily.TempMax[i])
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (w *weatherClient) geocode(ctx context.Context, city string) (string, float64, float64, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", 0, 0, fmt.Errorf("city must not be empty")
	}

	q := url.Values{}
	q.Set("name", city)
	q.Set("count", "1")

	var geo geocodeResponse
	if err := w.getJSON(ctx, geocodeURL+"?"+q.Encode(), &geo); err != nil {
		return "", 0, 0, fmt.Errorf("geocode %q: %w", city, err)
	}
	if len(geo.Results) == 0 {
		return "", 0, 0, fmt.Errorf("no location found for %q", city)
	}

	r := geo.Results[0]
	place := r.Name
	if r.Country != "" {
		place += ", " + r.Country
	}
	return place, r.Latitude, r.Longitude, nil
}

func (w *weatherClient) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// describeWeatherCode maps WMO weather codes to short phrases.
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "fog"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorm"
	}
}
