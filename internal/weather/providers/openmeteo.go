package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/city-weather/internal/weather"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs no API key but only serves locations with coordinates.
type OpenMeteoProvider struct {
	name    string
	units   weather.Units
	baseURL string
	iconURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, units weather.Units, iconTemplate string, backoff BackoffConfig) *OpenMeteoProvider {
	if iconTemplate == "" {
		iconTemplate = DefaultOpenWeatherIconURL
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		units:   units,
		baseURL: "https://api.open-meteo.com/v1/forecast",
		iconURL: iconTemplate,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuit: newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoPayload struct {
	// current_weather.time is local wall-clock time at this offset.
	UTCOffsetSeconds int `json:"utc_offset_seconds"`
	CurrentWeather *struct {
		Temperature float64 `json:"temperature"`
		WindSpeed   float64 `json:"windspeed"`
		Time        string  `json:"time"`
		WeatherCode int     `json:"weathercode"`
		IsDay       int     `json:"is_day"`
	} `json:"current_weather" validate:"required"`
	Daily struct {
		TempMax []float64 `json:"temperature_2m_max" validate:"required,min=1"`
		TempMin []float64 `json:"temperature_2m_min" validate:"required,min=1"`
	} `json:"daily"`
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Report, error) {
	if !loc.HasCoordinates() {
		return weather.Report{}, fmt.Errorf("%w: openmeteo requires latitude and longitude for %s", weather.ErrNotConfigured, loc.DisplayName)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", *loc.Lat))
		values.Set("longitude", fmt.Sprintf("%f", *loc.Lon))
		values.Set("current_weather", "true")
		values.Set("daily", "temperature_2m_max,temperature_2m_min")
		values.Set("forecast_days", "1")
		values.Set("timezone", "auto")
		if p.units == weather.UnitsImperial {
			values.Set("temperature_unit", "fahrenheit")
			values.Set("windspeed_unit", "mph")
		} else {
			values.Set("windspeed_unit", "ms")
		}

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Report{}, err
	}
	defer resp.Body.Close()

	var payload openMeteoPayload
	if err := decodePayload(resp.Body, &payload); err != nil {
		return weather.Report{}, err
	}

	zone := time.FixedZone("", payload.UTCOffsetSeconds)
	ts, err := time.ParseInLocation("2006-01-02T15:04", payload.CurrentWeather.Time, zone)
	if err != nil {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	cur := payload.CurrentWeather
	name, description, icon := mapOpenMeteoCondition(cur.WeatherCode, cur.IsDay == 1)

	// Open-Meteo has no Kelvin option; standard units are converted from Celsius.
	temp := func(v float64) float64 {
		if p.units == weather.UnitsStandard {
			return convertTemp(v, p.units)
		}
		return v
	}

	return weather.Report{
		ConditionName: name,
		Description:   description,
		IconToken:     icon,
		IconURL:       iconURL(p.iconURL, icon),
		LocationLabel: loc.DisplayName,
		CurrentTemp:   temp(cur.Temperature),
		MaxTemp:       temp(payload.Daily.TempMax[0]),
		MinTemp:       temp(payload.Daily.TempMin[0]),
		WindSpeed:     cur.WindSpeed,
		Units:         p.units,
		Provider:      p.name,
		ObservedAt:    ts,
	}, nil
}

// mapOpenMeteoCondition maps a WMO weather code to an OpenWeatherMap group
// name, a description and an icon token.
func mapOpenMeteoCondition(code int, isDay bool) (name, description, icon string) {
	suffix := "n"
	if isDay {
		suffix = "d"
	}
	switch {
	case code == 0:
		return "Clear", "clear sky", "01" + suffix
	case code == 1 || code == 2:
		return "Clouds", "partly cloudy", "02" + suffix
	case code == 3:
		return "Clouds", "overcast clouds", "04" + suffix
	case code == 45 || code == 48:
		return "Fog", "fog", "50" + suffix
	case code >= 51 && code <= 57:
		return "Drizzle", "drizzle", "09" + suffix
	case (code >= 61 && code <= 67) || (code >= 80 && code <= 82):
		return "Rain", "rain", "10" + suffix
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return "Snow", "snow", "13" + suffix
	case code >= 95:
		return "Thunderstorm", "thunderstorm", "11" + suffix
	default:
		return "Unknown", fmt.Sprintf("weather code %d", code), ""
	}
}
