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

// DefaultOpenWeatherIconURL is the image path the icon token is interpolated into.
const DefaultOpenWeatherIconURL = "https://openweathermap.org/img/w/{icon}.png"

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
// Locations are looked up by their OpenWeatherMap city id.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	units   weather.Units
	baseURL string
	iconURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, units weather.Units, iconTemplate string, backoff BackoffConfig) *OpenWeatherProvider {
	if iconTemplate == "" {
		iconTemplate = DefaultOpenWeatherIconURL
	}
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		units:   units,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		iconURL: iconTemplate,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

type openWeatherPayload struct {
	Dt      int64  `json:"dt"`
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main" validate:"required"`
		Description string `json:"description"`
		Icon        string `json:"icon" validate:"required"`
	} `json:"weather" validate:"required,min=1,dive"`
	Main *struct {
		Temp    float64 `json:"temp"`
		TempMax float64 `json:"temp_max"`
		TempMin float64 `json:"temp_min"`
	} `json:"main" validate:"required"`
	Wind *struct {
		Speed float64 `json:"speed"`
	} `json:"wind" validate:"required"`
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Report, error) {
	if p.apiKey == "" {
		return weather.Report{}, fmt.Errorf("%w: openweather api key is not configured", weather.ErrNotConfigured)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("id", loc.ExternalID)
		values.Set("appid", p.apiKey)
		values.Set("units", string(p.units))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Report{}, err
	}
	defer resp.Body.Close()

	var payload openWeatherPayload
	if err := decodePayload(resp.Body, &payload); err != nil {
		return weather.Report{}, err
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	label := payload.Name
	if label == "" {
		label = loc.DisplayName
	}

	cond := payload.Weather[0]
	return weather.Report{
		ConditionName: cond.Main,
		Description:   cond.Description,
		IconToken:     cond.Icon,
		IconURL:       iconURL(p.iconURL, cond.Icon),
		LocationLabel: label,
		CurrentTemp:   payload.Main.Temp,
		MaxTemp:       payload.Main.TempMax,
		MinTemp:       payload.Main.TempMin,
		WindSpeed:     payload.Wind.Speed,
		Units:         p.units,
		Provider:      p.name,
		ObservedAt:    ts,
	}, nil
}
