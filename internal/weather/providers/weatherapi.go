package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/city-weather/internal/common"
	"github.com/i474232898/city-weather/internal/weather"
)

// WeatherAPIProvider implements the weather.Provider interface for WeatherAPI.com.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	units   weather.Units
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, units weather.Units, backoff BackoffConfig) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		units:   units,
		baseURL: "https://api.weatherapi.com/v1/forecast.json",
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

type weatherAPIPayload struct {
	Location struct {
		Name           string `json:"name"`
		LocaltimeEpoch int64  `json:"localtime_epoch"`
	} `json:"location"`
	Current *struct {
		TempC     float64 `json:"temp_c"`
		TempF     float64 `json:"temp_f"`
		WindKph   float64 `json:"wind_kph"`
		WindMph   float64 `json:"wind_mph"`
		Condition struct {
			Text string `json:"text" validate:"required"`
			Icon string `json:"icon"`
			Code int    `json:"code"`
		} `json:"condition"`
	} `json:"current" validate:"required"`
	Forecast struct {
		Forecastday []struct {
			Day struct {
				MaxtempC float64 `json:"maxtemp_c"`
				MaxtempF float64 `json:"maxtemp_f"`
				MintempC float64 `json:"mintemp_c"`
				MintempF float64 `json:"mintemp_f"`
			} `json:"day"`
		} `json:"forecastday" validate:"required,min=1"`
	} `json:"forecast"`
}

func (p *WeatherAPIProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Report, error) {
	if p.apiKey == "" {
		return weather.Report{}, fmt.Errorf("%w: weatherapi api key is not configured", weather.ErrNotConfigured)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		values.Set("days", "1")
		// WeatherAPI uses "q" for location; it accepts a city name or "lat,lon".
		if loc.HasCoordinates() {
			values.Set("q", fmt.Sprintf("%f,%f", *loc.Lat, *loc.Lon))
		} else {
			values.Set("q", loc.DisplayName)
		}

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Report{}, err
	}
	defer resp.Body.Close()

	var payload weatherAPIPayload
	if err := decodePayload(resp.Body, &payload); err != nil {
		return weather.Report{}, err
	}

	ts := time.Now().UTC()
	if payload.Location.LocaltimeEpoch > 0 {
		ts = time.Unix(payload.Location.LocaltimeEpoch, 0).UTC()
	}

	day := payload.Forecast.Forecastday[0].Day
	cur := payload.Current

	r := weather.Report{
		ConditionName: mapWeatherAPICondition(cur.Condition.Text),
		Description:   strings.ToLower(cur.Condition.Text),
		IconToken:     strconv.Itoa(cur.Condition.Code),
		IconURL:       absoluteURL(cur.Condition.Icon),
		LocationLabel: payload.Location.Name,
		Units:         p.units,
		Provider:      p.name,
		ObservedAt:    ts,
	}
	if r.LocationLabel == "" {
		r.LocationLabel = loc.DisplayName
	}

	switch p.units {
	case weather.UnitsImperial:
		r.CurrentTemp, r.MaxTemp, r.MinTemp = cur.TempF, day.MaxtempF, day.MintempF
		r.WindSpeed = cur.WindMph
	default:
		r.CurrentTemp = convertTemp(cur.TempC, p.units)
		r.MaxTemp = convertTemp(day.MaxtempC, p.units)
		r.MinTemp = convertTemp(day.MintempC, p.units)
		// Convert wind from kph to m/s (approx).
		r.WindSpeed = cur.WindKph / 3.6
	}

	return r, nil
}

// mapWeatherAPICondition normalises free-text conditions to OpenWeatherMap group names.
func mapWeatherAPICondition(text string) string {
	t := strings.ToLower(text)
	switch {
	case common.HasAny(t, "thunder", "storm"):
		return "Thunderstorm"
	case common.HasAny(t, "drizzle"):
		return "Drizzle"
	case common.HasAny(t, "rain", "shower"):
		return "Rain"
	case common.HasAny(t, "snow", "sleet", "blizzard", "ice pellets"):
		return "Snow"
	case common.HasAny(t, "mist", "fog"):
		return "Mist"
	case common.HasAny(t, "cloud", "overcast"):
		return "Clouds"
	case common.HasAny(t, "sunny", "clear"):
		return "Clear"
	default:
		return text
	}
}

// absoluteURL turns WeatherAPI's protocol-relative icon paths into https URLs.
func absoluteURL(icon string) string {
	if strings.HasPrefix(icon, "//") {
		return "https:" + icon
	}
	return icon
}
