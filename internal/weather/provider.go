package weather

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured is returned when a provider lacks required settings (e.g. an API key).
	ErrNotConfigured = errors.New("weather provider not configured")
	// ErrNotFound is returned when the upstream service does not know the location.
	ErrNotFound = errors.New("location not found upstream")
	// ErrUnauthorized is returned when the upstream service rejects the credential.
	ErrUnauthorized = errors.New("upstream rejected credentials")
	// ErrUnavailable covers transport failures, rate limiting and upstream 5xx.
	ErrUnavailable = errors.New("upstream unavailable")
	// ErrMalformed is returned when a response does not have the expected shape.
	ErrMalformed = errors.New("malformed upstream response")
)

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (Report, error)
}
