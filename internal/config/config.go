package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/city-weather/internal/weather"
)

var validate = validator.New()

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIKey     string

	// Providers in failover order.
	Providers []string `validate:"required,min=1,unique,dive,oneof=openweathermap weatherapi openmeteo"`

	Units weather.Units `validate:"oneof=metric imperial standard"`

	// OpenWeatherIconURL is the image path the icon token is interpolated into at "{icon}".
	OpenWeatherIconURL string `validate:"required,contains={icon}"`

	// HTTPTimeout bounds a single outbound request; FetchTimeout bounds a
	// whole panel fetch including retries and failover.
	HTTPTimeout     time.Duration `validate:"gt=0"`
	FetchTimeout    time.Duration `validate:"gt=0"`
	FetchMaxRetries int           `validate:"gte=0,lte=10"`

	// Locations offered by the selector, in display order.
	Locations []weather.Location `validate:"required,min=1,unique=ExternalID,dive"`

	// In-memory session retention.
	SessionMaxCount      int           // max number of live sessions (0 = unlimited)
	SessionMaxAge        time.Duration // idle time before a session is evicted
	SessionSweepInterval time.Duration `validate:"gt=0"`

	Port string `validate:"required,numeric"`
}

func floatPtr(f float64) *float64 { return &f }

// DefaultLocations is used when neither LOCATIONS_FILE nor WEATHER_LOCATIONS is set.
var DefaultLocations = []weather.Location{
	{DisplayName: "Uppsala", ExternalID: "2666218", Lat: floatPtr(59.8586), Lon: floatPtr(17.6389)},
	{DisplayName: "Stockholm", ExternalID: "2673722", Lat: floatPtr(59.3293), Lon: floatPtr(18.0686)},
	{DisplayName: "Göteborg", ExternalID: "2711533", Lat: floatPtr(57.7089), Lon: floatPtr(11.9746)},
	{DisplayName: "Lund", ExternalID: "2693678", Lat: floatPtr(55.7047), Lon: floatPtr(13.1910)},
	{DisplayName: "Linköping", ExternalID: "2694759", Lat: floatPtr(58.4108), Lon: floatPtr(15.6214)},
	{DisplayName: "Umeå", ExternalID: "602149", Lat: floatPtr(63.8258), Lon: floatPtr(20.2630)},
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_API_KEY")

	cfg.Providers = splitList(getenvDefault("WEATHER_PROVIDERS", "openweathermap"))
	cfg.Units = weather.Units(strings.ToLower(getenvDefault("WEATHER_UNITS", string(weather.UnitsMetric))))
	cfg.OpenWeatherIconURL = getenvDefault("OPENWEATHER_ICON_URL", "https://openweathermap.org/img/w/{icon}.png")

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = getenvDuration("FETCH_TIMEOUT", "20s"); err != nil {
		return nil, err
	}
	cfg.FetchMaxRetries = getenvInt("FETCH_MAX_RETRIES", 2)

	cfg.SessionMaxCount = getenvInt("SESSION_MAX_COUNT", 1000)
	if cfg.SessionMaxAge, err = getenvDuration("SESSION_MAX_AGE", "30m"); err != nil {
		return nil, err
	}
	if cfg.SessionSweepInterval, err = getenvDuration("SESSION_SWEEP_INTERVAL", "5m"); err != nil {
		return nil, err
	}
	cfg.Port = getenvDefault("PORT", "8080")

	locs, err := loadLocations()
	if err != nil {
		return nil, err
	}
	cfg.Locations = locs

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.UsesProvider("openweathermap") && cfg.OpenWeatherAPIKey == "" {
		log.Println("[WARN] OPENWEATHER_API_KEY is not set, openweathermap lookups will fail")
	}
	if cfg.UsesProvider("weatherapi") && cfg.WeatherAPIKey == "" {
		log.Println("[WARN] WEATHERAPI_API_KEY is not set, weatherapi lookups will fail")
	}

	return cfg, nil
}

// UsesProvider reports whether name is among the configured providers.
func (c *AppConfig) UsesProvider(name string) bool {
	for _, p := range c.Providers {
		if p == name {
			return true
		}
	}
	return false
}

// FindLocation looks a location up by external id.
func (c *AppConfig) FindLocation(id string) (weather.Location, bool) {
	for _, loc := range c.Locations {
		if loc.ExternalID == id {
			return loc, true
		}
	}
	return weather.Location{}, false
}

type locationsFile struct {
	Locations []weather.Location `yaml:"locations"`
}

// loadLocations reads LOCATIONS_FILE, then WEATHER_LOCATIONS, then falls back to DefaultLocations.
func loadLocations() ([]weather.Location, error) {
	if path := os.Getenv("LOCATIONS_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read LOCATIONS_FILE: %w", err)
		}
		var f locationsFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse LOCATIONS_FILE: %w", err)
		}
		return f.Locations, nil
	}

	if raw := os.Getenv("WEATHER_LOCATIONS"); raw != "" {
		return parseLocationList(raw)
	}

	locs := make([]weather.Location, len(DefaultLocations))
	copy(locs, DefaultLocations)
	return locs, nil
}

// parseLocationList parses "Name=id,Name=id".
func parseLocationList(raw string) ([]weather.Location, error) {
	var locs []weather.Location
	for _, entry := range splitList(raw) {
		name, id, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid WEATHER_LOCATIONS entry %q: expected Name=id", entry)
		}
		locs = append(locs, weather.Location{
			DisplayName: strings.TrimSpace(name),
			ExternalID:  strings.TrimSpace(id),
		})
	}
	return locs, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
