package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/i474232898/city-weather/internal/weather"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENWEATHER_API_KEY", "WEATHERAPI_API_KEY", "WEATHER_PROVIDERS", "WEATHER_UNITS",
		"OPENWEATHER_ICON_URL", "HTTP_TIMEOUT", "FETCH_TIMEOUT", "FETCH_MAX_RETRIES",
		"SESSION_MAX_COUNT", "SESSION_MAX_AGE", "SESSION_SWEEP_INTERVAL", "PORT",
		"LOCATIONS_FILE", "WEATHER_LOCATIONS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENWEATHER_API_KEY", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.OpenWeatherAPIKey != "secret" {
		t.Fatalf("expected api key from env, got %q", cfg.OpenWeatherAPIKey)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0] != "openweathermap" {
		t.Fatalf("unexpected providers %v", cfg.Providers)
	}
	if cfg.Units != weather.UnitsMetric {
		t.Fatalf("expected metric units, got %s", cfg.Units)
	}
	if cfg.FetchTimeout != 20*time.Second || cfg.SessionMaxAge != 30*time.Minute {
		t.Fatalf("unexpected durations: fetch=%s session=%s", cfg.FetchTimeout, cfg.SessionMaxAge)
	}
	if len(cfg.Locations) != 6 || cfg.Locations[0].DisplayName != "Uppsala" || cfg.Locations[0].ExternalID != "2666218" {
		t.Fatalf("unexpected default locations %+v", cfg.Locations)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
}

func TestLoadLocationsFromEnvList(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_LOCATIONS", "Oslo=3143244, Bergen = 3161732")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Locations) != 2 {
		t.Fatalf("expected 2 locations, got %d", len(cfg.Locations))
	}
	if cfg.Locations[1].DisplayName != "Bergen" || cfg.Locations[1].ExternalID != "3161732" {
		t.Fatalf("unexpected location %+v", cfg.Locations[1])
	}
	if loc, ok := cfg.FindLocation("3143244"); !ok || loc.DisplayName != "Oslo" {
		t.Fatalf("expected to find Oslo, got %+v %v", loc, ok)
	}
}

func TestLoadLocationsFromFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "locations.yaml")
	body := `locations:
  - name: Kiruna
    id: "605155"
    lat: 67.8557
    lon: 20.2253
  - name: Visby
    id: "2662689"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LOCATIONS_FILE", path)
	t.Setenv("WEATHER_LOCATIONS", "Ignored=1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Locations) != 2 || cfg.Locations[0].DisplayName != "Kiruna" {
		t.Fatalf("unexpected locations %+v", cfg.Locations)
	}
	if !cfg.Locations[0].HasCoordinates() || cfg.Locations[1].HasCoordinates() {
		t.Fatal("expected coordinates only on the first location")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown units":       {"WEATHER_UNITS": "furlongs"},
		"unknown provider":    {"WEATHER_PROVIDERS": "openweathermap,darksky"},
		"duplicate ids":       {"WEATHER_LOCATIONS": "A=1,B=1"},
		"malformed locations": {"WEATHER_LOCATIONS": "Uppsala"},
		"empty id":            {"WEATHER_LOCATIONS": "Uppsala="},
		"bad duration":        {"FETCH_TIMEOUT": "soon"},
		"icon without token":  {"OPENWEATHER_ICON_URL": "https://example.com/icon.png"},
		"bad port":            {"PORT": "http"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
