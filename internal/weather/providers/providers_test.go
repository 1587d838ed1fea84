package providers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/city-weather/internal/weather"
)

const sampleOpenWeather = `{
	"weather": [{"main": "Clear", "icon": "01d", "description": "clear sky"}],
	"name": "Uppsala",
	"main": {"temp": 20, "temp_max": 22, "temp_min": 18},
	"wind": {"speed": 5}
}`

var fastBackoff = BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}

func floatPtr(f float64) *float64 { return &f }

var uppsala = weather.Location{
	DisplayName: "Uppsala",
	ExternalID:  "2666218",
	Lat:         floatPtr(59.8586),
	Lon:         floatPtr(17.6389),
}

func newOpenWeatherForTest(t *testing.T, handler http.HandlerFunc) *OpenWeatherProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewOpenWeatherProvider(srv.Client(), "test-key", weather.UnitsMetric, "", fastBackoff)
	p.baseURL = srv.URL
	return p
}

func TestOpenWeatherFetchParsesReport(t *testing.T) {
	var gotQuery map[string]string
	p := newOpenWeatherForTest(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{"id": q.Get("id"), "appid": q.Get("appid"), "units": q.Get("units")}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleOpenWeather))
	})

	r, err := p.Fetch(context.Background(), uppsala)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotQuery["id"] != "2666218" || gotQuery["appid"] != "test-key" || gotQuery["units"] != "metric" {
		t.Fatalf("unexpected query parameters: %v", gotQuery)
	}
	if r.ConditionName != "Clear" || r.LocationLabel != "Uppsala" || r.Description != "clear sky" {
		t.Fatalf("unexpected report labels: %+v", r)
	}
	if r.CurrentTemp != 20 || r.MaxTemp != 22 || r.MinTemp != 18 || r.WindSpeed != 5 {
		t.Fatalf("unexpected report values: %+v", r)
	}
	if r.IconURL != "https://openweathermap.org/img/w/01d.png" {
		t.Fatalf("unexpected icon url %q", r.IconURL)
	}
	if r.Provider != "openweathermap" || r.Units != weather.UnitsMetric {
		t.Fatalf("unexpected provenance: %+v", r)
	}
}

func TestOpenWeatherFetchMalformed(t *testing.T) {
	cases := map[string]string{
		"missing weather":  `{"name": "Uppsala", "main": {"temp": 20}, "wind": {"speed": 5}}`,
		"empty weather":    `{"weather": [], "name": "Uppsala", "main": {"temp": 20}, "wind": {"speed": 5}}`,
		"missing main":     `{"weather": [{"main": "Clear", "icon": "01d"}], "wind": {"speed": 5}}`,
		"not json":         `<html>oops</html>`,
		"weather no icon":  `{"weather": [{"main": "Clear"}], "main": {"temp": 20}, "wind": {"speed": 5}}`,
		"wrong field type": `{"weather": "Clear", "main": {"temp": 20}, "wind": {"speed": 5}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := newOpenWeatherForTest(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := p.Fetch(context.Background(), uppsala)
			if !errors.Is(err, weather.ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestOpenWeatherStatusPolicy(t *testing.T) {
	cases := []struct {
		status    int
		want      error
		wantCalls int32
	}{
		{http.StatusUnauthorized, weather.ErrUnauthorized, 1},
		{http.StatusNotFound, weather.ErrNotFound, 1},
		{http.StatusBadRequest, weather.ErrUnavailable, 1},
		{http.StatusTooManyRequests, weather.ErrUnavailable, 3},
		{http.StatusBadGateway, weather.ErrUnavailable, 3},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			var calls atomic.Int32
			p := newOpenWeatherForTest(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
			})

			_, err := p.Fetch(context.Background(), uppsala)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got := calls.Load(); got != tc.wantCalls {
				t.Fatalf("expected %d upstream calls, got %d", tc.wantCalls, got)
			}
		})
	}
}

func TestOpenWeatherRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	p := newOpenWeatherForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(sampleOpenWeather))
	})

	r, err := p.Fetch(context.Background(), uppsala)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ConditionName != "Clear" {
		t.Fatalf("unexpected report: %+v", r)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", calls.Load())
	}
}

func TestOpenWeatherMissingKey(t *testing.T) {
	p := NewOpenWeatherProvider(http.DefaultClient, "", weather.UnitsMetric, "", fastBackoff)
	_, err := p.Fetch(context.Background(), uppsala)
	if !errors.Is(err, weather.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestOpenWeatherHonoursContextCancel(t *testing.T) {
	release := make(chan struct{})
	p := newOpenWeatherForTest(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Fetch(ctx, uppsala)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestOpenWeatherCircuitBreaker(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   gobreaker.State
	}{
		{"server errors open it", http.StatusBadGateway, gobreaker.StateOpen},
		{"unauthorized keeps it closed", http.StatusUnauthorized, gobreaker.StateClosed},
		{"not found keeps it closed", http.StatusNotFound, gobreaker.StateClosed},
		{"bad request keeps it closed", http.StatusBadRequest, gobreaker.StateClosed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newOpenWeatherForTest(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})
			p.httpCfg.Backoff = BackoffConfig{MaxRetries: 0, InitialInterval: time.Millisecond}

			for i := 0; i < 8; i++ {
				_, _ = p.Fetch(context.Background(), uppsala)
			}
			if got := p.circuit.State(); got != tc.want {
				t.Fatalf("expected breaker %s, got %s", tc.want, got)
			}
		})
	}
}

func TestOpenWeatherCancelledFetchesKeepBreakerClosed(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	release := make(chan struct{})
	p := newOpenWeatherForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			select {
			case <-release:
			case <-r.Context().Done():
			}
			return
		}
		w.Write([]byte(sampleOpenWeather))
	})
	defer close(release)

	for i := 0; i < 8; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := p.Fetch(ctx, uppsala)
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("fetch %d: expected context.DeadlineExceeded, got %v", i, err)
		}
	}
	if got := p.circuit.State(); got != gobreaker.StateClosed {
		t.Fatalf("expected breaker closed after cancelled fetches, got %s", got)
	}

	slow.Store(false)
	r, err := p.Fetch(context.Background(), uppsala)
	if err != nil {
		t.Fatalf("expected healthy upstream to serve, got %v", err)
	}
	if r.ConditionName != "Clear" {
		t.Fatalf("unexpected report: %+v", r)
	}
}

func TestWeatherAPIFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "59.858600,17.638900" {
			t.Errorf("unexpected q parameter %q", q)
		}
		w.Write([]byte(`{
			"location": {"name": "Uppsala", "localtime_epoch": 1700000000},
			"current": {"temp_c": 20, "wind_kph": 18, "condition": {"text": "Partly cloudy", "icon": "//cdn.weatherapi.com/weather/64x64/day/116.png", "code": 1003}},
			"forecast": {"forecastday": [{"day": {"maxtemp_c": 22, "mintemp_c": 18}}]}
		}`))
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "key", weather.UnitsMetric, fastBackoff)
	p.baseURL = srv.URL

	r, err := p.Fetch(context.Background(), uppsala)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ConditionName != "Clouds" || r.LocationLabel != "Uppsala" {
		t.Fatalf("unexpected labels: %+v", r)
	}
	if r.CurrentTemp != 20 || r.MaxTemp != 22 || r.MinTemp != 18 || math.Abs(r.WindSpeed-5) > 1e-9 {
		t.Fatalf("unexpected values: %+v", r)
	}
	if r.IconURL != "https://cdn.weatherapi.com/weather/64x64/day/116.png" || r.IconToken != "1003" {
		t.Fatalf("unexpected icon: %q %q", r.IconURL, r.IconToken)
	}
}

func TestMapWeatherAPICondition(t *testing.T) {
	cases := map[string]string{
		"Sunny":                         "Clear",
		"Overcast":                      "Clouds",
		"Light rain shower":             "Rain",
		"Patchy light drizzle":          "Drizzle",
		"Moderate snow":                 "Snow",
		"Thundery outbreaks possible":   "Thunderstorm",
		"Freezing fog":                  "Mist",
		"Something we have never seen": "Something we have never seen",
	}
	for in, want := range cases {
		if got := mapWeatherAPICondition(in); got != want {
			t.Errorf("mapWeatherAPICondition(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenMeteoFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("windspeed_unit") != "ms" {
			t.Errorf("expected metric wind speed unit, got %q", r.URL.Query().Get("windspeed_unit"))
		}
		w.Write([]byte(`{
			"utc_offset_seconds": 7200,
			"current_weather": {"temperature": 20, "windspeed": 5, "time": "2024-06-01T12:00", "weathercode": 0, "is_day": 1},
			"daily": {"temperature_2m_max": [22], "temperature_2m_min": [18]}
		}`))
	}))
	defer srv.Close()

	p := NewOpenMeteoProvider(srv.Client(), weather.UnitsMetric, "", fastBackoff)
	p.baseURL = srv.URL

	r, err := p.Fetch(context.Background(), uppsala)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ConditionName != "Clear" || r.IconToken != "01d" || r.LocationLabel != "Uppsala" {
		t.Fatalf("unexpected labels: %+v", r)
	}
	if r.CurrentTemp != 20 || r.MaxTemp != 22 || r.MinTemp != 18 || r.WindSpeed != 5 {
		t.Fatalf("unexpected values: %+v", r)
	}
	if want := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC); !r.ObservedAt.Equal(want) || r.ObservedAt.Location() != time.UTC {
		t.Fatalf("expected observed at %s, got %s", want, r.ObservedAt)
	}
}

func TestOpenMeteoRequiresCoordinates(t *testing.T) {
	p := NewOpenMeteoProvider(http.DefaultClient, weather.UnitsMetric, "", fastBackoff)
	_, err := p.Fetch(context.Background(), weather.Location{DisplayName: "Nowhere", ExternalID: "1"})
	if !errors.Is(err, weather.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
