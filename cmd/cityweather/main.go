package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	httpapi "github.com/i474232898/city-weather/internal/api/http"
	"github.com/i474232898/city-weather/internal/common"
	"github.com/i474232898/city-weather/internal/config"
	"github.com/i474232898/city-weather/internal/scheduler"
	"github.com/i474232898/city-weather/internal/store"
	"github.com/i474232898/city-weather/internal/ui"
	"github.com/i474232898/city-weather/internal/weather"
	"github.com/i474232898/city-weather/internal/weather/providers"
)

type cli struct {
	EnvFile string `help:"Path to a .env file loaded before reading configuration." default:".env" type:"path"`

	Serve     serveCmd     `cmd:"" default:"1" help:"Run the web server (default)."`
	Fetch     fetchCmd     `cmd:"" help:"Fetch and print the current weather for one location."`
	Locations locationsCmd `cmd:"" help:"List configured locations."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c,
		kong.Name("cityweather"),
		kong.Description("Browse current weather for a fixed list of cities."),
		kong.UsageOnError(),
	)

	if err := godotenv.Load(c.EnvFile); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx.FatalIfErrorf(ctx.Run(cfg))
}

// newService builds the provider chain in the configured failover order.
func newService(cfg *config.AppConfig) *weather.Service {
	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	backoff := providers.DefaultBackoff
	backoff.MaxRetries = cfg.FetchMaxRetries

	var provs []weather.Provider
	for _, name := range cfg.Providers {
		switch name {
		case "openweathermap":
			provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, cfg.Units, cfg.OpenWeatherIconURL, backoff))
		case "weatherapi":
			provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey, cfg.Units, backoff))
		case "openmeteo":
			provs = append(provs, providers.NewOpenMeteoProvider(httpClient, cfg.Units, cfg.OpenWeatherIconURL, backoff))
		}
	}

	return weather.NewService(provs)
}

type serveCmd struct{}

func (s *serveCmd) Run(cfg *config.AppConfig) error {
	service := newService(cfg)

	// In-memory session store with configured retention.
	sessions := store.NewMemoryStore(cfg.SessionMaxCount, cfg.SessionMaxAge)
	defer sessions.Close()

	sched := scheduler.New(sessions, cfg.SessionSweepInterval)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp("city-weather")
	httpapi.RegisterRoutes(app, service, sessions, cfg)

	go func() {
		log.Printf("INFO: listening on :%s with providers %v", cfg.Port, service.Providers())
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	return nil
}

type fetchCmd struct {
	Location string `arg:"" help:"Location id or display name."`
}

func (f *fetchCmd) Run(cfg *config.AppConfig) error {
	loc, ok := cfg.FindLocation(f.Location)
	if !ok {
		for _, l := range cfg.Locations {
			if common.EqualFoldTrim(l.DisplayName, f.Location) {
				loc, ok = l, true
				break
			}
		}
	}
	if !ok {
		return fmt.Errorf("unknown location %q", f.Location)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return fetchOnce(ctx, newService(cfg), loc, cfg.FetchTimeout, os.Stdout)
}

// fetchOnce mounts a single panel for loc and prints the settled state.
// Cancelling ctx abandons the fetch.
func fetchOnce(ctx context.Context, fetcher ui.Fetcher, loc weather.Location, timeout time.Duration, w io.Writer) error {
	panel := ui.NewPanel(fetcher, timeout)
	defer panel.Close()
	if _, err := panel.Mount(loc); err != nil {
		return err
	}

	st, err := panel.Wait(ctx)
	if err != nil {
		return err
	}

	switch s := st.(type) {
	case ui.Loaded:
		r := s.Report
		fmt.Fprintf(w, "%s in %s (%s)\n", r.ConditionName, r.LocationLabel, r.Description)
		fmt.Fprintf(w, "Current: %g%s\n", r.CurrentTemp, r.Units.TempSymbol())
		fmt.Fprintf(w, "Highest: %g%s\n", r.MaxTemp, r.Units.TempSymbol())
		fmt.Fprintf(w, "Lowest: %g%s\n", r.MinTemp, r.Units.TempSymbol())
		fmt.Fprintf(w, "Wind Speed: %g %s\n", r.WindSpeed, r.Units.WindLabel())
		fmt.Fprintf(w, "Icon: %s\n", r.IconURL)
		return nil
	case ui.Failed:
		return errors.New(s.Message)
	default:
		return fmt.Errorf("unexpected panel state %s", st.Name())
	}
}

type locationsCmd struct{}

func (l *locationsCmd) Run(cfg *config.AppConfig) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCOORDINATES")
	for _, loc := range cfg.Locations {
		coords := "-"
		if loc.HasCoordinates() {
			coords = fmt.Sprintf("%.4f,%.4f", *loc.Lat, *loc.Lon)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", loc.ExternalID, loc.DisplayName, coords)
	}
	return w.Flush()
}
