package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/i474232898/city-weather/internal/metrics"
)

// Service fetches current weather through an ordered list of providers.
type Service struct {
	providers []Provider
}

// NewService creates a new Service. Providers are tried in the given order.
func NewService(providers []Provider) *Service {
	return &Service{
		providers: providers,
	}
}

// Providers returns the names of the configured providers in failover order.
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// Fetch returns the first successful report for loc. Later providers are
// only consulted when earlier ones fail; a done context stops the failover.
func (s *Service) Fetch(ctx context.Context, loc Location) (Report, error) {
	if len(s.providers) == 0 {
		log.Printf("ERROR: No providers available to fetch weather data for %s", loc.Key())
		return Report{}, fmt.Errorf("%w: no weather providers configured", ErrNotConfigured)
	}

	var errs []error
	for _, p := range s.providers {
		start := time.Now()
		r, err := p.Fetch(ctx, loc)
		metrics.FetchLatency.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.FetchesTotal.WithLabelValues(p.Name(), "ok").Inc()
			log.Printf("DEBUG: provider %s served %s in %s", p.Name(), loc.Key(), time.Since(start).Round(time.Millisecond))
			return r, nil
		}

		metrics.FetchesTotal.WithLabelValues(p.Name(), "error").Inc()
		log.Printf("provider %s fetch failed for %s: %v", p.Name(), loc.Key(), err)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return Report{}, ctxErr
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	return Report{}, errors.Join(errs...)
}
