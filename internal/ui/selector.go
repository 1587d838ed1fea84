package ui

import (
	"errors"
	"fmt"
	"sync"

	"github.com/i474232898/city-weather/internal/weather"
)

var (
	// ErrNoLocations is returned when a Selector is built from an empty table.
	ErrNoLocations = errors.New("no locations configured")
	// ErrUnknownLocation is returned when selecting an id outside the table.
	ErrUnknownLocation = errors.New("unknown location")
)

// Selector owns the active selection over a fixed location table and drives
// a Panel from it.
type Selector struct {
	locations []weather.Location
	panel     *Panel

	mu     sync.Mutex
	active int
}

// NewSelector activates the first location and mounts panel for it.
func NewSelector(locations []weather.Location, panel *Panel) (*Selector, error) {
	if len(locations) == 0 {
		return nil, ErrNoLocations
	}
	locs := make([]weather.Location, len(locations))
	copy(locs, locations)

	if _, err := panel.Mount(locs[0]); err != nil {
		return nil, err
	}
	return &Selector{
		locations: locs,
		panel:     panel,
	}, nil
}

// Locations returns a copy of the location table.
func (s *Selector) Locations() []weather.Location {
	out := make([]weather.Location, len(s.locations))
	copy(out, s.locations)
	return out
}

// Active returns the index and value of the current selection.
func (s *Selector) Active() (int, weather.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.locations[s.active]
}

// Panel returns the panel this selector drives.
func (s *Selector) Panel() *Panel {
	return s.panel
}

// SelectLocation makes the location with the given external id active and
// remounts the panel. Re-selecting the active location is a no-op unless the
// panel is showing a failure, in which case it retries. It reports whether a
// fetch was issued. Once the panel is closed it returns ErrClosed and the
// selection stays where it was.
func (s *Selector) SelectLocation(id string) (bool, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownLocation, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx == s.active {
		if _, st := s.panel.State(); !isFailed(st) {
			return false, nil
		}
	}

	if _, err := s.panel.Mount(s.locations[idx]); err != nil {
		return false, err
	}
	s.active = idx
	return true, nil
}

// View is a consistent picture of a selector and its panel.
type View struct {
	Active     int
	Location   weather.Location
	State      State
	Generation uint64
}

// Snapshot returns the active selection together with the panel state for it.
// Selection changes and mounts happen under the same lock, so the two always agree.
func (s *Selector) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, st, gen := s.panel.snapshot()
	return View{Active: s.active, Location: loc, State: st, Generation: gen}
}

// Close releases the panel.
func (s *Selector) Close() {
	s.panel.Close()
}

func (s *Selector) indexOf(id string) int {
	for i, loc := range s.locations {
		if loc.ExternalID == id {
			return i
		}
	}
	return -1
}

func isFailed(st State) bool {
	_, ok := st.(Failed)
	return ok
}
