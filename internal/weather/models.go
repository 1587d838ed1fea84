package weather

import (
	"time"
)

// Units is the measurement system requested from upstream providers.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
	UnitsStandard Units = "standard"
)

// TempSymbol returns the suffix used when rendering temperatures.
func (u Units) TempSymbol() string {
	switch u {
	case UnitsImperial:
		return "°F"
	case UnitsStandard:
		return "K"
	default:
		return "°C"
	}
}

// WindLabel returns the unit used when rendering wind speed.
func (u Units) WindLabel() string {
	if u == UnitsImperial {
		return "mph"
	}
	return "m/s"
}

// Location is a selectable city.
// ExternalID is the OpenWeatherMap city id; Lat/Lon are optional and only
// needed by providers that cannot look a city up by id.
type Location struct {
	DisplayName string   `json:"displayName" yaml:"name" validate:"required"`
	ExternalID  string   `json:"externalId" yaml:"id" validate:"required"`
	Lat         *float64 `json:"lat,omitempty" yaml:"lat" validate:"omitempty,latitude"`
	Lon         *float64 `json:"lon,omitempty" yaml:"lon" validate:"omitempty,longitude"`
}

// Key returns a canonical string key for this location.
func (l Location) Key() string {
	return l.ExternalID
}

// HasCoordinates reports whether both Lat and Lon are set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Report is the current weather for one location at one point in time.
type Report struct {
	ConditionName string    `json:"conditionName"`
	Description   string    `json:"description"`
	IconToken     string    `json:"iconToken"`
	IconURL       string    `json:"iconUrl"`
	LocationLabel string    `json:"locationLabel"`
	CurrentTemp   float64   `json:"currentTemp"`
	MaxTemp       float64   `json:"maxTemp"`
	MinTemp       float64   `json:"minTemp"`
	WindSpeed     float64   `json:"windSpeed"`
	Units         Units     `json:"units"`
	Provider      string    `json:"provider"`
	ObservedAt    time.Time `json:"observedAt"` // always UTC
}
