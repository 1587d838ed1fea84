package ui

import (
	"context"
	"errors"

	"github.com/i474232898/city-weather/internal/weather"
)

// State is what a Panel currently shows. It is one of Loading, Loaded or Failed.
type State interface {
	// Name is the lowercase state name used in JSON and metrics.
	Name() string
	isState()
}

// Loading is the initial state of a freshly mounted panel.
type Loading struct{}

// Loaded holds the report for the panel's current location.
type Loaded struct {
	Report weather.Report
}

// Failed records why the fetch for the current location did not produce a report.
type Failed struct {
	Kind    ErrorKind
	Message string
}

func (Loading) Name() string { return "loading" }
func (Loaded) Name() string  { return "loaded" }
func (Failed) Name() string  { return "failed" }

func (Loading) isState() {}
func (Loaded) isState()  {}
func (Failed) isState()  {}

// ErrorKind categorises fetch failures for display and status mapping.
type ErrorKind string

const (
	KindTimeout      ErrorKind = "timeout"
	KindCanceled     ErrorKind = "canceled"
	KindNotFound     ErrorKind = "not_found"
	KindUnauthorized ErrorKind = "unauthorized"
	KindUnavailable  ErrorKind = "unavailable"
	KindMalformed    ErrorKind = "malformed"
	KindConfig       ErrorKind = "config"
	KindUnknown      ErrorKind = "unknown"
)

// Classify maps a fetch error onto an ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, weather.ErrMalformed):
		return KindMalformed
	case errors.Is(err, weather.ErrNotFound):
		return KindNotFound
	case errors.Is(err, weather.ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, weather.ErrNotConfigured):
		return KindConfig
	case errors.Is(err, weather.ErrUnavailable):
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// Message is the user-facing text for a kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindTimeout:
		return "The weather service took too long to answer."
	case KindCanceled:
		return "The request was cancelled."
	case KindNotFound:
		return "The weather service does not know this city."
	case KindUnauthorized:
		return "The weather service rejected our credentials."
	case KindUnavailable:
		return "The weather service is unavailable right now."
	case KindMalformed:
		return "The weather service sent data we could not read."
	case KindConfig:
		return "Weather lookups are not configured on this server."
	default:
		return "Something went wrong while fetching the weather."
	}
}

func failedFrom(err error) Failed {
	kind := Classify(err)
	return Failed{Kind: kind, Message: kind.Message()}
}
