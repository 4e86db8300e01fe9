package model

import (
	"strings"
	"time"
)

// Units is the unit system a snapshot is expressed in.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
	UnitsStandard Units = "standard"
)

func (u Units) String() string { return string(u) }

// ParseUnits normalizes input; empty => metric.
// Returns (value, true) if valid; otherwise (metric, false).
func ParseUnits(s string) (Units, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "metric":
		return UnitsMetric, true
	case "imperial":
		return UnitsImperial, true
	case "standard", "kelvin":
		return UnitsStandard, true
	default:
		return UnitsMetric, false
	}
}

// Location identifies a place either by city/country or by coordinates.
type Location struct {
	City    string   `json:"city,omitempty"`
	Country string   `json:"country,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
}

// HasCoords reports whether the location is coordinate-addressed.
func (l Location) HasCoords() bool { return l.Lat != nil && l.Lon != nil }

// Empty reports whether neither a city nor coordinates were given.
func (l Location) Empty() bool { return strings.TrimSpace(l.City) == "" && !l.HasCoords() }

// Key returns a canonical lowercase city:country key for grouping.
// Coordinate-only locations key on the snapshot's resolved city.
func (l Location) Key() string {
	return strings.ToLower(strings.TrimSpace(l.City)) + ":" + strings.ToLower(strings.TrimSpace(l.Country))
}

// WeatherSnapshot is one normalized point-in-time reading from the upstream provider.
type WeatherSnapshot struct {
	Location    Location  `json:"location"`
	Timestamp   time.Time `json:"timestamp"` // always UTC
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
	WindSpeed   float64   `json:"wind_speed"`
	WindDeg     float64   `json:"wind_direction"`
	PrecipProb  float64   `json:"precipitation_probability"` // 0..100
	Description string    `json:"description"`
	Units       Units     `json:"units"`
}

// Metric returns a copy of the snapshot converted to the metric system
// (Celsius, m/s). Snapshots travel between tenants in whatever units the
// original caller asked for; anything that compares fields against fixed
// numbers must convert first.
func (s WeatherSnapshot) Metric() WeatherSnapshot {
	switch s.Units {
	case UnitsImperial:
		s.Temperature = (s.Temperature - 32) * 5 / 9
		s.FeelsLike = (s.FeelsLike - 32) * 5 / 9
		s.WindSpeed = s.WindSpeed * 0.44704 // mph to m/s
	case UnitsStandard:
		s.Temperature -= 273.15
		s.FeelsLike -= 273.15
	}
	s.Units = UnitsMetric
	return s
}

// Forecast is a time-ordered sequence of snapshots.
type Forecast []WeatherSnapshot
