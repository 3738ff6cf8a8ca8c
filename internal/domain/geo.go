package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Coordinates is a WGS-84 point in GeoJSON order: longitude first.
type Coordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// DefaultCoordinates is the process-wide fallback point stored whenever
// geocoding a listing address fails, so a record always carries valid
// geometry. Overridable at startup via SetDefaultCoordinates.
var DefaultCoordinates = Coordinates{Lon: 5.2913, Lat: 52.1326}

// SetDefaultCoordinates replaces the fallback point. Called once from main
// with the configured values; not safe for concurrent use after startup.
func SetDefaultCoordinates(c Coordinates) {
	if !ValidCoordinates(c.Lat, c.Lon) {
		return
	}
	DefaultCoordinates = c
}

// ValidCoordinates reports whether lat/lng are finite and within
// [-90,90] / [-180,180].
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// FallbackLabel synthesizes a display address from raw coordinates,
// rounded to 4 decimals: "51.5237, -0.1586".
func FallbackLabel(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}

// GeoPoint is the geometry shape the record storage layer accepts:
// {"type":"Point","coordinates":[lng,lat]}.
type GeoPoint struct {
	Coordinates Coordinates
}

// NewGeoPoint wraps coordinates in the storage geometry shape.
func NewGeoPoint(c Coordinates) GeoPoint {
	return GeoPoint{Coordinates: c}
}

type geoPointJSON struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

func (p GeoPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoPointJSON{
		Type:        "Point",
		Coordinates: [2]float64{p.Coordinates.Lon, p.Coordinates.Lat},
	})
}

func (p *GeoPoint) UnmarshalJSON(data []byte) error {
	var raw geoPointJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal geo point: %w", err)
	}
	if raw.Type != "Point" {
		return fmt.Errorf("unsupported geometry type %q", raw.Type)
	}
	p.Coordinates = Coordinates{Lon: raw.Coordinates[0], Lat: raw.Coordinates[1]}
	return nil
}
