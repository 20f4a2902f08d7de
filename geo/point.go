package geo

import (
	"encoding/json"
	"errors"
	"fmt"
)

const geoJSONPoint = "Point"

// Point is an immutable latitude/longitude pair. Points come from resolvers;
// application code does not build them by hand.
type Point struct {
	lat float64
	lon float64
}

// NewPoint is used by Resolver implementations.
func NewPoint(latitude, longitude float64) (Point, error) {
	if latitude < -90 || latitude > 90 {
		return Point{}, fmt.Errorf("geo: latitude %v out of range", latitude)
	}
	if longitude < -180 || longitude > 180 {
		return Point{}, fmt.Errorf("geo: longitude %v out of range", longitude)
	}
	return Point{lat: latitude, lon: longitude}, nil
}

func (p Point) Latitude() float64  { return p.lat }
func (p Point) Longitude() float64 { return p.lon }

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.lat, p.lon)
}

type geoJSON struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// MarshalJSON encodes p as a GeoJSON point. Coordinates are stored in
// (latitude, longitude) order.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoJSON{Type: geoJSONPoint, Coordinates: []float64{p.lat, p.lon}})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var g geoJSON
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("geo: decode point: %w", err)
	}
	if g.Type != geoJSONPoint || len(g.Coordinates) != 2 {
		return errors.New("geo: decode point: not a GeoJSON point")
	}
	out, err := NewPoint(g.Coordinates[0], g.Coordinates[1])
	if err != nil {
		return err
	}
	*p = out
	return nil
}

// FromValue recognises the JSON-shaped form of a point, as read back from a
// document store or cache snapshot.
func FromValue(v any) (Point, bool) {
	switch t := v.(type) {
	case Point:
		return t, true
	case *Point:
		if t == nil {
			return Point{}, false
		}
		return *t, true
	case map[string]any:
		if t["type"] != geoJSONPoint {
			return Point{}, false
		}
		coords, ok := t["coordinates"].([]any)
		if !ok || len(coords) != 2 {
			return Point{}, false
		}
		lat, ok1 := coords[0].(float64)
		lon, ok2 := coords[1].(float64)
		if !ok1 || !ok2 {
			return Point{}, false
		}
		p, err := NewPoint(lat, lon)
		return p, err == nil
	}
	return Point{}, false
}
