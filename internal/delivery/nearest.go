// Package delivery contains the geographic core of the ordering flow: the
// nearest service point selection and the distance banding policy that
// decides whether delivery is offered at all.
package delivery

import (
	"errors"
	"math"
)

const earthRadiusKm = 6371.0

// ErrNoServicePoints is returned when the selector has nothing to choose from.
var ErrNoServicePoints = errors.New("delivery: no service points available")

// Coords is a longitude/latitude pair in decimal degrees.
type Coords struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// ServicePoint is a pickup/delivery location snapshot fetched from the
// commerce backend.
type ServicePoint struct {
	ID        string  `json:"id"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	CourierID int64   `json:"courier_id"`
}

// NearestResult is the chosen service point with derived distances from the
// order coordinates. Computed fresh on every location-handling transition.
type NearestResult struct {
	Point      ServicePoint `json:"point"`
	DistanceKm float64      `json:"distance_km"`
	DistanceM  float64      `json:"distance_m"`
}

// Nearest picks the service point closest to the order coordinates.
// Ties resolve to the first minimum in iteration order.
func Nearest(order Coords, points []ServicePoint) (NearestResult, error) {
	if len(points) == 0 {
		return NearestResult{}, ErrNoServicePoints
	}

	best := points[0]
	bestKm := haversineKm(order.Lat, order.Lon, points[0].Latitude, points[0].Longitude)
	for _, p := range points[1:] {
		km := haversineKm(order.Lat, order.Lon, p.Latitude, p.Longitude)
		if km < bestKm {
			best = p
			bestKm = km
		}
	}

	return NearestResult{
		Point:      best,
		DistanceKm: bestKm,
		DistanceM:  bestKm * 1000,
	}, nil
}

// haversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
