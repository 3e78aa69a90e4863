// Package geocode resolves free-form address text into coordinates via the
// Google Maps Geocoding API.
package geocode

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/Alex-Men-VL/sell-pizza/internal/delivery"
)

// GoogleResolver wraps a Google Maps client.
type GoogleResolver struct {
	client *maps.Client
}

// NewGoogleResolver creates a resolver with the given API key.
func NewGoogleResolver(apiKey string) (*GoogleResolver, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("geocode: maps client: %w", err)
	}
	return &GoogleResolver{client: client}, nil
}

// Resolve geocodes the address. The second return value is false when the
// address produced no result; an error means the service itself failed.
func (r *GoogleResolver) Resolve(ctx context.Context, address string) (delivery.Coords, bool, error) {
	results, err := r.client.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return delivery.Coords{}, false, fmt.Errorf("geocode %q: %w", address, err)
	}
	if len(results) == 0 {
		return delivery.Coords{}, false, nil
	}

	loc := results[0].Geometry.Location
	return delivery.Coords{Lon: loc.Lng, Lat: loc.Lat}, true, nil
}
