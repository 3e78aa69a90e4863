package delivery

// Band classifies an order by its distance to the nearest service point.
type Band int

const (
	// BandWalkingDistance suggests pickup but still offers free delivery.
	BandWalkingDistance Band = iota
	// BandNearby offers delivery for the lower flat fee.
	BandNearby
	// BandFar offers delivery for the higher flat fee.
	BandFar
	// BandPickupOnly disables delivery entirely.
	BandPickupOnly
)

// Flat delivery fees per band, in minor currency units.
const (
	FeeNearby = 10000 // 100 RUB
	FeeFar    = 30000 // 300 RUB
)

// BandFor maps a non-negative distance to exactly one band.
func BandFor(distanceKm float64) Band {
	switch {
	case distanceKm < 0.5:
		return BandWalkingDistance
	case distanceKm < 5:
		return BandNearby
	case distanceKm < 20:
		return BandFar
	default:
		return BandPickupOnly
	}
}

// DeliveryOffered reports whether delivery is available in this band.
func (b Band) DeliveryOffered() bool {
	return b != BandPickupOnly
}

// Fee returns the flat delivery fee for the band in minor units.
// Walking distance delivery is free.
func (b Band) Fee() int {
	switch b {
	case BandNearby:
		return FeeNearby
	case BandFar:
		return FeeFar
	default:
		return 0
	}
}

// String names the band for logs.
func (b Band) String() string {
	switch b {
	case BandWalkingDistance:
		return "walking_distance"
	case BandNearby:
		return "nearby"
	case BandFar:
		return "far"
	case BandPickupOnly:
		return "pickup_only"
	default:
		return "unknown"
	}
}
