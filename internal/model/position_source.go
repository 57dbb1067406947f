package model

// PositionSource is the origin of a state vector's position.
type PositionSource int

const (
	ADSB PositionSource = iota
	ASTERIX
	MLAT
	FLARM
	Unknown
)

var positionSourceNames = [...]string{"ADS_B", "ASTERIX", "MLAT", "FLARM", "UNKNOWN"}

// PositionSourceFromIndex maps the wire index to a PositionSource. Every
// index outside 0..3 maps to Unknown, so servers may add sources without
// breaking older clients.
func PositionSourceFromIndex(i int) PositionSource {
	switch i {
	case 0:
		return ADSB
	case 1:
		return ASTERIX
	case 2:
		return MLAT
	case 3:
		return FLARM
	default:
		return Unknown
	}
}

func (p PositionSource) String() string {
	if p < ADSB || p > Unknown {
		return positionSourceNames[Unknown]
	}
	return positionSourceNames[p]
}

// MarshalText encodes the source by name so JSON output stays readable.
func (p PositionSource) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
