package model

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/openskynetwork/opensky-api/pkg/utils"
)

// StateVector is the state of one aircraft at a point in time.
type StateVector struct {
	ICAO24             string         `json:"icao24"`
	Callsign           *string        `json:"callsign"`
	OriginCountry      *string        `json:"origin_country"`
	LastPositionUpdate *float64       `json:"time_position"`
	LastContact        *float64       `json:"last_contact"`
	Longitude          *float64       `json:"longitude"`
	Latitude           *float64       `json:"latitude"`
	BaroAltitude       *float64       `json:"baro_altitude"`
	OnGround           bool           `json:"on_ground"`
	Velocity           *float64       `json:"velocity"`
	Heading            *float64       `json:"true_track"`
	VerticalRate       *float64       `json:"vertical_rate"`
	Serials            SerialSet      `json:"sensors"`
	GeoAltitude        *float64       `json:"geo_altitude"`
	Squawk             *string        `json:"squawk"`
	SPI                bool           `json:"spi"`
	PositionSource     PositionSource `json:"position_source"`
}

// HasPosition reports whether both coordinates are known.
func (sv *StateVector) HasPosition() bool {
	return sv.Latitude != nil && sv.Longitude != nil
}

// PositionTime returns the time of the last position report.
func (sv *StateVector) PositionTime() (time.Time, bool) {
	if sv.LastPositionUpdate == nil {
		return time.Time{}, false
	}
	return utils.FloatSecondsToTime(*sv.LastPositionUpdate), true
}

// LastContactTime returns the time the transponder was last heard.
func (sv *StateVector) LastContactTime() (time.Time, bool) {
	if sv.LastContact == nil {
		return time.Time{}, false
	}
	return utils.FloatSecondsToTime(*sv.LastContact), true
}

// SerialSet holds receiver serial numbers. A nil set means no sensor
// filter was requested; an empty non-nil set means the filter matched
// nothing.
type SerialSet map[int]struct{}

// NewSerialSet returns an empty, present set.
func NewSerialSet(serials ...int) SerialSet {
	s := make(SerialSet, len(serials))
	for _, serial := range serials {
		s.Add(serial)
	}
	return s
}

func (s SerialSet) Add(serial int) {
	s[serial] = struct{}{}
}

func (s SerialSet) Has(serial int) bool {
	_, ok := s[serial]
	return ok
}

// Sorted returns the serials in ascending order, or nil for an absent set.
func (s SerialSet) Sorted() []int {
	if s == nil {
		return nil
	}
	out := make([]int, 0, len(s))
	for serial := range s {
		out = append(out, serial)
	}
	sort.Ints(out)
	return out
}

// MarshalJSON keeps the absent/empty distinction: null versus [].
func (s SerialSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.Sorted())
}
