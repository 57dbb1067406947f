package model

import "fmt"

// RangeError reports a coordinate outside its valid WGS84 range.
type RangeError struct {
	Field string
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("illegal %s %f: must be within [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

// BoundingBox is a rectangle of WGS84 coordinates in decimal degrees.
// Values are only obtainable through NewBoundingBox, so a BoundingBox is
// always in range. Two boxes are equal when all four bounds are equal.
//
// The ordering of min and max is not checked.
type BoundingBox struct {
	minLatitude  float64
	maxLatitude  float64
	minLongitude float64
	maxLongitude float64
}

// NewBoundingBox validates the bounds and returns the box.
func NewBoundingBox(minLatitude, maxLatitude, minLongitude, maxLongitude float64) (BoundingBox, error) {
	if err := checkLatitude("min latitude", minLatitude); err != nil {
		return BoundingBox{}, err
	}
	if err := checkLatitude("max latitude", maxLatitude); err != nil {
		return BoundingBox{}, err
	}
	if err := checkLongitude("min longitude", minLongitude); err != nil {
		return BoundingBox{}, err
	}
	if err := checkLongitude("max longitude", maxLongitude); err != nil {
		return BoundingBox{}, err
	}

	return BoundingBox{
		minLatitude:  minLatitude,
		maxLatitude:  maxLatitude,
		minLongitude: minLongitude,
		maxLongitude: maxLongitude,
	}, nil
}

func (b BoundingBox) MinLatitude() float64  { return b.minLatitude }
func (b BoundingBox) MaxLatitude() float64  { return b.maxLatitude }
func (b BoundingBox) MinLongitude() float64 { return b.minLongitude }
func (b BoundingBox) MaxLongitude() float64 { return b.maxLongitude }

// Contains reports whether the point lies inside the box, bounds included.
func (b BoundingBox) Contains(latitude, longitude float64) bool {
	return latitude >= b.minLatitude && latitude <= b.maxLatitude &&
		longitude >= b.minLongitude && longitude <= b.maxLongitude
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("lat[%g, %g] lon[%g, %g]", b.minLatitude, b.maxLatitude, b.minLongitude, b.maxLongitude)
}

func checkLatitude(field string, lat float64) error {
	// negated so that NaN is rejected
	if !(lat >= -90 && lat <= 90) {
		return &RangeError{Field: field, Value: lat, Min: -90, Max: 90}
	}
	return nil
}

func checkLongitude(field string, lon float64) error {
	if !(lon >= -180 && lon <= 180) {
		return &RangeError{Field: field, Value: lon, Min: -180, Max: 180}
	}
	return nil
}
