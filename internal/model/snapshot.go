package model

import "time"

// StatesSnapshot is the airspace as seen at Time. All vectors describe
// the interval [Time-1, Time].
//
// States is nil when the server sent no state vectors, including the case
// of an empty states array.
type StatesSnapshot struct {
	Time   int64          `json:"time"`
	States []*StateVector `json:"states"`
}

// Timestamp returns Time as a time.Time; the zero time for a nil snapshot.
func (s *StatesSnapshot) Timestamp() time.Time {
	if s == nil {
		return time.Time{}
	}
	return time.Unix(s.Time, 0)
}

// Len returns the number of state vectors.
func (s *StatesSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.States)
}
