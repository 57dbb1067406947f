// Package wire decodes the positional JSON format the states endpoints
// answer with:
//
//	{"time": 1002, "states": [["cabeef", "ABCDEFG", "USA", 1001, ...], ...]}
//
// Each state vector is an array whose meaning is given by position. The
// server may append fields to that array at any time; the decoder reads
// the positions it knows and drops the rest.
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/openskynetwork/opensky-api/internal/model"
)

// FormatError reports a states document that does not have the expected
// shape. The whole document is rejected.
type FormatError struct {
	Offset int64
	Msg    string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("states document at offset %d: %s: %v", e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("states document at offset %d: %s", e.Offset, e.Msg)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Decode reads one states document from r. A document that is JSON null
// yields a nil snapshot and a nil error.
func Decode(r io.Reader) (*model.StatesSnapshot, error) {
	d := &decoder{cur: newCursor(r)}
	return d.expectObjectOrNull()
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(data []byte) (*model.StatesSnapshot, error) {
	return Decode(bytes.NewReader(data))
}

type decoder struct {
	cur *cursor
}

func (d *decoder) expectObjectOrNull() (*model.StatesSnapshot, error) {
	tok, err := d.cur.next()
	if err != nil {
		return nil, err
	}
	switch tok {
	case nil:
		return nil, nil
	case beginObject:
		return d.readFields()
	default:
		return nil, d.cur.formatErr("expected object or null, got %s", describe(tok))
	}
}

func (d *decoder) readFields() (*model.StatesSnapshot, error) {
	snap := &model.StatesSnapshot{}
	for {
		tok, err := d.cur.next()
		if err != nil {
			return nil, err
		}
		if tok == endObject {
			return snap, nil
		}

		key, ok := tok.(string)
		if !ok {
			return nil, d.cur.formatErr("expected field name, got %s", describe(tok))
		}
		switch {
		case strings.EqualFold(key, "time"):
			snap.Time, err = d.readTime()
		case strings.EqualFold(key, "states"):
			snap.States, err = d.readStatesArray()
		default:
			err = d.cur.skipValue()
		}
		if err != nil {
			return nil, err
		}
	}
}

func (d *decoder) readTime() (int64, error) {
	tok, err := d.cur.next()
	if err != nil {
		return 0, err
	}
	switch v := tok.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return d.toInt64("time", v)
	default:
		return 0, d.cur.formatErr("time: expected number, got %s", describe(tok))
	}
}

// readStatesArray returns nil when the array is null or empty.
func (d *decoder) readStatesArray() ([]*model.StateVector, error) {
	tok, err := d.cur.next()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, nil
	}
	if tok != beginArray {
		return nil, d.cur.formatErr("states: expected array, got %s", describe(tok))
	}

	var states []*model.StateVector
	for {
		tok, err := d.cur.next()
		if err != nil {
			return nil, err
		}
		if tok == endArray {
			break
		}
		if tok != beginArray {
			return nil, d.cur.formatErr("states[%d]: expected array, got %s", len(states), describe(tok))
		}

		sv, err := d.readStateVector()
		if err != nil {
			return nil, err
		}
		states = append(states, sv)
	}

	if len(states) == 0 {
		return nil, nil
	}
	return states, nil
}

// readStateVector reads the positions of one state vector; the opening
// bracket has already been consumed.
func (d *decoder) readStateVector() (*model.StateVector, error) {
	f := &fieldReader{d: d}

	icao24 := f.str("icao24")
	if f.err != nil {
		return nil, f.err
	}
	if icao24 == nil || *icao24 == "" {
		return nil, d.cur.formatErr("got null icao24")
	}

	sv := &model.StateVector{ICAO24: *icao24}
	sv.Callsign = f.str("callsign")
	sv.OriginCountry = f.str("origin_country")
	sv.LastPositionUpdate = f.float("time_position")
	sv.LastContact = f.float("last_contact")
	sv.Longitude = f.float("longitude")
	sv.Latitude = f.float("latitude")
	sv.BaroAltitude = f.float("baro_altitude")
	sv.OnGround = f.boolean("on_ground")
	sv.Velocity = f.float("velocity")
	sv.Heading = f.float("true_track")
	sv.VerticalRate = f.float("vertical_rate")
	sv.Serials = f.serials("sensors")
	sv.GeoAltitude = f.float("geo_altitude")
	sv.Squawk = f.str("squawk")
	sv.SPI = f.boolean("spi")
	sv.PositionSource = model.PositionSourceFromIndex(f.integer("position_source"))
	if f.err != nil {
		return nil, f.err
	}

	if err := d.drainTrailing(); err != nil {
		return nil, err
	}
	return sv, nil
}

// drainTrailing discards every element after the last known position and
// consumes the closing bracket of the state vector.
func (d *decoder) drainTrailing() error {
	for {
		end, err := d.cur.atArrayEnd()
		if err != nil {
			return err
		}
		if end {
			_, err = d.cur.next()
			return err
		}
		if err := d.cur.skipValue(); err != nil {
			return err
		}
	}
}

func (d *decoder) toInt64(field string, n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, d.cur.formatErr("%s: invalid number %q", field, n.String())
	}
	return int64(f), nil
}

// fieldReader reads consecutive state vector positions. The first error
// sticks and turns every later read into a no-op. A position past the end
// of the array reads as its zero value and leaves the bracket in place.
type fieldReader struct {
	d   *decoder
	err error
}

// take returns the next token, or ok == false when the array has ended
// or an error occurred.
func (f *fieldReader) take() (tok json.Token, ok bool) {
	if f.err != nil {
		return nil, false
	}
	end, err := f.d.cur.atArrayEnd()
	if err != nil {
		f.err = err
		return nil, false
	}
	if end {
		return nil, false
	}
	tok, f.err = f.d.cur.next()
	return tok, f.err == nil
}

func (f *fieldReader) fail(field, want string, tok json.Token) {
	f.err = f.d.cur.formatErr("%s: expected %s, got %s", field, want, describe(tok))
}

func (f *fieldReader) str(field string) *string {
	tok, ok := f.take()
	if !ok || tok == nil {
		return nil
	}
	s, isStr := tok.(string)
	if !isStr {
		f.fail(field, "string or null", tok)
		return nil
	}
	return &s
}

func (f *fieldReader) float(field string) *float64 {
	tok, ok := f.take()
	if !ok || tok == nil {
		return nil
	}
	n, isNum := tok.(json.Number)
	if !isNum {
		f.fail(field, "number or null", tok)
		return nil
	}
	v, err := n.Float64()
	if err != nil {
		f.err = f.d.cur.formatErr("%s: invalid number %q", field, n.String())
		return nil
	}
	return &v
}

// boolean reads null as false.
func (f *fieldReader) boolean(field string) bool {
	tok, ok := f.take()
	if !ok || tok == nil {
		return false
	}
	b, isBool := tok.(bool)
	if !isBool {
		f.fail(field, "bool", tok)
		return false
	}
	return b
}

// integer reads null or a missing position as 0.
func (f *fieldReader) integer(field string) int {
	tok, ok := f.take()
	if !ok || tok == nil {
		return 0
	}
	n, isNum := tok.(json.Number)
	if !isNum {
		f.fail(field, "number", tok)
		return 0
	}
	v, err := f.d.toInt64(field, n)
	if err != nil {
		f.err = err
		return 0
	}
	return int(v)
}

func (f *fieldReader) serials(field string) model.SerialSet {
	tok, ok := f.take()
	if !ok || tok == nil {
		return nil
	}
	if tok != beginArray {
		f.fail(field, "array or null", tok)
		return nil
	}

	set := model.NewSerialSet()
	for {
		tok, f.err = f.d.cur.next()
		if f.err != nil {
			return nil
		}
		if tok == endArray {
			return set
		}
		n, isNum := tok.(json.Number)
		if !isNum {
			f.fail(field, "serial number", tok)
			return nil
		}
		serial, err := f.d.toInt64(field, n)
		if err != nil {
			f.err = err
			return nil
		}
		set.Add(int(serial))
	}
}
