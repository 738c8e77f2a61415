package mcfs

import (
	"encoding/binary"
	"time"
)

// JST is the zone the card stores calendar fields in.
var JST = time.FixedZone("JST", 9*60*60)

// TimestampSize is the encoded length of a Timestamp.
const TimestampSize = 8

// Timestamp holds the calendar fields of a card time stamp.
type Timestamp struct {
	Sec   uint8
	Min   uint8
	Hour  uint8
	Day   uint8
	Month uint8
	Year  uint16
}

// FromTime converts t to card calendar fields.
func FromTime(t time.Time) Timestamp {
	t = t.In(JST)
	return Timestamp{
		Sec:   uint8(t.Second()),
		Min:   uint8(t.Minute()),
		Hour:  uint8(t.Hour()),
		Day:   uint8(t.Day()),
		Month: uint8(t.Month()),
		Year:  uint16(t.Year()),
	}
}

// Time converts ts to a time.Time in JST. The zero Timestamp maps to
// the zero time.
func (ts Timestamp) Time() time.Time {
	if ts.IsZero() {
		return time.Time{}
	}
	return time.Date(int(ts.Year), time.Month(ts.Month), int(ts.Day),
		int(ts.Hour), int(ts.Min), int(ts.Sec), 0, JST)
}

func (ts Timestamp) IsZero() bool {
	return ts == Timestamp{}
}

// DecodeTimestamp reads the 8 byte on-disk form.
func DecodeTimestamp(b []byte) Timestamp {
	return Timestamp{
		Sec:   b[1],
		Min:   b[2],
		Hour:  b[3],
		Day:   b[4],
		Month: b[5],
		Year:  binary.LittleEndian.Uint16(b[6:8]),
	}
}

// Encode writes the 8 byte on-disk form into b.
func (ts Timestamp) Encode(b []byte) {
	b[0] = 0
	b[1] = ts.Sec
	b[2] = ts.Min
	b[3] = ts.Hour
	b[4] = ts.Day
	b[5] = ts.Month
	binary.LittleEndian.PutUint16(b[6:8], ts.Year)
}

// A Clock supplies the time used to stamp new and modified entries.
type Clock func() time.Time

// SystemClock reads the host clock.
func SystemClock() time.Time {
	return time.Now()
}

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
