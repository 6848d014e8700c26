package wintime

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// SystemtimeSize is the length of a packed SYSTEMTIME structure.
const SystemtimeSize = 16

// SystemtimeLayout renders a SYSTEMTIME at millisecond precision.
const SystemtimeLayout = "2006-01-02 15:04:05.000 UTC"

// ErrShortSystemtime reports a buffer smaller than SystemtimeSize.
var ErrShortSystemtime = errors.New("wintime: SYSTEMTIME needs 16 bytes")

// Systemtime mirrors the Win32 structure. DayOfWeek is carried but never
// validated against the date.
type Systemtime struct {
	Year, Month, DayOfWeek, Day        uint16
	Hour, Minute, Second, Milliseconds uint16
}

// ParseSystemtime unpacks the first 16 bytes of b.
func ParseSystemtime(b []byte) (Systemtime, error) {
	if len(b) < SystemtimeSize {
		return Systemtime{}, fmt.Errorf("%w: have %d", ErrShortSystemtime, len(b))
	}
	u := func(i int) uint16 { return binary.LittleEndian.Uint16(b[i*2:]) }
	return Systemtime{
		Year: u(0), Month: u(1), DayOfWeek: u(2), Day: u(3),
		Hour: u(4), Minute: u(5), Second: u(6), Milliseconds: u(7),
	}, nil
}

// Time validates every field and returns the UTC instant. Out-of-range
// fields are errors rather than being normalised into neighbouring units.
func (st Systemtime) Time() (time.Time, error) {
	switch {
	case st.Year < 1 || st.Year > 9999:
		return time.Time{}, fmt.Errorf("year %d is out of range", st.Year)
	case st.Month < 1 || st.Month > 12:
		return time.Time{}, errors.New("month must be in 1..12")
	case st.Hour > 23:
		return time.Time{}, errors.New("hour must be in 0..23")
	case st.Minute > 59:
		return time.Time{}, errors.New("minute must be in 0..59")
	case st.Second > 59:
		return time.Time{}, errors.New("second must be in 0..59")
	case st.Milliseconds > 999:
		return time.Time{}, errors.New("millisecond must be in 0..999")
	}
	last := time.Date(int(st.Year), time.Month(st.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if st.Day < 1 || int(st.Day) > last {
		return time.Time{}, errors.New("day is out of range for month")
	}
	return time.Date(int(st.Year), time.Month(st.Month), int(st.Day),
		int(st.Hour), int(st.Minute), int(st.Second), int(st.Milliseconds)*int(time.Millisecond), time.UTC), nil
}

// FormatSystemtime renders b as "YYYY-MM-DD HH:MM:SS.mmm UTC". Buffers shorter
// than 16 bytes yield "Invalid SYSTEMTIME"; invalid fields yield "Error: <cause>".
func FormatSystemtime(b []byte) string {
	st, err := ParseSystemtime(b)
	if err != nil {
		return "Invalid SYSTEMTIME"
	}
	t, err := st.Time()
	if err != nil {
		return "Error: " + err.Error()
	}
	return t.Format(SystemtimeLayout)
}

// EncodeSystemtime packs t into the 16-byte layout.
func EncodeSystemtime(t time.Time) []byte {
	t = t.UTC()
	out := make([]byte, SystemtimeSize)
	fields := []int{t.Year(), int(t.Month()), int(t.Weekday()), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond() / int(time.Millisecond)}
	for i, f := range fields {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(f))
	}
	return out
}
