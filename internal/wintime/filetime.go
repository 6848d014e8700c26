// Package wintime converts the Windows FILETIME and SYSTEMTIME encodings
// found in registry values into UTC timestamps and display strings.
package wintime

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// EpochDelta is the number of 100ns ticks between 1601-01-01 and 1970-01-01.
	EpochDelta     = 116444736000000000
	ticksPerSecond = 10_000_000

	// FiletimeLayout renders a FILETIME-derived instant at second precision.
	FiletimeLayout = "2006-01-02 15:04:05 UTC"
	// KeyLayout renders a key last-write time in the generic export.
	KeyLayout = "2006-01-02 15:04:05"
)

var (
	// ErrOutOfRange reports a timestamp outside years 1 through 9999.
	ErrOutOfRange = errors.New("wintime: timestamp out of range")
	// ErrUnsupportedInput reports an input that is neither 8 bytes nor an integer.
	ErrUnsupportedInput = errors.New("wintime: unsupported FILETIME input")
)

// FiletimeToTime converts a FILETIME tick count into a UTC time.
func FiletimeToTime(ticks uint64) (time.Time, error) {
	sec := int64(ticks/ticksPerSecond) - EpochDelta/ticksPerSecond
	nsec := int64(ticks%ticksPerSecond) * 100
	t := time.Unix(sec, nsec).UTC()
	if t.Year() > 9999 {
		return time.Time{}, fmt.Errorf("%w: %d ticks", ErrOutOfRange, ticks)
	}
	return t, nil
}

// TimeToFiletime converts t into a FILETIME tick count. Instants before
// 1601 or after 9999 are rejected.
func TimeToFiletime(t time.Time) (uint64, error) {
	t = t.UTC()
	if t.Year() < 1601 || t.Year() > 9999 {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, t.Format(time.RFC3339))
	}
	sec := t.Unix() + EpochDelta/ticksPerSecond
	return uint64(sec)*ticksPerSecond + uint64(t.Nanosecond()/100), nil
}

// Ticks extracts a FILETIME tick count from either an 8-byte little-endian
// payload or an integer scalar.
func Ticks(raw any) (uint64, error) {
	switch v := raw.(type) {
	case []byte:
		if len(v) != 8 {
			return 0, fmt.Errorf("%w: %d bytes", ErrUnsupportedInput, len(v))
		}
		return binary.LittleEndian.Uint64(v), nil
	case uint64:
		return v, nil
	case uint32:
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("%w: negative tick count %d", ErrOutOfRange, v)
		}
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%w: negative tick count %d", ErrOutOfRange, v)
		}
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedInput, raw)
	}
}

// FormatFiletime decodes raw and renders it as "YYYY-MM-DD HH:MM:SS UTC".
func FormatFiletime(raw any) (string, error) {
	ticks, err := Ticks(raw)
	if err != nil {
		return "", err
	}
	t, err := FiletimeToTime(ticks)
	if err != nil {
		return "", err
	}
	return t.Format(FiletimeLayout), nil
}

// FiletimeOrEmpty renders raw, or "" when it cannot be decoded.
func FiletimeOrEmpty(raw any) string {
	s, err := FormatFiletime(raw)
	if err != nil {
		return ""
	}
	return s
}

// FiletimeOrDiagnostic renders raw, returning "Invalid time format" for
// unsupported shapes and "Error: <cause>" for undecodable tick counts.
func FiletimeOrDiagnostic(raw any) string {
	s, err := FormatFiletime(raw)
	switch {
	case err == nil:
		return s
	case errors.Is(err, ErrUnsupportedInput):
		return "Invalid time format"
	default:
		return "Error: " + err.Error()
	}
}
