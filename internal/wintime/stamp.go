package wintime

// StampKind tags how an ambiguous registry timestamp is interpreted.
type StampKind int

const (
	StampUnsupported StampKind = iota
	StampFiletime
	StampSystemtime
)

func (k StampKind) String() string {
	switch k {
	case StampFiletime:
		return "FILETIME"
	case StampSystemtime:
		return "SYSTEMTIME"
	default:
		return "unsupported"
	}
}

// Stamp is a raw timestamp whose encoding was decided once, by shape.
type Stamp struct {
	Kind StampKind
	Raw  any
}

// Classify sniffs raw: exactly 8 bytes or an integer is a FILETIME, 16 or
// more bytes is a SYSTEMTIME, anything else is unsupported.
func Classify(raw any) Stamp {
	switch v := raw.(type) {
	case []byte:
		switch {
		case len(v) == 8:
			return Stamp{Kind: StampFiletime, Raw: v}
		case len(v) >= SystemtimeSize:
			return Stamp{Kind: StampSystemtime, Raw: v}
		}
	case uint32, uint64, int, int64:
		return Stamp{Kind: StampFiletime, Raw: v}
	}
	return Stamp{Kind: StampUnsupported, Raw: raw}
}

// String renders the stamp with its decoder, or "N/A" when unsupported.
func (s Stamp) String() string {
	switch s.Kind {
	case StampFiletime:
		return FiletimeOrDiagnostic(s.Raw)
	case StampSystemtime:
		return FormatSystemtime(s.Raw.([]byte))
	default:
		return "N/A"
	}
}
