// Package regvalue turns registry values into display strings.
package regvalue

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/joshuapare/hiveartifacts/hive"
	"github.com/joshuapare/hiveartifacts/pkg/types"
)

const (
	// ErrorSentinel replaces data that could not be read.
	ErrorSentinel = "[Error reading value]"

	// BinaryLimit is the number of characters of a rendered REG_BINARY
	// payload kept before TruncationSuffix is appended.
	BinaryLimit      = 100
	TruncationSuffix = "... (truncated)"

	listSeparator = "; "
)

// Label is the canonical type label of a value. Six types are known; any
// other tag is carried as an unknown label.
type Label struct {
	tag   types.RegType
	known bool
}

var knownLabels = map[types.RegType]bool{
	types.REG_SZ:        true,
	types.REG_EXPAND_SZ: true,
	types.REG_BINARY:    true,
	types.REG_DWORD:     true,
	types.REG_MULTI_SZ:  true,
	types.REG_QWORD:     true,
}

// LabelFor maps a type tag to its label. It never fails.
func LabelFor(t types.RegType) Label {
	return Label{tag: t, known: knownLabels[t]}
}

// Known reports whether the tag is one of the six labelled types.
func (l Label) Known() bool { return l.known }

// Tag returns the raw type tag.
func (l Label) Tag() types.RegType { return l.tag }

func (l Label) String() string {
	if l.known {
		return l.tag.String()
	}
	return "Unknown(" + strconv.FormatUint(uint64(l.tag), 10) + ")"
}

// Render formats a decoded payload. Byte payloads become lowercase hex and
// REG_BINARY renderings longer than BinaryLimit characters are truncated.
func Render(label Label, data any) string {
	s := Format(data)
	if label.known && label.tag == types.REG_BINARY && utf8.RuneCountInString(s) > BinaryLimit {
		s = truncate(s, BinaryLimit) + TruncationSuffix
	}
	return s
}

// Format renders a payload without any truncation.
func Format(data any) string {
	switch d := data.(type) {
	case nil:
		return ""
	case string:
		return d
	case []string:
		return strings.Join(d, listSeparator)
	case []byte:
		return hex.EncodeToString(d)
	case uint32:
		return strconv.FormatUint(uint64(d), 10)
	case uint64:
		return strconv.FormatUint(d, 10)
	case int:
		return strconv.Itoa(d)
	case int64:
		return strconv.FormatInt(d, 10)
	default:
		return fmt.Sprint(d)
	}
}

// RenderValue renders v, returning ErrorSentinel when its type or data
// cannot be read.
func RenderValue(v hive.Value) string {
	t, err := v.Type()
	if err != nil {
		return ErrorSentinel
	}
	data, err := v.Data()
	if err != nil {
		return ErrorSentinel
	}
	return Render(LabelFor(t), data)
}

// SafeRead reads the named value on key. An absent value yields "", a
// list is joined with "; " and any other fault yields ErrorSentinel.
func SafeRead(key hive.Key, name string) string {
	v, err := key.Value(name)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return ""
		}
		return ErrorSentinel
	}
	data, err := v.Data()
	if err != nil {
		return ErrorSentinel
	}
	return Format(data)
}

// Raw returns the decoded payload of the named value, or nil when the value
// is absent or unreadable.
func Raw(key hive.Key, name string) any {
	v, err := key.Value(name)
	if err != nil {
		return nil
	}
	data, err := v.Data()
	if err != nil {
		return nil
	}
	return data
}

func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
