package bluetooth

import (
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"
)

// nameDecoder tries one interpretation of a raw device name.
type nameDecoder func(raw []byte) (string, bool)

// nameDecoders run in order; the last one always succeeds.
var nameDecoders = []nameDecoder{
	decodeUTF16Printable,
	decodeUTF8,
	decodeHex,
}

// DecodeName turns the raw Name value of a paired device into text. UTF-16LE
// is accepted only when every character is printable ASCII or whitespace,
// then valid UTF-8, and finally the lowercase hex of the bytes.
func DecodeName(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	for _, decode := range nameDecoders {
		if name, ok := decode(raw); ok {
			return name
		}
	}
	return ""
}

func decodeUTF16Printable(raw []byte) (string, bool) {
	if len(raw)%2 != 0 {
		return "", false
	}
	b, err := xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return "", false
	}
	name := strings.Trim(string(b), "\x00")
	if name == "" {
		return "", false
	}
	for _, r := range name {
		if (r < 32 || r >= 127) && !unicode.IsSpace(r) {
			return "", false
		}
	}
	return name, true
}

func decodeUTF8(raw []byte) (string, bool) {
	if !utf8.Valid(raw) {
		return "", false
	}
	return strings.Trim(string(raw), "\x00"), true
}

func decodeHex(raw []byte) (string, bool) {
	return hex.EncodeToString(raw), true
}
