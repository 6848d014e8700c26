package reader

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/joshuapare/hiveartifacts/internal/format"
)

// DecodeKeyName converts the NK name encoding into UTF-8.
func DecodeKeyName(nk format.NKRecord) (string, error) {
	return decodeName(nk.NameRaw, nk.NameIsCompressed())
}

// DecodeValueName converts the raw VK name into UTF-8. VK names follow the
// same rules as NK names, only the flag bit differs.
func DecodeValueName(vk format.VKRecord) (string, error) {
	return decodeName(vk.NameRaw, vk.NameIsASCII())
}

func decodeName(raw []byte, compressed bool) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	if compressed {
		if isASCII(raw) {
			return string(raw), nil
		}
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
		if err != nil {
			return "", fmt.Errorf("decode Windows-1252 name: %w", err)
		}
		return string(decoded), nil
	}
	if len(raw)%2 != 0 {
		return "", errors.New("utf-16 name has odd length")
	}
	return decodeUTF16LE(raw)
}

// DecodeUTF16 decodes a REG_SZ payload, stopping at the first NUL. A
// trailing odd byte left over by sloppy writers is ignored.
func DecodeUTF16(data []byte) (string, error) {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	s, err := decodeUTF16LE(data)
	if err != nil {
		return "", err
	}
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return s, nil
}

// DecodeMultiString decodes a REG_MULTI_SZ payload. Decoding stops at the
// first empty element (the double-NUL terminator).
func DecodeMultiString(data []byte) ([]string, error) {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	s, err := decodeUTF16LE(data)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, part := range strings.Split(s, "\x00") {
		if part == "" {
			break
		}
		out = append(out, part)
	}
	return out, nil
}

func decodeUTF16LE(data []byte) (string, error) {
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode utf-16: %w", err)
	}
	return string(decoded), nil
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= 0x80 {
			return false
		}
	}
	return true
}
