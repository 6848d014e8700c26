package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestRegType_String(t *testing.T) {
	tests := []struct {
		name     string
		regType  RegType
		expected string
	}{
		{name: "REG_NONE", regType: REG_NONE, expected: "REG_NONE"},
		{name: "REG_SZ", regType: REG_SZ, expected: "REG_SZ"},
		{name: "REG_EXPAND_SZ", regType: REG_EXPAND_SZ, expected: "REG_EXPAND_SZ"},
		{name: "REG_BINARY", regType: REG_BINARY, expected: "REG_BINARY"},
		{name: "REG_DWORD", regType: REG_DWORD, expected: "REG_DWORD"},
		{name: "REG_DWORD_BE", regType: REG_DWORD_BE, expected: "REG_DWORD_BE"},
		{name: "REG_MULTI_SZ", regType: REG_MULTI_SZ, expected: "REG_MULTI_SZ"},
		{name: "REG_RESOURCE_LIST", regType: RegType(8), expected: "REG_RESOURCE_LIST"},
		{name: "REG_QWORD", regType: REG_QWORD, expected: "REG_QWORD"},
		{name: "Type 12", regType: RegType(12), expected: "UNKNOWN_TYPE_12"},
		{name: "Very large unknown type", regType: RegType(0xFFFF0019), expected: "UNKNOWN_TYPE_4294901785"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.regType.String(); got != tt.expected {
				t.Errorf("RegType(%d).String() = %q, expected %q", uint32(tt.regType), got, tt.expected)
			}
		})
	}
}

func TestErrorMatching(t *testing.T) {
	wrapped := fmt.Errorf("open USBSTOR: %w", NotFound(`subkey "USBSTOR"`))
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("expected wrapped NotFound to match ErrNotFound")
	}
	if errors.Is(wrapped, ErrCorrupt) {
		t.Fatalf("NotFound must not match ErrCorrupt")
	}

	var typed *Error
	if !errors.As(wrapped, &typed) {
		t.Fatalf("expected *Error in chain")
	}
	if typed.Kind != ErrKindNotFound {
		t.Fatalf("kind = %v, want %v", typed.Kind, ErrKindNotFound)
	}
	if got := typed.Error(); got != `subkey "USBSTOR" not found: not found` {
		t.Fatalf("message = %q", got)
	}
}

func TestErrKindString(t *testing.T) {
	if ErrKindCorrupt.String() != "corrupt" {
		t.Fatalf("unexpected label %q", ErrKindCorrupt.String())
	}
	if ErrKind(42).String() != "kind(42)" {
		t.Fatalf("unexpected label %q", ErrKind(42).String())
	}
}
