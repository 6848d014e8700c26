// Package hive is the read-only access facade used by every extractor.
//
// # Overview
//
// A hive file is opened once and exposed as a tree of Key and Value
// handles. Handles decode lazily: names are read when a key is listed, value
// payloads only when Data or Bytes is called. Structural damage below the
// root never aborts a listing; the damaged key or value carries the error and
// reports it from the accessor that needs the broken structure.
//
// # Opening a Hive
//
//	h, err := hive.Open("/evidence/SYSTEM")
//	if err != nil {
//	    return err // types.ErrNotHive, fs.ErrNotExist, ...
//	}
//	defer h.Close()
//
//	root, err := h.Root()
//	usbstor, err := root.Open(`ControlSet001\Enum\USBSTOR`)
//
// Lookups by path or value name are case-insensitive and fail with an error
// matching types.ErrNotFound when the item is absent.
//
// # Sources
//
// Extractors that process several hives take a slice of Source. FileSource
// wraps a path on disk; hive/memhive provides in-memory trees for tests.
package hive
