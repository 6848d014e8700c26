// Package types holds the small vocabulary shared by the hive reader and the
// artifact extractors: typed errors with stable categories, registry value
// type tags, and the handle-based Reader interface.
//
// This package has no dependencies beyond the standard library.
package types
