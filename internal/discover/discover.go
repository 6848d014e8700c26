// Package discover finds candidate registry hive files below a folder.
package discover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DefaultMinSize is the size an extension-less file must exceed to be taken
// for a hive.
const DefaultMinSize = 10 * 1024

// knownNames are hive file names accepted regardless of size. Matching is
// case-insensitive.
var knownNames = map[string]bool{
	"SYSTEM":       true,
	"SOFTWARE":     true,
	"SAM":          true,
	"SECURITY":     true,
	"NTUSER.DAT":   true,
	"USRCLASS.DAT": true,
	"AMCACHE.HVE":  true,
	"DRIVERS":      true,
	"BBI":          true,
	"BCD":          true,
	"COMPONENTS":   true,
	"DEFAULT":      true,
	"ELAM":         true,
	"SCHEMA.DAT":   true,
}

// Candidate is a file that looks like a hive.
type Candidate struct {
	Path string
	Size int64
	// Known is set when the file name is a well-known hive name; otherwise
	// the file was accepted by the size heuristic.
	Known bool
}

// Name returns the file name.
func (c Candidate) Name() string { return filepath.Base(c.Path) }

// Options tunes a scan.
type Options struct {
	// MinSize overrides DefaultMinSize when positive.
	MinSize int64
	Logger  zerolog.Logger
}

// IsKnownName reports whether name is a well-known hive file name.
func IsKnownName(name string) bool {
	return knownNames[strings.ToUpper(name)]
}

// Scan walks root on fs and returns the candidates in lexical path order.
// Unreadable entries below root are logged and skipped.
func Scan(ctx context.Context, fs afero.Fs, root string, opts Options) ([]Candidate, error) {
	minSize := opts.MinSize
	if minSize <= 0 {
		minSize = DefaultMinSize
	}

	info, err := fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", root)
	}

	var out []Candidate
	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			opts.Logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable entry")
			if fi != nil && fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if fi.IsDir() {
			return nil
		}
		name := fi.Name()
		switch {
		case IsKnownName(name):
			out = append(out, Candidate{Path: path, Size: fi.Size(), Known: true})
		case !strings.Contains(name, ".") && len(name) > 2 && fi.Size() > minSize:
			out = append(out, Candidate{Path: path, Size: fi.Size()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	opts.Logger.Info().Int("hives", len(out)).Str("root", root).Msg("scan complete")
	return out, nil
}

// Paths returns the paths of cs.
func Paths(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Path
	}
	return out
}
