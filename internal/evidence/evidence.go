// Package evidence records the size and digests of every input hive so an
// extraction can be tied back to the exact files it read.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/zeebo/blake3"

	"github.com/joshuapare/hiveartifacts/internal/sink"
)

// Kind is the record kind of Entry.
const Kind = "evidence_file"

// FileName is the manifest written to the output directory.
const FileName = "Manifest.csv"

// Header is the column order of Entry.
var Header = []string{"Path", "Name", "Size", "SHA256", "BLAKE3", "Modified"}

// Entry describes one input file.
type Entry struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256" structs:"sha256"`
	BLAKE3   string `json:"blake3" structs:"blake3"`
	Modified string `json:"modified"`
}

func (e Entry) Kind() string { return Kind }

func (e Entry) Row() []string {
	return []string{e.Path, e.Name, strconv.FormatInt(e.Size, 10), e.SHA256, e.BLAKE3, e.Modified}
}

// HashFile reads path from fs once and computes both digests.
func HashFile(fs afero.Fs, path string) (Entry, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Entry{}, fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Entry{}, fmt.Errorf("hash %s: %w", path, err)
	}
	if info.IsDir() {
		return Entry{}, fmt.Errorf("hash %s: is a directory", path)
	}

	sh := sha256.New()
	bh := blake3.New()
	n, err := io.Copy(io.MultiWriter(sh, bh), f)
	if err != nil {
		return Entry{}, fmt.Errorf("hash %s: %w", path, err)
	}
	return Entry{
		Path:     path,
		Name:     filepath.Base(path),
		Size:     n,
		SHA256:   hex.EncodeToString(sh.Sum(nil)),
		BLAKE3:   hex.EncodeToString(bh.Sum(nil)),
		Modified: info.ModTime().UTC().Format(time.RFC3339),
	}, nil
}

// Options tunes Write.
type Options struct {
	Logger zerolog.Logger
}

// Write hashes every path in order and writes one entry per file to table.
// A file that cannot be hashed is logged and left out; the first table
// write failure or cancellation stops the run.
func Write(ctx context.Context, fs afero.Fs, paths []string, table sink.Table, opts Options) ([]Entry, error) {
	var out []Entry
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		e, err := HashFile(fs, p)
		if err != nil {
			opts.Logger.Error().Err(err).Str("path", p).Msg("cannot hash input")
			continue
		}
		if err := table.Write(e); err != nil {
			return out, err
		}
		opts.Logger.Debug().Str("path", p).Str("sha256", e.SHA256).Msg("hashed input")
		out = append(out, e)
	}
	return out, nil
}
