package sink

import (
	"encoding/csv"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVOptions controls the file encoding.
type CSVOptions struct {
	// BOM prefixes the file with a UTF-8 byte-order mark.
	BOM bool
}

// CSV writes records to a comma separated file with CRLF line endings.
type CSV struct {
	file   afero.File
	w      *csv.Writer
	path   string
	rows   int
	closed bool
}

// NewCSV creates path (and its parent directories) on fs and writes the
// header row.
func NewCSV(fs afero.Fs, path string, header []string, opts CSVOptions) (*CSV, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	if opts.BOM {
		if _, err := f.Write(utf8BOM); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write bom: %w", err)
		}
	}
	w := csv.NewWriter(f)
	w.UseCRLF = true
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &CSV{file: f, w: w, path: path}, nil
}

// Path returns the file being written.
func (c *CSV) Path() string { return c.path }

// Rows returns the number of records written, excluding the header.
func (c *CSV) Rows() int { return c.rows }

func (c *CSV) Write(rec Record) error {
	if c.closed {
		return ErrClosed
	}
	if err := c.w.Write(rec.Row()); err != nil {
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	c.rows++
	return nil
}

// Close flushes buffered rows and closes the file.
func (c *CSV) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.w.Flush()
	werr := c.w.Error()
	cerr := c.file.Close()
	if werr != nil {
		return fmt.Errorf("flush %s: %w", c.path, werr)
	}
	return cerr
}
