// Package sink receives extracted records. A Table is exclusively owned by
// the extraction writing to it.
package sink

import (
	"errors"
	"sync"
)

// Record is one output row.
type Record interface {
	// Kind names the record type, e.g. "usb_device".
	Kind() string
	// Row returns the cells in header order.
	Row() []string
}

// Table is an append-only destination for records.
type Table interface {
	Write(rec Record) error
	Close() error
}

// Memory keeps records in memory.
type Memory struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

// NewMemory returns an empty in-memory table.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Write(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Records returns a copy of everything written so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

// Rows returns the cells of every record written so far.
func (m *Memory) Rows() [][]string {
	recs := m.Records()
	out := make([][]string, len(recs))
	for i, r := range recs {
		out[i] = r.Row()
	}
	return out
}

// ErrClosed is returned when writing to a closed table.
var ErrClosed = errors.New("sink: table is closed")

// Multi writes every record to each of its tables in order.
type Multi []Table

func (m Multi) Write(rec Record) error {
	for _, t := range m {
		if err := t.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every table and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Counter counts records per kind before handing them to Next.
type Counter struct {
	Next Table

	mu     sync.Mutex
	counts map[string]int
}

func (c *Counter) Write(rec Record) error {
	c.mu.Lock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[rec.Kind()]++
	c.mu.Unlock()
	if c.Next == nil {
		return nil
	}
	return c.Next.Write(rec)
}

func (c *Counter) Close() error {
	if c.Next == nil {
		return nil
	}
	return c.Next.Close()
}

// Count returns the number of records of kind seen so far.
func (c *Counter) Count(kind string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[kind]
}
