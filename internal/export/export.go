// Package export flattens an entire hive into one row per value.
package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/joshuapare/hiveartifacts/hive"
	"github.com/joshuapare/hiveartifacts/internal/regvalue"
	"github.com/joshuapare/hiveartifacts/internal/sink"
	"github.com/joshuapare/hiveartifacts/internal/wintime"
	"github.com/joshuapare/hiveartifacts/pkg/types"
)

// Header is the column order of Row.
var Header = []string{"Key Path", "Value Name", "Value Type", "Value Data", "Last Modified"}

// Kind is the record kind of Row.
const Kind = "registry_value"

const (
	defaultValueName = "(Default)"
	errorName        = "[Error]"
	errorType        = "ERROR"
)

// Row is one exported value, or an error placeholder for a value or key
// that could not be read.
type Row struct {
	KeyPath      string `json:"key_path"`
	ValueName    string `json:"value_name"`
	ValueType    string `json:"value_type"`
	ValueData    string `json:"value_data"`
	LastModified string `json:"last_modified"`
}

func (r Row) Kind() string { return Kind }

func (r Row) Row() []string {
	return []string{r.KeyPath, r.ValueName, r.ValueType, r.ValueData, r.LastModified}
}

// Stats summarises one export.
type Stats struct {
	Keys   int
	Values int
	Errors int
}

// Options tunes an export.
type Options struct {
	Logger zerolog.Logger
}

// errCycle reports a subkey whose record was already visited.
var errCycle = errors.New("cycle")

type exporter struct {
	ctx   context.Context
	table sink.Table
	log   zerolog.Logger
	stats Stats

	// seen holds the records entered so far; every NK appears once in a
	// well-formed hive.
	seen map[types.NodeID]struct{}
}

// Export walks root depth-first in stored order and writes one row per
// value to table. A key or value that fails to read produces a single error
// row and the walk continues. A subkey that leads back to an already visited
// record gets an error row and is not entered. Only a failure to read root
// itself, a table write failure or cancellation of ctx stop the export.
func Export(ctx context.Context, root hive.Key, table sink.Table, opts Options) (Stats, error) {
	e := &exporter{ctx: ctx, table: table, log: opts.Logger, seen: make(map[types.NodeID]struct{})}
	e.enter(root)
	if err := e.visit(root, root.Name()); err != nil {
		return e.stats, fmt.Errorf("export %s: %w", root.Name(), err)
	}
	return e.stats, nil
}

// fault marks a read failure contained to a single key.
type fault struct{ err error }

func (f fault) Error() string { return f.err.Error() }
func (f fault) Unwrap() error { return f.err }

func (e *exporter) visit(key hive.Key, path string) (err error) {
	if err := e.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fault{fmt.Errorf("panic: %v", r)}
		}
	}()

	values, err := key.Values()
	if err != nil {
		return fault{err}
	}
	e.stats.Keys++
	if len(values) > 0 {
		stamp, stampErr := key.LastWrite()
		for _, v := range values {
			if err := e.table.Write(e.valueRow(v, path, stamp, stampErr)); err != nil {
				return err
			}
		}
	}

	children, err := key.Subkeys()
	if err != nil {
		return fault{err}
	}
	for _, child := range children {
		childPath := path + `\` + child.Name()
		if !e.enter(child) {
			if err := e.subkeyFault(childPath, errCycle); err != nil {
				return err
			}
			continue
		}
		err := e.visit(child, childPath)
		if err == nil {
			continue
		}
		f, ok := err.(fault)
		if !ok {
			return err
		}
		if err := e.subkeyFault(childPath, f.err); err != nil {
			return err
		}
	}
	return nil
}

// enter records key as visited. It reports false when the key's record was
// visited before. Keys without an identity are always entered.
func (e *exporter) enter(key hive.Key) bool {
	k, ok := key.(hive.Identified)
	if !ok {
		return true
	}
	id := k.ID()
	if _, dup := e.seen[id]; dup {
		return false
	}
	e.seen[id] = struct{}{}
	return true
}

func (e *exporter) subkeyFault(path string, err error) error {
	e.stats.Errors++
	e.log.Debug().Err(err).Str("key", path).Msg("subkey unreadable")
	return e.table.Write(Row{
		KeyPath:   path,
		ValueName: errorName,
		ValueType: errorType,
		ValueData: "Failed to access subkey: " + err.Error(),
	})
}

func (e *exporter) valueRow(v hive.Value, path string, stamp time.Time, stampErr error) (row Row) {
	defer func() {
		if r := recover(); r != nil {
			row = e.valueFault(path, fmt.Errorf("panic: %v", r))
		}
	}()
	name, err := v.Name()
	if err != nil {
		return e.valueFault(path, err)
	}
	typ, err := v.Type()
	if err != nil {
		return e.valueFault(path, err)
	}
	if stampErr != nil {
		return e.valueFault(path, stampErr)
	}
	if name == "" {
		name = defaultValueName
	}
	label := regvalue.LabelFor(typ)
	data := regvalue.ErrorSentinel
	if raw, err := v.Data(); err == nil {
		data = regvalue.Render(label, raw)
	}
	e.stats.Values++
	return Row{
		KeyPath:      path,
		ValueName:    name,
		ValueType:    label.String(),
		ValueData:    data,
		LastModified: stamp.UTC().Format(wintime.KeyLayout),
	}
}

func (e *exporter) valueFault(path string, err error) Row {
	e.stats.Errors++
	return Row{
		KeyPath:   path,
		ValueName: errorName,
		ValueType: errorType,
		ValueData: "Failed to read: " + strings.TrimSpace(err.Error()),
	}
}
