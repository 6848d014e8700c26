// Package pipeline runs the selected artifact extractions over a set of
// hive files and lays the results out in an output folder:
//
//	Manifest.csv
//	Registry/<hive>.csv
//	USB_Devices/USB_Devices.csv
//	Bluetooth_Devices/Bluetooth_SYSTEM.csv
//	Network_Connections/NetworkProfiles_SOFTWARE.csv
//
// Every artifact kind writes its own file, so kinds run concurrently. When
// an element store is supplied every record is inserted there too.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/hiveartifacts/hive"
	"github.com/joshuapare/hiveartifacts/internal/artifacts/bluetooth"
	"github.com/joshuapare/hiveartifacts/internal/artifacts/netprofile"
	"github.com/joshuapare/hiveartifacts/internal/artifacts/usb"
	"github.com/joshuapare/hiveartifacts/internal/evidence"
	"github.com/joshuapare/hiveartifacts/internal/export"
	"github.com/joshuapare/hiveartifacts/internal/sink"
	"github.com/joshuapare/hiveartifacts/internal/store"
	"github.com/joshuapare/hiveartifacts/pkg/types"
)

// Artifact selects an extraction.
type Artifact string

const (
	Registry  Artifact = "registry"
	USB       Artifact = "usb"
	Bluetooth Artifact = "bluetooth"
	Network   Artifact = "network"
)

// AllArtifacts is every artifact kind in run order.
var AllArtifacts = []Artifact{Registry, USB, Bluetooth, Network}

// ParseArtifact accepts an artifact name, ignoring case.
func ParseArtifact(s string) (Artifact, error) {
	for _, a := range AllArtifacts {
		if strings.EqualFold(s, string(a)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown artifact %q", s)
}

// Output layout below Request.OutputDir.
const (
	RegistryDir   = "Registry"
	USBDir        = "USB_Devices"
	USBFile       = "USB_Devices.csv"
	BluetoothDir  = "Bluetooth_Devices"
	BluetoothFile = "Bluetooth_SYSTEM.csv"
	NetworkDir    = "Network_Connections"
	NetworkFile   = "NetworkProfiles_SOFTWARE.csv"
)

// ErrNoHives is returned when a request selects no hive files.
var ErrNoHives = errors.New("no hives selected")

// Request describes one run.
type Request struct {
	// Hives are the selected hive files, in selection order.
	Hives []string
	// Artifacts to produce. Empty means AllArtifacts.
	Artifacts []Artifact
	OutputDir string

	// Output receives every output file. Nil means the OS filesystem.
	Output afero.Fs
	// Input is used to hash the hives. Nil means the OS filesystem.
	Input afero.Fs

	HashInputs bool
	// Store, when set, receives every record as well.
	Store *store.Store
	// Workers bounds concurrent extractions. Values below 1 mean 1.
	Workers int

	OpenOptions types.OpenOptions
	Logger      zerolog.Logger
}

// HiveExport is the outcome of exporting one hive.
type HiveExport struct {
	Hive   string `json:"hive"`
	Output string `json:"output,omitempty"`
	Keys   int    `json:"keys"`
	Values int    `json:"values"`
	Errors int    `json:"errors"`
	Error  string `json:"error,omitempty"`
}

// Summary reports what a run produced.
type Summary struct {
	Hives            int            `json:"hives"`
	Registry         []HiveExport   `json:"registry,omitempty"`
	USBDevices       int            `json:"usb_devices"`
	BluetoothDevices int            `json:"bluetooth_devices"`
	NetworkProfiles  int            `json:"network_profiles"`
	Manifest         string         `json:"manifest,omitempty"`
	Outputs          []string       `json:"outputs"`

	// TableRows counts the rows written per record kind, marker and error
	// rows included, so it matches the CSV line counts and the store's
	// element counts. USBDevices and the export Values count real entries
	// only.
	TableRows map[string]int `json:"table_rows"`
	Errors    []string       `json:"errors,omitempty"`
}

type runner struct {
	req     Request
	out     afero.Fs
	sources []hive.Source
	log     zerolog.Logger

	mu       sync.Mutex
	summary  Summary
	failures []error
}

// Run executes req. Failures confined to one hive or one artifact kind are
// logged, listed in Summary.Errors and returned joined once every other
// extraction has finished. Cancellation of ctx stops the run.
func Run(ctx context.Context, req Request) (Summary, error) {
	if len(req.Hives) == 0 {
		return Summary{}, ErrNoHives
	}
	if req.OutputDir == "" {
		return Summary{}, errors.New("no output directory")
	}
	selected := req.Artifacts
	if len(selected) == 0 {
		selected = AllArtifacts
	}
	artifacts := make([]Artifact, len(selected))
	for i, a := range selected {
		parsed, err := ParseArtifact(string(a))
		if err != nil {
			return Summary{}, err
		}
		artifacts[i] = parsed
	}
	r := &runner{
		req: req,
		out: req.Output,
		log: req.Logger,
		summary: Summary{
			Hives:     len(req.Hives),
			TableRows: make(map[string]int),
		},
	}
	if r.out == nil {
		r.out = afero.NewOsFs()
	}
	for _, p := range req.Hives {
		r.sources = append(r.sources, hive.FileSource(p, req.OpenOptions))
	}

	if req.HashInputs {
		if err := r.manifest(ctx); err != nil {
			return r.summary, err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	workers := req.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for _, a := range artifacts {
		switch a {
		case Registry:
			names := outputNames(r.sources)
			for i, src := range r.sources {
				src, name := src, names[i]
				g.Go(func() error { return r.exportHive(gctx, src, name) })
			}
		case USB:
			g.Go(func() error { return r.usb(gctx) })
		case Bluetooth:
			g.Go(func() error { return r.bluetooth(gctx) })
		case Network:
			g.Go(func() error { return r.network(gctx) })
		}
	}
	if err := g.Wait(); err != nil {
		return r.finish(), err
	}
	return r.finish(), errors.Join(r.failures...)
}

func (r *runner) finish() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Slice(r.summary.Registry, func(i, j int) bool {
		return r.summary.Registry[i].Output < r.summary.Registry[j].Output
	})
	sort.Strings(r.summary.Outputs)
	return r.summary
}

// outputNames gives every source a distinct file name. Repeated hive names
// get a numeric suffix in selection order.
func outputNames(sources []hive.Source) []string {
	seen := make(map[string]int)
	out := make([]string, len(sources))
	for i, src := range sources {
		key := strings.ToUpper(src.Name())
		seen[key]++
		if n := seen[key]; n > 1 {
			out[i] = fmt.Sprintf("%s_%d.csv", src.Name(), n)
			continue
		}
		out[i] = src.Name() + ".csv"
	}
	return out
}

// fail records a failure confined to one extraction. Cancellation is
// returned so the group stops.
func (r *runner) fail(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	r.mu.Lock()
	r.failures = append(r.failures, err)
	r.summary.Errors = append(r.summary.Errors, err.Error())
	r.mu.Unlock()
	return nil
}

// open creates the CSV at rel below the output directory and returns the
// table extractors write to.
func (r *runner) open(ctx context.Context, rel string, header []string, bom bool) (*sink.CSV, *sink.Counter, error) {
	path := filepath.Join(r.req.OutputDir, rel)
	c, err := sink.NewCSV(r.out, path, header, sink.CSVOptions{BOM: bom})
	if err != nil {
		return nil, nil, err
	}
	tables := sink.Multi{c}
	if r.req.Store != nil {
		tables = append(tables, r.req.Store.Table(ctx))
	}
	return c, &sink.Counter{Next: tables}, nil
}

// done closes table and folds its counts into the summary.
func (r *runner) done(c *sink.CSV, table *sink.Counter, kind string) error {
	err := table.Close()
	r.mu.Lock()
	r.summary.Outputs = append(r.summary.Outputs, c.Path())
	r.summary.TableRows[kind] += table.Count(kind)
	r.mu.Unlock()
	return err
}

func (r *runner) manifest(ctx context.Context) error {
	in := r.req.Input
	if in == nil {
		in = afero.NewOsFs()
	}
	c, table, err := r.open(ctx, evidence.FileName, evidence.Header, false)
	if err != nil {
		return err
	}
	entries, err := evidence.Write(ctx, in, r.req.Hives, table, evidence.Options{Logger: r.log})
	if cerr := r.done(c, table, evidence.Kind); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	r.mu.Lock()
	r.summary.Manifest = c.Path()
	r.mu.Unlock()
	r.log.Info().Int("files", len(entries)).Str("path", c.Path()).Msg("input manifest written")
	return nil
}

func (r *runner) exportHive(ctx context.Context, src hive.Source, name string) error {
	log := r.log.With().Str("hive", src.Name()).Logger()
	res := HiveExport{Hive: src.Name()}
	record := func(err error) error {
		if err != nil {
			res.Error = err.Error()
		}
		r.mu.Lock()
		r.summary.Registry = append(r.summary.Registry, res)
		r.mu.Unlock()
		if err != nil {
			log.Error().Err(err).Msg("hive export failed")
			return r.fail(fmt.Errorf("export %s: %w", src.Name(), err))
		}
		return nil
	}

	tree, err := src.Open()
	if err != nil {
		return record(err)
	}
	defer tree.Close()
	root, err := tree.Root()
	if err != nil {
		return record(err)
	}

	c, table, err := r.open(ctx, filepath.Join(RegistryDir, name), export.Header, true)
	if err != nil {
		return record(err)
	}
	res.Output = c.Path()
	log.Info().Msg("exporting hive")
	stats, err := export.Export(ctx, root, table, export.Options{Logger: log})
	if cerr := r.done(c, table, export.Kind); err == nil {
		err = cerr
	}
	res.Keys, res.Values, res.Errors = stats.Keys, stats.Values, stats.Errors
	if err == nil {
		log.Info().Int("keys", stats.Keys).Int("values", stats.Values).Str("path", c.Path()).Msg("hive exported")
	}
	return record(err)
}

func (r *runner) usb(ctx context.Context) error {
	log := r.log.With().Str("artifact", string(USB)).Logger()
	systems := hive.Named(r.sources, "SYSTEM")
	if len(systems) == 0 {
		log.Warn().Msg("no SYSTEM hive selected, skipping USB devices")
		return nil
	}
	src := systems[0]
	tree, err := src.Open()
	if err != nil {
		return r.fail(fmt.Errorf("usb devices: %s: %w", src.Name(), err))
	}
	defer tree.Close()
	root, err := tree.Root()
	if err != nil {
		return r.fail(fmt.Errorf("usb devices: %s: %w", src.Name(), err))
	}

	c, table, err := r.open(ctx, filepath.Join(USBDir, USBFile), usb.Header, true)
	if err != nil {
		return r.fail(fmt.Errorf("usb devices: %w", err))
	}
	n, err := usb.Extract(ctx, root, table, usb.Options{Logger: log})
	if cerr := r.done(c, table, usb.Kind); err == nil {
		err = cerr
	}
	r.mu.Lock()
	r.summary.USBDevices = n
	r.mu.Unlock()
	if err != nil {
		return r.fail(fmt.Errorf("usb devices: %w", err))
	}
	log.Info().Int("devices", n).Str("path", c.Path()).Msg("usb devices written")
	return nil
}

func (r *runner) bluetooth(ctx context.Context) error {
	log := r.log.With().Str("artifact", string(Bluetooth)).Logger()
	c, table, err := r.open(ctx, filepath.Join(BluetoothDir, BluetoothFile), bluetooth.Header, false)
	if err != nil {
		return r.fail(fmt.Errorf("bluetooth devices: %w", err))
	}
	n, err := bluetooth.Extract(ctx, r.sources, table, bluetooth.Options{Logger: log})
	if cerr := r.done(c, table, bluetooth.Kind); err == nil {
		err = cerr
	}
	r.mu.Lock()
	r.summary.BluetoothDevices = n
	r.mu.Unlock()
	if err != nil {
		return r.fail(fmt.Errorf("bluetooth devices: %w", err))
	}
	log.Info().Int("devices", n).Str("path", c.Path()).Msg("bluetooth devices written")
	return nil
}

func (r *runner) network(ctx context.Context) error {
	log := r.log.With().Str("artifact", string(Network)).Logger()
	c, table, err := r.open(ctx, filepath.Join(NetworkDir, NetworkFile), netprofile.Header, false)
	if err != nil {
		return r.fail(fmt.Errorf("network profiles: %w", err))
	}
	n, err := netprofile.Extract(ctx, r.sources, table, netprofile.Options{Logger: log})
	if cerr := r.done(c, table, netprofile.Kind); err == nil {
		err = cerr
	}
	r.mu.Lock()
	r.summary.NetworkProfiles = n
	r.mu.Unlock()
	if err != nil {
		return r.fail(fmt.Errorf("network profiles: %w", err))
	}
	log.Info().Int("profiles", n).Str("path", c.Path()).Msg("network profiles written")
	return nil
}
