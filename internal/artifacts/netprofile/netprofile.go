// Package netprofile extracts network profile history from SOFTWARE hives.
package netprofile

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/joshuapare/hiveartifacts/hive"
	"github.com/joshuapare/hiveartifacts/internal/regvalue"
	"github.com/joshuapare/hiveartifacts/internal/sink"
	"github.com/joshuapare/hiveartifacts/internal/wintime"
	"github.com/joshuapare/hiveartifacts/pkg/types"
)

// Kind is the record kind of Profile.
const Kind = "network_profile"

// HiveName is the only hive file name this extractor reads.
const HiveName = "SOFTWARE"

// ProfilesPath holds one subkey per profile, named by profile GUID.
const ProfilesPath = `Microsoft\Windows NT\CurrentVersion\NetworkList\Profiles`

// Header is the column order of Profile.
var Header = []string{"Hive", "ProfileName", "Description", "DateCreated", "Managed", "DateLastConnected"}

// Profile is one network profile.
type Profile struct {
	Hive              string `json:"hive"`
	ProfileName       string `json:"profile_name"`
	Description       string `json:"description"`
	DateCreated       string `json:"date_created"`
	Managed           string `json:"managed"`
	DateLastConnected string `json:"date_last_connected"`
}

func (p Profile) Kind() string { return Kind }

func (p Profile) Row() []string {
	return []string{p.Hive, p.ProfileName, p.Description, p.DateCreated, p.Managed, p.DateLastConnected}
}

// Options tunes an extraction.
type Options struct {
	Logger zerolog.Logger
}

// Extract reads every source named SOFTWARE and writes one Profile per
// profile key. A hive without the Profiles key is skipped with a notice.
// Hives that fail to open or list are logged and reported together in the
// returned error.
func Extract(ctx context.Context, sources []hive.Source, table sink.Table, opts Options) (int, error) {
	log := opts.Logger
	total := 0
	var errs []error
	for _, src := range hive.Named(sources, HiveName) {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := extractHive(ctx, src, table, log)
		total += n
		switch {
		case err == nil:
			log.Info().Str("hive", src.Name()).Int("profiles", n).Msg("network profiles parsed")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, sink.ErrClosed):
			return total, err
		default:
			log.Error().Err(err).Str("hive", src.Name()).Msg("network parse failed")
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		}
	}
	return total, errors.Join(errs...)
}

func extractHive(ctx context.Context, src hive.Source, table sink.Table, log zerolog.Logger) (int, error) {
	tree, err := src.Open()
	if err != nil {
		return 0, err
	}
	defer tree.Close()

	root, err := tree.Root()
	if err != nil {
		return 0, err
	}
	profiles, err := root.Open(ProfilesPath)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			log.Warn().Str("hive", src.Name()).Msg("Profiles key not found")
			return 0, nil
		}
		return 0, err
	}
	children, err := profiles.Subkeys()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, p := range children {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		rec := Profile{
			Hive:              src.Name(),
			ProfileName:       regvalue.SafeRead(p, "ProfileName"),
			Description:       regvalue.SafeRead(p, "Description"),
			DateCreated:       wintime.Classify(regvalue.Raw(p, "DateCreated")).String(),
			Managed:           regvalue.SafeRead(p, "Managed"),
			DateLastConnected: wintime.Classify(regvalue.Raw(p, "DateLastConnected")).String(),
		}
		if err := table.Write(rec); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
