// Package bluetooth extracts paired Bluetooth devices from SYSTEM hives.
package bluetooth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/joshuapare/hiveartifacts/hive"
	"github.com/joshuapare/hiveartifacts/internal/regvalue"
	"github.com/joshuapare/hiveartifacts/internal/sink"
	"github.com/joshuapare/hiveartifacts/internal/wintime"
	"github.com/joshuapare/hiveartifacts/pkg/types"
)

// Kind is the record kind of Device.
const Kind = "bluetooth_device"

// HiveName is the only hive file name this extractor reads.
const HiveName = "SYSTEM"

// DevicesPath holds one subkey per paired device, named by MAC address.
const DevicesPath = `ControlSet001\Services\BTHPORT\Parameters\Devices`

// Header is the column order of Device.
var Header = []string{"Hive", "MAC Address", "Name", "ClassOfDevice", "Device Type", "LastSeen", "LastConnected"}

// majorClasses maps bits 8..12 of the class of device.
var majorClasses = map[uint32]string{
	0x00: "Miscellaneous",
	0x01: "Computer",
	0x02: "Phone",
	0x03: "LAN/Network Access Point",
	0x04: "Audio/Video",
	0x05: "Peripheral",
	0x06: "Imaging",
	0x07: "Wearable",
	0x08: "Toy",
	0x09: "Health",
}

// MajorClass returns the major device class label of cod, or "Unknown".
func MajorClass(cod uint32) string {
	if label, ok := majorClasses[(cod>>8)&0x1F]; ok {
		return label
	}
	return "Unknown"
}

// Device is one paired device.
type Device struct {
	Hive          string `json:"hive"`
	MAC           string `json:"mac"`
	Name          string `json:"name"`
	ClassOfDevice string `json:"class_of_device"`
	DeviceType    string `json:"device_type"`
	LastSeen      string `json:"last_seen"`
	LastConnected string `json:"last_connected"`
}

func (d Device) Kind() string { return Kind }

func (d Device) Row() []string {
	return []string{d.Hive, d.MAC, d.Name, d.ClassOfDevice, d.DeviceType, d.LastSeen, d.LastConnected}
}

// Options tunes an extraction.
type Options struct {
	Logger zerolog.Logger
}

// Extract reads every source named SYSTEM and writes one Device per paired
// device. A hive without the Devices key is skipped with a notice. Hives
// that fail to open or list are logged, skipped and reported together in
// the returned error; the count covers everything written.
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
			log.Info().Str("hive", src.Name()).Int("devices", n).Msg("bluetooth devices parsed")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), errors.Is(err, sink.ErrClosed):
			return total, err
		default:
			log.Error().Err(err).Str("hive", src.Name()).Msg("bluetooth parse failed")
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
	devices, err := root.Open(DevicesPath)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			log.Warn().Str("hive", src.Name()).Msg("Devices key not found")
			return 0, nil
		}
		return 0, err
	}
	children, err := devices.Subkeys()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, dev := range children {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := table.Write(describe(src.Name(), dev)); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func describe(hiveName string, dev hive.Key) Device {
	d := Device{
		Hive:          hiveName,
		MAC:           dev.Name(),
		Name:          deviceName(regvalue.Raw(dev, "Name")),
		LastSeen:      wintime.FiletimeOrEmpty(regvalue.Raw(dev, "LastSeen")),
		LastConnected: wintime.FiletimeOrEmpty(regvalue.Raw(dev, "LastConnected")),
	}
	d.ClassOfDevice, d.DeviceType = classOfDevice(regvalue.Raw(dev, "COD"))
	return d
}

func deviceName(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case []byte:
		return DecodeName(v)
	case string:
		return strings.Trim(v, "\x00")
	default:
		return regvalue.Format(v)
	}
}

// classOfDevice returns the raw class cell and its major label. Absent or
// zero classes leave both cells empty; a payload that is not an integer
// keeps its rendering but gets no label.
func classOfDevice(raw any) (string, string) {
	var cod uint64
	switch v := raw.(type) {
	case nil:
		return "", ""
	case uint32:
		cod = uint64(v)
	case uint64:
		cod = v
	case []byte:
		if len(v) == 0 {
			return "", ""
		}
		return regvalue.Format(v), ""
	default:
		return regvalue.Format(v), ""
	}
	if cod == 0 {
		return "", ""
	}
	return regvalue.Format(cod), MajorClass(uint32(cod))
}
