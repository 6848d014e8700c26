// Package usb extracts USB device history from a SYSTEM hive.
//
// Devices are enumerated from Enum\USBSTOR and Enum\USB. Each subtree is
// looked up independently under ControlSet001, ControlSet002 and
// CurrentControlSet, and the first control set containing it wins.
package usb

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/joshuapare/hiveartifacts/hive"
	"github.com/joshuapare/hiveartifacts/internal/regvalue"
	"github.com/joshuapare/hiveartifacts/internal/sink"
	"github.com/joshuapare/hiveartifacts/internal/wintime"
	"github.com/joshuapare/hiveartifacts/pkg/types"
)

// Kind is the record kind of Device.
const Kind = "usb_device"

// Subtree names, in extraction order.
const (
	TypeUSBSTOR = "USBSTOR"
	TypeUSB     = "USB"
)

// MissingMarker fills the Device ID column of the row emitted for a subtree
// that is absent from every control set.
const MissingMarker = "No devices found or key missing"

// ControlSets are tried in order for each subtree.
var ControlSets = []string{"ControlSet001", "ControlSet002", "CurrentControlSet"}

// Header is the column order of Device.
var Header = []string{
	"Type", "Device ID", "Instance ID", "Key Last Modified", "Device Description",
	"Friendly Name", "Service", "Class GUID", "Parent ID Prefix", "Serial Number",
	"Hardware IDs", "Compatible IDs", "Driver", "Manufacturer", "Location Information",
}

// Device is one device instance.
type Device struct {
	Type                string `json:"type" structs:"usb_type"`
	DeviceID            string `json:"device_id"`
	InstanceID          string `json:"instance_id"`
	LastModified        string `json:"last_modified"`
	DeviceDesc          string `json:"device_desc"`
	FriendlyName        string `json:"friendly_name"`
	Service             string `json:"service"`
	ClassGUID           string `json:"class_guid"`
	ParentIDPrefix      string `json:"parent_id_prefix"`
	SerialNumber        string `json:"serial_number"`
	HardwareIDs         string `json:"hardware_ids"`
	CompatibleIDs       string `json:"compatible_ids"`
	Driver              string `json:"driver"`
	Manufacturer        string `json:"manufacturer"`
	LocationInformation string `json:"location_information"`
}

func (d Device) Kind() string { return Kind }

func (d Device) Row() []string {
	return []string{
		d.Type, d.DeviceID, d.InstanceID, d.LastModified, d.DeviceDesc,
		d.FriendlyName, d.Service, d.ClassGUID, d.ParentIDPrefix, d.SerialNumber,
		d.HardwareIDs, d.CompatibleIDs, d.Driver, d.Manufacturer, d.LocationInformation,
	}
}

// Options tunes an extraction.
type Options struct {
	Logger zerolog.Logger
}

// Extract writes one Device per instance key below USBSTOR and USB and
// returns how many it wrote. A missing subtree yields a single marker row
// that is not counted.
func Extract(ctx context.Context, root hive.Key, table sink.Table, opts Options) (int, error) {
	log := opts.Logger
	total := 0
	for _, kind := range []string{TypeUSBSTOR, TypeUSB} {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		sub, cs := resolve(root, kind, log)
		if sub == nil {
			log.Info().Str("subtree", kind).Msg("enumeration key missing in every control set")
			if err := table.Write(Device{Type: kind, DeviceID: MissingMarker}); err != nil {
				return total, err
			}
			continue
		}
		n, err := walk(ctx, sub, kind, table, log)
		total += n
		if err != nil {
			return total, err
		}
		log.Debug().Str("subtree", kind).Str("control_set", cs).Int("devices", n).Msg("subtree parsed")
	}
	return total, nil
}

func resolve(root hive.Key, kind string, log zerolog.Logger) (hive.Key, string) {
	for _, cs := range ControlSets {
		k, err := root.Open(cs + `\Enum\` + kind)
		if err == nil {
			return k, cs
		}
		if !errors.Is(err, types.ErrNotFound) {
			log.Warn().Err(err).Str("control_set", cs).Str("subtree", kind).Msg("control set unreadable")
		}
	}
	return nil, ""
}

func walk(ctx context.Context, sub hive.Key, kind string, table sink.Table, log zerolog.Logger) (int, error) {
	devices, err := sub.Subkeys()
	if err != nil {
		log.Warn().Err(err).Str("subtree", kind).Msg("cannot list device ids")
		return 0, nil
	}
	count := 0
	for _, dev := range devices {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		instances, err := dev.Subkeys()
		if err != nil {
			log.Warn().Err(err).Str("device_id", dev.Name()).Msg("cannot list instances")
			continue
		}
		for _, inst := range instances {
			if err := table.Write(describe(kind, dev.Name(), inst)); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func describe(kind, deviceID string, inst hive.Key) Device {
	d := Device{
		Type:                kind,
		DeviceID:            deviceID,
		InstanceID:          inst.Name(),
		LastModified:        "N/A",
		DeviceDesc:          regvalue.SafeRead(inst, "DeviceDesc"),
		FriendlyName:        regvalue.SafeRead(inst, "FriendlyName"),
		Service:             regvalue.SafeRead(inst, "Service"),
		ClassGUID:           regvalue.SafeRead(inst, "ClassGUID"),
		ParentIDPrefix:      regvalue.SafeRead(inst, "ParentIdPrefix"),
		HardwareIDs:         regvalue.SafeRead(inst, "HardwareID"),
		CompatibleIDs:       regvalue.SafeRead(inst, "CompatibleIDs"),
		Driver:              regvalue.SafeRead(inst, "Driver"),
		Manufacturer:        regvalue.SafeRead(inst, "Mfg"),
		LocationInformation: regvalue.SafeRead(inst, "LocationInformation"),
		SerialNumber:        inst.Name(),
	}
	if ts, err := inst.LastWrite(); err == nil {
		d.LastModified = ts.UTC().Format(wintime.FiletimeLayout)
	}
	if serial := regvalue.SafeRead(inst, "SerialNumber"); serial != "" {
		d.SerialNumber = serial
	}
	return d
}
