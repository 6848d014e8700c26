package reader

import (
	"fmt"
	"strings"

	"github.com/joshuapare/hiveartifacts/pkg/types"
)

var rootAliases = []string{
	"HKEY_LOCAL_MACHINE", "HKLM",
	"HKEY_CLASSES_ROOT", "HKCR",
	"HKEY_CURRENT_USER", "HKCU",
	"HKEY_USERS", "HKU",
	"HKEY_CURRENT_CONFIG", "HKCC",
}

// Find resolves a backslash (or slash) separated path below the root key.
// A leading hive alias such as HKLM\ and a leading segment equal to the
// root key's own name are both ignored.
func (r *reader) Find(path string) (types.NodeID, error) {
	if err := r.ensureOpen(); err != nil {
		return 0, err
	}
	current, err := r.Root()
	if err != nil {
		return 0, err
	}
	segments := SplitPath(stripRootAlias(strings.TrimSpace(path)))
	if len(segments) == 0 {
		return current, nil
	}
	if rootName, err := r.KeyName(current); err == nil && rootName != "" && strings.EqualFold(segments[0], rootName) {
		// Only strip when the root has no child of the same name.
		if _, childErr := r.Lookup(current, segments[0]); childErr != nil {
			segments = segments[1:]
		}
	}
	for _, seg := range segments {
		next, err := r.Lookup(current, seg)
		if err != nil {
			return 0, fmt.Errorf("find %q: %w", path, err)
		}
		current = next
	}
	return current, nil
}

// Lookup finds a direct child key by name, case-insensitively. Children
// whose names cannot be decoded are skipped.
func (r *reader) Lookup(parent types.NodeID, name string) (types.NodeID, error) {
	children, err := r.Subkeys(parent)
	if err != nil {
		return 0, err
	}
	for _, child := range children {
		childName, err := r.KeyName(child)
		if err != nil {
			continue
		}
		if strings.EqualFold(childName, name) {
			return child, nil
		}
	}
	return 0, types.NotFound(fmt.Sprintf("subkey %q", name))
}

// GetValue finds a value by name, case-insensitively. The empty name
// addresses the default value.
func (r *reader) GetValue(node types.NodeID, name string) (types.ValueID, error) {
	values, err := r.Values(node)
	if err != nil {
		return 0, err
	}
	for _, id := range values {
		valueName, err := r.ValueName(id)
		if err != nil {
			continue
		}
		if strings.EqualFold(valueName, name) {
			return id, nil
		}
	}
	return 0, types.NotFound(fmt.Sprintf("value %q", name))
}

// SplitPath splits a registry path on \ or / and drops empty segments.
func SplitPath(path string) []string {
	path = strings.ReplaceAll(path, "/", `\`)
	var out []string
	for _, p := range strings.Split(path, `\`) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stripRootAlias(path string) string {
	upper := strings.ToUpper(path)
	for _, alias := range rootAliases {
		if upper == alias {
			return ""
		}
		if strings.HasPrefix(upper, alias+`\`) {
			return path[len(alias)+1:]
		}
	}
	return path
}
