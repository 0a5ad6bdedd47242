// Package savedata merges player save blobs during account migration.
package savedata

import (
	"encoding/json"
	"fmt"
	"os"
)

// Merge combines a base save with an overlay. Nested objects merge
// recursively, everything else in the overlay replaces the base value.
// Neither input is mutated.
func Merge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		baseChild, baseOK := out[k].(map[string]any)
		overlayChild, overlayOK := v.(map[string]any)
		if baseOK && overlayOK {
			out[k] = Merge(baseChild, overlayChild)
			continue
		}
		out[k] = v
	}
	return out
}

// MergeJSON merges two JSON-encoded saves. An empty or nil input counts as
// an empty object.
func MergeJSON(base, overlay []byte) ([]byte, error) {
	baseMap, err := decode(base)
	if err != nil {
		return nil, fmt.Errorf("decode base save: %w", err)
	}
	overlayMap, err := decode(overlay)
	if err != nil {
		return nil, fmt.Errorf("decode overlay save: %w", err)
	}
	merged, err := json.Marshal(Merge(baseMap, overlayMap))
	if err != nil {
		return nil, fmt.Errorf("encode merged save: %w", err)
	}
	return merged, nil
}

func decode(blob []byte) (map[string]any, error) {
	if len(blob) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(blob, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadOverlay reads the migration overlay from disk. A missing file is not
// an error and yields an empty overlay.
func LoadOverlay(path string) (map[string]any, error) {
	blob, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read overlay %s: %w", path, err)
	}
	m, err := decode(blob)
	if err != nil {
		return nil, fmt.Errorf("decode overlay %s: %w", path, err)
	}
	return m, nil
}
