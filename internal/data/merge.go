package data

import (
	"log/slog"
	"maps"
)

// Mapping is a decoded YAML document: string keys, arbitrary values.
type Mapping = map[string]any

// Merge returns a new mapping holding every key of base overwritten by every key
// of overlay. It is shallow: a nested mapping present in both is replaced by the
// overlay's, never merged. Neither input is modified.
func Merge(base, overlay Mapping) Mapping {
	out := make(Mapping, len(base)+len(overlay))
	maps.Copy(out, base)
	maps.Copy(out, overlay)
	slog.Debug("Data is merging", slog.Int("base_keys", len(base)), slog.Int("overlay_keys", len(overlay)))
	return out
}
