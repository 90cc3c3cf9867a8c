// Package scope builds and merges deployment protection scopes.
package scope

import (
	"fmt"

	"github.com/alertlogic/scopesync/pkg/alertlogic"
)

// Asset is a raw asset descriptor as carried by lifecycle notifications.
type Asset struct {
	Key  string `json:"key"`
	Type string `json:"type"`
}

// RegionKey returns the scope key of a whole region.
func RegionKey(region string) string {
	return fmt.Sprintf("/aws/%s", region)
}

// AssetKey returns the scope key of a resource within a region.
func AssetKey(region, assetType, id string) string {
	return fmt.Sprintf("/aws/%s/%s/%s", region, assetType, id)
}

// RegionAssets returns one region asset per region, in order.
func RegionAssets(regions []string) []Asset {
	assets := make([]Asset, 0, len(regions))
	for _, r := range regions {
		assets = append(assets, Asset{Key: RegionKey(r), Type: alertlogic.AssetRegion})
	}
	return assets
}

// Build turns raw assets into scope entries protected by policyID. An empty
// policyID means no policy could be resolved, and no scope is built.
// Input order is kept and duplicates are not removed.
func Build(policyID string, assets []Asset) []alertlogic.ScopeEntry {
	entries := []alertlogic.ScopeEntry{}
	if policyID == "" {
		return entries
	}
	for _, a := range assets {
		entries = append(entries, alertlogic.ScopeEntry{
			Key:    a.Key,
			Type:   a.Type,
			Policy: &alertlogic.PolicyRef{ID: policyID},
		})
	}
	return entries
}

// Merge appends each candidate to include unless a structurally equal entry
// is already present, and reports how many entries were added. include is
// not modified. Merging the same candidates again adds nothing.
func Merge(include, candidates []alertlogic.ScopeEntry) ([]alertlogic.ScopeEntry, int) {
	merged := make([]alertlogic.ScopeEntry, len(include), len(include)+len(candidates))
	copy(merged, include)

	added := 0
	for _, c := range candidates {
		if contains(merged, c) {
			continue
		}
		merged = append(merged, c)
		added++
	}
	return merged, added
}

func contains(entries []alertlogic.ScopeEntry, e alertlogic.ScopeEntry) bool {
	for _, x := range entries {
		if x.Equal(e) {
			return true
		}
	}
	return false
}

// Put places entry at the front of include, dropping any entry with the
// same key.
func Put(include []alertlogic.ScopeEntry, entry alertlogic.ScopeEntry) []alertlogic.ScopeEntry {
	out := []alertlogic.ScopeEntry{entry}
	for _, e := range include {
		if e.Key != entry.Key {
			out = append(out, e)
		}
	}
	return out
}

// Remove drops every entry with the given key.
func Remove(include []alertlogic.ScopeEntry, key string) []alertlogic.ScopeEntry {
	out := []alertlogic.ScopeEntry{}
	for _, e := range include {
		if e.Key != key {
			out = append(out, e)
		}
	}
	return out
}
