// Package blockdiff compares a manifest with the locally installed blocks.
package blockdiff

import (
	"github.com/javanhut/contentsync/internal/manifest"
	"github.com/javanhut/contentsync/internal/storage"
)

// Compute returns the manifest entries that must be downloaded (missing
// locally, or installed at a different hash) and the local blocks that no
// longer appear in the manifest. Identifiers on both sides are already
// lowercased. Results follow the input order.
func Compute(entries []manifest.Entry, local []storage.LocalBlock) (toUpdate []manifest.Entry, toDelete []storage.LocalBlock) {
	installed := make(map[string]string, len(local))
	for _, lb := range local {
		installed[lb.ID] = lb.Hash
	}
	published := make(map[string]bool, len(entries))

	for _, e := range entries {
		published[e.ID] = true
		if hash, ok := installed[e.ID]; ok && hash == e.Hash {
			continue
		}
		toUpdate = append(toUpdate, e)
	}
	for _, lb := range local {
		if !published[lb.ID] {
			toDelete = append(toDelete, lb)
		}
	}
	return toUpdate, toDelete
}
