package utils

import (
	"sort"
	"strings"

	"github.com/bucketfs/bucketfs/pkg/types"
)

// CollapseListing applies S3-style delimiter semantics to a flat set of
// objects whose keys all begin with prefix. Keys containing the delimiter
// beyond the prefix are rolled up into common prefixes (including the
// trailing delimiter); the rest are returned as objects. A max of zero or
// less means unlimited; otherwise objects and prefixes count against it
// together, in key order.
func CollapseListing(objects []types.ObjectInfo, prefix, delimiter string, max int) *types.ListResult {
	sorted := make([]types.ObjectInfo, len(objects))
	copy(sorted, objects)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	result := &types.ListResult{}
	seen := make(map[string]bool)
	count := 0

	for _, obj := range sorted {
		if max > 0 && count >= max {
			break
		}
		rest := strings.TrimPrefix(obj.Key, prefix)
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				common := prefix + rest[:idx+len(delimiter)]
				if !seen[common] {
					seen[common] = true
					result.Prefixes = append(result.Prefixes, common)
					count++
				}
				continue
			}
		}
		result.Objects = append(result.Objects, obj)
		count++
	}

	return result
}
