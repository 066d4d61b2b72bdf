package store

import "errors"

// ErrNotFound is returned by every backend when a record does not exist or
// its id is malformed for that backend.
var ErrNotFound = errors.New("record not found")

// orderByIDs returns the values of byID in ids order, skipping ids with no match.
func orderByIDs[T any](ids []string, byID map[string]T) []T {
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out
}
