// Package dedupe collapses record batches by natural key.
package dedupe

// Dedupe returns one record per key. When a key repeats, the payload of its last
// occurrence wins. Output order is the position of each key's first occurrence,
// so the result is deterministic for a given input.
func Dedupe[T any, K comparable](records []T, key func(T) K) []T {
	if len(records) == 0 {
		return nil
	}

	index := make(map[K]int, len(records))
	out := make([]T, 0, len(records))
	for _, r := range records {
		k := key(r)
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

// FindDuplicateKeys returns every key that occurs more than once, each reported
// once, in the order its first repeat was seen. It is diagnostic only.
func FindDuplicateKeys[T any, K comparable](records []T, key func(T) K) []K {
	seen := make(map[K]int, len(records))
	var dups []K
	for _, r := range records {
		k := key(r)
		seen[k]++
		if seen[k] == 2 {
			dups = append(dups, k)
		}
	}
	return dups
}
