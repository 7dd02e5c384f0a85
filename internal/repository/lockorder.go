package repository

import "sort"

// LockOrder returns the distinct ids in ascending order. Every multi-row
// lock in the store is taken in this order so that two units of work
// touching the same rows can never wait on each other in a cycle.
func LockOrder(ids ...int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
