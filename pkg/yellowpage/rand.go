package yellowpage

// pickDistinct returns up to n distinct, randomly chosen elements of
// candidates using rng, via a Fisher-Yates-style partial shuffle.
// Adapted from the teacher's gossip/pkg/rand.go randIndexes (which
// generated repeatable-index lists off the shared math/rand global);
// here rng is always the Store's own per-instance-seeded source so a
// fleet restarted together does not gossip in lockstep (spec §9 "Random
// peer selection"), and the result is guaranteed duplicate-free since
// peer-selection in spec §4.4 explicitly deduplicates by address.
func pickDistinct[T comparable](rng interface{ Intn(int) int }, candidates []T, n int) []T {
	if len(candidates) == 0 || n <= 0 {
		return nil
	}
	if n >= len(candidates) {
		out := make([]T, len(candidates))
		copy(out, candidates)
		return out
	}

	pool := make([]T, len(candidates))
	copy(pool, candidates)
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		idx := rng.Intn(len(pool))
		out = append(out, pool[idx])
		pool[idx] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return out
}
