package yellowpage

import (
	"sort"

	"go.uber.org/zap"
)

// digestEntry is the compact per-node summary exchanged in every gossip
// round: just enough for the receiver to decide what it owes us, without
// shipping any actual values.
type digestEntry struct {
	ID         NodeID
	Generation Generation
	MaxVersion uint64
}

// Digest is a full cluster summary, one entry per known (NodeID,
// Generation). O(N) with a small constant, independent of cluster data
// volume.
type Digest []digestEntry

// computeDigest takes a read-locked snapshot of every known node's
// (Generation, MaxVersion).
func (s *Store) computeDigest() Digest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := make(Digest, 0, len(s.nodes))
	for _, ns := range s.nodes {
		d = append(d, digestEntry{ID: ns.ID, Generation: ns.Generation, MaxVersion: ns.MaxVersion})
	}
	return d
}

// computeDeltaFor decides what we owe a peer who reports the given
// remote digest, per spec §4.2:
//   - if our Generation for a node is strictly newer, send everything
//     for it starting at version 1 (the remote's old incarnation is dead)
//   - if Generations match and we have a higher MaxVersion, send only the
//     entries the remote is missing, in ascending version order
//   - a node the remote reports that we don't know anything about yields
//     nothing from us; our own digest (sent alongside) will be missing
//     that entry entirely, which is what prompts the remote to send it to
//     us on the next round
//
// The result is truncated to fit mtuBudget bytes, preferring lower
// versions first and then round-robining across nodes so no single
// peer's backlog starves another's (spec §4.2 MTU discipline).
func (s *Store) computeDeltaFor(remote Digest, mtuBudget int) []deltaEntries {
	s.mu.RLock()
	defer s.mu.RUnlock()

	remoteByID := make(map[NodeID]digestEntry, len(remote))
	for _, e := range remote {
		remoteByID[e.ID] = e
	}

	var out []deltaEntries
	for id, ns := range s.nodes {
		remoteEntry, known := remoteByID[id]

		var fromVersion uint64
		switch {
		case !known:
			fromVersion = 0
		case ns.Generation > remoteEntry.Generation:
			fromVersion = 0
		case ns.Generation < remoteEntry.Generation:
			continue // stale generation locally; we owe nothing, we are the one behind
		default:
			if ns.MaxVersion <= remoteEntry.MaxVersion {
				continue
			}
			fromVersion = remoteEntry.MaxVersion
		}

		entries := entriesNewerThan(ns, fromVersion)
		if len(entries) == 0 {
			continue
		}
		out = append(out, deltaEntries{ID: id, Generation: ns.Generation, Entries: entries})
	}

	return truncateForMTU(out, mtuBudget, s.metrics, s.logger())
}

// entriesNewerThan returns ns's entries with Version > floor, sorted
// ascending by version so the lowest (oldest-missing) entries sit first.
func entriesNewerThan(ns *NodeState, floor uint64) []KeyValue {
	var entries []KeyValue
	for _, kv := range ns.Entries {
		if kv.Version > floor {
			entries = append(entries, kv)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })
	return entries
}

// entryWireSize estimates the serialized size in bytes of one KeyValue
// entry per the §6 wire encoding: u16 key_len + key + u64 version +
// u8 tombstone + u32 value_len + value.
func entryWireSize(kv KeyValue) int {
	return 2 + len(kv.Key) + 8 + 1 + 4 + len(kv.Value)
}

// nodeHeaderSize estimates the per-node delta header: u16 id_len + id +
// u64 generation + u32 entry_count.
func nodeHeaderSize(id NodeID) int {
	return 2 + len(id) + 8 + 4
}

// truncateForMTU merges per-node ascending-version entry queues in
// round-robin order until the budget is exhausted, dropping any single
// entry that alone exceeds the budget (logged as errDeltaTooLarge; spec
// §7 DeltaTooLarge). Truncation is always safe: whatever is left over is
// simply resumed from the peer's next digest.
func truncateForMTU(deltas []deltaEntries, budget int, m *metrics, log *zap.Logger) []deltaEntries {
	const frameOverhead = 4 + 1 + 1 + 4 // magic + version + kind + node_count
	usableBudget := budget - frameOverhead
	if usableBudget < 0 {
		usableBudget = 0
	}
	remaining := usableBudget

	type cursor struct {
		idx  int
		node *deltaEntries
	}
	cursors := make([]cursor, len(deltas))
	headerCost := make([]int, len(deltas))
	for i := range deltas {
		cursors[i] = cursor{node: &deltas[i]}
		headerCost[i] = nodeHeaderSize(deltas[i].ID)
	}

	out := make([]deltaEntries, len(deltas))
	for i, d := range deltas {
		out[i] = deltaEntries{ID: d.ID, Generation: d.Generation}
	}

	truncated := false
	progress := true
	for progress {
		progress = false
		for i := range cursors {
			c := &cursors[i]
			if c.idx >= len(c.node.Entries) {
				continue
			}
			kv := c.node.Entries[c.idx]

			if entryWireSize(kv)+headerCost[i] > usableBudget {
				// a single entry can never fit, even alone in its own
				// datagram: it cannot propagate at all (spec §7
				// DeltaTooLarge). This represents a configuration error
				// (value too close to the mtu budget), not a transient
				// one, so we drop and move on rather than retry.
				log.Debug("dropping oversized delta entry", zap.String("key", kv.Key), zap.Error(errDeltaTooLarge))
				m.incDeltaTooLarge()
				c.idx++
				progress = true
				continue
			}

			cost := entryWireSize(kv)
			if len(out[i].Entries) == 0 {
				cost += headerCost[i]
			}
			if cost > remaining {
				truncated = true
				continue
			}

			out[i].Entries = append(out[i].Entries, kv)
			remaining -= cost
			c.idx++
			progress = true
		}
	}

	if truncated {
		m.incDeltaTruncations()
	}

	result := out[:0]
	for _, d := range out {
		if len(d.Entries) > 0 {
			result = append(result, d)
		}
	}
	return result
}
