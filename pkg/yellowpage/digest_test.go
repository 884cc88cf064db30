package yellowpage

import "testing"

func TestComputeDeltaForSendsOnlyMissingEntries(t *testing.T) {
	s := newStore(testConfig("a"), Generation(1))
	s.Set("k1", "v1")
	s.Set("k2", "v2")

	remote := Digest{{ID: "a", Generation: 1, MaxVersion: 1}}
	deltas := s.computeDeltaFor(remote, defaultMTUBudget)

	if len(deltas) != 1 || deltas[0].ID != "a" {
		t.Fatalf("expected one delta for node a, got %+v", deltas)
	}
	if len(deltas[0].Entries) != 1 || deltas[0].Entries[0].Version != 2 {
		t.Fatalf("expected exactly the version-2 entry missing from the remote, got %+v", deltas[0].Entries)
	}
}

func TestComputeDeltaForUnknownLocalGenerationSendsEverything(t *testing.T) {
	s := newStore(testConfig("a"), Generation(1))
	s.applyDelta(deltaEntries{ID: "b", Generation: 5, Entries: []KeyValue{
		{Key: "k1", Value: "v1", Version: 1},
		{Key: "k2", Value: "v2", Version: 2},
	}})

	remote := Digest{{ID: "b", Generation: 3, MaxVersion: 100}}
	deltas := s.computeDeltaFor(remote, defaultMTUBudget)

	if len(deltas) != 1 || len(deltas[0].Entries) != 2 {
		t.Fatalf("expected a strictly newer local Generation to resend everything from version 1, got %+v", deltas)
	}
}

func TestComputeDeltaForOmitsNodeRemoteIsAheadOn(t *testing.T) {
	s := newStore(testConfig("a"), Generation(1))
	s.applyDelta(deltaEntries{ID: "b", Generation: 1, Entries: []KeyValue{{Key: "k", Value: "v", Version: 1}}})

	remote := Digest{{ID: "b", Generation: 3, MaxVersion: 100}}
	deltas := s.computeDeltaFor(remote, defaultMTUBudget)

	for _, d := range deltas {
		if d.ID == "b" {
			t.Fatalf("expected nothing owed for a node whose remote Generation is ahead of ours, got %+v", d)
		}
	}
}

func TestTruncateForMTUDropsEntriesThatNeverFit(t *testing.T) {
	deltas := []deltaEntries{
		{ID: "a", Generation: 1, Entries: []KeyValue{
			{Key: "k", Value: string(make([]byte, 10_000)), Version: 1},
		}},
	}
	m := newMetrics(nil)
	out := truncateForMTU(deltas, 128, m, testLogger())

	if len(out) != 0 {
		t.Fatalf("expected an entry that can never fit even alone to be dropped, got %+v", out)
	}
}

func TestTruncateForMTURoundRobinsAcrossNodes(t *testing.T) {
	mk := func(id NodeID, n int) deltaEntries {
		var entries []KeyValue
		for i := 0; i < n; i++ {
			entries = append(entries, KeyValue{Key: "k", Value: "v", Version: uint64(i + 1)})
		}
		return deltaEntries{ID: id, Generation: 1, Entries: entries}
	}
	deltas := []deltaEntries{mk("a", 10), mk("b", 10)}

	// budget for roughly 6 entries total plus headers
	budget := 2*nodeHeaderSize("a") + 6*entryWireSize(KeyValue{Key: "k", Value: "v", Version: 1}) + (4 + 1 + 1 + 4)
	m := newMetrics(nil)
	out := truncateForMTU(deltas, budget, m, testLogger())

	if len(out) != 2 {
		t.Fatalf("expected both nodes to get some entries under round-robin, got %d node deltas", len(out))
	}
	for _, d := range out {
		if len(d.Entries) == 0 {
			t.Fatalf("expected node %s to receive at least one entry, got none", d.ID)
		}
		if len(d.Entries) >= 10 {
			t.Fatalf("expected truncation to have actually dropped some entries for node %s", d.ID)
		}
	}
}
