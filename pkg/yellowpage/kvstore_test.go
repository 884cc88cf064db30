package yellowpage

import (
	"testing"

	"go.uber.org/zap"
)

func testConfig(id string) Config {
	cfg, err := Config{NodeID: NodeID(id), ListenAddr: "127.0.0.1:0", Logger: zap.NewNop()}.withDefaults()
	if err != nil {
		panic(err)
	}
	return cfg
}

func TestSetAssignsMonotonicVersions(t *testing.T) {
	s := newStore(testConfig("a"), Generation(1))

	v1 := s.Set("k", "v1")
	v2 := s.Set("k", "v2")
	v3 := s.Set("other", "v3")

	if v1 != 1 || v2 != 2 || v3 != 3 {
		t.Fatalf("expected strictly increasing versions 1,2,3; got %d,%d,%d", v1, v2, v3)
	}

	val, ok := s.Get(NodeID("a"), "k")
	if !ok || val != "v2" {
		t.Fatalf("expected k=v2, got %q ok=%v", val, ok)
	}
}

func TestDeleteWritesTombstone(t *testing.T) {
	s := newStore(testConfig("a"), Generation(1))
	s.Set("k", "v1")
	s.Delete("k")

	if _, ok := s.Get(NodeID("a"), "k"); ok {
		t.Fatalf("expected tombstoned key to read as absent")
	}

	ns, ok := s.nodeState("a")
	if !ok {
		t.Fatalf("expected local node state to exist")
	}
	kv, ok := ns.Entries["k"]
	if !ok || !kv.Tombstone {
		t.Fatalf("expected tombstone entry to be retained with its version, got %+v ok=%v", kv, ok)
	}
}

func TestApplyDeltaIgnoresStaleGeneration(t *testing.T) {
	s := newStore(testConfig("a"), Generation(1))

	s.applyDelta(deltaEntries{ID: "b", Generation: 5, Entries: []KeyValue{{Key: "k", Value: "v1", Version: 1}}})
	res := s.applyDelta(deltaEntries{ID: "b", Generation: 3, Entries: []KeyValue{{Key: "k", Value: "stale", Version: 99}}})

	if res.touched {
		t.Fatalf("expected a lower Generation delta to be entirely ignored")
	}
	val, ok := s.Get("b", "k")
	if !ok || val != "v1" {
		t.Fatalf("expected stale-generation delta to leave existing state untouched, got %q", val)
	}
}

func TestApplyDeltaHigherGenerationReplacesWholesale(t *testing.T) {
	s := newStore(testConfig("a"), Generation(1))

	s.applyDelta(deltaEntries{ID: "b", Generation: 1, Entries: []KeyValue{{Key: "k1", Value: "old", Version: 1}}})
	res := s.applyDelta(deltaEntries{ID: "b", Generation: 2, Entries: []KeyValue{{Key: "k2", Value: "new", Version: 1}}})

	if !res.newGeneration || !res.heartbeatAdvanced {
		t.Fatalf("expected a Generation bump to report newGeneration and an implied heartbeat, got %+v", res)
	}
	if _, ok := s.Get("b", "k1"); ok {
		t.Fatalf("expected the prior incarnation's keys to be gone after a Generation bump")
	}
	if val, ok := s.Get("b", "k2"); !ok || val != "new" {
		t.Fatalf("expected k2=new from the new incarnation, got %q ok=%v", val, ok)
	}
}

func TestApplyDeltaDropsStaleVersions(t *testing.T) {
	s := newStore(testConfig("a"), Generation(1))

	s.applyDelta(deltaEntries{ID: "b", Generation: 1, Entries: []KeyValue{{Key: "k", Value: "v2", Version: 2}}})
	res := s.applyDelta(deltaEntries{ID: "b", Generation: 1, Entries: []KeyValue{{Key: "k", Value: "v1", Version: 1}}})

	if res.touched {
		t.Fatalf("expected an older version to be dropped silently, not applied")
	}
	val, _ := s.Get("b", "k")
	if val != "v2" {
		t.Fatalf("expected newer version to win regardless of arrival order, got %q", val)
	}
}

func TestApplyDeltaOnlyHeartbeatKeyAdvancesLiveness(t *testing.T) {
	s := newStore(testConfig("a"), Generation(1))

	res := s.applyDelta(deltaEntries{ID: "b", Generation: 1, Entries: []KeyValue{{Key: "unrelated", Value: "x", Version: 1}}})
	if !res.touched {
		t.Fatalf("expected the store to be touched")
	}
	if res.heartbeatAdvanced {
		t.Fatalf("expected an unrelated key change to not count as a heartbeat arrival")
	}

	res = s.applyDelta(deltaEntries{ID: "b", Generation: 1, Entries: []KeyValue{{Key: KeyHeartbeat, Value: "t1", Version: 2}}})
	if !res.heartbeatAdvanced {
		t.Fatalf("expected a heartbeat key change to be reported as a heartbeat arrival")
	}
}

func TestIsReservedKey(t *testing.T) {
	cases := map[string]bool{
		"_zuk:addr": true,
		"_zuk:":     true,
		"heartbeat": false,
		"my-key":    false,
	}
	for k, want := range cases {
		if got := IsReservedKey(k); got != want {
			t.Fatalf("IsReservedKey(%q) = %v, want %v", k, got, want)
		}
	}
}
