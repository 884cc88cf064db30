package yellowpage

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCoordinatorStartRequiresNodeIDAndAddr(t *testing.T) {
	c := NewCoordinator()
	if err := c.Start(Config{Logger: zap.NewNop()}); err == nil {
		t.Fatalf("expected Start with no NodeID or ListenAddr to fail validation")
	}
}

func TestCoordinatorDoubleStartFails(t *testing.T) {
	c := NewCoordinator()
	cfg := Config{NodeID: "a", ListenAddr: "127.0.0.1:0", Logger: zap.NewNop()}
	if err := c.Start(cfg); err != nil {
		t.Fatalf("unexpected error starting coordinator: %v", err)
	}
	defer c.Shutdown()

	if err := c.Start(cfg); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted on a second Start, got %v", err)
	}
}

func TestCoordinatorSetMetadataRejectsReservedKeys(t *testing.T) {
	c := NewCoordinator()
	cfg := Config{NodeID: "a", ListenAddr: "127.0.0.1:0", Logger: zap.NewNop()}
	if err := c.Start(cfg); err != nil {
		t.Fatalf("unexpected error starting coordinator: %v", err)
	}
	defer c.Shutdown()

	c.SetMetadata("_zuk:sneaky", "x")
	if _, ok := c.GetMetadata("a", "_zuk:sneaky"); ok {
		t.Fatalf("expected a write to a reserved key to be silently ignored")
	}

	c.SetMetadata("role", "worker")
	if val, ok := c.GetMetadata("a", "role"); !ok || val != "worker" {
		t.Fatalf("expected role=worker to be readable after SetMetadata, got %q ok=%v", val, ok)
	}
}

func TestCoordinatorLiveNodesIncludesSelf(t *testing.T) {
	c := NewCoordinator()
	cfg := Config{NodeID: "solo", ListenAddr: "127.0.0.1:0", Logger: zap.NewNop()}
	if err := c.Start(cfg); err != nil {
		t.Fatalf("unexpected error starting coordinator: %v", err)
	}
	defer c.Shutdown()

	idx, ok := c.MyIndex()
	if !ok || idx != 0 {
		t.Fatalf("expected a solo node to find itself at index 0, got idx=%d ok=%v", idx, ok)
	}
}

func TestCoordinatorShutdownIsIdempotent(t *testing.T) {
	c := NewCoordinator()
	cfg := Config{NodeID: "a", ListenAddr: "127.0.0.1:0", Logger: zap.NewNop()}
	if err := c.Start(cfg); err != nil {
		t.Fatalf("unexpected error starting coordinator: %v", err)
	}

	if err := c.Shutdown(); err != nil {
		t.Fatalf("unexpected error on first Shutdown: %v", err)
	}
	if err := c.Shutdown(); err != nil {
		t.Fatalf("expected a second Shutdown to be a no-op, got error: %v", err)
	}
}

func TestCoordinatorSubscribeReceivesInitialSnapshot(t *testing.T) {
	c := NewCoordinator()
	cfg := Config{NodeID: "a", ListenAddr: "127.0.0.1:0", Logger: zap.NewNop()}
	if err := c.Start(cfg); err != nil {
		t.Fatalf("unexpected error starting coordinator: %v", err)
	}
	defer c.Shutdown()

	sub := c.Subscribe()
	defer sub.Close()

	select {
	case v := <-sub.Updates():
		if len(v.LiveNodes) != 1 {
			t.Fatalf("expected initial snapshot to contain self, got %+v", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the initial membership snapshot")
	}
}
