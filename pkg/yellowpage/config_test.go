package yellowpage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWithDefaultsRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{
			name: "empty node id",
			cfg:  Config{ListenAddr: "127.0.0.1:0"},
		},
		{
			name: "empty listen addr",
			cfg:  Config{NodeID: "a"},
		},
		{
			name: "phi dead threshold equal to suspect threshold",
			cfg: Config{
				NodeID: "a", ListenAddr: "127.0.0.1:0",
				PhiSuspectThreshold: 8.0, PhiDeadThreshold: 8.0,
			},
		},
		{
			name: "phi dead threshold below suspect threshold",
			cfg: Config{
				NodeID: "a", ListenAddr: "127.0.0.1:0",
				PhiSuspectThreshold: 12.0, PhiDeadThreshold: 8.0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.withDefaults()
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigWithDefaultsFillsInZeroValues(t *testing.T) {
	cfg, err := Config{NodeID: "a", ListenAddr: "127.0.0.1:0"}.withDefaults()
	require.NoError(t, err)

	assert.Equal(t, defaultGossipInterval, cfg.GossipInterval)
	assert.Equal(t, 1, cfg.GossipFanoutLive)
	assert.Equal(t, 1, cfg.GossipFanoutDead)
	assert.Equal(t, 1, cfg.GossipFanoutSeed)
	assert.Equal(t, defaultPhiSuspectThreshold, cfg.PhiSuspectThreshold)
	assert.Equal(t, defaultPhiDeadThreshold, cfg.PhiDeadThreshold)
	assert.Equal(t, defaultArrivalWindowCapacity, cfg.ArrivalWindowCapacity)
	assert.Equal(t, defaultMTUBudget, cfg.MTUBudget)
	assert.Equal(t, defaultDeadNodeGrace, cfg.DeadNodeGrace)
	assert.Equal(t, defaultBootstrapInterval, cfg.BootstrapInterval)
	assert.NotNil(t, cfg.Logger)
}

func TestConfigWithDefaultsPreservesExplicitValues(t *testing.T) {
	cfg, err := Config{
		NodeID:              "a",
		ListenAddr:          "127.0.0.1:0",
		GossipInterval:      250 * time.Millisecond,
		PhiSuspectThreshold: 6.0,
		PhiDeadThreshold:    9.0,
	}.withDefaults()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.GossipInterval)
	assert.Equal(t, 6.0, cfg.PhiSuspectThreshold)
	assert.Equal(t, 9.0, cfg.PhiDeadThreshold)
}
