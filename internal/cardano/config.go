package cardano

import "time"

// MithrilSnapshotConfig describes where a network's locally cached mithril
// snapshot lives and whether it is refreshed automatically.
type MithrilSnapshotConfig struct {
	SnapshotDir string `mapstructure:"snapshot_dir" json:"snapshot_dir"`
	AutoUpdate  bool   `mapstructure:"auto_update" json:"auto_update"`
}

// ChainSyncConfig configures one network's sync task (spec.md §4.9).
type ChainSyncConfig struct {
	RelayAddress          string                `mapstructure:"relay_address" json:"relay_address"`
	ChainUpdateBufferSize int                   `mapstructure:"chain_update_buffer_size" json:"chain_update_buffer_size"`
	ImmutableSlotWindow   uint64                `mapstructure:"immutable_slot_window" json:"immutable_slot_window"`
	Mithril               MithrilSnapshotConfig `mapstructure:"mithril" json:"mithril"`
}

// DefaultChainSyncConfig fills in spec.md §4.9's documented defaults.
func DefaultChainSyncConfig() ChainSyncConfig {
	return ChainSyncConfig{
		ChainUpdateBufferSize: 32,
		ImmutableSlotWindow:   43200,
	}
}

// immutableSlotWindowDuration is the default 12-hour volatile boundary
// expressed as a duration, for components that reason in wall-clock terms
// rather than slot counts.
const immutableSlotWindowDuration = 12 * time.Hour
