package config

import "math"

// NoLimit disables the size budget on log reads.
const NoLimit = math.MaxUint64

type RaftConfig struct {
	// MaxApplyEntsSize caps the total payload bytes handed to the state
	// machine in one apply batch.
	MaxApplyEntsSize uint64 `mapstructure:"max-apply-ents-size" yaml:"max-apply-ents-size"`
}

func defaultRaftConfig() *RaftConfig {
	return &RaftConfig{MaxApplyEntsSize: NoLimit}
}
