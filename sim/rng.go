package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/google/uuid"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical configuration
// MUST produce identical event traces and workflow graphs.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemTaskNames draws the random suffixes of compute task names.
	SubsystemTaskNames = "task_names"

	// SubsystemPeers draws dissemination targets.
	SubsystemPeers = "peers"
)

// SubsystemClient returns the subsystem name for client N, for protocol
// variants that need per-client randomness.
func SubsystemClient(id int) string {
	return fmt.Sprintf("client_%d", id)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem,
// so that drawing peers never shifts the sequence of task names and vice versa.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe. A run is single-threaded; concurrent runs
// each own their PartitionedRNG.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// TaskName returns "<prefix>_<uuid>" with the UUID drawn from the task-name
// subsystem, so names are unique in practice and identical across replays.
func (p *PartitionedRNG) TaskName(prefix string) (string, error) {
	id, err := uuid.NewRandomFromReader(p.ForSubsystem(SubsystemTaskNames))
	if err != nil {
		return "", fmt.Errorf("generating %s task name: %w", prefix, err)
	}
	return prefix + "_" + id.String(), nil
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
