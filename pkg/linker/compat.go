package linker

// ResidueComparer decides whether two residue sequences are semantically
// compatible during isomorphism checks. Implementations are called
// synchronously under the engine lock: no blocking I/O, no calls back into
// the engine.
type ResidueComparer interface {
	Compatible(a, b []SymbolicResidue) bool
}

// AlwaysCompatible treats every pair of residue sequences as compatible.
// It is the default comparer; isomorphism then reduces to phase and edge
// structure alone.
type AlwaysCompatible struct{}

func (AlwaysCompatible) Compatible(a, b []SymbolicResidue) bool { return true }
