package linker

import "errors"

var (
	// ErrNotFound is returned for lookups and mutations against an unknown
	// component ID.
	ErrNotFound = errors.New("component not found")

	// ErrExists is returned when creating a component whose ID is already
	// live in the registry.
	ErrExists = errors.New("component already exists")

	// ErrCapacity is returned when the registry's component arena is
	// exhausted.
	ErrCapacity = errors.New("registry capacity exhausted")

	// ErrCanonicalReferent rejects destroying a component that other live
	// components still reference as their equivalence-class representative.
	ErrCanonicalReferent = errors.New("component has live canonical members")

	ErrEmptyID     = errors.New("component id must not be empty")
	ErrEmptyAnchor = errors.New("residue anchor must not be empty")
	ErrWeightRange = errors.New("edge weight outside [0,1]")
	ErrPhase       = errors.New("unknown phase")
	ErrEdgeKind    = errors.New("unknown edge kind")
)
