package manifest

import (
	"fmt"

	"github.com/isolink-io/isolink/pkg/anchor"
	"github.com/isolink-io/isolink/pkg/linker"
)

// Engine is the subset of the linker façade Apply drives.
type Engine interface {
	CreateComponent(id linker.ComponentID, anchorName string) error
	SetPhase(id linker.ComponentID, phase linker.Phase) error
	AddEdge(ownerID, callerID, calleeID linker.ComponentID, kind linker.EdgeKind, weight float64) error
	AddResidue(id linker.ComponentID, anchorName string, context any, activation linker.Activation) error
}

// Apply seeds an engine with the linkset's components. Activation kinds are
// resolved through the registry; unknown kinds fail the whole apply before
// any partial component is visible to resolvers, because components are
// created in declaration order and the failing one is reported by ID.
func (ls *Linkset) Apply(engine Engine, anchors *anchor.Registry) error {
	if anchors == nil {
		anchors = anchor.NewRegistry()
	}

	for _, comp := range ls.Components {
		id := linker.ComponentID(comp.ID)
		if err := engine.CreateComponent(id, ""); err != nil {
			return fmt.Errorf("component %s: %w", comp.ID, err)
		}
		if comp.Phase != "" {
			if err := engine.SetPhase(id, linker.Phase(comp.Phase)); err != nil {
				return fmt.Errorf("component %s: %w", comp.ID, err)
			}
		}
		for _, res := range comp.Anchors {
			var act linker.Activation
			if res.Activation != nil {
				built, err := anchors.Build(*res.Activation)
				if err != nil {
					return fmt.Errorf("component %s anchor %s: %w", comp.ID, res.Name, err)
				}
				act = built
			}
			if err := engine.AddResidue(id, res.Name, res.Context, act); err != nil {
				return fmt.Errorf("component %s anchor %s: %w", comp.ID, res.Name, err)
			}
		}
		for _, e := range comp.Edges {
			caller := linker.ComponentID(e.Caller)
			if caller == "" {
				caller = id
			}
			kind := linker.EdgeKind(e.Kind)
			if kind == "" {
				kind = linker.EdgeDirect
			}
			if err := engine.AddEdge(id, caller, linker.ComponentID(e.Callee), kind, e.Weight); err != nil {
				return fmt.Errorf("component %s edge to %s: %w", comp.ID, e.Callee, err)
			}
		}
	}
	return nil
}
