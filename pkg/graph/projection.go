package graph

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/isolink-io/isolink/pkg/linker"
)

// FromViews builds a one-shot graph from a registry snapshot. Edges whose
// endpoints are not in the snapshot (destroyed components) are skipped so
// renderers never see dangling references.
func FromViews(views []linker.ComponentView) *Graph {
	g := NewGraph()
	for _, v := range views {
		g.AddNode(nodeFromView(v))
	}
	for _, v := range views {
		for _, e := range v.Edges {
			if _, ok := g.Nodes[string(e.CallerID)]; !ok {
				continue
			}
			if _, ok := g.Nodes[string(e.CalleeID)]; !ok {
				continue
			}
			g.AddEdge(&Edge{
				FromID: string(e.CallerID),
				ToID:   string(e.CalleeID),
				Type:   edgeTypeForKind(e.Kind),
				Weight: e.Weight,
			})
		}
		if v.Class == linker.ClassMember {
			if _, ok := g.Nodes[string(v.Representative)]; ok {
				g.AddEdge(&Edge{
					FromID: string(v.ID),
					ToID:   string(v.Representative),
					Type:   EdgeMemberOf,
				})
			}
		}
	}
	return g
}

// Projection maintains an incrementally updated link graph for consumers that
// follow the journal instead of polling registry snapshots.
type Projection struct {
	mu           sync.RWMutex
	graph        *Graph
	lastSeq      uint64
	lastApplied  time.Time
	classMembers map[string][]string // representative ID -> member IDs
}

// NewProjection creates a new empty graph projection.
func NewProjection() *Projection {
	return &Projection{
		graph:        NewGraph(),
		classMembers: make(map[string][]string),
	}
}

// Rebuild replaces the projection with the contents of a registry snapshot.
func (p *Projection) Rebuild(views []linker.ComponentView) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.graph = FromViews(views)
	p.classMembers = make(map[string][]string)
	for _, v := range views {
		if v.Class == linker.ClassMember {
			rep := string(v.Representative)
			p.classMembers[rep] = append(p.classMembers[rep], string(v.ID))
		}
	}
}

// Apply updates the projection with a single journal event.
func (p *Projection) Apply(e linker.LinkEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e.Seq > 0 && p.lastSeq > 0 && e.Seq <= p.lastSeq {
		// Replays and duplicates are harmless to skip; the next Rebuild
		// squares everything anyway.
		return nil
	}
	p.lastSeq = e.Seq
	p.lastApplied = e.Timestamp

	switch e.Type {
	case linker.EventIndirectLink:
		return p.handleIndirectLink(e)
	case linker.EventCanonicalMerge:
		return p.handleCanonicalMerge(e)
	}

	return nil
}

func (p *Projection) handleIndirectLink(e linker.LinkEvent) error {
	if e.SourceID == "" || e.TargetID == "" {
		return fmt.Errorf("indirect link event %d missing endpoint", e.Seq)
	}
	p.ensureNodeLocked(string(e.SourceID))
	p.ensureNodeLocked(string(e.TargetID))

	// The registry clamps edge weights to 1; the journal keeps raw scores.
	weight := e.Score
	if weight > 1 {
		weight = 1
	}
	p.graph.AddEdge(&Edge{
		FromID: string(e.SourceID),
		ToID:   string(e.TargetID),
		Type:   EdgeIndirect,
		Weight: weight,
	})
	return nil
}

func (p *Projection) handleCanonicalMerge(e linker.LinkEvent) error {
	if e.SourceID == "" || e.TargetID == "" {
		return fmt.Errorf("canonical merge event %d missing endpoint", e.Seq)
	}
	p.ensureNodeLocked(string(e.SourceID))
	p.ensureNodeLocked(string(e.TargetID))
	p.addMemberLocked(string(e.SourceID), string(e.TargetID))
	return nil
}

// ensureNodeLocked adds a placeholder node if the ID is unknown. Must be
// called with p.mu held.
func (p *Projection) ensureNodeLocked(id string) {
	if _, exists := p.graph.Nodes[id]; !exists {
		p.graph.Nodes[id] = &Node{
			ID:    id,
			Type:  NodeUnresolved,
			Label: id,
		}
	}
}

// addMemberLocked retypes memberID as a member of repID, records the
// membership in the adjacency index, and links them. Must be called with p.mu
// held.
func (p *Projection) addMemberLocked(memberID, repID string) {
	if member, ok := p.graph.Nodes[memberID]; ok {
		member.Type = NodeMember
	}
	if rep, ok := p.graph.Nodes[repID]; ok && memberID != repID {
		rep.Type = NodeRepresentative
	}

	for _, existing := range p.classMembers[repID] {
		if existing == memberID {
			return
		}
	}
	p.classMembers[repID] = append(p.classMembers[repID], memberID)
	p.graph.AddEdge(&Edge{
		FromID: memberID,
		ToID:   repID,
		Type:   EdgeMemberOf,
	})
}

// MembersOf returns the member nodes folded into the given representative.
func (p *Projection) MembersOf(repID string) []*Node {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var members []*Node
	for _, id := range p.classMembers[repID] {
		if node, exists := p.graph.Nodes[id]; exists {
			n := *node
			members = append(members, &n)
		}
	}
	return members
}

// LastSeq reports the newest journal sequence applied, 0 if none.
func (p *Projection) LastSeq() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSeq
}

// Snapshot returns a copy of the current graph safe to serialize outside the
// lock.
func (p *Projection) Snapshot() *Graph {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := NewGraph()
	for k, v := range p.graph.Nodes {
		n := *v
		if v.Properties != nil {
			n.Properties = make(map[string]string, len(v.Properties))
			for pk, pv := range v.Properties {
				n.Properties[pk] = pv
			}
		}
		out.Nodes[k] = &n
	}
	for _, e := range p.graph.Edges {
		edge := *e
		out.Edges = append(out.Edges, &edge)
	}
	return out
}

func nodeFromView(v linker.ComponentView) *Node {
	return &Node{
		ID:    string(v.ID),
		Type:  nodeTypeForClass(v.Class),
		Label: string(v.ID),
		Properties: map[string]string{
			"phase":    string(v.Phase),
			"anchors":  strconv.Itoa(len(v.Anchors)),
			"edges":    strconv.Itoa(len(v.Edges)),
			"links":    strconv.FormatUint(v.Metrics.TruePositiveLinks, 10),
			"misses":   strconv.FormatUint(v.Metrics.TrueNegativeSkips, 10),
			"rejected": strconv.FormatUint(v.Metrics.FalsePositiveLinks, 10),
		},
	}
}
