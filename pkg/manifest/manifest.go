// Package manifest loads HCL linkset manifests. A linkset declares the
// components, anchors, and edges an engine should be seeded with at boot,
// plus optional engine settings:
//
//	settings {
//	  capacity         = 4096
//	  journal_capacity = 1024
//	}
//
//	component "render" {
//	  phase = "witness"
//
//	  anchor "gpu" {
//	    context = { device = "discrete" }
//	    activation {
//	      kind  = "constant"
//	      score = 0.9
//	    }
//	  }
//
//	  edge {
//	    callee = "compositor"
//	    kind   = "direct"
//	    weight = 1.0
//	  }
//	}
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/isolink-io/isolink/pkg/anchor"
)

// fileRoot decodes all top-level blocks from a single manifest file.
type fileRoot struct {
	Settings   *settingsBlock    `hcl:"settings,block"`
	Components []*componentBlock `hcl:"component,block"`
	Remain     hcl.Body          `hcl:",remain"`
}

type settingsBlock struct {
	Capacity        int `hcl:"capacity,optional"`
	JournalCapacity int `hcl:"journal_capacity,optional"`
}

type componentBlock struct {
	ID      string         `hcl:"id,label"`
	Phase   string         `hcl:"phase,optional"`
	Anchors []*anchorBlock `hcl:"anchor,block"`
	Edges   []*edgeBlock   `hcl:"edge,block"`
}

type anchorBlock struct {
	Name       string            `hcl:"name,label"`
	Context    map[string]string `hcl:"context,optional"`
	Activation *activationBlock  `hcl:"activation,block"`
}

type activationBlock struct {
	Kind   string            `hcl:"kind"`
	Score  float64           `hcl:"score,optional"`
	Params map[string]string `hcl:"params,optional"`
}

type edgeBlock struct {
	Callee string  `hcl:"callee"`
	Caller string  `hcl:"caller,optional"`
	Kind   string  `hcl:"kind,optional"`
	Weight float64 `hcl:"weight"`
}

// Linkset is the format-agnostic result of loading one or more manifest
// files. Component order follows file order, so edge positions are stable
// across loads.
type Linkset struct {
	Settings   Settings
	Components []Component
}

// Settings carries engine tuning from the manifest. Zero values mean "use
// the engine default".
type Settings struct {
	Capacity        int
	JournalCapacity int
}

// Component is one declared component with its initial anchors and edges.
type Component struct {
	ID      string
	Phase   string
	Anchors []Anchor
	Edges   []Edge
}

// Anchor is one declared residue. A nil Activation means the anchor is
// inert.
type Anchor struct {
	Name       string
	Context    map[string]string
	Activation *anchor.Spec
}

// Edge is one declared invocation edge. Caller defaults to the declaring
// component; Kind defaults to "direct".
type Edge struct {
	Caller string
	Callee string
	Kind   string
	Weight float64
}

// Load parses every given path (files, or directories walked for .hcl files)
// and merges the declared blocks into one linkset. Unlike ambient config,
// manifest paths are explicit, so a missing path is an error.
func Load(paths ...string) (*Linkset, error) {
	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}

	ls := &Linkset{}
	seen := make(map[string]string)
	settingsFrom := ""

	parser := hclparse.NewParser()
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode manifest %s: %w", file, diags)
		}

		if root.Settings != nil {
			if settingsFrom != "" {
				return nil, fmt.Errorf("duplicate settings block in %s (already declared in %s)", file, settingsFrom)
			}
			settingsFrom = file
			ls.Settings = Settings{
				Capacity:        root.Settings.Capacity,
				JournalCapacity: root.Settings.JournalCapacity,
			}
		}

		for _, block := range root.Components {
			if prev, dup := seen[block.ID]; dup {
				return nil, fmt.Errorf("duplicate component %q in %s (already declared in %s)", block.ID, file, prev)
			}
			seen[block.ID] = file
			ls.Components = append(ls.Components, translateComponent(block))
		}
	}

	return ls, nil
}

func translateComponent(block *componentBlock) Component {
	c := Component{
		ID:    block.ID,
		Phase: block.Phase,
	}
	for _, a := range block.Anchors {
		res := Anchor{
			Name:    a.Name,
			Context: a.Context,
		}
		if a.Activation != nil {
			res.Activation = &anchor.Spec{
				Kind:   a.Activation.Kind,
				Score:  a.Activation.Score,
				Params: a.Activation.Params,
			}
		}
		c.Anchors = append(c.Anchors, res)
	}
	for _, e := range block.Edges {
		c.Edges = append(c.Edges, Edge{
			Caller: e.Caller,
			Callee: e.Callee,
			Kind:   e.Kind,
			Weight: e.Weight,
		})
	}
	return c
}

// findHCLFiles expands paths into a deduplicated list of .hcl files.
// Directories are walked recursively; explicit files are taken as-is.
func findHCLFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, dup := seen[p]; !dup {
			files = append(files, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("manifest path %s: %w", path, err)
		}

		if !info.IsDir() {
			add(path)
			continue
		}

		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
