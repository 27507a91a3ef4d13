package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/isolink-io/isolink/pkg/anchor"
	"github.com/isolink-io/isolink/pkg/linker"
)

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "linkset.hcl", `
settings {
  capacity         = 128
  journal_capacity = 64
}

component "render" {
  phase = "witness"

  anchor "gpu" {
    context = { device = "discrete" }
    activation {
      kind  = "constant"
      score = 0.9
    }
  }

  anchor "texture" {}

  edge {
    callee = "compositor"
    weight = 1.0
  }

  edge {
    callee = "shader-cache"
    kind   = "virtual"
    weight = 0.5
  }
}

component "compositor" {}
`)

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := &Linkset{
		Settings: Settings{Capacity: 128, JournalCapacity: 64},
		Components: []Component{
			{
				ID:    "render",
				Phase: "witness",
				Anchors: []Anchor{
					{
						Name:    "gpu",
						Context: map[string]string{"device": "discrete"},
						Activation: &anchor.Spec{
							Kind:  "constant",
							Score: 0.9,
						},
					},
					{Name: "texture"},
				},
				Edges: []Edge{
					{Callee: "compositor", Weight: 1.0},
					{Callee: "shader-cache", Kind: "virtual", Weight: 0.5},
				},
			},
			{ID: "compositor"},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("linkset mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.hcl", `component "alpha" {}`)
	writeManifest(t, dir, "b.hcl", `component "beta" {}`)
	writeManifest(t, dir, "notes.txt", `component "ignored" {}`)

	ls, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(ls.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(ls.Components))
	}
}

func TestLoadRejectsDuplicateComponents(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.hcl", `component "render" {}`)
	writeManifest(t, dir, "b.hcl", `component "render" {}`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected duplicate component error")
	}
	if !strings.Contains(err.Error(), `"render"`) {
		t.Errorf("error should name the duplicate component: %v", err)
	}
}

func TestLoadRejectsDuplicateSettings(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.hcl", `settings { capacity = 1 }`)
	writeManifest(t, dir, "b.hcl", `settings { capacity = 2 }`)

	if _, err := Load(dir); err == nil {
		t.Fatal("expected duplicate settings error")
	}
}

func TestLoadMissingPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.hcl")); err == nil {
		t.Fatal("expected error for missing manifest path")
	}
}

func TestLoadRejectsMalformedHCL(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "broken.hcl", `component "x" {`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplySeedsEngine(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "linkset.hcl", `
component "render" {
  phase = "witness"

  anchor "inert" {}

  edge {
    callee = "gpu-driver"
    weight = 1.0
  }
}

component "gpu-driver" {
  anchor "gpu" {
    activation {
      kind  = "constant"
      score = 0.9
    }
  }
}
`)

	ls, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	engine := linker.New(linker.Config{})
	if err := ls.Apply(engine, anchor.NewRegistry()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Phase, anchors, and edges all landed.
	view, err := engine.Component("render")
	if err != nil {
		t.Fatalf("render not registered: %v", err)
	}
	if view.Phase != linker.PhaseWitness {
		t.Errorf("expected witness phase, got %s", view.Phase)
	}
	if len(view.Edges) != 1 || view.Edges[0].CalleeID != "gpu-driver" {
		t.Errorf("unexpected edges: %+v", view.Edges)
	}
	if view.Edges[0].Kind != linker.EdgeDirect {
		t.Errorf("edge kind should default to direct, got %s", view.Edges[0].Kind)
	}

	// The constant activation is live: resolution links to the seeded anchor.
	target, linked, err := engine.ResolveIndirect("render", "gpu")
	if err != nil {
		t.Fatalf("ResolveIndirect failed: %v", err)
	}
	if !linked || target != "gpu-driver" {
		t.Errorf("expected link to gpu-driver, got linked=%t target=%s", linked, target)
	}

	// The inert anchor must not link.
	if _, linked, _ := engine.ResolveIndirect("gpu-driver", "inert"); linked {
		t.Error("inert anchor must not resolve")
	}
}

func TestApplyRejectsUnknownActivationKind(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "linkset.hcl", `
component "render" {
  anchor "gpu" {
    activation {
      kind = "telepathy"
    }
  }
}
`)

	ls, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err = ls.Apply(linker.New(linker.Config{}), anchor.NewRegistry())
	if !errors.Is(err, anchor.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if !strings.Contains(err.Error(), "render") {
		t.Errorf("error should name the failing component: %v", err)
	}
}

func TestApplyRejectsBadPhase(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "linkset.hcl", `
component "render" {
  phase = "ascended"
}
`)

	ls, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	err = ls.Apply(linker.New(linker.Config{}), nil)
	if !errors.Is(err, linker.ErrPhase) {
		t.Fatalf("expected ErrPhase, got %v", err)
	}
}
