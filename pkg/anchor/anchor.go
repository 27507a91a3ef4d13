// Package anchor provides activation capabilities for symbolic residues:
// ready-made scoring functions, a scripted mock for tests, and a registry that
// builds capabilities from declarative specs (API payloads, manifests).
package anchor

import (
	"github.com/isolink-io/isolink/pkg/linker"
)

// Spec declares an activation capability by kind. Score carries the single
// numeric parameter most kinds need; anything else goes in Params.
type Spec struct {
	Kind   string            `json:"kind"`
	Score  float64           `json:"score,omitempty"`
	Params map[string]string `json:"params,omitempty"`
}

// Factory builds an activation from its spec.
type Factory func(spec Spec) (linker.Activation, error)

// Constant returns a capability that scores every context the same.
func Constant(score float64) linker.Activation {
	return linker.ActivationFunc(func(any) float64 { return score })
}

// Func adapts an ordinary function to a capability.
func Func(f func(context any) float64) linker.Activation {
	return linker.ActivationFunc(f)
}

// Clamped wraps a capability so its scores stay in [0,1].
func Clamped(a linker.Activation) linker.Activation {
	return linker.ActivationFunc(func(context any) float64 {
		score := a.Score(context)
		if score < 0 {
			return 0
		}
		if score > 1 {
			return 1
		}
		return score
	})
}
