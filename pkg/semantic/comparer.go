package semantic

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/isolink-io/isolink/pkg/anchor"
	"github.com/isolink-io/isolink/pkg/linker"
)

// DefaultThreshold is the mean-vector cosine similarity two residue sets
// must reach to be considered compatible.
const DefaultThreshold = 0.85

// KindEmbedding is the activation kind RegisterActivation installs.
const KindEmbedding = "embedding"

const embedBuildTimeout = 15 * time.Second

// CosineComparer implements the linker's residue-compatibility predicate
// with embeddings. Anchors must be primed out-of-band; Compatible reads only
// the cache, so it is safe to call under the engine lock. Anchors with no
// cached vector fail open: the comparer never blocks a merge on missing
// evidence.
type CosineComparer struct {
	embedder  Embedder
	threshold float64

	mu    sync.RWMutex
	cache map[string][]float32
}

// NewCosineComparer wraps an embedder. A threshold <= 0 selects
// DefaultThreshold.
func NewCosineComparer(embedder Embedder, threshold float64) *CosineComparer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &CosineComparer{
		embedder:  embedder,
		threshold: threshold,
		cache:     make(map[string][]float32),
	}
}

// Prime embeds the given texts and caches their vectors. Texts already in
// the cache are skipped. Prime is the only method that performs I/O.
func (c *CosineComparer) Prime(ctx context.Context, texts []string) error {
	c.mu.RLock()
	var missing []string
	seen := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, cached := c.cache[t]; !cached {
			missing = append(missing, t)
		}
	}
	c.mu.RUnlock()

	if len(missing) == 0 {
		return nil
	}

	vectors, err := c.embedder.Embed(ctx, missing)
	if err != nil {
		return fmt.Errorf("failed to prime anchors: %w", err)
	}
	if len(vectors) != len(missing) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(missing))
	}

	c.mu.Lock()
	for i, t := range missing {
		c.cache[t] = vectors[i]
	}
	c.mu.Unlock()
	return nil
}

// PrimeViews primes every anchor name appearing in the given component
// views.
func (c *CosineComparer) PrimeViews(ctx context.Context, views []linker.ComponentView) error {
	var texts []string
	for _, v := range views {
		texts = append(texts, v.Anchors...)
	}
	return c.Prime(ctx, texts)
}

// Known reports whether text has a cached vector.
func (c *CosineComparer) Known(text string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.cache[text]
	return ok
}

// Similarity returns the cosine similarity of two cached texts. ok is false
// when either text is unprimed.
func (c *CosineComparer) Similarity(a, b string) (float64, bool) {
	c.mu.RLock()
	va, okA := c.cache[a]
	vb, okB := c.cache[b]
	c.mu.RUnlock()
	if !okA || !okB {
		return 0, false
	}
	return cosine(va, vb), true
}

// Compatible reports whether two residue sequences describe the same thing:
// the cosine similarity of their mean anchor vectors meets the threshold.
// Sides with no primed anchors are treated as compatible.
func (c *CosineComparer) Compatible(a, b []linker.SymbolicResidue) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	va, okA := c.meanVectorLocked(a)
	vb, okB := c.meanVectorLocked(b)
	if !okA || !okB {
		return true
	}
	return cosine(va, vb) >= c.threshold
}

// meanVectorLocked averages the cached vectors of the residues' anchors.
// Vectors whose dimension disagrees with the first cached one are skipped.
func (c *CosineComparer) meanVectorLocked(residues []linker.SymbolicResidue) ([]float32, bool) {
	var sum []float64
	n := 0
	for _, r := range residues {
		v, ok := c.cache[r.Anchor]
		if !ok {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(v))
		}
		if len(v) != len(sum) {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		n++
	}
	if n == 0 {
		return nil, false
	}
	mean := make([]float32, len(sum))
	for i := range sum {
		mean[i] = float32(sum[i] / float64(n))
	}
	return mean, true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return -1
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// RegisterActivation installs the "embedding" activation kind. The built
// activation's score is the similarity between the residue's declared
// description (params "text") and the concept it claims to anchor (params
// "concept"), computed once at build time. Resolution itself never embeds.
func RegisterActivation(reg *anchor.Registry, cmp *CosineComparer) error {
	return reg.Register(KindEmbedding, func(spec anchor.Spec) (linker.Activation, error) {
		text := spec.Params["text"]
		concept := spec.Params["concept"]
		if text == "" || concept == "" {
			return nil, fmt.Errorf(`embedding activation requires params "text" and "concept"`)
		}

		ctx, cancel := context.WithTimeout(context.Background(), embedBuildTimeout)
		defer cancel()
		if err := cmp.Prime(ctx, []string{text, concept}); err != nil {
			return nil, fmt.Errorf("embedding activation: %w", err)
		}

		score, ok := cmp.Similarity(text, concept)
		if !ok {
			return nil, fmt.Errorf("embedding activation: reference texts not primed")
		}
		if score < 0 {
			score = 0
		}
		return anchor.Constant(score), nil
	})
}
