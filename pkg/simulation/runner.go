package simulation

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/isolink-io/isolink/pkg/anchor"
	"github.com/isolink-io/isolink/pkg/linker"
)

// RunScenario executes the scenario against a fresh in-process engine and
// reports aggregate behavior. Scheduling may interleave workers differently
// between runs, but every counter in the result depends only on the seed.
func RunScenario(s Scenario) SimulationResult {
	applyDefaults(&s)

	rng := rand.New(rand.NewSource(s.Seed))
	start := time.Now()

	engine := linker.New(linker.Config{
		Capacity:        s.Components,
		JournalCapacity: s.JournalCapacity,
	})

	res := SimulationResult{
		ScenarioName: s.Name,
		Seed:         s.Seed,
		Components:   s.Components,
	}

	populate(engine, &s, rng, &res)
	runResolves(engine, &s, &res)

	if s.Canonicalize {
		classes := make(map[linker.ComponentID]struct{})
		for i := 0; i < s.Components; i++ {
			rep, err := engine.Canonicalize(componentID(i))
			if err != nil {
				res.Errors++
				continue
			}
			classes[rep] = struct{}{}
		}
		res.Classes = len(classes)
		if s.Components > 0 {
			res.ReductionRatio = 1 - float64(res.Classes)/float64(s.Components)
		}
	}

	if res.Resolves > 0 {
		res.LinkRate = float64(res.Linked) / float64(res.Resolves)
	}

	journal := engine.Journal()
	res.JournalEvents = journal.LastSeq()
	res.JournalDropped = journal.Dropped()

	for _, v := range engine.Components() {
		res.TruePositiveLinks += v.Metrics.TruePositiveLinks
		res.FalsePositiveLinks += v.Metrics.FalsePositiveLinks
		res.TrueNegativeSkips += v.Metrics.TrueNegativeSkips
	}

	res.Duration = time.Since(start)

	evaluateInvariants(&res, s.Invariants)
	res.Success = true
	for _, inv := range res.Invariants {
		if !inv.Passed {
			res.Success = false
			break
		}
	}
	return res
}

func applyDefaults(s *Scenario) {
	if s.Name == "" {
		s.Name = "soak"
	}
	if s.Seed == 0 {
		s.Seed = time.Now().UnixNano()
	}
	if s.Components <= 0 {
		s.Components = 100
	}
	if s.AnchorsPer <= 0 {
		s.AnchorsPer = 2
	}
	if s.Workers <= 0 {
		s.Workers = 1
	}
	if s.Workers > s.Components {
		s.Workers = s.Components
	}
	if len(s.AnchorPool) == 0 {
		for i := 0; i < 16; i++ {
			s.AnchorPool = append(s.AnchorPool, fmt.Sprintf("anchor-%02d", i))
		}
	}
	if s.ActivationRate < 0 {
		s.ActivationRate = 0
	}
	if s.ActivationRate > 1 {
		s.ActivationRate = 1
	}
	if s.EdgeFanout < 0 {
		s.EdgeFanout = 0
	}
	if s.Resolves < 0 {
		s.Resolves = 0
	}
}

// populate registers the component population: shared anchors with random
// activations first, then edges in a second pass. Weights are quantized to
// quarter steps so edge signatures repeat and canonicalization has classes
// to find.
func populate(engine *linker.Engine, s *Scenario, rng *rand.Rand, res *SimulationResult) {
	kinds := []linker.EdgeKind{
		linker.EdgeDirect,
		linker.EdgeIndirect,
		linker.EdgeVirtual,
		linker.EdgePhenomenological,
	}

	for i := 0; i < s.Components; i++ {
		id := componentID(i)
		if err := engine.CreateComponent(id, ""); err != nil {
			res.Errors++
			continue
		}
		for a := 0; a < s.AnchorsPer; a++ {
			name := s.AnchorPool[rng.Intn(len(s.AnchorPool))]
			var act linker.Activation
			if rng.Float64() < s.ActivationRate {
				act = anchor.Constant(rng.Float64())
			}
			ctx := map[string]string{"slot": strconv.Itoa(a)}
			if err := engine.AddResidue(id, name, ctx, act); err != nil {
				res.Errors++
			}
		}
	}

	for i := 0; i < s.Components; i++ {
		id := componentID(i)
		fanout := 0
		if s.EdgeFanout > 0 {
			fanout = rng.Intn(s.EdgeFanout + 1)
		}
		for e := 0; e < fanout; e++ {
			callee := componentID(rng.Intn(s.Components))
			weight := float64(rng.Intn(5)) * 0.25
			kind := kinds[rng.Intn(len(kinds))]
			if err := engine.AddEdge(id, id, callee, kind, weight); err != nil {
				res.Errors++
			}
		}
	}
}

// runResolves spreads the resolve budget across workers. Each worker draws
// (source, anchor) pairs from its own seeded rng and owns a disjoint shard of
// the population, so no two workers ever append edges to the same component
// and the post-resolve registry state does not depend on scheduling.
func runResolves(engine *linker.Engine, s *Scenario, res *SimulationResult) {
	if s.Resolves == 0 {
		return
	}

	per := s.Resolves / s.Workers
	extra := s.Resolves % s.Workers

	var wg sync.WaitGroup
	for w := 0; w < s.Workers; w++ {
		n := per
		if w < extra {
			n++
		}
		if n == 0 {
			continue
		}
		shard := make([]int, 0, s.Components/s.Workers+1)
		for i := w; i < s.Components; i += s.Workers {
			shard = append(shard, i)
		}
		wg.Add(1)
		go func(n int, seed int64, shard []int) {
			defer wg.Done()
			wrng := rand.New(rand.NewSource(seed))
			for i := 0; i < n; i++ {
				source := componentID(shard[wrng.Intn(len(shard))])
				target := s.AnchorPool[wrng.Intn(len(s.AnchorPool))]

				_, linked, err := engine.ResolveIndirect(source, target)
				atomic.AddUint64(&res.Resolves, 1)
				if err != nil {
					atomic.AddUint64(&res.Errors, 1)
					continue
				}
				if linked {
					atomic.AddUint64(&res.Linked, 1)
				}
			}
		}(n, s.Seed+int64(w+1)*1000, shard)
	}
	wg.Wait()
}

func evaluateInvariants(res *SimulationResult, invariants []Invariant) {
	for _, inv := range invariants {
		var actual float64
		switch inv.Metric {
		case "link_rate":
			actual = res.LinkRate
		case "reduction_ratio":
			actual = res.ReductionRatio
		case "error_rate":
			if res.Resolves > 0 {
				actual = float64(res.Errors) / float64(res.Resolves)
			}
		}

		var passed bool
		switch inv.Condition {
		case ">":
			passed = actual > inv.Value
		case ">=":
			passed = actual >= inv.Value
		case "<":
			passed = actual < inv.Value
		case "<=":
			passed = actual <= inv.Value
		case "==":
			passed = math.Abs(actual-inv.Value) < 0.0001
		}

		res.Invariants = append(res.Invariants, InvariantResult{
			Metric:   inv.Metric,
			Expected: fmt.Sprintf("%s %.2f", inv.Condition, inv.Value),
			Actual:   fmt.Sprintf("%.4f", actual),
			Passed:   passed,
		})
	}
}

func componentID(i int) linker.ComponentID {
	return linker.ComponentID(fmt.Sprintf("comp-%04d", i))
}
