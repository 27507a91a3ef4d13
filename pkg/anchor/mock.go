package anchor

import "sync"

// Mock is a scripted capability for tests. Each call consumes the next score;
// once the script runs out it keeps returning the final one.
type Mock struct {
	mu     sync.Mutex
	scores []float64
	calls  int
}

// NewMock creates a mock playing back scores in order. With no scores it
// always returns 0.
func NewMock(scores ...float64) *Mock {
	return &Mock{scores: scores}
}

func (m *Mock) Score(context any) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if len(m.scores) == 0 {
		return 0
	}
	if i >= len(m.scores) {
		i = len(m.scores) - 1
	}
	return m.scores[i]
}

// Calls reports how many times the capability has been scored.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
