package linker

import (
	"sync"
	"time"
)

// LinkEventType tags a journal entry.
type LinkEventType string

const (
	// EventIndirectLink records a successful indirect resolution.
	EventIndirectLink LinkEventType = "INDIRECT_LINK"
	// EventCanonicalMerge records a component being folded into an
	// equivalence-class representative.
	EventCanonicalMerge LinkEventType = "CANONICAL_MERGE"
)

// LinkEvent is one experiential journal entry. Seq is assigned by the
// journal, starts at 1, and stays monotonic across ring wraps, so readers can
// detect evicted entries by gaps.
type LinkEvent struct {
	Seq       uint64        `json:"seq"`
	Timestamp time.Time     `json:"timestamp"`
	Type      LinkEventType `json:"type"`
	SourceID  ComponentID   `json:"source_id"`
	TargetID  ComponentID   `json:"target_id"`
	Score     float64       `json:"score"`
}

// DefaultJournalCapacity is the ring size used when none is configured.
const DefaultJournalCapacity = 1024

// Journal is a bounded ring buffer of link events with drop-oldest eviction.
// It is safe for concurrent use.
type Journal struct {
	mu      sync.Mutex
	ring    []LinkEvent
	head    int // index of the oldest entry
	size    int
	nextSeq uint64
	dropped uint64
}

// NewJournal returns a journal holding at most capacity entries. A
// non-positive capacity falls back to DefaultJournalCapacity.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultJournalCapacity
	}
	return &Journal{ring: make([]LinkEvent, capacity), nextSeq: 1}
}

// Record assigns the next sequence number to e, appends it, and returns the
// stored entry. When the ring is full the oldest entry is evicted.
func (j *Journal) Record(e LinkEvent) LinkEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	e.Seq = j.nextSeq
	j.nextSeq++
	if j.size == len(j.ring) {
		j.head = (j.head + 1) % len(j.ring)
		j.size--
		j.dropped++
		journalDroppedTotal.Inc()
	}
	j.ring[(j.head+j.size)%len(j.ring)] = e
	j.size++
	return e
}

// Recent returns up to n of the newest entries, oldest first. n <= 0 returns
// everything retained.
func (j *Journal) Recent(n int) []LinkEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	if n <= 0 || n > j.size {
		n = j.size
	}
	out := make([]LinkEvent, 0, n)
	for i := j.size - n; i < j.size; i++ {
		out = append(out, j.ring[(j.head+i)%len(j.ring)])
	}
	return out
}

// Since returns all retained entries with Seq > seq, oldest first. If entries
// after seq were already evicted the returned slice starts past the gap;
// callers compare the first Seq against seq+1 to detect loss.
func (j *Journal) Since(seq uint64) []LinkEvent {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]LinkEvent, 0, j.size)
	for i := 0; i < j.size; i++ {
		e := j.ring[(j.head+i)%len(j.ring)]
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// Len reports the number of retained entries.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}

// Capacity reports the ring size.
func (j *Journal) Capacity() int { return len(j.ring) }

// Dropped reports how many entries have been evicted since creation.
func (j *Journal) Dropped() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

// LastSeq reports the most recently assigned sequence number, 0 if none.
func (j *Journal) LastSeq() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextSeq - 1
}
