package telemetry

import (
	"sync"
	"sync/atomic"
)

// Policy selects how a Block serializes writers against readers.
type Policy int

const (
	// Single guards the record with a short critical section; cheap and
	// contention-free for blocks with one small, infrequent writer.
	Single Policy = iota
	// Double publishes a whole new record via pointer swap, so a writer
	// never blocks a reader and vice versa.
	Double
)

// Block is one telemetry record plus its buffering policy. T is the
// plain record type (e.g. CellVoltage); Block never exposes T's zero
// value as anything but a fully-formed, atomically-visible snapshot.
type Block[T any] struct {
	policy  Policy
	mu      sync.Mutex
	value   T
	ptr     atomic.Pointer[T]
	pending chan T
}

// NewBlock constructs a Block under the given policy, initialized to the
// zero value of T.
func NewBlock[T any](policy Policy) *Block[T] {
	b := &Block[T]{policy: policy, pending: make(chan T, 1)}
	if policy == Double {
		var zero T
		b.ptr.Store(&zero)
	}
	return b
}

// Read copies out the current committed snapshot. Never fails.
func (b *Block[T]) Read() T {
	if b.policy == Double {
		return *b.ptr.Load()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Write commits v as the new snapshot, atomically with respect to Read.
func (b *Block[T]) Write(v T) {
	if b.policy == Double {
		b.ptr.Store(&v)
		return
	}
	b.mu.Lock()
	b.value = v
	b.mu.Unlock()
}

// Post enqueues v for commit on the next tick, for writers that must not
// block (e.g. an interrupt-driven measurement path). A pending post not
// yet consumed is overwritten by the newer one. Reports whether the slot
// was free (false means an older post was dropped).
func (b *Block[T]) Post(v T) bool {
	select {
	case b.pending <- v:
		return true
	default:
	}
	select {
	case <-b.pending:
	default:
	}
	select {
	case b.pending <- v:
		return false
	default:
		return false
	}
}

// tick drains at most one queued post and commits it. Called from the
// store's Tick.
func (b *Block[T]) tick() {
	select {
	case v := <-b.pending:
		b.Write(v)
	default:
	}
}

// Store is the concrete telemetry plane: one named Block field per
// record type. Every accessor below is a thin, statically-typed
// passthrough; there is deliberately no ID-indexed lookup.
type Store struct {
	cellVoltage      *Block[CellVoltage]
	cellTemperature  *Block[CellTemperature]
	current          *Block[Current]
	minMax           *Block[MinMax]
	sox              *Block[SOX]
	balancingControl *Block[BalancingControl]
	stateRequest     *Block[StateRequest]
	systemState      *Block[SystemState]
	contactorFB      *Block[ContactorFeedback]
	interlockFB      *Block[InterlockFeedback]

	tickables []interface{ tick() }
}

// NewStore builds a Store with the buffering policy for each block fixed
// by its write pattern: high-rate sensor writers use Double so the
// 1ms/10ms readers never stall them; low-rate control records use Single.
func NewStore() *Store {
	s := &Store{
		cellVoltage:      NewBlock[CellVoltage](Double),
		cellTemperature:  NewBlock[CellTemperature](Double),
		current:          NewBlock[Current](Double),
		minMax:           NewBlock[MinMax](Double),
		sox:              NewBlock[SOX](Single),
		balancingControl: NewBlock[BalancingControl](Single),
		stateRequest:     NewBlock[StateRequest](Single),
		systemState:      NewBlock[SystemState](Single),
		contactorFB:      NewBlock[ContactorFeedback](Single),
		interlockFB:      NewBlock[InterlockFeedback](Single),
	}
	s.tickables = []interface{ tick() }{
		s.cellVoltage, s.cellTemperature, s.current, s.minMax, s.sox,
		s.balancingControl, s.stateRequest, s.systemState, s.contactorFB, s.interlockFB,
	}
	return s
}

// Tick serves any writes posted via Post since the last Tick. Readers
// that call Read directly (the common case) never need this; it exists
// for writers that post rather than block, per the posted-write path.
func (s *Store) Tick() {
	for _, t := range s.tickables {
		t.tick()
	}
}

func (s *Store) CellVoltage() *Block[CellVoltage]             { return s.cellVoltage }
func (s *Store) CellTemperature() *Block[CellTemperature]     { return s.cellTemperature }
func (s *Store) Current() *Block[Current]                     { return s.current }
func (s *Store) MinMax() *Block[MinMax]                       { return s.minMax }
func (s *Store) SOX() *Block[SOX]                             { return s.sox }
func (s *Store) BalancingControl() *Block[BalancingControl]   { return s.balancingControl }
func (s *Store) StateRequest() *Block[StateRequest]           { return s.stateRequest }
func (s *Store) SystemState() *Block[SystemState]             { return s.systemState }
func (s *Store) ContactorFeedback() *Block[ContactorFeedback] { return s.contactorFB }
func (s *Store) InterlockFeedback() *Block[InterlockFeedback] { return s.interlockFB }
