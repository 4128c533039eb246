package breaker

import "sync"

type guardedCircuit struct {
	mu            sync.Mutex
	circuit       circuit
	trialInFlight bool
}

// circuitTable maps operation categories to their guarded circuits. The table
// lock is held only for lookup; each circuit carries its own mutex.
type circuitTable struct {
	mu       sync.Mutex
	circuits map[string]*guardedCircuit
}

func newCircuitTable() *circuitTable {
	return &circuitTable{circuits: make(map[string]*guardedCircuit)}
}

func (t *circuitTable) get(category string) *guardedCircuit {
	t.mu.Lock()
	defer t.mu.Unlock()
	cb, ok := t.circuits[category]
	if !ok {
		cb = &guardedCircuit{}
		t.circuits[category] = cb
	}
	return cb
}
