package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/mlbf/pkg/bytecode"
)

// entry is a compiled program held by the server.
type entry struct {
	program  *bytecode.Program
	lastUsed time.Time
	readers  int  // runs and dumps in flight
	removed  bool // dropped from the map, freed when readers reaches 0
}

// ProgramStore maps opaque IDs to compiled programs. Stored programs are
// never mutated after Create, so concurrent runs only read them. A removed
// program's buffer is released once its last reader is done.
type ProgramStore struct {
	mu       sync.RWMutex
	programs map[string]*entry
}

// NewProgramStore creates an empty program store.
func NewProgramStore() *ProgramStore {
	return &ProgramStore{programs: make(map[string]*entry)}
}

// Create registers a program and returns its ID.
func (s *ProgramStore) Create(p *bytecode.Program) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.programs[id] = &entry{program: p, lastUsed: time.Now()}
	return id
}

// Acquire returns the program for id and marks it as used. The caller must
// call done when it stops reading the program.
func (s *ProgramStore) Acquire(id string) (p *bytecode.Program, done func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.programs[id]
	if !ok {
		return nil, nil, false
	}
	e.lastUsed = time.Now()
	e.readers++

	var once sync.Once
	done = func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			e.readers--
			s.free(e)
		})
	}
	return e.program, done, true
}

// free releases a removed entry's program when nothing reads it.
// Callers hold s.mu.
func (s *ProgramStore) free(e *entry) {
	if e.removed && e.readers == 0 {
		e.program.Release()
	}
}

// remove drops id from the map. Callers hold s.mu.
func (s *ProgramStore) remove(id string, e *entry) {
	delete(s.programs, id)
	e.removed = true
	s.free(e)
}

// Release removes a program. It reports whether the ID existed.
func (s *ProgramStore) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.programs[id]
	if !ok {
		return false
	}
	s.remove(id, e)
	return true
}

// Len returns the number of stored programs.
func (s *ProgramStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.programs)
}

// Sweep removes programs that haven't been used within the TTL.
func (s *ProgramStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for id, e := range s.programs {
		if e.readers == 0 && e.lastUsed.Before(cutoff) {
			s.remove(id, e)
			removed++
		}
	}
	if removed > 0 {
		log.Debugf("swept %d idle programs", removed)
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *ProgramStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}
