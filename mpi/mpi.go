// Package mpi defines the opaque communicator boundary used for
// parallel file access.
//
// The library never links against an MPI implementation; it only needs
// rank/size queries and a barrier. Any type satisfying [Comm] can drive
// rank-aware file access. [NewLocal] provides an in-process communicator
// group backed by goroutines, which is what the tests and examples use.
package mpi

import "sync"

// Comm is an opaque communicator. Rank identifies the calling process
// within the group, Size is the group size, and Barrier blocks until
// every member of the group has entered it.
type Comm interface {
	Rank() int
	Size() int
	Barrier()
}

// Info carries implementation hints for file access, mirroring MPI_Info.
// Implementations are free to ignore keys they do not understand.
type Info interface {
	Get(key string) (string, bool)
}

// InfoMap is a simple map-backed Info.
type InfoMap map[string]string

// Get returns the value for key, if set.
func (m InfoMap) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// localGroup is a reusable (cyclic) barrier shared by a set of local
// communicators.
type localGroup struct {
	mu         sync.Mutex
	cond       *sync.Cond
	size       int
	arrived    int
	generation uint64
}

func (g *localGroup) await() {
	g.mu.Lock()
	defer g.mu.Unlock()

	gen := g.generation
	g.arrived++
	if g.arrived == g.size {
		g.arrived = 0
		g.generation++
		g.cond.Broadcast()
		return
	}
	for gen == g.generation {
		g.cond.Wait()
	}
}

// localComm is one member of an in-process communicator group.
type localComm struct {
	rank  int
	group *localGroup
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.group.size }
func (c *localComm) Barrier() { c.group.await() }

// NewLocal returns n communicators sharing a cyclic barrier. Each
// communicator is intended to be driven by its own goroutine; Barrier
// blocks until all n goroutines have reached it.
func NewLocal(n int) []Comm {
	if n < 1 {
		n = 1
	}
	g := &localGroup{size: n}
	g.cond = sync.NewCond(&g.mu)

	comms := make([]Comm, n)
	for i := range comms {
		comms[i] = &localComm{rank: i, group: g}
	}
	return comms
}
