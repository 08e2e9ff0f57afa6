package mpi

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestNewLocalRanks(t *testing.T) {
	comms := NewLocal(4)
	if len(comms) != 4 {
		t.Fatalf("got %d communicators, want 4", len(comms))
	}
	for i, c := range comms {
		if c.Rank() != i {
			t.Errorf("comm %d has rank %d", i, c.Rank())
		}
		if c.Size() != 4 {
			t.Errorf("comm %d has size %d, want 4", i, c.Size())
		}
	}
}

func TestNewLocalSingleton(t *testing.T) {
	comms := NewLocal(1)
	if len(comms) != 1 {
		t.Fatalf("got %d communicators, want 1", len(comms))
	}
	// A size-1 barrier must not block.
	comms[0].Barrier()
	comms[0].Barrier()
}

func TestBarrierSynchronizes(t *testing.T) {
	const (
		procs  = 8
		rounds = 50
	)
	comms := NewLocal(procs)

	var counter atomic.Int64
	var wg sync.WaitGroup

	for p := 0; p < procs; p++ {
		wg.Add(1)
		go func(c Comm) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				counter.Add(1)
				c.Barrier()
				// Every rank has finished round r.
				if got := counter.Load(); got < int64((r+1)*procs) {
					t.Errorf("round %d: counter %d, want at least %d", r, got, (r+1)*procs)
					return
				}
				c.Barrier()
			}
		}(comms[p])
	}
	wg.Wait()

	if got := counter.Load(); got != procs*rounds {
		t.Fatalf("counter %d, want %d", got, procs*rounds)
	}
}

func TestBarrierReusable(t *testing.T) {
	// The barrier is cyclic: generations must not interfere.
	const procs = 3
	comms := NewLocal(procs)

	var wg sync.WaitGroup
	for p := 0; p < procs; p++ {
		wg.Add(1)
		go func(c Comm) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.Barrier()
			}
		}(comms[p])
	}
	wg.Wait()
}

func TestInfoMap(t *testing.T) {
	info := InfoMap{"romio_cb_write": "enable"}

	v, ok := info.Get("romio_cb_write")
	if !ok || v != "enable" {
		t.Fatalf("Get returned %q, %v", v, ok)
	}
	if _, ok := info.Get("missing"); ok {
		t.Fatal("Get reported a missing key as present")
	}
}
