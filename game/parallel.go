package game

import (
	"runtime"
	"sync"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slug/components"
)

// parallelThreshold is the minimum hunter count to use parallel processing.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// huntSnapshot captures a free organism's read-only state for target selection.
type huntSnapshot struct {
	Entity ecs.Entity
	Pos    components.Position
}

// huntIntent is the target chosen for one snapshot.
type huntIntent struct {
	Target prey
	Dist   float32
	Found  bool
}

// workChunk represents a range of snapshots for a worker to process.
type workChunk struct {
	start, end int
}

// parallelState holds resources for parallel target selection.
type parallelState struct {
	snapshots  []huntSnapshot
	intents    []huntIntent
	hosts      []prey // Read-only while workers run
	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newParallelState() *parallelState {
	return &parallelState{
		numWorkers: runtime.GOMAXPROCS(0),
		snapshots:  make([]huntSnapshot, 0, 64),
		intents:    make([]huntIntent, 0, 64),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.computeChunk(chunk.start, chunk.end)
			p.doneChan <- struct{}{}
		}
	}
}

// computeChunk picks targets for snapshots[start:end]. Pure; safe to run concurrently.
func (p *parallelState) computeChunk(start, end int) {
	for i := start; i < end; i++ {
		target, dist, found := nearestPrey(p.snapshots[i].Pos, p.hosts)
		p.intents[i] = huntIntent{Target: target, Dist: dist, Found: found}
	}
}

// plan fills intents for the current snapshots against hosts.
// Results are indexed like snapshots, so applying them in order stays deterministic.
func (p *parallelState) plan(hosts []prey) []huntIntent {
	p.hosts = hosts
	n := len(p.snapshots)
	if cap(p.intents) < n {
		p.intents = make([]huntIntent, n)
	}
	p.intents = p.intents[:n]

	if n < parallelThreshold {
		p.computeChunk(0, n)
	} else {
		p.computeParallel(n)
	}
	p.hosts = nil
	return p.intents
}

// computeParallel dispatches work to the worker pool.
func (p *parallelState) computeParallel(n int) {
	if !p.running {
		p.startWorkers()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}
