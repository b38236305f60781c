package chunk

import (
	"context"
	"sync"

	"github.com/strata3d/strata/block"
)

// BakeJob asks the pool to rebake one chunk. The result is delivered on
// ResultChan once the bake has been installed (or discarded as stale).
type BakeJob struct {
	Chunk      *Chunk
	Layers     []RenderLayer
	Blocks     *block.Manager
	Provider   BlockStateProvider
	ResultChan chan BakeResult
}

// BakeResult reports the outcome of one bake job.
type BakeResult struct {
	Pos   Pos
	Error error
}

// BakePool runs chunk bakes on a fixed set of worker goroutines, keeping
// the render thread free of meshing work.
type BakePool struct {
	manager  *Manager
	uploads  Uploader
	jobQueue chan BakeJob
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewBakePool starts `workers` goroutines draining a queue of `queueSize`.
func NewBakePool(manager *Manager, uploads Uploader, workers, queueSize int) *BakePool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &BakePool{
		manager:  manager,
		uploads:  uploads,
		jobQueue: make(chan BakeJob, queueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}

	return pool
}

// Submit queues a bake job. Returns false if the queue is full.
func (p *BakePool) Submit(job BakeJob) bool {
	select {
	case p.jobQueue <- job:
		return true
	default:
		return false
	}
}

// SubmitBlocking queues a bake job, waiting for room in the queue.
func (p *BakePool) SubmitBlocking(job BakeJob) {
	select {
	case p.jobQueue <- job:
	case <-p.ctx.Done():
	}
}

func (p *BakePool) worker() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			err := p.manager.BakeChunk(job.Chunk, job.Layers, job.Blocks, job.Provider, p.uploads)
			if job.ResultChan != nil {
				select {
				case job.ResultChan <- BakeResult{Pos: job.Chunk.Pos, Error: err}:
				case <-p.ctx.Done():
					return
				}
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// QueueLength reports the number of pending jobs.
func (p *BakePool) QueueLength() int {
	return len(p.jobQueue)
}

// Shutdown stops the workers and waits for them to exit.
func (p *BakePool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
