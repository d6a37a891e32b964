// Package worker runs background render jobs on a pool of goroutines.
//
// Go Pattern: A buffered channel is the job queue, N goroutines range over
// it, and HTTP handlers submit without blocking. After a recipient submits,
// the handler queues a render job so the first view of the signed document
// is served from the render cache instead of stamping on the request path.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Shimizu-Technology/sign-tools-api/internal/models"
)

// JobType identifies what kind of work a job represents.
type JobType string

const (
	// JobRender stamps a signed document and stores the result in the render cache.
	JobRender JobType = "render_document"
)

// Job represents a unit of work to be processed by a worker.
type Job struct {
	ID        string // The signed document ID
	Type      JobType
	CreatedAt time.Time
}

// Renderer is the render pipeline the workers drive.
type Renderer interface {
	RenderByID(ctx context.Context, id string) ([]byte, *models.SignedDocumentWithTemplate, error)
}

// Notifier announces finished renders. *webhook.Service implements it.
type Notifier interface {
	NotifyEvent(ctx context.Context, ownerID *string, event string, data any)
}

// Pool manages a pool of worker goroutines.
type Pool struct {
	// Go Pattern: Buffered means it can hold `queueSize` jobs before
	// Submit starts refusing work.
	jobs     chan Job
	workers  int
	renderer Renderer
	notifier Notifier // optional

	// Go Pattern: sync.WaitGroup tracks running goroutines so Stop can
	// wait for in-flight jobs.
	wg sync.WaitGroup

	// Cancelled on Stop; every job runs under this context.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
}

// NewPool creates a new worker pool. notifier may be nil.
func NewPool(workers, queueSize int, renderer Renderer, notifier Notifier) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		jobs:     make(chan Job, queueSize),
		workers:  workers,
		renderer: renderer,
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	log.Printf("🚀 Starting %d background workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop gracefully shuts down all workers. Queued jobs that have not started
// are dropped; renders are only a warm-up and happen on demand anyway.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	log.Println("⏹️  Stopping workers...")
	p.cancel()
	p.wg.Wait()
	log.Println("✅ All workers stopped")
}

// Submit adds a job to the queue.
// Returns an error if the queue is full or the pool is stopped (non-blocking).
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return fmt.Errorf("worker pool is stopped")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	// Go Pattern: `select` with `default` makes channel operations non-blocking.
	select {
	case p.jobs <- job:
		log.Printf("📥 Job queued: %s (type: %s)", job.ID, job.Type)
		return nil
	default:
		return fmt.Errorf("job queue is full; try again later")
	}
}

// QueueSize returns the current number of jobs in the queue.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// WorkerCount returns the number of workers.
func (p *Pool) WorkerCount() int {
	return p.workers
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		var err error
		switch job.Type {
		case JobRender:
			err = p.processRender(job)
		default:
			err = fmt.Errorf("unknown job type: %s", job.Type)
		}

		if err != nil {
			log.Printf("❌ Worker %d: job %s failed: %v", id, job.ID, err)
		} else {
			log.Printf("✅ Worker %d: job %s completed in %s", id, job.ID, time.Since(job.CreatedAt).Round(time.Millisecond))
		}
	}
}

func (p *Pool) processRender(job Job) error {
	_, doc, err := p.renderer.RenderByID(p.ctx, job.ID)
	if err != nil {
		return err
	}
	if p.notifier != nil && doc != nil {
		p.notifier.NotifyEvent(p.ctx, doc.Template.OwnerID, models.EventDocumentRendered, models.DocumentEvent{
			DocumentID:   doc.ID,
			TemplateID:   doc.TemplateID,
			TemplateName: doc.Template.Name,
			ViewURL:      "/view/" + doc.ID,
		})
	}
	return nil
}
