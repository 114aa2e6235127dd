package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raghavpatnecha/mnemosyne/pkg/keylock"
)

// WorkerPool runs a fixed number of long-lived goroutines draining a
// JobSource, each performing at most one document's pipeline attempt at a
// time. No stage may monopolize a worker beyond its own I/O — retries are
// re-enqueued with a delay rather than slept inline, so a worker is always
// free to pick up the next ready job.
type WorkerPool struct {
	cfg      Config
	repo     Repository
	pipeline *Pipeline
	queue    JobQueue
	source   JobSource
	logger   *slog.Logger
	locks    *keylock.Map

	cancelMu sync.Mutex
	cancels  map[uuid.UUID]context.CancelFunc
}

// NewWorkerPool is a wire provider for the ingestion worker pool.
func NewWorkerPool(cfg Config, repo Repository, pipeline *Pipeline, queue JobQueue, source JobSource, logger *slog.Logger) *WorkerPool {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 8
	}
	return &WorkerPool{
		cfg:      cfg,
		repo:     repo,
		pipeline: pipeline,
		queue:    queue,
		source:   source,
		logger:   logger.With("component", "ingestion.workerpool"),
		locks:    keylock.New(),
		cancels:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// Start launches the configured number of workers; they run until ctx is
// cancelled.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.WorkerCount; i++ {
		go p.runWorker(ctx, i)
	}
}

func (p *WorkerPool) runWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.source.Jobs():
			if !ok {
				return
			}
			p.attempt(ctx, job)
		}
	}
}

// Cancel signals an in-flight attempt's context to stop. Service.Cancel does
// not call it; that method only performs the status CAS to cancelled.
func (p *WorkerPool) Cancel(documentID uuid.UUID) {
	p.cancelMu.Lock()
	defer p.cancelMu.Unlock()
	if cancel, ok := p.cancels[documentID]; ok {
		cancel()
	}
}

func (p *WorkerPool) attempt(parent context.Context, job Job) {
	unlock := p.locks.Lock(job.DocumentID)
	defer unlock()

	doc, found, err := p.repo.GetAny(parent, job.DocumentID)
	if err != nil || !found {
		p.logger.Error("document missing for ingestion job", "document_id", job.DocumentID, "error", err)
		return
	}
	if doc.Status != StatusQueued {
		return // already running, cancelled, or completed by a prior attempt
	}

	ok, err := p.repo.CompareAndSwapStatus(parent, doc.ID, StatusQueued, StatusRunning, nil)
	if err != nil || !ok {
		return
	}
	doc.Status = StatusRunning
	doc.Attempt = job.Attempt

	attemptCtx, cancel := context.WithTimeout(parent, 10*time.Minute)
	p.cancelMu.Lock()
	p.cancels[doc.ID] = cancel
	p.cancelMu.Unlock()
	defer func() {
		cancel()
		p.cancelMu.Lock()
		delete(p.cancels, doc.ID)
		p.cancelMu.Unlock()
	}()

	n, runErr := p.pipeline.Run(attemptCtx, doc)
	if runErr == nil {
		// Pipeline.Run's Completer already transitioned the document to
		// StatusCompleted atomically alongside the chunk persist.
		p.logger.Info("document ingested", "document_id", doc.ID, "chunks", n)
		return
	}

	if errors.Is(attemptCtx.Err(), context.Canceled) {
		// cancelled out from under us; leave status as whatever Cancel set it to
		return
	}

	info := &ProcessingInfo{Error: runErr.Error()}
	if !isTransient(runErr) || job.Attempt >= p.cfg.MaxAttempts {
		_, _ = p.repo.CompareAndSwapStatus(parent, doc.ID, StatusRunning, StatusFailed, info)
		p.logger.Warn("document ingestion failed permanently", "document_id", doc.ID, "attempt", job.Attempt, "error", runErr)
		return
	}

	_, _ = p.repo.CompareAndSwapStatus(parent, doc.ID, StatusRunning, StatusQueued, info)
	delay := p.cfg.BaseBackoffSec * (1 << (job.Attempt - 1))
	next := Job{DocumentID: doc.ID, Attempt: job.Attempt + 1}
	if err := p.queue.EnqueueDelayed(parent, next, delay); err != nil {
		p.logger.Error("failed to re-enqueue ingestion attempt", "document_id", doc.ID, "error", err)
	}
	p.logger.Info("document ingestion scheduled for retry", "document_id", doc.ID, "attempt", next.Attempt, "delay_sec", delay, "reason", fmt.Sprint(runErr))
}
