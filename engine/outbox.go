package engine

import (
	"context"
	"log"
	"time"

	"github.com/CylentisAI/Inbox-scout/learn"
)

type learnJob struct {
	original   string
	edited     string
	provenance string
}

// outbox decouples edit learning from the mail flow: jobs queue onto a
// bounded channel and a single worker drains them with bounded retry, so
// failures are visible in the log and retried instead of silently dropped.
type outbox struct {
	learner *learn.Engine
	jobs    chan learnJob
	done    chan struct{}

	maxAttempts int
	retryDelay  time.Duration
}

func newOutbox(learner *learn.Engine, size int) *outbox {
	o := &outbox{
		learner:     learner,
		jobs:        make(chan learnJob, size),
		done:        make(chan struct{}),
		maxAttempts: 3,
		retryDelay:  time.Second,
	}
	go o.run()
	return o
}

// Enqueue queues a job without blocking. Returns false when the queue is
// full; the caller decides whether dropping is acceptable.
func (o *outbox) Enqueue(job learnJob) bool {
	select {
	case o.jobs <- job:
		return true
	default:
		return false
	}
}

// Close stops accepting jobs and waits for the worker to drain the queue.
func (o *outbox) Close() {
	close(o.jobs)
	<-o.done
}

func (o *outbox) run() {
	defer close(o.done)
	for job := range o.jobs {
		o.process(job)
	}
}

func (o *outbox) process(job learnJob) {
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		delta, err := o.learner.LearnFromEdit(context.Background(), job.original, job.edited, job.provenance)
		if err == nil {
			log.Printf("[OUTBOX] learned from %s: %s", job.provenance, delta)
			return
		}
		log.Printf("[OUTBOX] learn attempt %d/%d for %s failed: %v",
			attempt, o.maxAttempts, job.provenance, err)
		if attempt < o.maxAttempts {
			time.Sleep(o.retryDelay * time.Duration(attempt))
		}
	}
	log.Printf("[OUTBOX] giving up on edit from %s after %d attempts", job.provenance, o.maxAttempts)
}
