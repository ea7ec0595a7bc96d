package profile

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// CorpusLoader produces the current corpus for a scheduled run, e.g. by
// re-reading an exported archive.
type CorpusLoader func(ctx context.Context) ([]Document, error)

// Scheduler runs ingestion on a cron spec with at most one run in flight per
// process. The guard is a plain busy flag, not a cross-process lock: two
// instances ingesting concurrently is acceptable because record ids are
// deterministic and upserts idempotent.
type Scheduler struct {
	cron     *cron.Cron
	ingestor *Ingestor
	load     CorpusLoader
	busy     atomic.Bool

	// LastProfile is the profile from the most recent successful run.
	lastProfile atomic.Pointer[VoiceProfile]
}

// NewScheduler creates a scheduler around an ingestor and corpus loader.
func NewScheduler(ingestor *Ingestor, load CorpusLoader) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		ingestor: ingestor,
		load:     load,
	}
}

// Start registers the cron spec (e.g. "@daily") and begins scheduling.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunNow(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunNow triggers one ingestion run, skipping if a previous run is still in
// flight. Safe to call manually alongside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		log.Printf("[INGEST] previous run still in flight, skipping this tick")
		return
	}
	defer s.busy.Store(false)

	docs, err := s.load(ctx)
	if err != nil {
		log.Printf("[INGEST] corpus load failed: %v", err)
		return
	}

	result, err := s.ingestor.Ingest(ctx, docs)
	if err != nil {
		log.Printf("[INGEST] run ended early (processed=%d skipped=%d aborted=%v): %v",
			result.Processed, result.Skipped, result.Aborted, err)
	}
	if result.Profile != nil {
		s.lastProfile.Store(result.Profile)
	}
}

// LastProfile returns the profile from the most recent run, or nil before
// the first one.
func (s *Scheduler) LastProfile() *VoiceProfile {
	return s.lastProfile.Load()
}
