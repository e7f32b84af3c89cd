package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/retrieval"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/engine"
)

// StartRun creates a run for one subject and tier and begins executing it in
// the background. An unknown tier yields a zero-item run, which completes
// immediately; that is valid, not an error.
func (s *Service) StartRun(ctx context.Context, ownerID string, tier domain.Tier, subject string) (*domain.Run, error) {
	if subject == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if ownerID == "" {
		ownerID = "default_user"
	}

	items := s.catalog.ItemsForTier(tier)

	run := &domain.Run{
		RunID:      "run_" + uuid.New().String()[:8],
		OwnerID:    ownerID,
		Tier:       tier,
		Subject:    subject,
		Status:     domain.RunStatusPending,
		TotalCount: len(items),
		StartedAt:  time.Now(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[run.RunID] = cancel
	s.mu.Unlock()

	// The engine goroutine owns run once spawned; snapshot first so the
	// caller can serialize its copy without racing engine writes.
	snapshot := *run
	go s.execute(runCtx, run, items)

	return &snapshot, nil
}

func (s *Service) execute(ctx context.Context, run *domain.Run, items []domain.WorkItem) {
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.cancels[run.RunID]; ok {
			cancel()
			delete(s.cancels, run.RunID)
		}
		s.mu.Unlock()
	}()

	// Wait for a slot; cancellation while queued still applies.
	select {
	case s.runSem <- struct{}{}:
		defer func() { <-s.runSem }()
	case <-ctx.Done():
		run.Status = domain.RunStatusCancelled
		if err := s.store.FinalizeRun(context.Background(), run); err != nil {
			log.Printf("ERROR: failed to finalize cancelled run %s: %v", run.RunID, err)
		}
		return
	}

	spec := engine.RunSpec{
		Run:              run,
		Items:            items,
		RetrievedContext: s.retrieveContext(ctx, run),
		Sink:             engine.NopSink,
	}
	result, err := s.engine.Execute(ctx, spec)
	if err != nil {
		log.Printf("ERROR: run %s aborted: %v", run.RunID, err)
		return
	}
	log.Printf("INFO: run %s finished: %s (%d/%d items, %d tokens)",
		result.RunID, result.Status, result.CompletedCount, result.TotalCount, result.TokensUsed)
}

// retrieveContext fetches the optional retrieved-context block. It is
// best-effort; failures degrade to an empty block.
func (s *Service) retrieveContext(ctx context.Context, run *domain.Run) string {
	if s.retrieval == nil {
		return ""
	}
	block, err := s.retrieval.Retrieve(ctx, run.OwnerID, run.Subject, retrieval.Options{
		TopK: s.config.RetrievalTopK,
	})
	if err != nil {
		log.Printf("WARN: retrieval for run %s failed: %v", run.RunID, err)
		return ""
	}
	return block
}

// CancelRun stops a run between item attempts. Idempotent for terminal runs.
func (s *Service) CancelRun(ctx context.Context, runID string) error {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if run.Status.Terminal() {
		return nil // Already terminal
	}

	s.mu.Lock()
	cancel, ok := s.cancels[runID]
	s.mu.Unlock()
	if ok {
		cancel()
		return nil
	}

	// No live execution holds this run (e.g. process restart); mark it
	// cancelled directly.
	run.Status = domain.RunStatusCancelled
	if err := s.store.FinalizeRun(ctx, run); err != nil {
		return fmt.Errorf("failed to cancel run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListItemExecutions returns a run's item executions in execution order.
func (s *Service) ListItemExecutions(ctx context.Context, runID string) ([]domain.ItemExecution, error) {
	return s.store.ListItemExecutions(ctx, runID)
}

// ListProgressEvents returns persisted progress events after a timestamp.
func (s *Service) ListProgressEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.ProgressEvent, error) {
	return s.store.ListProgressEvents(ctx, runID, afterTs, limit)
}

// ProgressPollInterval is the poll cadence for remote progress observers.
func (s *Service) ProgressPollInterval() time.Duration {
	return s.config.ProgressPollInterval
}
