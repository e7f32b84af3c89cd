// Package engine walks a planned list of work items, invokes the generative
// service per item with dependency outputs injected as context, persists the
// results, and reports progress. Per-item failures never abort the run:
// partial deliverables beat an all-or-nothing abort.
package engine

import (
	"context"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/adapter/llm"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/plan"
	store "github.com/AraMammo/full-stack-vibe-coder-sub000/internal/repository"
	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/sideeffect"
)

const (
	// SubjectPlaceholder is the token substituted with the business subject.
	SubjectPlaceholder = "{{business_description}}"

	contextHeading = "# Context from Previous Analyses"

	concisenessDirective = "You are a senior business consultant. Be specific and concise; " +
		"prefer concrete recommendations over generalities. Respond in markdown."
)

// placeholderRe matches any unresolved template token.
var placeholderRe = regexp.MustCompile(`\{\{\s*[a-zA-Z0-9_]+\s*\}\}`)

// Engine executes runs.
type Engine struct {
	store    store.Store
	gen      llm.Generator
	triggers *sideeffect.Registry
	// parallelism caps concurrent item attempts within one dependency
	// level. 1 preserves strict catalog-order execution.
	parallelism int
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallelism sets the per-level worker count.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// New creates an engine. The generative client is injected per engine rather
// than held as shared mutable state, so concurrent runs and test substitution
// stay straightforward.
func New(s store.Store, gen llm.Generator, triggers *sideeffect.Registry, opts ...Option) *Engine {
	e := &Engine{store: s, gen: gen, triggers: triggers, parallelism: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunSpec describes one execution request.
type RunSpec struct {
	Run              *domain.Run
	Items            []domain.WorkItem
	RetrievedContext string
	Sink             ProgressSink
}

// runState is the mutable per-run bookkeeping shared across item attempts.
type runState struct {
	mu        sync.Mutex
	outputs   map[string]*domain.ItemExecution // completed executions by item id
	warnings  []string
	attempted int
	completed int
	tokens    int
	lastTs    int64
}

func (st *runState) nextTs() int64 {
	// Monotonic per run so pollers tracking "ts > last" never skip an event.
	ts := time.Now().UnixMilli()
	if ts <= st.lastTs {
		ts = st.lastTs + 1
	}
	st.lastTs = ts
	return ts
}

func (st *runState) warn(msg string) {
	st.mu.Lock()
	st.warnings = append(st.warnings, msg)
	st.mu.Unlock()
}

// Execute runs every planned item to completion or failure, finalizes the
// run record, and returns the aggregate result.
//
// A planning failure (dependency cycle) is a configuration error: the run is
// marked failed before any item executes and the error is returned. Item
// failures and side-effect failures are recorded and never returned.
func (e *Engine) Execute(ctx context.Context, spec RunSpec) (*domain.RunResult, error) {
	run := spec.Run
	sink := spec.Sink
	if sink == nil {
		sink = NopSink
	}

	// Store writes outlive cancellation: a cancelled run still has to persist
	// its partial results and terminal state.
	storeCtx := context.WithoutCancel(ctx)

	levels, err := plan.Levels(spec.Items)
	if err != nil {
		run.Status = domain.RunStatusFailed
		if ferr := e.store.FinalizeRun(storeCtx, run); ferr != nil {
			log.Printf("ERROR: failed to finalize run %s: %v", run.RunID, ferr)
		}
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	total := len(spec.Items)
	run.TotalCount = total
	run.Status = domain.RunStatusInProgress
	if err := e.store.UpdateRunStatus(storeCtx, run.RunID, run.Status); err != nil {
		log.Printf("ERROR: failed to update run status: %v", err)
	}

	started := time.Now()
	st := &runState{outputs: make(map[string]*domain.ItemExecution, total)}

	cancelled := false
levelLoop:
	for _, level := range levels {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if e.parallelism <= 1 || len(level) == 1 {
			for _, item := range level {
				if ctx.Err() != nil {
					cancelled = true
					break levelLoop
				}
				e.attemptItem(ctx, run, item, total, st, sink, spec.RetrievedContext)
			}
			continue
		}

		// Items within one level share no ordering constraint; attempt them
		// through a bounded worker pool.
		sem := make(chan struct{}, e.parallelism)
		var wg sync.WaitGroup
		for _, item := range level {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(item domain.WorkItem) {
				defer wg.Done()
				defer func() { <-sem }()
				e.attemptItem(ctx, run, item, total, st, sink, spec.RetrievedContext)
			}(item)
		}
		wg.Wait()
		if cancelled {
			break
		}
	}

	run.CompletedCount = st.completed
	run.TokensUsed = st.tokens
	run.DurationMs = time.Since(started).Milliseconds()
	run.Warnings = st.warnings
	if cancelled {
		run.Status = domain.RunStatusCancelled
	} else {
		// Completed regardless of how many individual items failed.
		run.Status = domain.RunStatusCompleted
	}
	if err := e.store.FinalizeRun(storeCtx, run); err != nil {
		log.Printf("ERROR: failed to finalize run %s: %v", run.RunID, err)
		st.warn(fmt.Sprintf("failed to persist final run state: %v", err))
		run.Warnings = st.warnings
	}

	return &domain.RunResult{
		RunID:          run.RunID,
		Status:         run.Status,
		CompletedCount: run.CompletedCount,
		TotalCount:     run.TotalCount,
		TokensUsed:     run.TokensUsed,
		DurationMs:     run.DurationMs,
		Warnings:       run.Warnings,
	}, nil
}

// attemptItem resolves, invokes, persists and triggers for a single item.
func (e *Engine) attemptItem(ctx context.Context, run *domain.Run, item domain.WorkItem, total int, st *runState, sink ProgressSink, retrieved string) {
	storeCtx := context.WithoutCancel(ctx)
	input := e.resolveInput(run, item, st)

	st.mu.Lock()
	donePct := percentage(st.attempted, total)
	st.mu.Unlock()
	e.emit(storeCtx, run, item, domain.ProgressInProgress, donePct, st, sink)

	system := concisenessDirective
	if retrieved != "" {
		// Retrieved context rides on the system instructions so every item
		// in the run benefits from the same block.
		system += "\n\nRelevant context from the owner's documents:\n" + retrieved
	}

	itemStart := time.Now()
	res, err := e.gen.Invoke(ctx, llm.Request{System: system, User: input})

	exec := &domain.ItemExecution{
		RunID:         run.RunID,
		ItemID:        item.ID,
		DisplayName:   item.DisplayName,
		Section:       item.Section,
		ResolvedInput: input,
		DurationMs:    time.Since(itemStart).Milliseconds(),
		ExecutedAt:    time.Now(),
	}

	if err != nil {
		exec.Status = domain.ItemStatusFailed
		exec.Output = "ERROR: " + err.Error()
		log.Printf("WARN: item %s in run %s failed: %v", item.ID, run.RunID, err)
	} else {
		exec.Status = domain.ItemStatusCompleted
		exec.Output = res.Text
		exec.TokensUsed = res.TokensUsed
	}

	if perr := e.store.CreateItemExecution(storeCtx, exec); perr != nil {
		log.Printf("ERROR: failed to persist item execution %s/%s: %v", run.RunID, item.ID, perr)
		st.warn(fmt.Sprintf("failed to persist output of item %s: %v", item.ID, perr))
	} else if exec.Status == domain.ItemStatusCompleted {
		// Document artifact for the packager, one per completed item.
		e.persistDocument(storeCtx, run.RunID, item, exec.Output, st)
	}

	if exec.Status == domain.ItemStatusCompleted {
		// Side effects run synchronously, before the completed event.
		e.triggers.MaybeTrigger(ctx, exec, run)
	}

	st.mu.Lock()
	st.attempted++
	if exec.Status == domain.ItemStatusCompleted {
		st.completed++
		st.outputs[item.ID] = exec
		st.tokens += exec.TokensUsed
	}
	pct := percentage(st.attempted, total)
	st.mu.Unlock()

	status := domain.ProgressCompleted
	if exec.Status == domain.ItemStatusFailed {
		status = domain.ProgressFailed
	}
	e.emit(storeCtx, run, item, status, pct, st, sink)
}

// resolveInput builds the generative input for one item: template, subject
// substitution, dependency context blocks, and the last-resort placeholder
// fallback. The final input never carries a raw placeholder.
func (e *Engine) resolveInput(run *domain.Run, item domain.WorkItem, st *runState) string {
	input := strings.ReplaceAll(item.Instruction, SubjectPlaceholder, run.Subject)

	var blocks []string
	st.mu.Lock()
	for _, dep := range item.DependsOn {
		depExec, ok := st.outputs[dep]
		if !ok {
			// Either the dependency failed or the tier excludes it. The
			// dependent still runs; its context block is simply omitted.
			log.Printf("WARN: dependency %s output unavailable for item %s in run %s", dep, item.ID, run.RunID)
			st.warnings = append(st.warnings, fmt.Sprintf("item %s ran without context from %s", item.ID, dep))
			continue
		}
		blocks = append(blocks, "## "+depExec.DisplayName+"\n\n"+depExec.Output)
	}
	st.mu.Unlock()

	if len(blocks) > 0 {
		input += "\n\n" + contextHeading + "\n\n" + strings.Join(blocks, "\n\n")
	}

	return placeholderRe.ReplaceAllString(input, run.Subject)
}

func (e *Engine) persistDocument(ctx context.Context, runID string, item domain.WorkItem, output string, st *runState) {
	artifact := &domain.Artifact{
		ArtifactID: "art_" + uuid.New().String()[:8],
		RunID:      runID,
		ItemID:     item.ID,
		Name:       item.ID + ".md",
		Kind:       domain.ArtifactKindDocument,
		Payload:    output,
		CreatedAt:  time.Now(),
	}
	if err := e.store.CreateArtifact(ctx, artifact); err != nil {
		log.Printf("ERROR: failed to persist artifact for %s/%s: %v", runID, item.ID, err)
		st.warn(fmt.Sprintf("failed to persist artifact of item %s: %v", item.ID, err))
	}
}

// emit publishes a progress event to the sink and persists it for poll-based
// observers.
func (e *Engine) emit(ctx context.Context, run *domain.Run, item domain.WorkItem, status domain.ProgressStatus, pct int, st *runState, sink ProgressSink) {
	st.mu.Lock()
	event := domain.ProgressEvent{
		EventID:        "evt_" + uuid.New().String()[:8],
		RunID:          run.RunID,
		ItemID:         item.ID,
		ItemName:       item.DisplayName,
		Section:        item.Section,
		Status:         status,
		Percentage:     pct,
		CompletedCount: st.completed,
		TotalCount:     run.TotalCount,
		Ts:             st.nextTs(),
	}
	st.mu.Unlock()

	sink.Publish(event)
	if err := e.store.CreateProgressEvent(ctx, &event); err != nil {
		log.Printf("ERROR: failed to persist progress event for run %s: %v", run.RunID, err)
	}
}

// percentage implements the integer-rounded run-level progress metric.
func percentage(attempted, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(attempted) / float64(total) * 100))
}
