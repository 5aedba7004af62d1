package engine

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/pkg/models"
)

// BatchSchedulerConfig tunes C5's concurrency bounds.
type BatchSchedulerConfig struct {
	OuterParallelism    int // default 4
	FamilyParallelism   map[Family]int
	TuningByTool        map[string]ToolTuning
	TuningByFamily      map[Family]ToolTuning
	DefaultTuning       ToolTuning
}

// BatchScheduler is C5: groups a turn's tool calls into batches by
// family, enforces per-family parallelism, and flattens results
// preserving the original call order.
type BatchScheduler struct {
	executor *Executor
	registry *Registry
	cfg      BatchSchedulerConfig
	logger   *slog.Logger

	outerSem *semaphore.Weighted
}

// NewBatchScheduler wires C5 to its executor and registry.
func NewBatchScheduler(executor *Executor, registry *Registry, cfg BatchSchedulerConfig, logger *slog.Logger) *BatchScheduler {
	if cfg.OuterParallelism <= 0 {
		cfg.OuterParallelism = 4
	}
	if cfg.FamilyParallelism == nil {
		cfg.FamilyParallelism = map[Family]int{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchScheduler{
		executor: executor,
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		outerSem: semaphore.NewWeighted(int64(cfg.OuterParallelism)),
	}
}

// batchGroup is one family/write-style partition to be executed with
// a shared inner semaphore.
type batchGroup struct {
	family Family
	write  bool
	items  []ToolCallWithIndex
}

// Run groups calls into batches, executes them with bounded
// concurrency, and returns results in the original declared order.
//
// Write groups are always size-1 batches (splitIntoBatches), but those
// batches run one after another within the group rather than fanned
// out across the outer semaphore: a batch of writes of size K executes
// serially (batch size 1 each), never in parallel. Read groups keep the
// concurrent-batches-within-a-group behavior.
func (s *BatchScheduler) Run(ctx context.Context, calls []models.ToolCall, dedup *DedupMap) []models.ToolResult {
	results := make([]models.ToolResult, len(calls))

	groups := s.partition(calls)

	var wg sync.WaitGroup
	for _, g := range groups {
		g := g
		batches := s.splitIntoBatches(g)

		if g.write {
			if err := s.outerSem.Acquire(ctx, 1); err != nil {
				for _, batch := range batches {
					for _, it := range batch {
						results[it.Index] = timeoutResult(it.Call)
					}
				}
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer s.outerSem.Release(1)
				for _, batch := range batches {
					s.runBatch(ctx, g.family, batch, dedup, results)
				}
			}()
			continue
		}

		for _, batch := range batches {
			batch := batch
			if err := s.outerSem.Acquire(ctx, 1); err != nil {
				// Context cancelled: mark remaining as timeouts.
				for _, it := range batch {
					results[it.Index] = timeoutResult(it.Call)
				}
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer s.outerSem.Release(1)
				s.runBatch(ctx, g.family, batch, dedup, results)
			}()
		}
	}
	wg.Wait()

	return results
}

// partition categorizes calls by family and write/read, extracting
// writes into their own per-family group so they are never packed with
// reads or other writes.
func (s *BatchScheduler) partition(calls []models.ToolCall) []*batchGroup {
	groupsByKey := make(map[string]*batchGroup)
	var order []string

	for i, call := range calls {
		family := s.registry.ClassifyFamily(call.ToolName)
		write := IsWriteStyleTool(call.ToolName)
		key := string(family)
		if write {
			key += "|write"
		}
		g, ok := groupsByKey[key]
		if !ok {
			g = &batchGroup{family: family, write: write}
			groupsByKey[key] = g
			order = append(order, key)
		}
		g.items = append(g.items, ToolCallWithIndex{Call: call, Index: i})
	}

	out := make([]*batchGroup, 0, len(order))
	for _, key := range order {
		out = append(out, groupsByKey[key])
	}
	return out
}

// splitIntoBatches further chunks a group's items according to the
// family's batch size limit (writes always split to size 1).
func (s *BatchScheduler) splitIntoBatches(g *batchGroup) [][]ToolCallWithIndex {
	limit := FamilyBatchLimit(g.family, g.write)
	var batches [][]ToolCallWithIndex
	for i := 0; i < len(g.items); i += limit {
		end := i + limit
		if end > len(g.items) {
			end = len(g.items)
		}
		batches = append(batches, g.items[i:end])
	}
	return batches
}

// runBatch executes one batch with a family-scoped inner semaphore. If
// the batch itself panics/raises (not individual tool errors), it
// falls back to per-call individual execution.
func (s *BatchScheduler) runBatch(ctx context.Context, family Family, items []ToolCallWithIndex, dedup *DedupMap, results []models.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("batch panicked, falling back to individual execution", "family", family, "panic", r)
			for _, it := range items {
				results[it.Index] = s.executeSingle(ctx, it.Call, family, dedup)
			}
		}
	}()

	innerLimit := s.cfg.FamilyParallelism[family]
	if innerLimit <= 0 {
		innerLimit = FamilyParallelism(family)
	}
	innerSem := semaphore.NewWeighted(int64(innerLimit))

	var wg sync.WaitGroup
	for _, it := range items {
		it := it
		if err := innerSem.Acquire(ctx, 1); err != nil {
			results[it.Index] = timeoutResult(it.Call)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer innerSem.Release(1)
			results[it.Index] = s.executeSingle(ctx, it.Call, family, dedup)
		}()
	}
	wg.Wait()
}

func (s *BatchScheduler) executeSingle(ctx context.Context, call models.ToolCall, family Family, dedup *DedupMap) models.ToolResult {
	tuning := s.tuningFor(call.ToolName, family)
	return s.executor.Execute(ctx, call, tuning, dedup)
}

func (s *BatchScheduler) tuningFor(toolName string, family Family) ToolTuning {
	if t, ok := s.cfg.TuningByTool[toolName]; ok {
		return t
	}
	if t, ok := s.cfg.TuningByFamily[family]; ok {
		return t
	}
	return s.cfg.DefaultTuning
}

func timeoutResult(call models.ToolCall) models.ToolResult {
	return models.ToolResult{
		CallID:   call.CallID,
		ToolName: call.ToolName,
		Outcome:  models.OutcomeError,
		Error:    &models.ToolResultError{Kind: models.ErrorKindTimeout, Message: "turn cancelled before this call ran"},
	}
}
