package commission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketplace/backend/internal/domain/commission"
	"github.com/marketplace/backend/internal/domain/shared"
)

// LineItemSource feeds a bulk run. Next returns io.EOF when the source
// is exhausted; any other error aborts the run.
type LineItemSource interface {
	Next(ctx context.Context) (*commission.LineItem, error)
}

// SliceSource serves line items from an in-memory slice
type SliceSource struct {
	items []commission.LineItem
	pos   int
}

// NewSliceSource creates a source over the given items
func NewSliceSource(items []commission.LineItem) *SliceSource {
	return &SliceSource{items: items}
}

func (s *SliceSource) Next(ctx context.Context) (*commission.LineItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return &item, nil
}

// ResolutionDedupe is an optional fast-path guard against reprocessing a
// line item inside the same run or across closely spaced re-runs. The
// audit unique constraint stays authoritative; this only saves work.
type ResolutionDedupe interface {
	Seen(ctx context.Context, lineItemRef string, evaluatedAt string) (bool, error)
	Mark(ctx context.Context, lineItemRef string, evaluatedAt string) error
}

// BatchOptions configures a bulk run
type BatchOptions struct {
	// BatchID identifies the run for checkpointing. Zero means a fresh
	// batch with a generated ID.
	BatchID uuid.UUID
	// ResumeToken, when set, positions the run past already-processed
	// items. Its batch ID must match BatchID when both are given.
	ResumeToken     string
	Concurrency     int
	CheckpointEvery int
}

// BatchItemFailure describes one line item the run could not resolve.
// Failures never abort the batch; they are collected and reported.
type BatchItemFailure struct {
	Offset      int64  `json:"offset"`
	LineItemRef string `json:"line_item_ref"`
	Code        string `json:"code"`
	Message     string `json:"message"`
}

// BatchSummary reports the outcome of a bulk run
type BatchSummary struct {
	BatchID         uuid.UUID          `json:"batch_id"`
	Processed       int64              `json:"processed"`
	Succeeded       int64              `json:"succeeded"`
	Failed          int64              `json:"failed"`
	Skipped         int64              `json:"skipped"`
	Replayed        int64              `json:"replayed"`
	CheckpointToken string             `json:"checkpoint_token"`
	Failures        []BatchItemFailure `json:"failures,omitempty"`
}

// BulkService drives bulk resolution over a line item source: a bounded
// worker pool resolves items, each item is audited individually through
// ResolutionService, and progress is checkpointed so an interrupted run
// can resume without duplicating audit records.
type BulkService struct {
	resolutions *ResolutionService
	checkpoints commission.CheckpointRepository
	dedupe      ResolutionDedupe
	logger      *zap.Logger

	defaultConcurrency     int
	defaultCheckpointEvery int
}

// BulkOption customizes a BulkService
type BulkOption func(*BulkService)

// WithBulkConcurrency sets the default worker count
func WithBulkConcurrency(n int) BulkOption {
	return func(s *BulkService) {
		if n > 0 {
			s.defaultConcurrency = n
		}
	}
}

// WithCheckpointEvery sets how many items are processed between
// checkpoint writes
func WithCheckpointEvery(n int) BulkOption {
	return func(s *BulkService) {
		if n > 0 {
			s.defaultCheckpointEvery = n
		}
	}
}

// WithResolutionDedupe installs a fast-path dedupe store
func WithResolutionDedupe(d ResolutionDedupe) BulkOption {
	return func(s *BulkService) {
		s.dedupe = d
	}
}

// NewBulkService creates a BulkService
func NewBulkService(
	resolutions *ResolutionService,
	checkpoints commission.CheckpointRepository,
	logger *zap.Logger,
	opts ...BulkOption,
) *BulkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BulkService{
		resolutions:            resolutions,
		checkpoints:            checkpoints,
		logger:                 logger,
		defaultConcurrency:     4,
		defaultCheckpointEvery: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// sourcedItem pairs a line item with its position in the source
type sourcedItem struct {
	offset int64
	item   commission.LineItem
}

// itemOutcome is what a worker reports back to the coordinator
type itemOutcome struct {
	offset   int64
	failure  *BatchItemFailure
	skipped  bool
	replayed bool
}

// Run resolves every item the source yields. Per-item failures are
// collected, not fatal; the run stops early only on context cancellation
// or a source error, and the summary's checkpoint token marks the highest
// contiguous offset safe to resume from.
func (s *BulkService) Run(ctx context.Context, source LineItemSource, opts BatchOptions) (*BatchSummary, error) {
	batchID := opts.BatchID
	if batchID == uuid.Nil {
		batchID = uuid.New()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = s.defaultConcurrency
	}
	checkpointEvery := opts.CheckpointEvery
	if checkpointEvery <= 0 {
		checkpointEvery = s.defaultCheckpointEvery
	}

	resumeOffset, checkpoint, err := s.resumePoint(ctx, batchID, opts.ResumeToken)
	if err != nil {
		return nil, err
	}

	s.logger.Info("bulk resolution run starting",
		zap.String("batch_id", batchID.String()),
		zap.Int64("resume_offset", resumeOffset),
		zap.Int("concurrency", concurrency),
	)

	items := make(chan sourcedItem)
	outcomes := make(chan itemOutcome)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Producer: drain the source, skipping offsets already covered by
	// the resume point.
	var sourceErr error
	go func() {
		defer close(items)
		var offset int64
		for {
			item, err := source.Next(runCtx)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				sourceErr = err
				cancel()
				return
			}
			current := offset
			offset++
			if current < resumeOffset {
				continue
			}
			select {
			case items <- sourcedItem{offset: current, item: *item}:
			case <-runCtx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for in := range items {
				out := s.processOne(runCtx, in)
				select {
				case outcomes <- out:
				case <-runCtx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	summary := &BatchSummary{BatchID: batchID}
	tracker := newOffsetTracker(resumeOffset)
	sinceCheckpoint := 0

	for out := range outcomes {
		summary.Processed++
		switch {
		case out.failure != nil:
			summary.Failed++
			summary.Failures = append(summary.Failures, *out.failure)
		case out.skipped:
			summary.Skipped++
		case out.replayed:
			summary.Replayed++
			summary.Succeeded++
		default:
			summary.Succeeded++
		}

		tracker.complete(out.offset)
		sinceCheckpoint++
		if sinceCheckpoint >= checkpointEvery {
			sinceCheckpoint = 0
			s.saveCheckpoint(ctx, checkpoint, tracker.watermark())
		}
	}

	// Final checkpoint covers whatever the last periodic write missed.
	s.saveCheckpoint(ctx, checkpoint, tracker.watermark())

	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].Offset < summary.Failures[j].Offset
	})
	summary.CheckpointToken = EncodeCheckpointToken(batchID.String(), tracker.watermark())

	if sourceErr != nil && !errors.Is(sourceErr, context.Canceled) {
		return summary, fmt.Errorf("reading line item source: %w", sourceErr)
	}
	if err := ctx.Err(); err != nil {
		s.logger.Warn("bulk resolution run interrupted",
			zap.String("batch_id", batchID.String()),
			zap.Int64("checkpoint_offset", tracker.watermark()),
		)
		return summary, err
	}

	s.logger.Info("bulk resolution run finished",
		zap.String("batch_id", batchID.String()),
		zap.Int64("processed", summary.Processed),
		zap.Int64("failed", summary.Failed),
		zap.Int64("skipped", summary.Skipped),
	)
	return summary, nil
}

// processOne resolves a single item, translating errors into a collected
// failure instead of letting them escape
func (s *BulkService) processOne(ctx context.Context, in sourcedItem) itemOutcome {
	dedupeKey := in.item.At.UTC().Format(time.RFC3339Nano)

	if s.dedupe != nil {
		seen, err := s.dedupe.Seen(ctx, in.item.LineItemRef, dedupeKey)
		if err != nil {
			s.logger.Warn("dedupe store lookup failed, falling through to audit store",
				zap.String("line_item_ref", in.item.LineItemRef),
				zap.Error(err),
			)
		} else if seen {
			return itemOutcome{offset: in.offset, skipped: true}
		}
	}

	resolved, err := s.resolutions.Resolve(ctx, in.item)
	if err != nil {
		return itemOutcome{offset: in.offset, failure: &BatchItemFailure{
			Offset:      in.offset,
			LineItemRef: in.item.LineItemRef,
			Code:        failureCode(err),
			Message:     err.Error(),
		}}
	}

	if s.dedupe != nil {
		if err := s.dedupe.Mark(ctx, in.item.LineItemRef, dedupeKey); err != nil {
			s.logger.Warn("dedupe store mark failed",
				zap.String("line_item_ref", in.item.LineItemRef),
				zap.Error(err),
			)
		}
	}

	return itemOutcome{offset: in.offset, replayed: resolved.Replayed}
}

// resumePoint determines where the run starts and loads or creates the
// persistent checkpoint row
func (s *BulkService) resumePoint(ctx context.Context, batchID uuid.UUID, token string) (int64, *commission.BatchCheckpoint, error) {
	var resumeOffset int64
	if token != "" {
		tokenBatch, offset, err := DecodeCheckpointToken(token)
		if err != nil {
			return 0, nil, err
		}
		if tokenBatch != batchID.String() {
			return 0, nil, shared.NewDomainError("INVALID_CHECKPOINT_TOKEN",
				"Checkpoint token belongs to a different batch")
		}
		resumeOffset = offset
	}

	checkpoint, err := s.checkpoints.FindByBatchID(ctx, batchID)
	switch {
	case err == nil:
		if checkpoint.Offset > resumeOffset {
			resumeOffset = checkpoint.Offset
		}
	case errors.Is(err, shared.ErrNotFound):
		checkpoint = commission.NewBatchCheckpoint(batchID)
	default:
		return 0, nil, fmt.Errorf("loading batch checkpoint: %w", err)
	}
	return resumeOffset, checkpoint, nil
}

// saveCheckpoint persists progress; a failed write is logged, never fatal,
// since the audit unique constraint makes reprocessing harmless
func (s *BulkService) saveCheckpoint(ctx context.Context, checkpoint *commission.BatchCheckpoint, offset int64) {
	if offset <= checkpoint.Offset {
		return
	}
	checkpoint.Offset = offset
	checkpoint.Touch()
	if err := s.checkpoints.Save(ctx, checkpoint); err != nil {
		s.logger.Warn("checkpoint save failed",
			zap.String("batch_id", checkpoint.BatchID.String()),
			zap.Int64("offset", offset),
			zap.Error(err),
		)
	}
}

// failureCode extracts the domain error code, defaulting to INTERNAL
func failureCode(err error) string {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "INTERNAL"
}

// offsetTracker computes the highest contiguous completed offset so a
// checkpoint never claims items that out-of-order workers have not
// finished yet
type offsetTracker struct {
	mu        sync.Mutex
	watermrk  int64
	completed map[int64]struct{}
}

func newOffsetTracker(start int64) *offsetTracker {
	return &offsetTracker{
		watermrk:  start,
		completed: make(map[int64]struct{}),
	}
}

func (t *offsetTracker) complete(offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completed[offset] = struct{}{}
	for {
		if _, ok := t.completed[t.watermrk]; !ok {
			return
		}
		delete(t.completed, t.watermrk)
		t.watermrk++
	}
}

func (t *offsetTracker) watermark() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watermrk
}
