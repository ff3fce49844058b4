package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
	"smartcheck/internal/core/pagemap"
	"smartcheck/internal/core/splitting"
)

// SplitService keeps a local grouping draft per batch and pushes it back to
// the API as a page map.
type SplitService struct {
	api    ports.BatchAPI
	drafts ports.DraftStore
	opts   []splitting.Option
	logger *zap.Logger
}

func NewSplitService(api ports.BatchAPI, drafts ports.DraftStore, logger *zap.Logger, opts ...splitting.Option) *SplitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SplitService{api: api, drafts: drafts, opts: opts, logger: logger}
}

// Open returns the editor for batchID. An existing draft wins over the page
// map on the server; the second result reports whether a draft was used.
func (s *SplitService) Open(ctx context.Context, batchID int64) (*splitting.Editor, bool, error) {
	d, err := s.drafts.LoadDraft(ctx, batchID)
	switch {
	case err == nil:
		return splitting.Restore(d, s.opts...), true, nil
	case !errors.Is(err, ports.ErrNotFound):
		return nil, false, fmt.Errorf("failed to load draft: %w", err)
	}

	batch, err := s.api.GetBatch(ctx, batchID)
	if err != nil {
		return nil, false, err
	}
	ed, err := s.editorFor(batch)
	if err != nil {
		return nil, false, err
	}
	return ed, false, nil
}

func (s *SplitService) editorFor(batch models.DocumentBatch) (*splitting.Editor, error) {
	if len(batch.PageMap) == 0 {
		// Not split yet: every page starts out unassigned.
		units := make([]models.Unit, 0, batch.TotalPages)
		for i := 1; i <= batch.TotalPages; i++ {
			units = append(units, models.Unit{
				Index:    i,
				GroupID:  models.Unassigned,
				Category: models.CategoryOrphan,
				Validity: models.ValidityIgnored,
			})
		}
		return splitting.NewEditor(units, s.opts...), nil
	}

	ranges, err := pagemap.FromPageMap(batch.PageMap)
	if err != nil {
		return nil, fmt.Errorf("batch %d: %w", batch.ID, err)
	}
	return splitting.FromRanges(ranges, s.opts...), nil
}

// Edit applies fn to the editor of batchID and stores the result as a draft.
// Nothing is stored when fn fails.
func (s *SplitService) Edit(ctx context.Context, batchID int64, fn func(*splitting.Editor) error) (*splitting.Editor, error) {
	ed, _, err := s.Open(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := fn(ed); err != nil {
		return nil, err
	}
	if err := s.drafts.SaveDraft(ctx, batchID, ed.Draft()); err != nil {
		return nil, fmt.Errorf("failed to save draft: %w", err)
	}
	return ed, nil
}

// Push sends the grouping of batchID to the API and drops the local draft.
func (s *SplitService) Push(ctx context.Context, batchID int64) (models.DocumentBatch, error) {
	ed, _, err := s.Open(ctx, batchID)
	if err != nil {
		return models.DocumentBatch{}, err
	}

	ranges := ed.Save()
	if err := pagemap.CheckCoverage(ranges); err != nil {
		return models.DocumentBatch{}, fmt.Errorf("refusing to push batch %d: %w", batchID, err)
	}

	deals := CountDeals(ranges)
	update := models.DocumentBatchUpdate{
		PageMap:       pagemap.ToPageMap(ranges),
		DealsDetected: &deals,
	}
	batch, err := s.api.UpdateBatch(ctx, batchID, update)
	if err != nil {
		return models.DocumentBatch{}, err
	}

	if err := s.drafts.DeleteDraft(ctx, batchID); err != nil && !errors.Is(err, ports.ErrNotFound) {
		s.logger.Warn("pushed batch but failed to drop draft", zap.Int64("batch_id", batchID), zap.Error(err))
	}
	s.logger.Info("page map pushed", zap.Int64("batch_id", batchID), zap.Int("ranges", len(ranges)), zap.Int("deals", deals))
	return batch, nil
}

// Discard drops the local draft of batchID.
func (s *SplitService) Discard(ctx context.Context, batchID int64) error {
	if err := s.drafts.DeleteDraft(ctx, batchID); err != nil && !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("failed to discard draft: %w", err)
	}
	return nil
}

// CountDeals returns the number of distinct deal groups in ranges.
func CountDeals(ranges []models.Range) int {
	seen := make(map[string]struct{})
	for _, r := range ranges {
		if r.GroupID == models.Unassigned || r.Category != models.CategoryDeal {
			continue
		}
		seen[r.GroupID] = struct{}{}
	}
	return len(seen)
}
