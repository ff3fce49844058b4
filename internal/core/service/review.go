package service

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
	"smartcheck/internal/core/pagemap"
)

// Severity ranks how urgently an exception needs manual handling.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	}
	return 0
}

const (
	KindSplitError    = "Split Error"
	KindDataMismatch  = "Data Mismatch"
	KindLowConfidence = "Low Confidence"
	KindSignature     = "Signature"
)

// Exception is one issue an operator has to resolve by hand.
type Exception struct {
	Kind        string   `json:"type" yaml:"type"`
	Description string   `json:"desc" yaml:"desc"`
	Source      string   `json:"source" yaml:"source"`
	Severity    Severity `json:"severity" yaml:"severity"`
	DealID      int64    `json:"deal_id,omitempty" yaml:"deal_id,omitempty"`
}

// ReviewThresholds decide when a deal is flagged.
type ReviewThresholds struct {
	// MinScore flags deals whose extraction score is below it.
	MinScore float64
	// HighMismatch is the amount difference above which a mismatch is severe.
	HighMismatch float64
}

func DefaultReviewThresholds() ReviewThresholds {
	return ReviewThresholds{MinScore: 80, HighMismatch: 5_000_000}
}

// Review is the reconciliation view of one batch.
type Review struct {
	Batch      models.DocumentBatch `json:"batch" yaml:"batch"`
	Deals      []models.Deal        `json:"deals" yaml:"deals"`
	Exceptions []Exception          `json:"exceptions" yaml:"exceptions"`
}

// Summary aggregates a batch listing.
type Summary struct {
	Batches       int `json:"batches" yaml:"batches"`
	Processing    int `json:"processing" yaml:"processing"`
	Processed     int `json:"processed" yaml:"processed"`
	Failed        int `json:"failed" yaml:"failed"`
	TotalPages    int `json:"total_pages" yaml:"total_pages"`
	DealsDetected int `json:"deals_detected" yaml:"deals_detected"`
	OrphanPages   int `json:"orphan_pages" yaml:"orphan_pages"`
}

type ReviewService struct {
	batches     ports.BatchAPI
	deals       ports.DealAPI
	thresholds  ReviewThresholds
	concurrency int
	logger      *zap.Logger
}

func NewReviewService(batches ports.BatchAPI, deals ports.DealAPI, concurrency int, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &ReviewService{
		batches:     batches,
		deals:       deals,
		thresholds:  DefaultReviewThresholds(),
		concurrency: concurrency,
		logger:      logger,
	}
}

// SetThresholds replaces the default review thresholds.
func (s *ReviewService) SetThresholds(t ReviewThresholds) {
	s.thresholds = t
}

// Review loads a batch and its deals and lists the exceptions, most severe first.
func (s *ReviewService) Review(ctx context.Context, batchID int64) (Review, error) {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return Review{}, err
	}
	deals, err := s.deals.ListDeals(ctx, batchID)
	if err != nil {
		return Review{}, err
	}

	var exceptions []Exception
	orphans, err := orphanExceptions(batch)
	if err != nil {
		s.logger.Warn("batch has an unreadable page map", zap.Int64("batch_id", batchID), zap.Error(err))
	}
	exceptions = append(exceptions, orphans...)
	for _, d := range deals {
		exceptions = append(exceptions, Classify(d, batch.Name, s.thresholds)...)
	}
	sort.SliceStable(exceptions, func(i, j int) bool {
		return exceptions[i].Severity.rank() > exceptions[j].Severity.rank()
	})

	return Review{Batch: batch, Deals: deals, Exceptions: exceptions}, nil
}

func orphanExceptions(batch models.DocumentBatch) ([]Exception, error) {
	ranges, err := pagemap.FromPageMap(batch.PageMap)
	if err != nil {
		return nil, err
	}
	var out []Exception
	for _, r := range ranges {
		if r.Category != models.CategoryOrphan {
			continue
		}
		out = append(out, Exception{
			Kind:        KindSplitError,
			Description: fmt.Sprintf("pages %s are not linked to any deal", pagemap.FormatSpan(r.Start, r.End)),
			Source:      batch.Name,
			Severity:    SeverityMedium,
		})
	}
	return out, nil
}

// Classify lists the exceptions raised by one deal.
func Classify(d models.Deal, source string, t ReviewThresholds) []Exception {
	label := d.DealID
	if label == "" {
		label = fmt.Sprintf("#%d", d.ID)
	}
	if d.SourceFile != "" {
		source = d.SourceFile
	}
	newException := func(kind, desc string, sev Severity) Exception {
		return Exception{Kind: kind, Description: desc, Source: source, Severity: sev, DealID: d.ID}
	}

	var out []Exception
	diff := math.Abs(d.AmountSystem - d.AmountExtract)
	if d.Status == models.DealMismatch || diff > 0 {
		sev := SeverityMedium
		if diff > t.HighMismatch {
			sev = SeverityHigh
		}
		out = append(out, newException(KindDataMismatch,
			fmt.Sprintf("%s: amount differs by %.0f %s", label, diff, d.Currency), sev))
	}

	for _, sig := range []struct {
		role string
		s    models.Signature
	}{
		{"teller", d.Signatures.Teller},
		{"supervisor", d.Signatures.Supervisor},
	} {
		switch sig.s.Status {
		case models.SignatureInvalid:
			out = append(out, newException(KindSignature,
				fmt.Sprintf("%s: %s signature is invalid", label, sig.role), SeverityHigh))
		case models.SignatureReview:
			out = append(out, newException(KindLowConfidence,
				fmt.Sprintf("%s: %s signature needs review", label, sig.role), SeverityLow))
		}
	}

	score := d.Score
	if d.ConfidenceScore != nil {
		score = *d.ConfidenceScore
	}
	if score > 0 && score < t.MinScore {
		out = append(out, newException(KindLowConfidence,
			fmt.Sprintf("%s: extraction confidence %.0f%%", label, score), SeverityLow))
	}

	if d.Status == models.DealReview && len(out) == 0 {
		out = append(out, newException(KindLowConfidence,
			fmt.Sprintf("%s: flagged for review", label), SeverityLow))
	}
	return out
}

// Summarize aggregates batches. Orphan pages are the pages whose status is
// error, counted page by page rather than per page map item.
func Summarize(batches []models.DocumentBatch) Summary {
	var s Summary
	for _, b := range batches {
		s.Batches++
		switch b.Status {
		case models.BatchProcessing:
			s.Processing++
		case models.BatchProcessed:
			s.Processed++
		case models.BatchError:
			s.Failed++
		}
		s.TotalPages += b.TotalPages
		s.DealsDetected += b.DealsDetected

		ranges, err := pagemap.FromPageMap(b.PageMap)
		if err != nil {
			continue
		}
		s.OrphanPages += pagemap.CountPages(ranges, models.ValidityError)
	}
	return s
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DealFileName is the local file name of a downloaded deal PDF.
func DealFileName(d models.Deal, part models.DealPart) string {
	base := d.DealID
	if base == "" {
		base = fmt.Sprintf("deal-%d", d.ID)
	}
	base = unsafeName.ReplaceAllString(base, "_")
	if part == "" || part == models.DealPartFull {
		return base + ".pdf"
	}
	return fmt.Sprintf("%s-%s.pdf", base, part)
}

// DownloadDeals writes the PDFs of every deal of batchID into dir and returns
// the written paths in deal order. At most the configured number of downloads
// run at once; the first failure cancels the rest.
func (s *ReviewService) DownloadDeals(ctx context.Context, batchID int64, dir string, part models.DealPart) ([]string, error) {
	deals, err := s.deals.ListDeals(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, len(deals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, d := range deals {
		g.Go(func() error {
			path := filepath.Join(dir, DealFileName(d, part))
			if err := s.downloadTo(gctx, d.ID, part, path); err != nil {
				return fmt.Errorf("deal %d: %w", d.ID, err)
			}
			paths[i] = path
			s.logger.Debug("deal downloaded", zap.Int64("deal_id", d.ID), zap.String("path", path))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func (s *ReviewService) downloadTo(ctx context.Context, dealID int64, part models.DealPart, path string) error {
	rc, err := s.deals.DownloadDeal(ctx, dealID, part)
	if err != nil {
		return err
	}
	defer rc.Close()
	return WriteFileAtomic(path, rc)
}

// WriteFileAtomic copies r into path through a temporary file in the same
// directory so readers never see a partial file.
func WriteFileAtomic(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
