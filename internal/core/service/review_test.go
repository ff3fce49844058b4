package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/service"
	"smartcheck/internal/testutil/fakeapi"
)

func TestClassify(t *testing.T) {
	low := 62.0
	tests := []struct {
		name  string
		deal  models.Deal
		kinds []string
		sev   []service.Severity
	}{
		{
			name: "clean",
			deal: models.Deal{DealID: "FC1", AmountSystem: 100, AmountExtract: 100, Status: models.DealMatched, Score: 98},
		},
		{
			name:  "small mismatch",
			deal:  models.Deal{DealID: "FC2", AmountSystem: 100, AmountExtract: 90, Status: models.DealMismatch, Score: 95},
			kinds: []string{service.KindDataMismatch},
			sev:   []service.Severity{service.SeverityMedium},
		},
		{
			name:  "large mismatch",
			deal:  models.Deal{DealID: "FC3", AmountSystem: 20_000_000, AmountExtract: 10_000_000, Status: models.DealMismatch, Score: 95},
			kinds: []string{service.KindDataMismatch},
			sev:   []service.Severity{service.SeverityHigh},
		},
		{
			name: "signatures",
			deal: models.Deal{DealID: "FC4", Score: 95, Signatures: models.Signatures{
				Teller:     models.Signature{Status: models.SignatureInvalid},
				Supervisor: models.Signature{Status: models.SignatureReview},
			}},
			kinds: []string{service.KindSignature, service.KindLowConfidence},
			sev:   []service.Severity{service.SeverityHigh, service.SeverityLow},
		},
		{
			name:  "confidence overrides score",
			deal:  models.Deal{DealID: "FC5", Score: 99, ConfidenceScore: &low},
			kinds: []string{service.KindLowConfidence},
			sev:   []service.Severity{service.SeverityLow},
		},
		{
			name:  "flagged without reason",
			deal:  models.Deal{DealID: "FC6", Score: 95, Status: models.DealReview},
			kinds: []string{service.KindLowConfidence},
			sev:   []service.Severity{service.SeverityLow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.Classify(tt.deal, "scan.pdf", service.DefaultReviewThresholds())
			var kinds []string
			var sev []service.Severity
			for _, e := range got {
				kinds = append(kinds, e.Kind)
				sev = append(sev, e.Severity)
				assert.Equal(t, "scan.pdf", e.Source)
				assert.Contains(t, e.Description, tt.deal.DealID)
			}
			assert.Equal(t, tt.kinds, kinds)
			assert.Equal(t, tt.sev, sev)
		})
	}
}

func TestSummarize(t *testing.T) {
	batches := []models.DocumentBatch{
		{ID: 1, Status: models.BatchProcessed, TotalPages: 5, DealsDetected: 1, PageMap: scenarioPageMap()},
		{ID: 2, Status: models.BatchProcessing, TotalPages: 10},
		{ID: 3, Status: models.BatchError, TotalPages: 3, PageMap: []models.PageMapItem{
			{Range: "1-3", DealID: models.Unassigned, Type: models.CategoryOrphan, Status: models.ValidityError},
		}},
		{ID: 4, Status: models.BatchProcessed, TotalPages: 4, PageMap: []models.PageMapItem{
			{Range: "1-2", DealID: models.Unassigned, Type: models.CategoryOrphan, Status: models.ValidityIgnored},
			{Range: "3-4", DealID: "FC300", Type: "Deal", Status: models.ValidityError},
		}},
	}
	assert.Equal(t, service.Summary{
		Batches:       4,
		Processing:    1,
		Processed:     2,
		Failed:        1,
		TotalPages:    22,
		DealsDetected: 1,
		OrphanPages:   6,
	}, service.Summarize(batches))
}

func TestReviewService_Review(t *testing.T) {
	srv := fakeapi.New(t)
	client := loggedInClient(t, srv)
	svc := service.NewReviewService(client, client, 2, zap.NewNop())

	b := srv.AddBatch(models.DocumentBatch{Name: "18.10.2025 HATTT1_0001.pdf", Status: models.BatchProcessed, PageMap: scenarioPageMap()})
	srv.AddDeal(models.Deal{DealID: "FC207", BatchID: b.ID, AmountSystem: 12_000_000, AmountExtract: 6_000_000, Status: models.DealMismatch, Score: 90})
	srv.AddDeal(models.Deal{DealID: "FC208", BatchID: b.ID, AmountSystem: 5, AmountExtract: 5, Status: models.DealMatched, Score: 99})

	r, err := svc.Review(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, r.Batch.ID)
	assert.Len(t, r.Deals, 2)
	require.Len(t, r.Exceptions, 2)

	assert.Equal(t, service.KindDataMismatch, r.Exceptions[0].Kind)
	assert.Equal(t, service.SeverityHigh, r.Exceptions[0].Severity)
	assert.Equal(t, service.KindSplitError, r.Exceptions[1].Kind)
	assert.Contains(t, r.Exceptions[1].Description, "pages 5")
	assert.Equal(t, b.Name, r.Exceptions[1].Source)
}

func TestReviewService_DownloadDeals(t *testing.T) {
	srv := fakeapi.New(t)
	client := loggedInClient(t, srv)
	svc := service.NewReviewService(client, client, 2, zap.NewNop())

	b := srv.AddBatch(models.DocumentBatch{Name: "scan.pdf"})
	var deals []models.Deal
	for _, id := range []string{"FC/1", "FC/2", "FC/3"} {
		deals = append(deals, srv.AddDeal(models.Deal{DealID: id, BatchID: b.ID}))
	}
	srv.AddDeal(models.Deal{DealID: "other", BatchID: b.ID + 100})

	dir := filepath.Join(t.TempDir(), "out")
	paths, err := svc.DownloadDeals(context.Background(), b.ID, dir, models.DealPartSpendingUnit)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	for i, d := range deals {
		assert.Equal(t, filepath.Join(dir, service.DealFileName(d, models.DealPartSpendingUnit)), paths[i])
		got, err := os.ReadFile(paths[i])
		require.NoError(t, err)
		assert.Equal(t, fakeapi.DealPDF(d.ID, models.DealPartSpendingUnit), got)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestDealFileName(t *testing.T) {
	assert.Equal(t, "FC_1.pdf", service.DealFileName(models.Deal{DealID: "FC/1"}, models.DealPartFull))
	assert.Equal(t, "deal-7-receiving-unit.pdf", service.DealFileName(models.Deal{ID: 7}, models.DealPartReceivingUnit))
}
