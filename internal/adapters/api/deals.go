package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"smartcheck/internal/core/domain/models"
)

func (c *Client) ListDeals(ctx context.Context, batchID int64) ([]models.Deal, error) {
	var deals []models.Deal
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/deals/batch/%d", batchID), nil, &deals); err != nil {
		return nil, err
	}
	return deals, nil
}

func (c *Client) GetDeal(ctx context.Context, id int64) (models.Deal, error) {
	var d models.Deal
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/deals/%d", id), nil, &d)
	return d, err
}

// DealPDFPath is the download path of one part of a deal.
func DealPDFPath(id int64, part models.DealPart) (string, error) {
	switch part {
	case models.DealPartFull, "":
		return fmt.Sprintf("/api/deals/%d/download", id), nil
	case models.DealPartSpendingUnit, models.DealPartReceivingUnit:
		return fmt.Sprintf("/api/deals/%d/download/%s", id, part), nil
	}
	return "", fmt.Errorf("unknown deal part %q", part)
}

// DownloadDeal streams a deal PDF. The caller closes it.
func (c *Client) DownloadDeal(ctx context.Context, id int64, part models.DealPart) (io.ReadCloser, error) {
	path, err := DealPDFPath(id, part)
	if err != nil {
		return nil, err
	}
	return c.download(ctx, path)
}
