package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"

	"smartcheck/internal/core/domain/models"
)

const batchesPath = "/api/document-batches/"

// UploadBatch sends one scanned PDF. name overrides the batch name the server
// would derive from the file name.
func (c *Client) UploadBatch(ctx context.Context, filename, name string, content io.Reader) (models.DocumentBatch, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(h)
	if err != nil {
		return models.DocumentBatch{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return models.DocumentBatch{}, fmt.Errorf("failed to copy file content: %w", err)
	}
	if name != "" {
		if err := writer.WriteField("name", name); err != nil {
			return models.DocumentBatch{}, fmt.Errorf("failed to write name field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return models.DocumentBatch{}, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+batchesPath+"upload", body)
	if err != nil {
		return models.DocumentBatch{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(req)
	if err != nil {
		return models.DocumentBatch{}, err
	}
	defer resp.Body.Close()

	var batch models.DocumentBatch
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return models.DocumentBatch{}, fmt.Errorf("failed to decode upload response: %w", err)
	}
	return batch, nil
}

func (c *Client) ListBatches(ctx context.Context, page models.Page) ([]models.DocumentBatch, error) {
	params := url.Values{}
	if page.Skip > 0 {
		params.Set("skip", strconv.Itoa(page.Skip))
	}
	if page.Limit > 0 {
		params.Set("limit", strconv.Itoa(page.Limit))
	}
	path := batchesPath
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var batches []models.DocumentBatch
	if err := c.do(ctx, http.MethodGet, path, nil, &batches); err != nil {
		return nil, err
	}
	return batches, nil
}

func (c *Client) GetBatch(ctx context.Context, id int64) (models.DocumentBatch, error) {
	var b models.DocumentBatch
	err := c.do(ctx, http.MethodGet, batchesPath+strconv.FormatInt(id, 10), nil, &b)
	return b, err
}

func (c *Client) UpdateBatch(ctx context.Context, id int64, update models.DocumentBatchUpdate) (models.DocumentBatch, error) {
	var b models.DocumentBatch
	err := c.do(ctx, http.MethodPut, batchesPath+strconv.FormatInt(id, 10), update, &b)
	return b, err
}

func (c *Client) DeleteBatch(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, batchesPath+strconv.FormatInt(id, 10), nil, nil)
}

// DownloadBatch streams the original uploaded PDF. The caller closes it.
func (c *Client) DownloadBatch(ctx context.Context, id int64) (io.ReadCloser, error) {
	return c.download(ctx, batchesPath+strconv.FormatInt(id, 10)+"/download")
}
