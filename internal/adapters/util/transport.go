package util

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxLoggedBody = 4096

// LoggingTransport is an http.RoundTripper that logs request and response bodies
// at debug level.
type LoggingTransport struct {
	Base   http.RoundTripper
	Logger *zap.Logger
}

func (t *LoggingTransport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}
	return t.Base
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Logger == nil || !t.Logger.Core().Enabled(zap.DebugLevel) {
		return t.base().RoundTrip(req)
	}

	// Request logging
	fields := []zap.Field{zap.String("method", req.Method), zap.String("url", req.URL.String())}
	if req.Body != nil && req.Body != http.NoBody {
		reqBody, _ := io.ReadAll(req.Body)
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(reqBody))
		fields = append(fields, bodyField(req.Header.Get("Content-Type"), reqBody))
	}
	t.Logger.Debug("outbound request", fields...)

	start := time.Now()
	resp, err := t.base().RoundTrip(req)
	if err != nil {
		t.Logger.Debug("outbound request failed", zap.String("url", req.URL.String()), zap.Error(err))
		return resp, err
	}

	// Response logging
	respFields := []zap.Field{
		zap.Int("status", resp.StatusCode),
		zap.String("url", req.URL.String()),
		zap.Duration("elapsed", time.Since(start)),
	}
	if isTextual(resp.Header.Get("Content-Type")) {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewReader(respBody))
		respFields = append(respFields, bodyField(resp.Header.Get("Content-Type"), respBody))
	}
	t.Logger.Debug("outbound response", respFields...)

	return resp, nil
}

// bodyField avoids logging large binary payloads such as scanned PDFs.
func bodyField(contentType string, body []byte) zap.Field {
	if !isTextual(contentType) {
		return zap.String("body", "<"+contentTypeName(contentType)+", length="+strconv.Itoa(len(body))+">")
	}
	if len(body) > maxLoggedBody {
		return zap.String("body", string(body[:maxLoggedBody])+"...")
	}
	return zap.ByteString("body", body)
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "json") || strings.HasPrefix(ct, "text/") || strings.Contains(ct, "x-www-form-urlencoded")
}

func contentTypeName(contentType string) string {
	if contentType == "" {
		return "binary"
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		return contentType[:i]
	}
	return contentType
}
