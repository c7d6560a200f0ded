package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"savvycent/internal/core"
	"savvycent/internal/insight"
	applog "savvycent/internal/log"
)

// handleInsights returns monthly stats and AI insights, cached per user and
// month until the user's transactions change.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	year, month, err := parseYearMonth(r, s.now())
	if err != nil {
		s.fail(w, r, "Invalid insights request", err)
		return
	}

	key := insightsKey(user.ID, year, month)
	if view, ok := s.insightsCache.Get(key); ok {
		OK(view).Write(w)
		return
	}

	stats, insights, err := s.reports.MonthlyInsights(r.Context(), user.ID, year, month)
	if err != nil {
		s.fail(w, r, "Failed to build insights", err)
		return
	}
	view := InsightsView{Stats: stats, Net: stats.Net(), Insights: insights}
	s.insightsCache.Set(key, view)
	OK(view).Write(w)
}

// handleScanReceipt accepts a multipart upload in the "file" field.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, insight.MaxReceiptBytes+64<<10)
	if err := r.ParseMultipartForm(insight.MaxReceiptBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.fail(w, r, "Receipt too large", fmt.Errorf("receipt image too large: %w", core.ErrValidation))
			return
		}
		BadRequestError("expected multipart form with a file field").Write(w)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("missing file field").Write(w)
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, insight.MaxReceiptBytes+1)); err != nil {
		s.fail(w, r, "Failed to read receipt", err)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(buf.Bytes())
	}

	data, err := s.receipts.ScanReceipt(r.Context(), buf.Bytes(), mimeType)
	if err != nil {
		s.fail(w, r, "Receipt scan failed", err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Receipt scanned",
		"is_receipt", !data.IsEmpty(),
		"bytes", buf.Len(),
		"mime_type", mimeType)

	if data.IsEmpty() {
		OK(nil).Write(w)
		return
	}
	OK(data).Write(w)
}
