package pdfmeta

import (
	"bytes"
	"log/slog"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/scanscribe/internal/core/domain"
)

// Inspector reads the page count of uploaded PDFs. The count is shown to
// users next to the page range input and is never used to validate it.
type Inspector struct{}

func NewInspector() *Inspector {
	return &Inspector{}
}

// PageCount returns 0 for images and for PDFs that cannot be parsed.
func (i *Inspector) PageCount(att *domain.Attachment) (count int) {
	if !att.IsPDF() {
		return 0
	}
	raw, err := att.Bytes()
	if err != nil || len(raw) == 0 {
		return 0
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Debug("pdf_page_count_failed", "panic", r)
			count = 0
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		slog.Debug("pdf_page_count_failed", "error", err)
		return 0
	}
	return max(reader.NumPage(), 0)
}
