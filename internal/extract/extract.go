// Package extract supplies per-page document text to the search engine.
// Extraction is incremental: pages become available as they are processed,
// and search treats a page without text yet as still indexing.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/domain"
)

// Source exposes extracted page text. Pages are 1-based.
type Source interface {
	// PageCount returns the total number of pages, 0 when unknown.
	PageCount() int
	// PageText returns a page's text, reporting false while the page has not
	// been extracted yet.
	PageText(page int) (string, bool)
}

// Static is a fixed in-memory corpus keyed by page number.
type Static map[int]string

func (s Static) PageCount() int {
	max := 0
	for page := range s {
		if page > max {
			max = page
		}
	}
	return max
}

func (s Static) PageText(page int) (string, bool) {
	text, ok := s[page]
	return text, ok
}

// PDF extracts page text from a PDF file.
type PDF struct {
	file   *os.File
	reader *pdf.Reader
	logger *zap.Logger

	mu    sync.RWMutex
	pages map[int]string
}

var _ Source = (*PDF)(nil)

// OpenPDF opens a document for extraction. Call ExtractAll to populate pages.
func OpenPDF(path string, logger *zap.Logger) (*PDF, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &PDF{
		file:   file,
		reader: reader,
		logger: logger,
		pages:  map[int]string{},
	}, nil
}

// PageCount returns the document's page count.
func (p *PDF) PageCount() int {
	return p.reader.NumPage()
}

// PageText returns an extracted page's text.
func (p *PDF) PageText(page int) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	text, ok := p.pages[page]
	return text, ok
}

// ExtractAll walks the document in page order. Pages that fail to extract are
// logged and recorded empty so search does not wait on them forever.
func (p *PDF) ExtractAll(ctx context.Context) error {
	total := p.reader.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := p.extractPage(i)
		p.mu.Lock()
		p.pages[i] = text
		p.mu.Unlock()
	}
	return nil
}

func (p *PDF) extractPage(page int) string {
	pg := p.reader.Page(page)
	if pg.V.IsNull() {
		return ""
	}
	text, err := pg.GetPlainText(nil)
	if err != nil {
		p.logger.Warn("page text extraction failed",
			zap.Int("page", page), zap.Error(err))
		return ""
	}
	return normalizeWhitespace(text)
}

// IndexHealth reports ErrIndexing until at least one page has text, feeding
// the readiness check.
func (p *PDF) IndexHealth(_ context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.pages) == 0 {
		return domain.ErrIndexing
	}
	return nil
}

// Close releases the underlying file.
func (p *PDF) Close() error {
	return p.file.Close()
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
