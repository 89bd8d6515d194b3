// Package textsearch finds a query inside a document's page text. Matching is
// punctuation- and case-insensitive: both sides are normalized down to ASCII
// alphanumerics before comparison, and matched spans are translated back to
// offsets into the original page text for display.
//
// Retrieval is windowed: the initial scan stops after a fixed number of
// matching pages, and later expansions scan strictly higher pages, so large
// documents surface first results without a full pass.
package textsearch

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/async"
	"github.com/lectern-labs/lectern/internal/domain"
)

const (
	// minQueryLength is the shortest query worth scanning; anything shorter
	// clears the results instead.
	minQueryLength = 3
	// initialPageLimit bounds how many matching pages the first scan collects.
	initialPageLimit = 20
	// expandStep is how much each expansion raises the page limit.
	expandStep = 20
	// contextPad is how many original-text characters pad each side of a
	// match's snippet.
	contextPad = 15
	// bottomThresholdPx is how close to the bottom of the result list a
	// scroll position must be to trigger an expansion.
	bottomThresholdPx = 100
)

// Match is one hit, located in the original page text.
type Match struct {
	Page int `json:"page"`
	// Start and End delimit the matched span in the original page text.
	Start int `json:"start"`
	End   int `json:"end"`
	// Text is the original form of the matched span.
	Text string `json:"text"`
	// Context is the span padded with surrounding original text.
	Context string `json:"context"`
}

// Service runs windowed full-text search over one document.
type Service struct {
	corpus       Corpus
	pagesScanned prometheus.Counter
	logger       *zap.Logger

	gate async.Gate

	mu           sync.Mutex
	normQuery    string
	results      []Match
	matchedPages int
	nextPage     int
	pageLimit    int
}

// New creates a search service over the given corpus.
// pagesScanned counts scanned pages, passed explicitly.
func New(corpus Corpus, pagesScanned prometheus.Counter, logger *zap.Logger) *Service {
	return &Service{
		corpus:       corpus,
		pagesScanned: pagesScanned,
		logger:       logger,
	}
}

// Search installs a query and runs the initial scan. A query below the
// minimum length clears the results and is otherwise ignored. Returns
// domain.ErrIndexing while no page text is available yet.
func (s *Service) Search(query string) error {
	norm := normalize(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.normQuery = ""
	s.results = nil
	s.matchedPages = 0
	s.nextPage = 1
	s.pageLimit = initialPageLimit
	if len(norm) < minQueryLength {
		return nil
	}

	if !s.anyPageExtracted() {
		return fmt.Errorf("search %q: %w", query, domain.ErrIndexing)
	}
	s.normQuery = norm
	s.scanLocked()
	return nil
}

// Expand raises the page limit by one step and scans strictly higher pages
// than the last scan reached, appending new matches.
func (s *Service) Expand() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.normQuery == "" {
		return
	}
	s.pageLimit += expandStep
	s.scanLocked()
}

// NotifyScrolled expands the window when the viewer is near the bottom of the
// result list. Concurrent notifications collapse into one expansion.
func (s *Service) NotifyScrolled(distanceToBottomPx float64) {
	if distanceToBottomPx >= bottomThresholdPx {
		return
	}
	if !s.gate.TryAcquire() {
		return
	}
	defer s.gate.Release()
	s.Expand()
}

// Results returns a snapshot of the matches found so far, in page order.
func (s *Service) Results() []Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Match, len(s.results))
	copy(out, s.results)
	return out
}

// Exhausted reports whether the whole document has been scanned for the
// current query.
func (s *Service) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.normQuery != "" && s.nextPage > s.corpus.PageCount()
}

func (s *Service) anyPageExtracted() bool {
	total := s.corpus.PageCount()
	for page := 1; page <= total; page++ {
		if _, ok := s.corpus.PageText(page); ok {
			return true
		}
	}
	return false
}

func (s *Service) scanLocked() {
	total := s.corpus.PageCount()
	for page := s.nextPage; page <= total; page++ {
		if s.matchedPages >= s.pageLimit {
			return
		}
		s.nextPage = page + 1
		text, ok := s.corpus.PageText(page)
		if !ok {
			// Not extracted yet; a later scan will not revisit it, matching
			// the forward-only window.
			continue
		}
		if s.pagesScanned != nil {
			s.pagesScanned.Inc()
		}
		if matches := matchPage(page, text, s.normQuery); len(matches) > 0 {
			s.results = append(s.results, matches...)
			s.matchedPages++
		}
	}
}

// matchPage finds every occurrence of the normalized query in one page.
// Successive scans restart one character past the previous match start, so
// overlapping occurrences all surface.
func matchPage(page int, text, normQuery string) []Match {
	norm, origPos := normalizeMapped(text)
	var out []Match
	for from := 0; ; {
		i := strings.Index(norm[from:], normQuery)
		if i < 0 {
			break
		}
		start := from + i
		end := start + len(normQuery)

		origStart := origPos[start]
		origEnd := origPos[end-1] + 1
		ctxStart := origStart - contextPad
		if ctxStart < 0 {
			ctxStart = 0
		}
		ctxEnd := origEnd + contextPad
		if ctxEnd > len(text) {
			ctxEnd = len(text)
		}
		out = append(out, Match{
			Page:    page,
			Start:   origStart,
			End:     origEnd,
			Text:    text[origStart:origEnd],
			Context: text[ctxStart:ctxEnd],
		})
		from = start + 1
	}
	return out
}

// normalize reduces a string to lowercase ASCII alphanumerics.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c, ok := alnumLower(s[i]); ok {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// normalizeMapped normalizes and records, per normalized character, its byte
// offset in the original string.
func normalizeMapped(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	pos := make([]int, 0, len(s))
	for i := 0; i < len(s); i++ {
		if c, ok := alnumLower(s[i]); ok {
			b.WriteByte(c)
			pos = append(pos, i)
		}
	}
	return b.String(), pos
}

func alnumLower(c byte) (byte, bool) {
	switch {
	case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return c, true
	case c >= 'A' && c <= 'Z':
		return c + ('a' - 'A'), true
	}
	return 0, false
}
