// Package lectern embeds the annotation engine in another Go program: remote
// state reconciliation, filtering and focus, full-text search, and overlay
// layout for one document, without going through the HTTP API.
package lectern

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/db"
	dbRedis "github.com/lectern-labs/lectern/internal/db/redis"
	dbValkey "github.com/lectern-labs/lectern/internal/db/valkey"
	"github.com/lectern-labs/lectern/internal/extract"
	"github.com/lectern-labs/lectern/internal/remote/redisroom"
	unreadrepo "github.com/lectern-labs/lectern/internal/repository/unread"
	annotateuc "github.com/lectern-labs/lectern/internal/usecase/annotate"
	layoutuc "github.com/lectern-labs/lectern/internal/usecase/layout"
	queryuc "github.com/lectern-labs/lectern/internal/usecase/query"
	reconcileuc "github.com/lectern-labs/lectern/internal/usecase/reconcile"
	textsearchuc "github.com/lectern-labs/lectern/internal/usecase/textsearch"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the lectern SDK entry point. One Client reconciles one document
// for one viewer.
type Client struct {
	store    db.Store
	provider *redisroom.Provider
	pdfDoc   *extract.PDF
	cancel   context.CancelFunc

	reconciler  *reconcileuc.Service
	querySvc    *queryuc.Service
	searchSvc   *textsearchuc.Service
	layoutSvc   *layoutuc.Service
	annotateSvc *annotateuc.Service
}

// New creates a Client, connects to the database and starts reconciling in
// the background. Close releases everything.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{logger: zap.NewNop()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.deviceID == "" {
		cfg.deviceID = cfg.userID
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("lectern: database address required (use WithValkey or WithRedis)")
	}
	if cfg.userID == "" {
		return nil, errors.New("lectern: user identity required (use WithUser)")
	}
	if cfg.docRoomID == "" {
		return nil, errors.New("lectern: document room required (use WithDocumentRoom)")
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("lectern: database not ready: %w", err)
	}

	return wireClient(ctx, store, cfg)
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "valkey":
		s, err := dbValkey.NewStore(dbValkey.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("lectern: create valkey store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("lectern: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("lectern: unknown driver %q", cfg.driver)
	}
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig) (*Client, error) {
	logger := cfg.logger

	provider := redisroom.New(store, cfg.userID, logger)
	if err := provider.Start(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("lectern: start room provider: %w", err)
	}

	unreadCache := unreadrepo.New(provider, nil, logger)
	reconciler := reconcileuc.New(
		provider, unreadCache, cfg.docRoomID, cfg.userID, nil, logger,
	)
	if cfg.pollInterval > 0 {
		reconciler = reconciler.WithPollInterval(cfg.pollInterval)
	}

	var corpus textsearchuc.Corpus = extract.Static{}
	var pdfDoc *extract.PDF
	if cfg.pdfPath != "" {
		doc, err := extract.OpenPDF(cfg.pdfPath, logger)
		if err != nil {
			provider.Stop()
			store.Close()
			return nil, fmt.Errorf("lectern: open document: %w", err)
		}
		pdfDoc = doc
		corpus = doc
	}

	runCtx, cancel := context.WithCancel(context.Background())
	go func() { _ = reconciler.Run(runCtx) }()
	if pdfDoc != nil {
		go func() {
			if err := pdfDoc.ExtractAll(runCtx); err != nil && runCtx.Err() == nil {
				logger.Error("text extraction failed", zap.Error(err))
			}
		}()
	}

	return &Client{
		store:       store,
		provider:    provider,
		pdfDoc:      pdfDoc,
		cancel:      cancel,
		reconciler:  reconciler,
		querySvc:    queryuc.New(reconciler, provider, cfg.userID, logger),
		searchSvc:   textsearchuc.New(corpus, nil, logger),
		layoutSvc:   layoutuc.New(nil, nil, logger),
		annotateSvc: annotateuc.New(provider, cfg.docRoomID, cfg.userID, cfg.deviceID, logger),
	}, nil
}

// Close stops reconciliation and releases all resources.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.pdfDoc != nil {
		_ = c.pdfDoc.Close()
	}
	if c.provider != nil {
		c.provider.Stop()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Updates signals that reconciled state changed. At most one signal is
// buffered; poll Annotations after receiving.
func (c *Client) Updates() <-chan struct{} {
	return c.reconciler.Updates()
}

// SetFilter replaces the active filter expression. See the filter syntax:
// tokens starting with '@' match creators, '~' marks flags (me, hour, day,
// week, unread), everything else is free text.
func (c *Client) SetFilter(raw string) {
	c.querySvc.SetFilter(raw)
}

// Annotations returns the visible annotations under the active filter, in
// timestamp order.
func (c *Client) Annotations() []Annotation {
	records := c.querySvc.Annotations()
	out := make([]Annotation, len(records))
	for i := range records {
		out[i] = annotationFromRecord(&records[i])
	}
	return out
}

// Focus moves focus to the given annotation.
func (c *Client) Focus(id string) { c.querySvc.Focus(id) }

// Unfocus clears focus.
func (c *Client) Unfocus() { c.querySvc.Unfocus() }

// FocusNext moves focus to the next visible annotation, wrapping at the end.
func (c *Client) FocusNext() (Annotation, bool) {
	rec, ok := c.querySvc.FocusNext()
	if !ok {
		return Annotation{}, false
	}
	return annotationFromRecord(&rec), true
}

// FocusPrev moves focus to the previous visible annotation. At the first
// annotation focus stays put.
func (c *Client) FocusPrev() (Annotation, bool) {
	rec, ok := c.querySvc.FocusPrev()
	if !ok {
		return Annotation{}, false
	}
	return annotationFromRecord(&rec), true
}

// Focused returns the focused annotation if it is still visible.
func (c *Client) Focused() (Annotation, bool) {
	rec, ok := c.querySvc.Focused()
	if !ok {
		return Annotation{}, false
	}
	return annotationFromRecord(&rec), true
}

// OpenDiscussion opens the focused annotation's discussion timeline.
func (c *Client) OpenDiscussion(ctx context.Context) (*Discussion, error) {
	d, err := c.querySvc.OpenDiscussion(ctx)
	if err != nil {
		return nil, err
	}
	return &Discussion{inner: d}, nil
}

// Search runs a full-text query over the document, replacing any previous
// results. Queries under three characters clear the results.
func (c *Client) Search(query string) error {
	return c.searchSvc.Search(query)
}

// SearchResults returns the matches found so far, in page order.
func (c *Client) SearchResults() []SearchMatch {
	results := c.searchSvc.Results()
	out := make([]SearchMatch, len(results))
	for i, m := range results {
		out[i] = matchFromInternal(m)
	}
	return out
}

// ExpandSearch scans further into the document for more matches.
func (c *Client) ExpandSearch() { c.searchSvc.Expand() }

// NotifySearchScrolled reports the viewer's distance to the bottom of the
// result list; getting close triggers one expansion.
func (c *Client) NotifySearchScrolled(distanceToBottomPx float64) {
	c.searchSvc.NotifyScrolled(distanceToBottomPx)
}

// SearchExhausted reports whether the whole document has been scanned.
func (c *Client) SearchExhausted() bool { return c.searchSvc.Exhausted() }

// Layout places annotation tabs for the given viewport, avoiding collisions.
func (c *Client) Layout(vp Viewport) []TabPlacement {
	placements := c.layoutSvc.Layout(c.querySvc.Annotations(), layoutuc.Viewport{
		WidthPx:  vp.WidthPx,
		FitRatio: vp.FitRatio,
		Zoom:     vp.Zoom,
	})
	out := make([]TabPlacement, len(placements))
	for i, p := range placements {
		out[i] = placementFromInternal(p)
	}
	return out
}

// ResetLayout forgets locked tab sides, for a document reload.
func (c *Client) ResetLayout() { c.layoutSvc.Reset() }

// HighlightInput describes a text selection to annotate.
type HighlightInput struct {
	Page          int
	SelectedText  string
	ViewportRects []Rect
	PageAnchor    Rect
	Scale         float64
	Private       bool
}

// CreateHighlight publishes a pending highlight annotation and returns its ID.
func (c *Client) CreateHighlight(ctx context.Context, in HighlightInput) (string, error) {
	scale := in.Scale
	if scale == 0 {
		scale = 1
	}
	return c.annotateSvc.CreateHighlight(ctx, annotateuc.HighlightInput{
		Page:          in.Page,
		SelectedText:  in.SelectedText,
		ViewportRects: rectsToGeometry(in.ViewportRects),
		PageAnchor:    rectToGeometry(in.PageAnchor),
		Scale:         scale,
		Private:       in.Private,
	})
}

// PindropInput describes a point to annotate.
type PindropInput struct {
	Page    int
	X, Y    float64
	Private bool
}

// CreatePindrop publishes a pending point annotation and returns its ID.
func (c *Client) CreatePindrop(ctx context.Context, in PindropInput) (string, error) {
	return c.annotateSvc.CreatePindrop(ctx, annotateuc.PindropInput{
		Page:    in.Page,
		X:       in.X,
		Y:       in.Y,
		Private: in.Private,
	})
}

// CloseAnnotation marks an annotation closed. Only the creator or a moderator
// may close.
func (c *Client) CloseAnnotation(ctx context.Context, annotationID string) error {
	return c.annotateSvc.Close(ctx, annotationID)
}

// Reply posts a message to an annotation's discussion.
func (c *Client) Reply(ctx context.Context, annotationID, body string) error {
	return c.annotateSvc.Reply(ctx, annotationID, body)
}

// SetLastViewed records the page this device currently views.
func (c *Client) SetLastViewed(ctx context.Context, page int) error {
	return c.annotateSvc.SetLastViewed(ctx, page)
}

// LastViewed returns the stored last-viewed marker, if any.
func (c *Client) LastViewed(ctx context.Context) (page int, deviceID string, ok bool, err error) {
	lv, ok, err := c.annotateSvc.GetLastViewed(ctx)
	if err != nil || !ok {
		return 0, "", false, err
	}
	return lv.Page, lv.DeviceID, true, nil
}

// Discussion is an open annotation discussion with windowed backfill.
type Discussion struct {
	inner *queryuc.Discussion
}

// Messages returns the loaded window in timeline order.
func (d *Discussion) Messages() []Message {
	events := d.inner.Events()
	out := make([]Message, len(events))
	for i, ev := range events {
		out[i] = Message{ID: ev.ID, Sender: ev.Sender, Body: ev.Body, Timestamp: ev.Timestamp}
	}
	return out
}

// FullyLoaded reports whether the whole timeline has been fetched.
func (d *Discussion) FullyLoaded() bool { return d.inner.FullyLoaded() }

// Backfill fetches one more page of history.
func (d *Discussion) Backfill(ctx context.Context) (bool, error) {
	return d.inner.Backfill(ctx)
}

// NotifyScrolled requests a debounced backfill, as when the viewer scrolls to
// the top of the discussion.
func (d *Discussion) NotifyScrolled() { d.inner.NotifyScrolled() }

// Close releases the discussion's debounce timer.
func (d *Discussion) Close() { d.inner.Close() }
