package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lectern-labs/lectern/internal/async"
	"github.com/lectern-labs/lectern/internal/remote"
)

const (
	// backfillPageSize is how many timeline events each backfill fetches.
	backfillPageSize = 10
	// scrollDebounce coalesces bursty scroll notifications before they turn
	// into a backfill.
	scrollDebounce = 200 * time.Millisecond
)

// Discussion is a backfillable view over one annotation's discussion
// timeline. Scroll notifications are debounced; explicit Backfill calls are
// immediate.
type Discussion struct {
	annotationID string
	logger       *zap.Logger
	debouncer    *async.Debouncer

	mu          sync.Mutex
	window      remote.TimelineWindow
	fullyLoaded bool
}

func newDiscussion(annotationID string, w remote.TimelineWindow, logger *zap.Logger) *Discussion {
	return &Discussion{
		annotationID: annotationID,
		logger:       logger,
		debouncer:    async.NewDebouncer(scrollDebounce),
		window:       w,
	}
}

func (d *Discussion) load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.window.Load(ctx, backfillPageSize); err != nil {
		return fmt.Errorf("load discussion %s: %w", d.annotationID, err)
	}
	d.fullyLoaded = !d.window.CanPaginate(remote.Backwards)
	return nil
}

// AnnotationID returns the id of the discussion's annotation.
func (d *Discussion) AnnotationID() string { return d.annotationID }

// Events returns the loaded events in timeline order.
func (d *Discussion) Events() []remote.TimelineEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.window.Events()
}

// FullyLoaded reports whether the whole history has been fetched.
func (d *Discussion) FullyLoaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fullyLoaded
}

// Backfill fetches one page of older events, reporting whether anything new
// arrived.
func (d *Discussion) Backfill(ctx context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fullyLoaded {
		return false, nil
	}
	fetched, err := d.window.Paginate(ctx, remote.Backwards, backfillPageSize)
	if err != nil {
		return false, fmt.Errorf("backfill discussion %s: %w", d.annotationID, err)
	}
	if !d.window.CanPaginate(remote.Backwards) {
		d.fullyLoaded = true
	}
	return fetched, nil
}

// NotifyScrolled requests a backfill after the scroll burst settles.
func (d *Discussion) NotifyScrolled() {
	d.debouncer.Trigger(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := d.Backfill(ctx); err != nil {
			d.logger.Warn("scroll backfill failed",
				zap.String("annotation", d.annotationID), zap.Error(err))
		}
	})
}

// Close cancels any pending debounced backfill.
func (d *Discussion) Close() {
	d.debouncer.Stop()
}
