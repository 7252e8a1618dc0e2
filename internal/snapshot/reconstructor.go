package snapshot

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// ArchiveSource reads concluded orders. Implemented by internal/backend and
// internal/archive.
type ArchiveSource interface {
	FetchArchived(ctx context.Context, orderID string) (*ArchivedOrder, error)
}

// LiveSource reads the event tail of an order the backend still holds.
type LiveSource interface {
	FetchLive(ctx context.Context, orderID string) (*LiveOrder, error)
}

// Observer receives fetch outcomes. Implemented by internal/metrics.
type Observer interface {
	SnapshotFetched(source Source, ok bool)
}

// FetchError reports that neither source produced a snapshot. It unwraps to
// the archive error; the live error is kept for logging.
type FetchError struct {
	OrderID  string
	Archive  error
	Fallback error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch order %s: %v", e.OrderID, e.Archive)
}

func (e *FetchError) Unwrap() error { return e.Archive }

// Reconstructor builds a Snapshot from the archive, falling back to the live
// event tail when the archive lookup fails.
type Reconstructor struct {
	archive  ArchiveSource
	live     LiveSource
	observer Observer
	logger   *log.Entry
}

// NewReconstructor creates a Reconstructor. observer and logger may be nil.
func NewReconstructor(archive ArchiveSource, live LiveSource, observer Observer, logger *log.Entry) *Reconstructor {
	if logger == nil {
		logger = log.New().WithField("component", "snapshot")
	}
	return &Reconstructor{archive: archive, live: live, observer: observer, logger: logger}
}

// Fetch returns the current snapshot of orderID.
func (r *Reconstructor) Fetch(ctx context.Context, orderID string) (*Snapshot, error) {
	entry := r.logger.WithField("order_id", orderID)

	snap, archiveErr := r.fromArchive(ctx, orderID)
	if archiveErr == nil {
		r.observe(SourceArchive, true)
		return snap, nil
	}
	r.observe(SourceArchive, false)
	entry.WithError(archiveErr).Warn("archive lookup failed, falling back to live event tail")

	snap, liveErr := r.fromLive(ctx, orderID)
	if liveErr == nil {
		r.observe(SourceLive, true)
		return snap, nil
	}
	r.observe(SourceLive, false)
	entry.WithError(liveErr).Error("live event tail lookup failed")

	return nil, &FetchError{OrderID: orderID, Archive: archiveErr, Fallback: liveErr}
}

func (r *Reconstructor) fromArchive(ctx context.Context, orderID string) (*Snapshot, error) {
	rec, err := r.archive.FetchArchived(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return FromArchived(rec)
}

func (r *Reconstructor) fromLive(ctx context.Context, orderID string) (*Snapshot, error) {
	if r.live == nil {
		return nil, fmt.Errorf("no live source configured")
	}
	live, err := r.live.FetchLive(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return FromLive(live)
}

func (r *Reconstructor) observe(src Source, ok bool) {
	if r.observer != nil {
		r.observer.SnapshotFetched(src, ok)
	}
}
