package lifecycle

import (
	"context"
	"log"
	"time"

	"github.com/bananalabs-oss/powkie/internal/models"
)

const DefaultInterval = 5 * time.Minute

type Loader interface {
	List(ctx context.Context, now time.Time) ([]models.Game, error)
}

// Syncer applies a loaded game list to the map. Generation is read before
// the load so the syncer can tell which of its own changes are newer.
type Syncer interface {
	Generation() uint64
	SyncSince(since uint64, games []models.Game) (added, removed int)
}

// Refresher runs the archival gate, reloads the directory and pushes the
// result into the map layer, once at start and then on every tick.
type Refresher struct {
	archiver *Archiver
	loader   Loader
	syncer   Syncer
	interval time.Duration
	now      func() time.Time
}

func NewRefresher(archiver *Archiver, loader Loader, syncer Syncer, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Refresher{
		archiver: archiver,
		loader:   loader,
		syncer:   syncer,
		interval: interval,
		now:      time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("[Refresher] Started (interval %s)", r.interval)
	r.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Refresher] Stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep + reload + sync. A reload that completes
// after ctx is cancelled is dropped instead of applied.
func (r *Refresher) RunOnce(ctx context.Context) {
	now := r.now()
	r.archiver.Sweep(ctx, now)

	gen := r.syncer.Generation()
	games, err := r.loader.List(ctx, now)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Printf("[Refresher] Failed to reload directory: %v", err)
		return
	}

	added, removed := r.syncer.SyncSince(gen, games)
	if added > 0 || removed > 0 {
		log.Printf("[Refresher] Map markers: +%d -%d", added, removed)
	}
}
