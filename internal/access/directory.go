package access

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mwpdesign/PP2-sub001/pkg/access"
	"github.com/mwpdesign/PP2-sub001/pkg/logger"
	"github.com/mwpdesign/PP2-sub001/pkg/monitoring"
	"github.com/mwpdesign/PP2-sub001/pkg/types"
)

// downlineEntry is one cached resolution. The doctor set is shared with
// callers and must be treated as read-only.
type downlineEntry struct {
	doctors   map[string]bool
	expiresAt time.Time
}

// OrgDirectory resolves the transitive downline of an actor to the set of
// doctor identities beneath them. Resolutions are cached with a TTL and the
// whole cache is swapped out atomically on invalidation, so concurrent
// readers observe either the old snapshot or the new one, never a mix.
type OrgDirectory struct {
	actors         access.ActorSource
	remote         *DownlineCache
	logger         *logger.Logger
	metrics        *monitoring.MetricsCollector
	cacheTTL       time.Duration
	resolveTimeout time.Duration

	mu       sync.RWMutex
	entries  map[string]*downlineEntry
	lastSwap time.Time

	hits          uint64
	misses        uint64
	invalidations uint64
}

// NewOrgDirectory creates a new hierarchy directory. The remote cache and
// metrics collector are optional.
func NewOrgDirectory(actors access.ActorSource, remote *DownlineCache, cacheTTL, resolveTimeout time.Duration, log *logger.Logger, metrics *monitoring.MetricsCollector) *OrgDirectory {
	if cacheTTL <= 0 {
		cacheTTL = time.Duration(access.DefaultDownlineCacheTTL) * time.Second
	}
	if resolveTimeout <= 0 {
		resolveTimeout = time.Duration(access.DefaultResolveTimeout) * time.Second
	}

	return &OrgDirectory{
		actors:         actors,
		remote:         remote,
		logger:         log,
		metrics:        metrics,
		cacheTTL:       cacheTTL,
		resolveTimeout: resolveTimeout,
		entries:        make(map[string]*downlineEntry),
	}
}

// ResolveDownline returns the set of doctor IDs in the subtree rooted at
// actorID, excluding the actor itself. An actor with no subordinates gets an
// empty set, not an error. The returned map is a shared snapshot and must
// not be mutated.
func (d *OrgDirectory) ResolveDownline(ctx context.Context, actorID string) (map[string]bool, error) {
	if doctors, ok := d.lookupLocal(actorID); ok {
		atomic.AddUint64(&d.hits, 1)
		d.recordResolution("hit")
		return doctors, nil
	}
	atomic.AddUint64(&d.misses, 1)

	resolveCtx, cancel := context.WithTimeout(ctx, d.resolveTimeout)
	defer cancel()

	if d.remote != nil {
		if doctors, ok := d.remote.Get(resolveCtx, actorID); ok {
			d.storeLocal(actorID, doctors)
			d.recordResolution("remote_hit")
			return doctors, nil
		}
	}

	doctors, err := d.traverse(resolveCtx, actorID)
	if err != nil {
		if accessErr, ok := err.(*access.AccessError); ok && accessErr.Type == access.ErrorTypeResolutionTimeout {
			d.recordResolution("timeout")
		} else {
			d.recordResolution("error")
		}
		return nil, err
	}

	d.storeLocal(actorID, doctors)
	if d.remote != nil {
		d.remote.Set(resolveCtx, actorID, doctors)
	}
	d.recordResolution("miss")

	return doctors, nil
}

// Invalidate discards every cached resolution in one swap. In-flight readers
// keep the snapshot they already hold.
func (d *OrgDirectory) Invalidate(ctx context.Context) error {
	d.mu.Lock()
	d.entries = make(map[string]*downlineEntry)
	d.lastSwap = time.Now()
	d.mu.Unlock()

	atomic.AddUint64(&d.invalidations, 1)
	if d.metrics != nil {
		d.metrics.RecordDownlineCacheSize(0)
	}

	d.logger.Info("Downline cache invalidated")

	if d.remote != nil {
		return d.remote.Invalidate(ctx)
	}
	return nil
}

// Stats returns a snapshot of cache effectiveness counters
func (d *OrgDirectory) Stats() *access.CacheStatistics {
	d.mu.RLock()
	entries := len(d.entries)
	lastSwap := d.lastSwap
	d.mu.RUnlock()

	return &access.CacheStatistics{
		Entries:       entries,
		Hits:          atomic.LoadUint64(&d.hits),
		Misses:        atomic.LoadUint64(&d.misses),
		Invalidations: atomic.LoadUint64(&d.invalidations),
		LastSwap:      lastSwap,
	}
}

// traverse walks the hierarchy breadth-first from rootID and collects every
// doctor in the subtree. Visiting any actor twice means the parent chain is
// corrupted, which surfaces as a data integrity error rather than a partial
// result.
func (d *OrgDirectory) traverse(ctx context.Context, rootID string) (map[string]bool, error) {
	doctors := make(map[string]bool)
	visited := map[string]bool{rootID: true}
	queue := []string{rootID}

	for len(queue) > 0 {
		if ctx.Err() != nil {
			return nil, access.ErrResolutionTimeout.WithActor(rootID).WithCause(ctx.Err())
		}

		current := queue[0]
		queue = queue[1:]

		children, err := d.actors.GetChildren(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				return nil, access.ErrResolutionTimeout.WithActor(rootID).WithCause(err)
			}
			return nil, access.ErrDirectoryFailure.WithActor(rootID).WithCause(err)
		}

		for _, child := range children {
			if visited[child.ID] {
				d.logger.DataIntegrity("hierarchy_cycle", child.ID, map[string]interface{}{
					"root_actor": rootID,
					"parent":     current,
				})
				return nil, access.ErrHierarchyCycle.WithActor(rootID)
			}
			visited[child.ID] = true

			if child.Role == types.RoleDoctor {
				doctors[child.ID] = true
			}
			queue = append(queue, child.ID)
		}
	}

	return doctors, nil
}

func (d *OrgDirectory) lookupLocal(actorID string) (map[string]bool, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.entries[actorID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.doctors, true
}

func (d *OrgDirectory) storeLocal(actorID string, doctors map[string]bool) {
	d.mu.Lock()
	d.entries[actorID] = &downlineEntry{
		doctors:   doctors,
		expiresAt: time.Now().Add(d.cacheTTL),
	}
	size := len(d.entries)
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.RecordDownlineCacheSize(size)
	}
}

func (d *OrgDirectory) recordResolution(result string) {
	if d.metrics != nil {
		d.metrics.RecordDownlineResolution(result)
	}
}
