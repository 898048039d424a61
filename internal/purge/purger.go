// Package purge hard-deletes every trace of an event's media from
// version-enabled object storage. It is the only component allowed to
// destroy object history.
package purge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/your-org/clipline/internal/metrics"
	"github.com/your-org/clipline/pkg/storage/objectstore"
)

// ObjectStore is the slice of storage capability purging needs.
type ObjectStore interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	ListVersions(ctx context.Context, prefix string) ([]objectstore.Version, error)
	RemoveVersion(ctx context.Context, key, versionID string) error
	RemoveCurrent(ctx context.Context, key string) error
}

// VariantKeySource supplies the storage keys the metadata store has on
// record for an event.
type VariantKeySource interface {
	ListVariantKeys(ctx context.Context, eventID int64) ([]string, error)
}

// Result aggregates a purge run. Deleted counts actual removals only, so
// purging an already-clean event reports zero.
type Result struct {
	Deleted int `json:"deleted"`
	Errors  int `json:"errors"`
}

// Purger walks an event's storage footprint in layers, from the keys the
// database knows about down to individual object versions and delete
// markers.
type Purger struct {
	objects ObjectStore
	keys    VariantKeySource
	logger  *zap.Logger
}

// New constructs a Purger.
func New(objects ObjectStore, keys VariantKeySource, logger *zap.Logger) *Purger {
	return &Purger{objects: objects, keys: keys, logger: logger}
}

// Purge removes every object and object version under the event's storage
// prefix. It never fails outright: each layer tolerates partial failure
// and the counts report what actually happened.
func (p *Purger) Purge(ctx context.Context, eventID int64) Result {
	base := fmt.Sprintf("clips/%d", eventID)
	prefix := base + "/"

	var res Result

	// Layer 1: keys the database has on record, plus the conventional
	// thumbnail key and both folder-marker spellings. Only keys that are
	// actually live get a delete, which keeps repeat purges at zero.
	live := p.liveKeys(ctx, base, &res)

	candidates, err := p.keys.ListVariantKeys(ctx, eventID)
	if err != nil {
		p.logger.Warn("listing variant keys failed, continuing with storage listing only",
			zap.Int64("event_id", eventID), zap.Error(err))
		res.Errors++
	}
	candidates = append(candidates, prefix+"thumb.jpg", base, prefix)
	for _, key := range dedupe(candidates) {
		if !live[key] {
			continue
		}
		p.removeCurrent(ctx, key, &res)
		delete(live, key)
	}

	// Layer 2: sweep whatever is still live under the prefix.
	for key := range p.liveKeys(ctx, base, &res) {
		p.removeCurrent(ctx, key, &res)
	}

	// Layer 3: destroy all versions and delete markers under the prefix,
	// including the markers layers 1 and 2 just recorded.
	p.removeVersions(ctx, prefix, func(string) bool { return true }, &res)

	// Layer 4: the bare folder marker sits outside the slash prefix, so
	// its versions need an exact-key pass.
	p.removeVersions(ctx, base, func(key string) bool {
		return key == base || key == prefix
	}, &res)

	// Layer 5: a marker spelling that survived the version purge (a
	// delete failed above) at least gets its live pointer removed.
	for key := range p.liveKeys(ctx, base, &res) {
		if key == base || key == prefix {
			p.removeCurrent(ctx, key, &res)
		}
	}

	metrics.PurgeRunsTotal.Inc()
	metrics.PurgeDeletedObjects.Add(float64(res.Deleted))
	metrics.PurgeErrors.Add(float64(res.Errors))

	p.logger.Info("purge complete",
		zap.Int64("event_id", eventID),
		zap.Int("deleted", res.Deleted),
		zap.Int("errors", res.Errors),
	)
	return res
}

// liveKeys lists the live objects belonging to the event. The listing
// prefix is the bare base so the no-slash folder marker shows up; keys of
// other events sharing the digit prefix are filtered back out.
func (p *Purger) liveKeys(ctx context.Context, base string, res *Result) map[string]bool {
	keys, err := p.objects.ListKeys(ctx, base)
	if err != nil {
		p.logger.Warn("listing live keys failed", zap.String("prefix", base), zap.Error(err))
		res.Errors++
	}

	live := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key == base || strings.HasPrefix(key, base+"/") {
			live[key] = true
		}
	}
	return live
}

func (p *Purger) removeCurrent(ctx context.Context, key string, res *Result) {
	if err := p.objects.RemoveCurrent(ctx, key); err != nil {
		p.logger.Warn("delete failed", zap.String("key", key), zap.Error(err))
		res.Errors++
		return
	}
	res.Deleted++
}

func (p *Purger) removeVersions(ctx context.Context, prefix string, match func(string) bool, res *Result) {
	versions, err := p.objects.ListVersions(ctx, prefix)
	if err != nil {
		p.logger.Warn("listing versions failed", zap.String("prefix", prefix), zap.Error(err))
		res.Errors++
	}
	for _, v := range versions {
		if !match(v.Key) {
			continue
		}
		if err := p.objects.RemoveVersion(ctx, v.Key, v.VersionID); err != nil {
			p.logger.Warn("version delete failed",
				zap.String("key", v.Key),
				zap.String("version_id", v.VersionID),
				zap.Error(err))
			res.Errors++
			continue
		}
		res.Deleted++
	}
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// WipeAll destroys every object version in the bucket. It backs the
// operator reset command and must never run against a live deployment.
func WipeAll(ctx context.Context, objects ObjectStore, logger *zap.Logger) Result {
	var res Result

	versions, err := objects.ListVersions(ctx, "")
	if err != nil {
		logger.Warn("listing bucket versions failed", zap.Error(err))
		res.Errors++
	}
	for _, v := range versions {
		if err := objects.RemoveVersion(ctx, v.Key, v.VersionID); err != nil {
			logger.Warn("version delete failed",
				zap.String("key", v.Key),
				zap.String("version_id", v.VersionID),
				zap.Error(err))
			res.Errors++
			continue
		}
		res.Deleted++
	}

	logger.Info("bucket wipe complete", zap.Int("deleted", res.Deleted), zap.Int("errors", res.Errors))
	return res
}
