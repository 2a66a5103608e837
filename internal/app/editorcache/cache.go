// Package editorcache implements a process-wide write-behind cache for
// editable long-text fields (workspace notes, finding-definition
// summary/description/impact/remediation/references). Six independent
// cache instances run, each with its own 30-second flush loop rather
// than one shared loop: the fields have unrelated write volume, and a
// storage outage spilling one field to disk must not block the others.
package editorcache

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	core "github.com/kraken-ng/kraken/internal/app/core/service"
	"github.com/kraken-ng/kraken/internal/app/metrics"
	"github.com/kraken-ng/kraken/internal/app/system"
	"github.com/kraken-ng/kraken/pkg/logger"
)

// entry is one cached field: either absent (negative cache), or holding
// data with a dirty bit set by Update.
type entry struct {
	data    string
	present bool
	dirty   bool
}

// Backend is the storage surface one Cache flushes a single field family
// to. Load/Persist are keyed by uuid (the workspace uuid for notes, the
// definition uuid for finding-definition fields, whose field name is held
// by the backend itself).
type Backend interface {
	Load(ctx context.Context, key uuid.UUID) (string, bool, error)
	Persist(ctx context.Context, key uuid.UUID, value string) error
}

// Cache is a single-field write-behind cache with its own flusher.
type Cache struct {
	name    string
	backend Backend
	spillDir string
	interval time.Duration

	mu      sync.RWMutex
	entries map[uuid.UUID]*entry

	log *logger.Logger

	runMu  sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

var _ system.Service = (*Cache)(nil)

// New constructs a Cache. spillDir is where dirty values are written if a
// flush fails; it is created lazily on first spill. log may be nil.
func New(name string, backend Backend, spillDir string, log *logger.Logger) *Cache {
	if log == nil {
		log = logger.NewDefault("editorcache." + name)
	}
	return &Cache{
		name:     name,
		backend:  backend,
		spillDir: spillDir,
		interval: 30 * time.Second,
		entries:  make(map[uuid.UUID]*entry),
		log:      log,
	}
}

// Get returns the cached text for key, loading from storage on first
// miss and caching both hits and misses.
func (c *Cache) Get(ctx context.Context, key uuid.UUID) (string, bool, error) {
	c.mu.RLock()
	if e, ok := c.entries[key]; ok {
		data, present := e.data, e.present
		c.mu.RUnlock()
		return data, present, nil
	}
	c.mu.RUnlock()

	data, present, err := c.backend.Load(ctx, key)
	if err != nil {
		return "", false, err
	}
	c.mu.Lock()
	if _, ok := c.entries[key]; !ok {
		// A freshly DB-loaded entry is marked dirty immediately: the
		// next periodic flush always re-persists it once per load even
		// with no write.
		c.entries[key] = &entry{data: data, present: present, dirty: present}
	}
	c.mu.Unlock()
	return data, present, nil
}

// Update requires the entry to already exist (queried on first miss via
// Get); it marks the in-memory entry dirty. Returns false if the entity
// is not known to exist.
func (c *Cache) Update(ctx context.Context, key uuid.UUID, text string) (bool, error) {
	if _, present, err := c.Get(ctx, key); err != nil {
		return false, err
	} else if !present {
		return false, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	e.data = text
	e.present = true
	e.dirty = true
	return true, nil
}

// Delete drops the cache entry, used on entity deletion.
func (c *Cache) Delete(key uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateNotFound drops every negative cache entry, used after an
// external create makes a previously-absent key valid.
func (c *Cache) InvalidateNotFound() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if !e.present && !e.dirty {
			delete(c.entries, key)
		}
	}
}

// Name identifies this cache instance for system.Service / logging.
func (c *Cache) Name() string { return "editorcache." + c.name }

// Start launches the 30-second flush loop via a dedicated robfig/cron
// schedule.
func (c *Cache) Start(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cron != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.cron = cron.New()
	if _, err := c.cron.AddFunc("@every 30s", func() { c.flush(runCtx) }); err != nil {
		c.cancel()
		c.cron = nil
		return err
	}
	c.cron.Start()
	return nil
}

// Stop halts the flusher. Dirty entries already in memory are left as-is
// (the process is expected to flush once more via a final manual Flush,
// or simply exit and rely on the spill files from prior failed flushes).
func (c *Cache) Stop(_ context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cron == nil {
		return nil
	}
	c.cron.Stop()
	c.cancel()
	c.cron = nil
	return nil
}

// Flush snapshots every dirty entry and persists it, clearing dirty on
// success. On any failed persist, the value is spilled to a per-uuid file
// and the entry stays dirty for the next flush. Exported so
// tests and a graceful-shutdown path can force a flush deterministically.
func (c *Cache) Flush(ctx context.Context) { c.flush(ctx) }

func (c *Cache) flush(ctx context.Context) {
	c.mu.RLock()
	type dirtyEntry struct {
		key  uuid.UUID
		data string
	}
	var dirty []dirtyEntry
	for key, e := range c.entries {
		if e.dirty {
			dirty = append(dirty, dirtyEntry{key: key, data: e.data})
		}
	}
	c.mu.RUnlock()

	for _, d := range dirty {
		if err := c.backend.Persist(ctx, d.key, d.data); err != nil {
			c.log.WithField("key", d.key).WithField("error", err).Warn("editor cache flush failed, spilling to disk")
			metrics.RecordEditorSpill(c.name)
			if serr := c.spill(d.key, d.data); serr != nil {
				c.log.WithField("key", d.key).WithField("error", serr).Error("editor cache spill failed")
			}
			continue
		}
		// The compare-on-clear uses the exact text written: an entry
		// mutated concurrently with the write remains dirty.
		c.mu.Lock()
		if e, ok := c.entries[d.key]; ok && e.data == d.data {
			e.dirty = false
		}
		c.mu.Unlock()
	}
}

func (c *Cache) spill(key uuid.UUID, data string) error {
	if c.spillDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.spillDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(c.spillDir, c.name+"-"+key.String()+".spill")
	return os.WriteFile(path, []byte(data), 0o644)
}

// Descriptor advertises this component for the /system/descriptors inventory.
func (c *Cache) Descriptor() core.Descriptor {
	return core.Descriptor{Name: "editorcache." + c.name, Domain: "editing", Layer: core.LayerAggregation}.
		WithCapabilities("get", "update", "delete", "flush")
}
