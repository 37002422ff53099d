// Package worker implements component G of spec.md, WorkerCoordinator: the
// master/worker cold-start protocol a prefork server runs so that every
// forked worker doesn't independently redownload data or race to build its
// auxiliaries.
//
// Named shared memory proper (POSIX shm_open) isn't exposed by the Go
// standard library or by any dependency in this module's stack, so the
// coordination flags in sharedflag.go use a file-backed golang.org/x/sys/unix
// Mmap plus Flock instead — same named/fixed-size/ref-counted/unlink-on-
// last-detach semantics, portably, over an ordinary file.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/corpus"
	"github.com/cryptekbits/GeoDash/internal/geo"
	"github.com/cryptekbits/GeoDash/internal/index"
	"github.com/cryptekbits/GeoDash/internal/logging"
	"github.com/cryptekbits/GeoDash/internal/region"
	"github.com/cryptekbits/GeoDash/internal/search"
	"github.com/cryptekbits/GeoDash/internal/store"
)

// Marker is the master marker file's contents, per spec.md §4.G step 2:
// "{timestamp, record_count, status}".
type Marker struct {
	Timestamp   time.Time `json:"timestamp"`
	RecordCount int       `json:"record_count"`
	Status      string    `json:"status"`
}

const markerFileName = "geodash-master.json"

// flagNames are the three index kinds spec.md §4.G names coordination
// flags for.
const (
	flagNameIndex  = "in-memory-index"
	flagNameSearch = "search-engine"
	flagNameGeo    = "geo-engine"
)

// Coordinator runs the master and worker phases, per spec.md §4.G.
type Coordinator struct {
	cfg     config.View
	log     logging.Logger
	runtime string // directory holding the marker file and shared-flag files
}

// New builds a Coordinator. runtimeDir is where the marker file and
// coordination-flag files live; callers typically pass XDG_RUNTIME_DIR or
// TMPDIR (spec.md §4.G).
func New(cfg config.View, log logging.Logger, runtimeDir string) *Coordinator {
	if runtimeDir == "" {
		runtimeDir = os.TempDir()
	}
	return &Coordinator{cfg: cfg, log: log, runtime: runtimeDir}
}

// RunMaster implements spec.md §4.G's master phase: open the store, ensure
// its schema, run CorpusLoader if the store is empty, sweep stale
// coordination flags, write the marker file, then close the master's own connections (workers open their own).
func (c *Coordinator) RunMaster(ctx context.Context) error {
	st, err := store.Open(ctx, config.DatabaseURI(c.cfg), store.PoolConfigFromView(c.cfg), c.log)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	count, err := st.RowCount(ctx)
	if err != nil {
		return err
	}

	if count == 0 {
		c.log.Info("store is empty, running corpus import")
		src := corpus.ResolveSource(c.cfg)
		f, err := os.Open(src)
		if err != nil {
			return fmt.Errorf("open corpus source %q: %w", src, err)
		}
		report, loadErr := corpus.Load(ctx, f, st, c.cfg, c.log)
		f.Close()
		if loadErr != nil {
			return loadErr
		}
		count = report.Inserted
		c.log.Info("corpus import complete", logging.Int("inserted", report.Inserted), logging.Int("rejected", report.Rejected))
	}

	if err := os.MkdirAll(c.runtime, 0o755); err != nil {
		return err
	}
	if err := SweepStale(c.runtime, c.log); err != nil {
		c.log.Warn("stale region sweep failed", logging.Err(err))
	}
	m := Marker{Timestamp: time.Now(), RecordCount: count, Status: "ready"}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.runtime, markerFileName), b, 0o644)
}

// ReadMarker reads back the master marker file, used by workers/tests that
// want to confirm the master phase actually ran.
func (c *Coordinator) ReadMarker() (*Marker, error) {
	b, err := os.ReadFile(filepath.Join(c.runtime, markerFileName))
	if err != nil {
		return nil, err
	}
	var m Marker
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Worker bundles the per-process handles a forked worker builds in its
// phase: its own store handle, InMemoryIndex, SearchEngine, GeoEngine and
// RegionEngine, per spec.md §4.G's worker-phase steps 1-3.
type Worker struct {
	// ID identifies this worker process in logs; distinct across concurrent
	// workers sharing one coordination runtime directory, per spec.md §4.G's
	// prefork model where multiple workers run against the same master.
	ID     uuid.UUID
	Store  store.GeoStore
	Index  *index.Index
	Search *search.Engine
	Geo    *geo.Engine
	Region *region.Engine

	coord *Coordinator
	flags []string
}

// RunWorker implements spec.md §4.G's worker phase. Each worker opens its
// own GeoStore, builds its own InMemoryIndex (bulk index contents are
// deliberately not shared via shared memory — re-reading the store proved
// more reliable than sharing trie/map structures across processes), then
// constructs SearchEngine, GeoEngine and RegionEngine over it, marking the
// three coordination flags initialised as each stage completes.
func (c *Coordinator) RunWorker(ctx context.Context) (*Worker, error) {
	id := uuid.New()
	log := c.log.With(logging.String("worker_id", id.String()))

	st, err := store.Open(ctx, config.DatabaseURI(c.cfg), store.PoolConfigFromView(c.cfg), log)
	if err != nil {
		return nil, err
	}

	spatial := c.cfg.GetBool("database.embedded-file.spatial") || c.cfg.GetBool("database.network-server.spatial")
	idx, err := index.Build(ctx, st, index.Options{Spatial: spatial}, log)
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := c.markReady(flagNameIndex); err != nil {
		st.Close()
		return nil, err
	}

	searchEngine := search.New(idx, st, c.cfg, log)
	if err := c.markReady(flagNameSearch); err != nil {
		st.Close()
		return nil, err
	}

	geoEngine := geo.New(idx, st)
	regionEngine := region.New(st, c.cfg)
	if err := c.markReady(flagNameGeo); err != nil {
		st.Close()
		return nil, err
	}

	log.Info("worker ready")
	w := &Worker{
		ID:     id,
		Store:  st,
		Index:  idx,
		Search: searchEngine,
		Geo:    geoEngine,
		Region: regionEngine,
		coord:  c,
		flags:  []string{flagNameIndex, flagNameSearch, flagNameGeo},
	}
	return w, nil
}

func (c *Coordinator) markReady(name string) error {
	sf, err := openFlag(c.runtime, name)
	if err != nil {
		return err
	}
	return sf.MarkInitialized()
}

// Shutdown detaches this worker's reference to every coordination flag it
// holds, and closes its store handle. The last detacher across all workers
// doesn't automatically unlink here — that's left to the parent process's
// final shutdown per spec.md §4.G, invoked separately via UnlinkAll.
func (w *Worker) Shutdown() error {
	var firstErr error
	for _, name := range w.flags {
		if err := detachFlag(name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := w.Store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// UnlinkAll removes every coordination-flag file, meant to be called once
// by the parent process on final shutdown, per spec.md §4.G.
func (c *Coordinator) UnlinkAll() error {
	var firstErr error
	for _, name := range []string{flagNameIndex, flagNameSearch, flagNameGeo} {
		if err := unlinkFlag(c.runtime, name); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
