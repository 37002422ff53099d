package geodash

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/geoerr"
	"github.com/cryptekbits/GeoDash/internal/logging"
	"github.com/cryptekbits/GeoDash/internal/metrics"
	"github.com/cryptekbits/GeoDash/internal/region"
	"github.com/cryptekbits/GeoDash/internal/search"
	"github.com/cryptekbits/GeoDash/internal/worker"
)

// SearchParams and RankedSnapshot are the public aliases of SearchEngine's
// argument/streaming-result types, so callers never need to import
// internal/search directly.
type (
	SearchParams   = search.Params
	RankedSnapshot = search.RankedSnapshot
)

type facadeOptions struct {
	runtimeDir string
	registry   *prometheus.Registry
}

// Option configures Open, mirroring the functional-options shape the
// teacher used for its own constructor.
type Option func(*facadeOptions)

// WithRuntimeDir overrides where the master marker file and shared
// coordination flags live (default: the OS temp directory).
func WithRuntimeDir(dir string) Option {
	return func(o *facadeOptions) { o.runtimeDir = dir }
}

// WithRegistry attaches a caller-supplied Prometheus registry instead of a
// private one, letting collaborators serve /metrics themselves.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *facadeOptions) { o.registry = reg }
}

// Facade owns the master-phase lifecycle: it runs CorpusLoader when needed,
// writes the coordination marker, and hands out Workers. Per spec.md §2 and
// §9's "avoid a global mutable singleton," GeoDash routes everything
// through an explicit Facade value instead of a package-level instance.
type Facade struct {
	cfg     config.View
	log     logging.Logger
	coord   *worker.Coordinator
	metrics *metrics.Collectors
}

// Open runs the master phase of spec.md §4.G: opens GeoStore, ensures its
// schema, imports the corpus if the store is empty, and writes the marker
// file. Call NewWorker afterward, once per forked worker process.
func Open(ctx context.Context, cfg config.View, log logging.Logger, opts ...Option) (*Facade, error) {
	o := facadeOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	coord := worker.New(cfg, log, o.runtimeDir)
	if err := coord.RunMaster(ctx); err != nil {
		return nil, err
	}

	reg := o.registry
	if reg == nil {
		reg = metrics.NewRegistry()
	}

	return &Facade{cfg: cfg, log: log, coord: coord, metrics: metrics.New(reg)}, nil
}

// Shutdown unlinks every coordination-flag file. Call once from the parent
// process after every worker has exited, per spec.md §4.G.
func (f *Facade) Shutdown() error {
	return f.coord.UnlinkAll()
}

// Worker is the worker-phase handle of spec.md §4.G: its own GeoStore
// connection, InMemoryIndex, and the three query engines built over it.
type Worker struct {
	inner *worker.Worker
}

// NewWorker runs the worker phase: opens a fresh GeoStore handle, builds
// this worker's InMemoryIndex, then SearchEngine, GeoEngine and
// RegionEngine over it.
func (f *Facade) NewWorker(ctx context.Context) (*Worker, error) {
	w, err := f.coord.RunWorker(ctx)
	if err != nil {
		return nil, err
	}
	w.Search.SetMetrics(f.metrics)
	w.Geo.SetMetrics(f.metrics)
	return &Worker{inner: w}, nil
}

// Close releases this worker's store connection and detaches its
// coordination-flag references.
func (w *Worker) Close() error {
	return w.inner.Shutdown()
}

// Search runs SearchEngine.search, per spec.md §4.D and §6.1's
// /api/cities/search.
func (w *Worker) Search(ctx context.Context, p SearchParams) ([]RankedCity, error) {
	return w.inner.Search.Search(ctx, p)
}

// SearchStream runs the two-snapshot async variant, per spec.md §4.D.
func (w *Worker) SearchStream(ctx context.Context, p SearchParams) <-chan []RankedSnapshot {
	return w.inner.Search.SearchStream(ctx, p)
}

// City looks a city up by id: InMemoryIndex first, falling back to
// GeoStore.GetByID on a miss, per spec.md §6.1's /api/city/{id}.
func (w *Worker) City(ctx context.Context, id int32) (*City, error) {
	if c, ok := w.inner.Index.Get(id); ok {
		return &c, nil
	}
	c, err := w.inner.Store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, geoerr.DataNotFound("city")
	}
	return c, nil
}

// Radius runs GeoEngine.find_by_coordinates, per spec.md §4.E and §6.1's
// /api/cities/coordinates.
func (w *Worker) Radius(ctx context.Context, lat, lng, radiusKm float64) ([]DistancedCity, error) {
	return w.inner.Geo.FindByCoordinates(ctx, lat, lng, radiusKm)
}

// Countries runs RegionEngine.get_countries, per spec.md §6.1's
// /api/countries.
func (w *Worker) Countries(ctx context.Context) ([]string, error) {
	return w.inner.Region.GetCountries(ctx)
}

// States runs RegionEngine.get_states(country), per spec.md §6.1's
// /api/states.
func (w *Worker) States(ctx context.Context, country string) ([]string, error) {
	return w.inner.Region.GetStates(ctx, country)
}

// CitiesInState runs RegionEngine.get_cities_in_state, per spec.md §6.1's
// /api/cities/state.
func (w *Worker) CitiesInState(ctx context.Context, state, country string) ([]City, error) {
	return w.inner.Region.GetCitiesInState(ctx, state, country)
}

// RowCount reports GeoStore.row_count() and the backend kind, per spec.md
// §6.1's /api/status.
func (w *Worker) RowCount(ctx context.Context) (int, string, error) {
	n, err := w.inner.Store.RowCount(ctx)
	if err != nil {
		return 0, "", err
	}
	return n, w.inner.Store.Backend(), nil
}
