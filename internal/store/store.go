// Package store implements component A of spec.md, GeoStore: a persistent
// relational store of cities plus spatial/full-text auxiliaries, with two
// interchangeable backends chosen by a URI-shaped configuration string.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/geoerr"
	"github.com/cryptekbits/GeoDash/internal/logging"

	"github.com/cryptekbits/GeoDash/internal/domain"
)

// TextSearchParams bundles GeoStore.TextSearch's arguments.
type TextSearchParams struct {
	Query     string
	Limit     int
	Country   string // optional ISO-3166-1 alpha-2 filter
	UserLat   *float64
	UserLng   *float64
}

// PoolConfig carries the connection-pool sizing of spec.md §4.A.
type PoolConfig struct {
	MinIdle int
	MaxOpen int
	Timeout time.Duration
}

// GeoStore is the persistent store contract of spec.md §4.A. Both backends
// (embedded SQLite, network Postgres) implement it identically from the
// caller's point of view.
type GeoStore interface {
	EnsureSchema(ctx context.Context) error
	RowCount(ctx context.Context) (int, error)
	BulkInsert(ctx context.Context, rows []domain.City) (inserted int, err error)
	DeleteWhereCountryNotIn(ctx context.Context, allowed []string) (deleted int, err error)
	GetByID(ctx context.Context, id int32) (*domain.City, error)
	TextSearch(ctx context.Context, p TextSearchParams) ([]domain.RankedCity, error)
	RadiusSearch(ctx context.Context, lat, lng, radiusKm float64) ([]domain.DistancedCity, error)
	DistinctCountries(ctx context.Context) ([]string, error)
	DistinctStates(ctx context.Context, country string) ([]string, error)
	CitiesInState(ctx context.Context, state, country string) ([]domain.City, error)
	// StreamAll scans every row once, calling fn for each. Used by
	// InMemoryIndex.Build — spec.md §4.C: "Stream all rows ... in a single
	// query."
	StreamAll(ctx context.Context, fn func(domain.City) error) error
	// Backend reports which kind opened this store ("embedded-file" or
	// "network-server"), used by /api/status per spec.md §6.1.
	Backend() string
	Close() error
}

// Open dispatches on the URI scheme to the embedded or network backend,
// exactly as spec.md §4.A's "open(uri, pool_cfg)" describes. Unsupported
// schemes fail with a ConfigurationError.
func Open(ctx context.Context, uri string, pool PoolConfig, log logging.Logger) (GeoStore, error) {
	switch {
	case strings.HasPrefix(uri, "sqlite://"):
		return openEmbedded(ctx, strings.TrimPrefix(uri, "sqlite://"), log)
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return openNetwork(ctx, uri, pool, log)
	default:
		return nil, geoerr.Configuration("unsupported database URI scheme: "+uri, nil)
	}
}

// PoolConfigFromView builds a PoolConfig from a config.View, per spec.md §6.3
// (database.pool.{min,max,timeout}).
func PoolConfigFromView(v config.View) PoolConfig {
	return PoolConfig{
		MinIdle: v.GetInt("database.pool.min"),
		MaxOpen: v.GetInt("database.pool.max"),
		Timeout: v.GetDuration("database.pool.timeout"),
	}
}
