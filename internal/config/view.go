// Package config wraps the read-only key/value view spec.md §6.5 defines
// as an external collaborator. GeoDash provides a viper-backed
// implementation, but the core only ever depends on the View interface —
// config file discovery and schema validation remain out of scope per
// spec.md §1.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// View is the dot-path key/value surface the core consumes.
type View interface {
	GetString(path string) string
	GetInt(path string) int
	GetFloat64(path string) float64
	GetBool(path string) bool
	GetDuration(path string) time.Duration
	GetStringSlice(path string) []string
	IsSet(path string) bool
}

type viperView struct {
	v *viper.Viper
}

// New wraps a *viper.Viper already loaded by the caller (config file
// discovery/parsing is the excluded collaborator concern).
func New(v *viper.Viper) View {
	return &viperView{v: v}
}

// Defaults returns a View seeded with spec.md §6.3's recognised defaults,
// useful for tests and for cmd/geodash when no config file is supplied.
func Defaults() View {
	v := viper.New()
	v.SetDefault("mode", "full")
	v.SetDefault("database.type", "embedded-file")
	v.SetDefault("database.embedded-file.path", "./geodash-data/geodash.db")
	v.SetDefault("database.embedded-file.spatial", true)
	v.SetDefault("database.embedded-file.fts", true)
	v.SetDefault("database.network-server.fts", true)
	v.SetDefault("database.network-server.spatial", true)
	v.SetDefault("database.pool.min", 2)
	v.SetDefault("database.pool.max", 10)
	v.SetDefault("database.pool.timeout", "5s")
	v.SetDefault("search.fuzzy.enabled", true)
	v.SetDefault("search.fuzzy.threshold", 70)
	v.SetDefault("search.location_aware.enabled", true)
	v.SetDefault("search.location_aware.distance_weight", 0.3)
	v.SetDefault("search.location_aware.country_boost", 25000)
	v.SetDefault("search.cache.enabled", true)
	v.SetDefault("search.cache.size", 5000)
	v.SetDefault("search.cache.ttl", "5m")
	v.SetDefault("search.limits.default", 10)
	v.SetDefault("search.limits.max", 100)
	v.SetDefault("data.batch_size", 5000)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return &viperView{v: v}
}

func (c *viperView) GetString(path string) string         { return c.v.GetString(path) }
func (c *viperView) GetInt(path string) int                { return c.v.GetInt(path) }
func (c *viperView) GetFloat64(path string) float64         { return c.v.GetFloat64(path) }
func (c *viperView) GetBool(path string) bool               { return c.v.GetBool(path) }
func (c *viperView) GetDuration(path string) time.Duration  { return c.v.GetDuration(path) }
func (c *viperView) GetStringSlice(path string) []string    { return c.v.GetStringSlice(path) }
func (c *viperView) IsSet(path string) bool                 { return c.v.IsSet(path) }

// Simple is a mode check helper used across the core: mode=simple disables
// fuzzy, shared-memory coordination and advanced-store features, per
// spec.md §6.3.
func Simple(v View) bool {
	return strings.EqualFold(v.GetString("mode"), "simple")
}

// DatabaseURI assembles a backend-specific URI from the view, used by
// internal/store.Open. Kept here (not in internal/store) because URI
// assembly from config components is explicitly a Config-view
// responsibility per spec.md §6.5.
func DatabaseURI(v View) string {
	switch strings.ToLower(v.GetString("database.type")) {
	case "network-server":
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			v.GetString("database.network-server.user"),
			v.GetString("database.network-server.password"),
			v.GetString("database.network-server.host"),
			v.GetInt("database.network-server.port"),
			v.GetString("database.network-server.dbname"),
			orDefault(v.GetString("database.network-server.sslmode"), "disable"),
		)
	default:
		path := v.GetString("database.embedded-file.path")
		if path == "" {
			path = "./geodash-data/geodash.db"
		}
		return "sqlite://" + path
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
