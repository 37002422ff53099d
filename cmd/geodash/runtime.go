package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	geodash "github.com/cryptekbits/GeoDash"
	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/geoerr"
	"github.com/cryptekbits/GeoDash/internal/logging"
)

// buildConfig assembles a config.View from --config (if given), environment
// overrides and spec.md §6.3 defaults, then applies --db-uri on top. Config
// file discovery beyond "the path the caller named" remains the excluded
// collaborator concern of spec.md §1.
func buildConfig() (config.View, error) {
	v, err := buildViper()
	if err != nil {
		return nil, err
	}
	return config.New(v), nil
}

// buildViper is buildConfig's mutable form, for subcommands (import) that
// need to layer a flag override on top of a single key after the fact.
func buildViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	if flagConfig != "" {
		v.SetConfigFile(flagConfig)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", flagConfig, err)
		}
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flagDBURI != "" {
		applyDBURI(v, flagDBURI)
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
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
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
}

// applyDBURI overrides database.* keys from a --db-uri flag, sqlite:// or
// postgres:// scheme, so a single flag can redirect every command without
// touching a config file.
func applyDBURI(v *viper.Viper, uri string) {
	switch {
	case strings.HasPrefix(uri, "sqlite://"):
		v.Set("database.type", "embedded-file")
		v.Set("database.embedded-file.path", strings.TrimPrefix(uri, "sqlite://"))
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		v.Set("database.type", "network-server")
		if u, err := url.Parse(uri); err == nil {
			v.Set("database.network-server.host", u.Hostname())
			if p := u.Port(); p != "" {
				if port, err := strconv.Atoi(p); err == nil {
					v.Set("database.network-server.port", port)
				}
			}
			if u.User != nil {
				v.Set("database.network-server.user", u.User.Username())
				if pw, ok := u.User.Password(); ok {
					v.Set("database.network-server.password", pw)
				}
			}
			v.Set("database.network-server.dbname", strings.TrimPrefix(u.Path, "/"))
			if sslmode := u.Query().Get("sslmode"); sslmode != "" {
				v.Set("database.network-server.sslmode", sslmode)
			}
		}
	}
}

func buildLogger() logging.Logger {
	return logging.New(strings.EqualFold(flagLogLevel, "debug"))
}

// envelope is the uniform response shape of spec.md §6.1, reused verbatim
// by the CLI since both edges wrap the same core.
type envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	Meta       any    `json:"meta,omitempty"`
}

// emit prints the envelope to stdout and returns the error so the command
// exits non-zero; cobra does not print it (SilenceErrors), and main then
// writes it to stderr.
func emit(data any, err error) error {
	env := envelope{Success: err == nil, StatusCode: 200, Data: data}
	if err != nil {
		env.Success = false
		var ge *geoerr.Error
		if errors.As(err, &ge) {
			env.StatusCode = ge.HTTPStatus()
			env.Error = ge.Message
			env.ErrorCode = string(ge.Kind)
		} else {
			env.StatusCode = 500
			env.Error = err.Error()
			env.ErrorCode = string(geoerr.KindUncategorized)
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(env); encErr != nil {
		return encErr
	}
	if err != nil {
		return err
	}
	return nil
}

// openWorker runs the full master+worker lifecycle of a single CLI
// invocation: open the Facade (master phase: ensure schema, import if
// empty), build one Worker. Both are closed by the returned cleanup func.
func openWorker(ctx context.Context) (*geodash.Worker, func(), error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, nil, err
	}
	log := buildLogger()

	f, err := geodash.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	w, err := f.NewWorker(ctx)
	if err != nil {
		_ = f.Shutdown()
		return nil, nil, err
	}
	cleanup := func() {
		_ = w.Close()
		_ = f.Shutdown()
	}
	return w, cleanup, nil
}
