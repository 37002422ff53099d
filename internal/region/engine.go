// Package region implements component F of spec.md, RegionEngine: a thin
// cached wrapper over GeoStore's country/state/city listing queries.
package region

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cryptekbits/GeoDash/internal/domain"
	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/store"
)

// Engine answers get_countries/get_states/get_cities_in_state, per spec.md
// §4.F, caching each result set for a short TTL since region listings
// change only when the corpus is reloaded.
type Engine struct {
	store store.GeoStore

	countries *expirable.LRU[string, []string]
	states    *expirable.LRU[string, []string]
	cities    *expirable.LRU[string, []domain.City]
}

// New builds a RegionEngine over an already-open GeoStore. Cache sizing
// comes from config, defaulting to a small, cheap cache since the cardinality
// of countries/states is itself small.
func New(st store.GeoStore, cfg config.View) *Engine {
	size := cfg.GetInt("region.cache.size")
	if size <= 0 {
		size = 256
	}
	ttl := cfg.GetDuration("region.cache.ttl")
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Engine{
		store:     st,
		countries: expirable.NewLRU[string, []string](size, nil, ttl),
		states:    expirable.NewLRU[string, []string](size, nil, ttl),
		cities:    expirable.NewLRU[string, []domain.City](size, nil, ttl),
	}
}

// PurgeCache drops every cached entry, called after CorpusLoader re-runs.
func (e *Engine) PurgeCache() {
	e.countries.Purge()
	e.states.Purge()
	e.cities.Purge()
}

const countriesCacheKey = "_all"

// GetCountries returns every distinct country name, sorted alphabetically,
// per spec.md §4.F.
func (e *Engine) GetCountries(ctx context.Context) ([]string, error) {
	if hit, ok := e.countries.Get(countriesCacheKey); ok {
		return cloneStrings(hit), nil
	}
	out, err := e.store.DistinctCountries(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	e.countries.Add(countriesCacheKey, cloneStrings(out))
	return out, nil
}

// GetStates returns every distinct state in country, sorted alphabetically.
// Matching on country is case-insensitive, per spec.md §4.F.
func (e *Engine) GetStates(ctx context.Context, country string) ([]string, error) {
	key := strings.ToUpper(strings.TrimSpace(country))
	if hit, ok := e.states.Get(key); ok {
		return cloneStrings(hit), nil
	}
	out, err := e.store.DistinctStates(ctx, key)
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	e.states.Add(key, cloneStrings(out))
	return out, nil
}

// GetCitiesInState returns every city in state+country, ordered by
// population descending when population data is available, otherwise by
// name, per spec.md §4.F. Matching is case-insensitive on both state and
// country.
func (e *Engine) GetCitiesInState(ctx context.Context, state, country string) ([]domain.City, error) {
	stateKey := strings.ToUpper(strings.TrimSpace(state))
	countryKey := strings.ToUpper(strings.TrimSpace(country))
	key := stateKey + "|" + countryKey
	if hit, ok := e.cities.Get(key); ok {
		return cloneCities(hit), nil
	}
	out, err := e.store.CitiesInState(ctx, stateKey, countryKey)
	if err != nil {
		return nil, err
	}
	sortCities(out)
	e.cities.Add(key, cloneCities(out))
	return out, nil
}

func sortCities(cities []domain.City) {
	hasPopulation := false
	for _, c := range cities {
		if c.Population > 0 {
			hasPopulation = true
			break
		}
	}
	sort.SliceStable(cities, func(i, j int) bool {
		if hasPopulation && cities[i].Population != cities[j].Population {
			return cities[i].Population > cities[j].Population
		}
		return strings.ToLower(cities[i].Name) < strings.ToLower(cities[j].Name)
	})
}

func cloneStrings(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func cloneCities(c []domain.City) []domain.City {
	out := make([]domain.City, len(c))
	copy(out, c)
	return out
}
