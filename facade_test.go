package geodash_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	geodash "github.com/cryptekbits/GeoDash"
	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/logging"
)

const fixtureCSV = `name,country_code,country,lat,lng,population,state
Austin,US,United States,30.2672,-97.7431,964254,Texas
Round Rock,US,United States,30.5083,-97.6789,133372,Texas
Paris,FR,France,48.8566,2.3522,2148000,
Lyon,FR,France,45.7640,4.8357,513275,
`

func testConfig(t *testing.T) config.View {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "cities.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(fixtureCSV), 0o644))

	v := viper.New()
	v.Set("database.type", "embedded-file")
	v.Set("database.embedded-file.path", filepath.Join(dir, "geodash.db"))
	v.Set("database.embedded-file.spatial", true)
	v.Set("database.embedded-file.fts", true)
	v.Set("database.pool.min", 1)
	v.Set("database.pool.max", 2)
	v.Set("database.pool.timeout", "5s")
	v.Set("data.source_path", csvPath)
	v.Set("data.batch_size", 1000)
	v.Set("search.fuzzy.threshold", 70)
	v.Set("search.cache.enabled", true)
	v.Set("search.cache.size", 100)
	v.Set("search.cache.ttl", "1m")
	v.Set("search.limits.default", 10)
	v.Set("search.limits.max", 100)
	return config.New(v)
}

func openFacade(t *testing.T) (*geodash.Facade, *geodash.Worker) {
	t.Helper()
	ctx := context.Background()
	cfg := testConfig(t)
	log := logging.Nop()

	f, err := geodash.Open(ctx, cfg, log, geodash.WithRuntimeDir(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Shutdown() })

	w, err := f.NewWorker(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	return f, w
}

func TestFacade_OpenImportsCorpusOnFirstRun(t *testing.T) {
	_, w := openFacade(t)
	n, backend, err := w.RowCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "embedded-file", backend)
}

func TestFacade_SearchFindsExactMatch(t *testing.T) {
	_, w := openFacade(t)
	res, err := w.Search(context.Background(), geodash.SearchParams{Query: "austin", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "Austin", res[0].Name)
}

func TestFacade_SearchIsDeterministic(t *testing.T) {
	_, w := openFacade(t)
	ctx := context.Background()
	r1, err := w.Search(ctx, geodash.SearchParams{Query: "paris", Limit: 5})
	require.NoError(t, err)
	r2, err := w.Search(ctx, geodash.SearchParams{Query: "paris", Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, r1)
	require.NotEmpty(t, r2)
	assert.Equal(t, r1[0].ID, r2[0].ID)
	assert.Equal(t, r1[0].Lat, r2[0].Lat)
	assert.Equal(t, r1[0].Lng, r2[0].Lng)
}

func TestFacade_RadiusFindsNearbyCityWithinReason(t *testing.T) {
	_, w := openFacade(t)
	out, err := w.Radius(context.Background(), 30.2672, -97.7431, 80)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	for _, c := range out {
		assert.Less(t, c.DistanceKm, 80.0)
	}
}

func TestFacade_CityLooksUpByID(t *testing.T) {
	_, w := openFacade(t)
	ctx := context.Background()
	res, err := w.Search(ctx, geodash.SearchParams{Query: "austin", Limit: 1})
	require.NoError(t, err)
	require.NotEmpty(t, res)

	c, err := w.City(ctx, res[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Austin", c.Name)
}

func TestFacade_CountriesStatesCitiesInState(t *testing.T) {
	_, w := openFacade(t)
	ctx := context.Background()

	countries, err := w.Countries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"France", "United States"}, countries)

	states, err := w.States(ctx, "us")
	require.NoError(t, err)
	assert.Equal(t, []string{"Texas"}, states)

	cities, err := w.CitiesInState(ctx, "Texas", "US")
	require.NoError(t, err)
	require.Len(t, cities, 2)
	assert.Equal(t, "Austin", cities[0].Name)
}
