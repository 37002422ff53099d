package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptekbits/GeoDash/internal/domain"
	"github.com/cryptekbits/GeoDash/internal/logging"
)

func openTestStore(t *testing.T) GeoStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "geodash.db")
	st, err := Open(context.Background(), "sqlite://"+path, PoolConfig{MaxOpen: 1}, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, st.EnsureSchema(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedCities(t *testing.T, st GeoStore, rows ...domain.City) {
	t.Helper()
	n, err := st.BulkInsert(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, len(rows), n)
}

var austin = domain.City{
	ID: 1, Name: "Austin", AsciiName: "austin", Country: "United States",
	CountryCode: "US", State: "Texas", StateCode: "TX",
	Lat: 30.2672, Lng: -97.7431, Population: 964254,
}

var paris = domain.City{
	ID: 2, Name: "Paris", AsciiName: "paris", Country: "France",
	CountryCode: "FR", Lat: 48.8566, Lng: 2.3522, Population: 2148000,
}

func TestEnsureSchema_IsIdempotent(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.EnsureSchema(context.Background()))
	require.NoError(t, st.EnsureSchema(context.Background()))
}

func TestBulkInsert_UpsertsOnConflict(t *testing.T) {
	st := openTestStore(t)
	seedCities(t, st, austin)

	updated := austin
	updated.Population = 1000000
	seedCities(t, st, updated)

	n, err := st.RowCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetByID(context.Background(), austin.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1000000, got.Population)
}

func TestGetByID_MissingRowReturnsDataNotFound(t *testing.T) {
	st := openTestStore(t)
	_, err := st.GetByID(context.Background(), 999)
	assert.ErrorContains(t, err, "city 999")
}

func TestTextSearch_MatchesAsciiNameViaFTS(t *testing.T) {
	st := openTestStore(t)
	seedCities(t, st, austin, paris)

	res, err := st.TextSearch(context.Background(), TextSearchParams{Query: "austin", Limit: 5})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, austin.ID, res[0].ID)
}

func TestTextSearch_FiltersByCountry(t *testing.T) {
	st := openTestStore(t)
	seedCities(t, st, austin, paris)

	res, err := st.TextSearch(context.Background(), TextSearchParams{Query: "austin", Limit: 5, Country: "fr"})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestRadiusSearch_FindsNearbyAfterRebuild(t *testing.T) {
	st := openTestStore(t)
	seedCities(t, st, austin, paris)
	require.NoError(t, st.EnsureSchema(context.Background()))

	res, err := st.RadiusSearch(context.Background(), austin.Lat, austin.Lng, 50)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, austin.ID, res[0].ID)
}

func TestDeleteWhereCountryNotIn_RemovesUnlistedCountries(t *testing.T) {
	st := openTestStore(t)
	seedCities(t, st, austin, paris)

	deleted, err := st.DeleteWhereCountryNotIn(context.Background(), []string{"US"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	n, err := st.RowCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDistinctCountriesAndStates(t *testing.T) {
	st := openTestStore(t)
	seedCities(t, st, austin, paris)

	countries, err := st.DistinctCountries(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"United States", "France"}, countries)

	states, err := st.DistinctStates(context.Background(), "us")
	require.NoError(t, err)
	assert.Equal(t, []string{"Texas"}, states)
}

func TestCitiesInState_SortsByPopulationDescending(t *testing.T) {
	st := openTestStore(t)
	sanAntonio := austin
	sanAntonio.ID = 3
	sanAntonio.Name = "San Antonio"
	sanAntonio.Population = 1500000
	seedCities(t, st, austin, sanAntonio)

	cities, err := st.CitiesInState(context.Background(), "Texas", "us")
	require.NoError(t, err)
	require.Len(t, cities, 2)
	assert.Equal(t, "San Antonio", cities[0].Name)
}

func TestStreamAll_VisitsEveryRow(t *testing.T) {
	st := openTestStore(t)
	seedCities(t, st, austin, paris)

	var seen []int32
	err := st.StreamAll(context.Background(), func(c domain.City) error {
		seen = append(seen, c.ID)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int32{austin.ID, paris.ID}, seen)
}

func TestOpen_RejectsUnsupportedScheme(t *testing.T) {
	_, err := Open(context.Background(), "mysql://localhost/db", PoolConfig{}, logging.Nop())
	assert.ErrorContains(t, err, "unsupported database URI scheme")
}
