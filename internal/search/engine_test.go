package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptekbits/GeoDash/internal/domain"
	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/index"
	"github.com/cryptekbits/GeoDash/internal/logging"
	"github.com/cryptekbits/GeoDash/internal/store"
)

type noopStore struct{ rows []domain.City }

func (s *noopStore) EnsureSchema(ctx context.Context) error    { return nil }
func (s *noopStore) RowCount(ctx context.Context) (int, error) { return len(s.rows), nil }
func (s *noopStore) BulkInsert(ctx context.Context, rows []domain.City) (int, error) {
	return 0, nil
}
func (s *noopStore) DeleteWhereCountryNotIn(ctx context.Context, allowed []string) (int, error) {
	return 0, nil
}
func (s *noopStore) GetByID(ctx context.Context, id int32) (*domain.City, error) { return nil, nil }
func (s *noopStore) TextSearch(ctx context.Context, p store.TextSearchParams) ([]domain.RankedCity, error) {
	return nil, nil
}
func (s *noopStore) RadiusSearch(ctx context.Context, lat, lng, radiusKm float64) ([]domain.DistancedCity, error) {
	return nil, nil
}
func (s *noopStore) DistinctCountries(ctx context.Context) ([]string, error) { return nil, nil }
func (s *noopStore) DistinctStates(ctx context.Context, country string) ([]string, error) {
	return nil, nil
}
func (s *noopStore) CitiesInState(ctx context.Context, state, country string) ([]domain.City, error) {
	return nil, nil
}
func (s *noopStore) StreamAll(ctx context.Context, fn func(domain.City) error) error {
	for _, r := range s.rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
func (s *noopStore) Backend() string { return "embedded-file" }
func (s *noopStore) Close() error    { return nil }

func sampleCities() []domain.City {
	return []domain.City{
		{ID: 1, Name: "Austin", AsciiName: "austin", Country: "United States", CountryCode: "US", Lat: 30.2672, Lng: -97.7431, Population: 964254},
		{ID: 2, Name: "Austin Heights", AsciiName: "austin heights", Country: "United States", CountryCode: "US", Lat: 31.0, Lng: -98.0, Population: 500},
		{ID: 3, Name: "Paris", AsciiName: "paris", Country: "France", CountryCode: "FR", Lat: 48.8566, Lng: 2.3522, Population: 2148000},
		{ID: 4, Name: "Ostin", AsciiName: "ostin", Country: "Russia", CountryCode: "RU", Lat: 55.0, Lng: 37.0, Population: 1000},
	}
}

func buildEngine(t *testing.T) *Engine {
	t.Helper()
	idx, err := index.Build(context.Background(), &noopStore{rows: sampleCities()}, index.Options{}, logging.Nop())
	require.NoError(t, err)
	cfg := config.Defaults()
	return New(idx, &noopStore{rows: sampleCities()}, cfg, logging.Nop())
}

func TestSearch_ExactOutranksPrefix(t *testing.T) {
	e := buildEngine(t)
	res, err := e.Search(context.Background(), Params{Query: "austin", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, int32(1), res[0].ID)
}

func TestSearch_EmptyQueryReturnsEmpty(t *testing.T) {
	e := buildEngine(t)
	res, err := e.Search(context.Background(), Params{Query: "   "})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearch_UnknownCountryFilterReturnsEmpty(t *testing.T) {
	e := buildEngine(t)
	res, err := e.Search(context.Background(), Params{Query: "austin", CountryFilter: "ZZ"})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearch_CountryBiasBoostsMatchingCountry(t *testing.T) {
	e := buildEngine(t)
	res, err := e.Search(context.Background(), Params{Query: "austin heights", UserCountry: "US", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "US", res[0].CountryCode)
}

func TestSearch_LocationBiasAnnotatesDistance(t *testing.T) {
	e := buildEngine(t)
	lat, lng := 30.0, -97.0
	res, err := e.Search(context.Background(), Params{Query: "austin", UserLat: &lat, UserLng: &lng, Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Greater(t, res[0].DistanceKm, 0.0)
}

func TestSearch_CacheHitReturnsClone(t *testing.T) {
	e := buildEngine(t)
	ctx := context.Background()
	first, err := e.Search(ctx, Params{Query: "austin", Limit: 10})
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := e.Search(ctx, Params{Query: "austin", Limit: 10})
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second[0].Name)
}

func TestTokenSetRatio_HighForCloseTypo(t *testing.T) {
	score := tokenSetRatio("ostin", "austin")
	assert.Greater(t, score, 50.0)
}

func TestSearchStream_FirstEmissionThenFuzzy(t *testing.T) {
	e := buildEngine(t)
	ch := e.SearchStream(context.Background(), Params{Query: "ostn", Limit: 10, FuzzyThreshold: 40})
	var emissions [][]RankedSnapshot
	for snap := range ch {
		emissions = append(emissions, snap)
	}
	require.Len(t, emissions, 2)
	assert.Empty(t, emissions[0])
	require.NotEmpty(t, emissions[1])
	assert.Equal(t, int32(4), emissions[1][0].ID)
}
