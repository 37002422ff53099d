package region

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptekbits/GeoDash/internal/domain"
	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/store"
)

type fakeStore struct {
	countries []string
	states    map[string][]string
	cities    map[string][]domain.City
	calls     int
}

func (s *fakeStore) EnsureSchema(ctx context.Context) error    { return nil }
func (s *fakeStore) RowCount(ctx context.Context) (int, error) { return 0, nil }
func (s *fakeStore) BulkInsert(ctx context.Context, rows []domain.City) (int, error) {
	return 0, nil
}
func (s *fakeStore) DeleteWhereCountryNotIn(ctx context.Context, allowed []string) (int, error) {
	return 0, nil
}
func (s *fakeStore) GetByID(ctx context.Context, id int32) (*domain.City, error) { return nil, nil }
func (s *fakeStore) TextSearch(ctx context.Context, p store.TextSearchParams) ([]domain.RankedCity, error) {
	return nil, nil
}
func (s *fakeStore) RadiusSearch(ctx context.Context, lat, lng, radiusKm float64) ([]domain.DistancedCity, error) {
	return nil, nil
}
func (s *fakeStore) DistinctCountries(ctx context.Context) ([]string, error) {
	s.calls++
	return s.countries, nil
}
func (s *fakeStore) DistinctStates(ctx context.Context, country string) ([]string, error) {
	s.calls++
	return s.states[country], nil
}
func (s *fakeStore) CitiesInState(ctx context.Context, state, country string) ([]domain.City, error) {
	s.calls++
	return s.cities[state+"|"+country], nil
}
func (s *fakeStore) StreamAll(ctx context.Context, fn func(domain.City) error) error { return nil }
func (s *fakeStore) Backend() string                                                  { return "embedded-file" }
func (s *fakeStore) Close() error                                                     { return nil }

func TestGetCountries_SortsAlphabeticallyAndCaches(t *testing.T) {
	fs := &fakeStore{countries: []string{"US", "FR", "DE"}}
	e := New(fs, config.Defaults())
	ctx := context.Background()

	out, err := e.GetCountries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"DE", "FR", "US"}, out)

	_, err = e.GetCountries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fs.calls)
}

func TestGetStates_CaseInsensitiveCountry(t *testing.T) {
	fs := &fakeStore{states: map[string][]string{"US": {"Texas", "Alabama"}}}
	e := New(fs, config.Defaults())

	out, err := e.GetStates(context.Background(), "us")
	require.NoError(t, err)
	assert.Equal(t, []string{"Alabama", "Texas"}, out)
}

func TestGetCitiesInState_SortsByPopulationWhenAvailable(t *testing.T) {
	fs := &fakeStore{cities: map[string][]domain.City{
		"TEXAS|US": {
			{Name: "Round Rock", Population: 100},
			{Name: "Austin", Population: 900000},
		},
	}}
	e := New(fs, config.Defaults())

	out, err := e.GetCitiesInState(context.Background(), "Texas", "US")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Austin", out[0].Name)
}

func TestGetCitiesInState_SortsByNameWithoutPopulation(t *testing.T) {
	fs := &fakeStore{cities: map[string][]domain.City{
		"TEXAS|US": {
			{Name: "Round Rock"},
			{Name: "Austin"},
		},
	}}
	e := New(fs, config.Defaults())

	out, err := e.GetCitiesInState(context.Background(), "Texas", "US")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Austin", out[0].Name)
}

func TestGetCitiesInState_CachedResultIsClone(t *testing.T) {
	fs := &fakeStore{cities: map[string][]domain.City{
		"TEXAS|US": {{Name: "Austin"}},
	}}
	e := New(fs, config.Defaults())
	ctx := context.Background()

	first, err := e.GetCitiesInState(ctx, "Texas", "US")
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := e.GetCitiesInState(ctx, "Texas", "US")
	require.NoError(t, err)
	assert.Equal(t, "Austin", second[0].Name)
}

func TestPurgeCache_ForcesRefetch(t *testing.T) {
	fs := &fakeStore{countries: []string{"US"}}
	e := New(fs, config.Defaults())
	ctx := context.Background()

	_, _ = e.GetCountries(ctx)
	e.PurgeCache()
	_, _ = e.GetCountries(ctx)
	assert.Equal(t, 2, fs.calls)
}
