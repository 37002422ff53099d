package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptekbits/GeoDash/internal/domain"
	"github.com/cryptekbits/GeoDash/internal/logging"
	"github.com/cryptekbits/GeoDash/internal/store"
)

type streamStore struct{ rows []domain.City }

func (s *streamStore) EnsureSchema(ctx context.Context) error                   { return nil }
func (s *streamStore) RowCount(ctx context.Context) (int, error)                { return len(s.rows), nil }
func (s *streamStore) BulkInsert(ctx context.Context, rows []domain.City) (int, error) {
	return 0, nil
}
func (s *streamStore) DeleteWhereCountryNotIn(ctx context.Context, allowed []string) (int, error) {
	return 0, nil
}
func (s *streamStore) GetByID(ctx context.Context, id int32) (*domain.City, error) { return nil, nil }
func (s *streamStore) TextSearch(ctx context.Context, p store.TextSearchParams) ([]domain.RankedCity, error) {
	return nil, nil
}
func (s *streamStore) RadiusSearch(ctx context.Context, lat, lng, radiusKm float64) ([]domain.DistancedCity, error) {
	return nil, nil
}
func (s *streamStore) DistinctCountries(ctx context.Context) ([]string, error) { return nil, nil }
func (s *streamStore) DistinctStates(ctx context.Context, country string) ([]string, error) {
	return nil, nil
}
func (s *streamStore) CitiesInState(ctx context.Context, state, country string) ([]domain.City, error) {
	return nil, nil
}
func (s *streamStore) StreamAll(ctx context.Context, fn func(domain.City) error) error {
	for _, r := range s.rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
func (s *streamStore) Backend() string { return "stream-fake" }
func (s *streamStore) Close() error    { return nil }

func sampleCities() []domain.City {
	return []domain.City{
		{ID: 1, Name: "Austin", AsciiName: "austin", Country: "United States", CountryCode: "US", Lat: 30.2672, Lng: -97.7431, Population: 964254},
		{ID: 2, Name: "Austria town", AsciiName: "austria town", Country: "United States", CountryCode: "US", Lat: 31.0, Lng: -98.0},
		{ID: 3, Name: "Paris", AsciiName: "paris", Country: "France", CountryCode: "FR", Lat: 48.8566, Lng: 2.3522, Population: 2148000},
	}
}

func TestBuild_ByIDAndExact(t *testing.T) {
	idx, err := Build(context.Background(), &streamStore{rows: sampleCities()}, Options{}, logging.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	c, ok := idx.Get(1)
	require.True(t, ok)
	assert.Equal(t, "Austin", c.Name)

	ids := idx.Exact("austin")
	assert.ElementsMatch(t, []int32{1}, ids)
}

func TestPrefix_MatchesAndIntersectsCountry(t *testing.T) {
	idx, err := Build(context.Background(), &streamStore{rows: sampleCities()}, Options{}, logging.Nop())
	require.NoError(t, err)

	ids := idx.Prefix("aust", "")
	assert.ElementsMatch(t, []int32{1, 2}, ids)

	ids = idx.Prefix("aust", "fr")
	assert.Empty(t, ids)

	ids = idx.Prefix("par", "fr")
	assert.ElementsMatch(t, []int32{3}, ids)
}

func TestIterNames_RestrictsByCountry(t *testing.T) {
	idx, err := Build(context.Background(), &streamStore{rows: sampleCities()}, Options{}, logging.Nop())
	require.NoError(t, err)

	all := idx.IterNames("")
	assert.Len(t, all, 3)

	us := idx.IterNames("us")
	assert.Len(t, us, 2)
}

func TestSpatial_DisabledByDefault(t *testing.T) {
	idx, err := Build(context.Background(), &streamStore{rows: sampleCities()}, Options{}, logging.Nop())
	require.NoError(t, err)
	_, ok := idx.SearchRect(-90, 90, -180, 180)
	assert.False(t, ok)
}

func TestSpatial_SearchRectFindsNearby(t *testing.T) {
	idx, err := Build(context.Background(), &streamStore{rows: sampleCities()}, Options{Spatial: true}, logging.Nop())
	require.NoError(t, err)
	require.True(t, idx.HasSpatial())

	ids, ok := idx.SearchRect(29, 32, -99, -96)
	require.True(t, ok)
	assert.ElementsMatch(t, []int32{1, 2}, ids)
}
