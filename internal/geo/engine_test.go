package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptekbits/GeoDash/internal/domain"
	"github.com/cryptekbits/GeoDash/internal/index"
	"github.com/cryptekbits/GeoDash/internal/logging"
	"github.com/cryptekbits/GeoDash/internal/store"
)

type fakeStore struct{ rows []domain.City }

func (s *fakeStore) EnsureSchema(ctx context.Context) error    { return nil }
func (s *fakeStore) RowCount(ctx context.Context) (int, error) { return len(s.rows), nil }
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
// RadiusSearch stands in for a backend's spatial auxiliary: it returns
// every row as a candidate, unfiltered and with no distance computed,
// matching the embedded sqlite backend's "bounding-box candidates, let
// the caller Haversine-refine" contract.
func (s *fakeStore) RadiusSearch(ctx context.Context, lat, lng, radiusKm float64) ([]domain.DistancedCity, error) {
	out := make([]domain.DistancedCity, len(s.rows))
	for i, c := range s.rows {
		out[i] = domain.DistancedCity{City: c}
	}
	return out, nil
}
func (s *fakeStore) DistinctCountries(ctx context.Context) ([]string, error) { return nil, nil }
func (s *fakeStore) DistinctStates(ctx context.Context, country string) ([]string, error) {
	return nil, nil
}
func (s *fakeStore) CitiesInState(ctx context.Context, state, country string) ([]domain.City, error) {
	return nil, nil
}
func (s *fakeStore) StreamAll(ctx context.Context, fn func(domain.City) error) error {
	for _, r := range s.rows {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
func (s *fakeStore) Backend() string { return "embedded-file" }
func (s *fakeStore) Close() error    { return nil }

func sampleCities() []domain.City {
	return []domain.City{
		{ID: 1, Name: "Austin", AsciiName: "austin", CountryCode: "US", Lat: 30.2672, Lng: -97.7431},
		{ID: 2, Name: "Round Rock", AsciiName: "round rock", CountryCode: "US", Lat: 30.5083, Lng: -97.6789},
		{ID: 3, Name: "Paris", AsciiName: "paris", CountryCode: "FR", Lat: 48.8566, Lng: 2.3522},
		{ID: 4, Name: "North Pole", AsciiName: "north pole", CountryCode: "US", Lat: 89.9, Lng: 0.0},
	}
}

func buildEngine(t *testing.T, spatial bool) *Engine {
	t.Helper()
	st := &fakeStore{rows: sampleCities()}
	idx, err := index.Build(context.Background(), st, index.Options{Spatial: spatial}, logging.Nop())
	require.NoError(t, err)
	return New(idx, st)
}

func TestFindByCoordinates_FindsNearbyWithoutSpatial(t *testing.T) {
	e := buildEngine(t, false)
	out, err := e.FindByCoordinates(context.Background(), 30.2672, -97.7431, 50)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int32(1), out[0].ID)
	assert.Equal(t, int32(2), out[1].ID)
	assert.Less(t, out[0].DistanceKm, out[1].DistanceKm)
}

func TestFindByCoordinates_FallsBackToScanAllWithoutStore(t *testing.T) {
	idx, err := index.Build(context.Background(), &fakeStore{rows: sampleCities()}, index.Options{Spatial: false}, logging.Nop())
	require.NoError(t, err)
	e := New(idx, nil)
	out, err := e.FindByCoordinates(context.Background(), 30.2672, -97.7431, 50)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestFindByCoordinates_FindsNearbyWithSpatial(t *testing.T) {
	e := buildEngine(t, true)
	out, err := e.FindByCoordinates(context.Background(), 30.2672, -97.7431, 50)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int32(1), out[0].ID)
}

func TestFindByCoordinates_ExcludesParis(t *testing.T) {
	e := buildEngine(t, false)
	out, err := e.FindByCoordinates(context.Background(), 30.2672, -97.7431, 50)
	require.NoError(t, err)
	for _, c := range out {
		assert.NotEqual(t, int32(3), c.ID)
	}
}

func TestFindByCoordinates_RejectsInvalidLat(t *testing.T) {
	e := buildEngine(t, false)
	_, err := e.FindByCoordinates(context.Background(), 91, 0, 10)
	assert.Error(t, err)
}

func TestFindByCoordinates_RejectsInvalidLng(t *testing.T) {
	e := buildEngine(t, false)
	_, err := e.FindByCoordinates(context.Background(), 0, 181, 10)
	assert.Error(t, err)
}

func TestFindByCoordinates_RejectsNonPositiveRadius(t *testing.T) {
	e := buildEngine(t, false)
	_, err := e.FindByCoordinates(context.Background(), 0, 0, 0)
	assert.Error(t, err)
}

func TestFindByCoordinates_PoleSafeClamping(t *testing.T) {
	e := buildEngine(t, false)
	// Near the pole, cos(lat) is tiny; without clamping lngRadius would
	// blow up. This should complete without panicking or erroring and
	// should find the North Pole city itself.
	out, err := e.FindByCoordinates(context.Background(), 89.9, 0.0, 5)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, int32(4), out[0].ID)
}
