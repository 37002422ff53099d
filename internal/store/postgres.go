package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/cryptekbits/GeoDash/internal/domain"
	"github.com/cryptekbits/GeoDash/internal/geoerr"
	"github.com/cryptekbits/GeoDash/internal/logging"
)

// networkStore is the Postgres-backed GeoStore of spec.md §4.A's
// "network-server" backend. jmoiron/sqlx + lib/pq, grounded on
// SoySergo-location_microservice's repository pattern (*sqlx.DB held
// alongside a structured logger, QueryRowxContext/QueryContext, and
// sql.ErrNoRows translated into a typed not-found error).
type networkStore struct {
	db   *sqlx.DB
	log  logging.Logger
	gate *pingGate
	pool PoolConfig
}

func openNetwork(ctx context.Context, uri string, pool PoolConfig, log logging.Logger) (GeoStore, error) {
	db, err := sqlx.Open("postgres", uri)
	if err != nil {
		return nil, geoerr.Configuration("failed to open postgres connection", err)
	}
	if pool.MaxOpen > 0 {
		db.SetMaxOpenConns(pool.MaxOpen)
	}
	if pool.MinIdle > 0 {
		db.SetMaxIdleConns(pool.MinIdle)
	}
	db.SetConnMaxIdleTime(staleAfter)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, geoerr.Connection("failed to reach postgres", err)
	}
	return &networkStore{db: db, log: log, gate: &pingGate{}, pool: pool}, nil
}

// withConn enforces the pool acquisition timeout and staleness re-ping of
// spec.md §4.A before every query; see pool.go's acquire/pingGate.
func (s *networkStore) withConn(ctx context.Context) (context.Context, context.CancelFunc, error) {
	return acquire(ctx, s.pool.Timeout, s.db, s.gate)
}

func (s *networkStore) Backend() string { return "network-server" }
func (s *networkStore) Close() error    { return s.db.Close() }

const networkSchema = `
CREATE EXTENSION IF NOT EXISTS postgis;
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS city_data (
	id            INTEGER PRIMARY KEY,
	name          TEXT NOT NULL,
	ascii_name    TEXT NOT NULL,
	country       TEXT NOT NULL,
	country_code  CHAR(2) NOT NULL,
	state         TEXT,
	state_code    TEXT,
	lat           DOUBLE PRECISION NOT NULL,
	lng           DOUBLE PRECISION NOT NULL,
	population    BIGINT,
	timezone      TEXT,
	geoname_id    BIGINT,
	source        TEXT,
	geom          geometry(Point, 4326),
	search_vector tsvector
);
CREATE INDEX IF NOT EXISTS idx_city_ascii_name ON city_data (ascii_name);
CREATE INDEX IF NOT EXISTS idx_city_country ON city_data (country_code);
CREATE INDEX IF NOT EXISTS idx_city_state ON city_data (state);
CREATE INDEX IF NOT EXISTS idx_city_geom ON city_data USING GIST (geom);
CREATE INDEX IF NOT EXISTS idx_city_search_vector ON city_data USING GIN (search_vector);

CREATE OR REPLACE FUNCTION geodash_city_before_write() RETURNS trigger AS $$
BEGIN
	NEW.geom := ST_SetSRID(ST_MakePoint(NEW.lng, NEW.lat), 4326);
	NEW.search_vector :=
		setweight(to_tsvector('simple', coalesce(NEW.name, '')), 'A') ||
		setweight(to_tsvector('simple', coalesce(NEW.ascii_name, '')), 'A') ||
		setweight(to_tsvector('simple', coalesce(NEW.country, '')), 'B') ||
		setweight(to_tsvector('simple', coalesce(NEW.state, '')), 'C');
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_city_before_write ON city_data;
CREATE TRIGGER trg_city_before_write BEFORE INSERT OR UPDATE ON city_data
	FOR EACH ROW EXECUTE FUNCTION geodash_city_before_write();
`

func (s *networkStore) EnsureSchema(ctx context.Context) error {
	qctx, cancel, err := s.withConn(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	if _, err := s.db.ExecContext(qctx, networkSchema); err != nil {
		return geoerr.Query("ensure_schema failed", err)
	}
	return nil
}

func (s *networkStore) RowCount(ctx context.Context) (int, error) {
	qctx, cancel, err := s.withConn(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	var n int
	if err := s.db.GetContext(qctx, &n, `SELECT COUNT(*) FROM city_data`); err != nil {
		return 0, geoerr.Query("row_count failed", err)
	}
	return n, nil
}

const networkUpsert = `
INSERT INTO city_data (id, name, ascii_name, country, country_code, state, state_code, lat, lng, population, timezone, geoname_id, source)
VALUES (:id, :name, :ascii_name, :country, :country_code, :state, :state_code, :lat, :lng, :population, :timezone, :geoname_id, :source)
ON CONFLICT (id) DO UPDATE SET
	name = excluded.name, ascii_name = excluded.ascii_name, country = excluded.country,
	country_code = excluded.country_code, state = excluded.state, state_code = excluded.state_code,
	lat = excluded.lat, lng = excluded.lng, population = excluded.population,
	timezone = excluded.timezone, geoname_id = excluded.geoname_id, source = excluded.source
`

func (s *networkStore) BulkInsert(ctx context.Context, rows []domain.City) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	qctx, cancel, err := s.withConn(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	tx, err := s.db.BeginTxx(qctx, nil)
	if err != nil {
		return 0, geoerr.Transaction("bulk_insert begin failed", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range rows {
		if _, err := tx.NamedExecContext(qctx, networkUpsert, cityRow(c)); err != nil {
			return 0, geoerr.Query("bulk_insert failed", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, geoerr.Transaction("bulk_insert commit failed", err)
	}
	return len(rows), nil
}

func (s *networkStore) DeleteWhereCountryNotIn(ctx context.Context, allowed []string) (int, error) {
	if len(allowed) == 0 {
		return 0, nil
	}
	qctx, cancel, err := s.withConn(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	query, args, err := sqlx.In(`DELETE FROM city_data WHERE country_code NOT IN (?)`, allowed)
	if err != nil {
		return 0, geoerr.Query("delete_where_country_not_in build failed", err)
	}
	query = s.db.Rebind(query)
	res, err := s.db.ExecContext(qctx, query, args...)
	if err != nil {
		return 0, geoerr.Query("delete_where_country_not_in failed", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *networkStore) GetByID(ctx context.Context, id int32) (*domain.City, error) {
	qctx, cancel, err := s.withConn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var row cityRowScan
	dbErr := s.db.GetContext(qctx, &row,
		`SELECT id, name, ascii_name, country, country_code, state, state_code, lat, lng, population, timezone, geoname_id, source
		 FROM city_data WHERE id = $1`, id)
	if isNoRows(dbErr) {
		return nil, geoerr.DataNotFound(fmt.Sprintf("city %d", id))
	}
	if dbErr != nil {
		return nil, geoerr.Query("get_by_id failed", dbErr)
	}
	c := row.City()
	return &c, nil
}

// TextSearch uses the tsvector/GIN index, blended with the coarse L2
// proximity term per spec.md §4.A's 0.7/0.3 lexical/proximity weighting.
func (s *networkStore) TextSearch(ctx context.Context, p TextSearchParams) ([]domain.RankedCity, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, nil
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}

	qctx, cancel, err := s.withConn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	sqlStr := `
	SELECT id, name, ascii_name, country, country_code, state, state_code, lat, lng, population, timezone, geoname_id, source,
	       ts_rank(search_vector, plainto_tsquery('simple', $1)) AS lex_rank
	FROM city_data
	WHERE search_vector @@ plainto_tsquery('simple', $1)`
	args := []interface{}{p.Query}
	idx := 2
	if p.Country != "" {
		sqlStr += fmt.Sprintf(" AND country_code = $%d", idx)
		args = append(args, strings.ToUpper(p.Country))
		idx++
	}
	sqlStr += fmt.Sprintf(" ORDER BY lex_rank DESC LIMIT $%d", idx)
	args = append(args, limit*4)

	rows, err := s.db.QueryxContext(qctx, sqlStr, args...)
	if err != nil {
		return nil, geoerr.Query("text_search failed", err)
	}
	defer rows.Close()

	var out []domain.RankedCity
	for rows.Next() {
		var row cityRowScan
		var lexRank float64
		if err := rows.Scan(&row.ID, &row.Name, &row.AsciiName, &row.Country, &row.CountryCode,
			&row.State, &row.StateCode, &row.Lat, &row.Lng, &row.Population, &row.Timezone,
			&row.GeonameID, &row.Source, &lexRank); err != nil {
			return nil, geoerr.Query("text_search scan failed", err)
		}
		rank := lexRank
		if p.UserLat != nil && p.UserLng != nil {
			dLat := row.Lat - *p.UserLat
			dLng := row.Lng - *p.UserLng
			d2 := dLat*dLat + dLng*dLng
			rank = 0.7*lexRank + 0.3/(1+d2)
		}
		out = append(out, domain.RankedCity{City: row.City(), Rank: rank})
	}
	if err := rows.Err(); err != nil {
		return nil, geoerr.Query("text_search row iteration failed", err)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RadiusSearch uses PostGIS ST_DWithin (meters), returning the distance
// Postgres already computed — GeoEngine still re-derives a Haversine figure
// for consistency across backends, but the network backend hands it a head
// start and a much smaller candidate set than the embedded backend's
// bounding-box pre-filter can manage.
func (s *networkStore) RadiusSearch(ctx context.Context, lat, lng, radiusKm float64) ([]domain.DistancedCity, error) {
	qctx, cancel, err := s.withConn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	const q = `
	SELECT id, name, ascii_name, country, country_code, state, state_code, lat, lng, population, timezone, geoname_id, source,
	       ST_DistanceSphere(geom, ST_SetSRID(ST_MakePoint($2, $1), 4326)) AS dist_m
	FROM city_data
	WHERE ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography, $3)
	ORDER BY dist_m ASC`
	rows, err := s.db.QueryxContext(qctx, q, lat, lng, radiusKm*1000)
	if err != nil {
		return nil, geoerr.Query("radius_search failed", err)
	}
	defer rows.Close()

	var out []domain.DistancedCity
	for rows.Next() {
		var row cityRowScan
		var distM float64
		if err := rows.Scan(&row.ID, &row.Name, &row.AsciiName, &row.Country, &row.CountryCode,
			&row.State, &row.StateCode, &row.Lat, &row.Lng, &row.Population, &row.Timezone,
			&row.GeonameID, &row.Source, &distM); err != nil {
			return nil, geoerr.Query("radius_search scan failed", err)
		}
		out = append(out, domain.DistancedCity{City: row.City(), DistanceKm: distM / 1000.0})
	}
	return out, rows.Err()
}

func (s *networkStore) DistinctCountries(ctx context.Context) ([]string, error) {
	qctx, cancel, err := s.withConn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	var out []string
	if err := s.db.SelectContext(qctx, &out, `SELECT DISTINCT country FROM city_data ORDER BY country`); err != nil {
		return nil, geoerr.Query("distinct_countries failed", err)
	}
	return out, nil
}

func (s *networkStore) DistinctStates(ctx context.Context, country string) ([]string, error) {
	qctx, cancel, err := s.withConn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	var out []string
	dbErr := s.db.SelectContext(qctx, &out,
		`SELECT DISTINCT state FROM city_data WHERE country_code = $1 AND state IS NOT NULL ORDER BY state`,
		strings.ToUpper(country))
	if dbErr != nil {
		return nil, geoerr.Query("distinct_states failed", dbErr)
	}
	return out, nil
}

func (s *networkStore) CitiesInState(ctx context.Context, state, country string) ([]domain.City, error) {
	qctx, cancel, err := s.withConn(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	var rows []cityRowScan
	dbErr := s.db.SelectContext(qctx, &rows,
		`SELECT id, name, ascii_name, country, country_code, state, state_code, lat, lng, population, timezone, geoname_id, source
		 FROM city_data WHERE state ILIKE $1 AND country_code = $2 ORDER BY population DESC NULLS LAST, name`,
		state, strings.ToUpper(country))
	if dbErr != nil {
		return nil, geoerr.Query("cities_in_state failed", dbErr)
	}
	out := make([]domain.City, len(rows))
	for i, r := range rows {
		out[i] = r.City()
	}
	return out, nil
}

func (s *networkStore) StreamAll(ctx context.Context, fn func(domain.City) error) error {
	qctx, cancel, err := s.withConn(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	rows, err := s.db.QueryxContext(qctx,
		`SELECT id, name, ascii_name, country, country_code, state, state_code, lat, lng, population, timezone, geoname_id, source FROM city_data`)
	if err != nil {
		return geoerr.Query("stream_all failed", err)
	}
	defer rows.Close()
	for rows.Next() {
		var row cityRowScan
		if err := rows.Scan(&row.ID, &row.Name, &row.AsciiName, &row.Country, &row.CountryCode,
			&row.State, &row.StateCode, &row.Lat, &row.Lng, &row.Population, &row.Timezone,
			&row.GeonameID, &row.Source); err != nil {
			return geoerr.Query("stream_all scan failed", err)
		}
		if err := fn(row.City()); err != nil {
			return err
		}
	}
	return rows.Err()
}
