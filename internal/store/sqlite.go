package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/cryptekbits/GeoDash/internal/domain"
	"github.com/cryptekbits/GeoDash/internal/geoerr"
	"github.com/cryptekbits/GeoDash/internal/logging"
	"github.com/cryptekbits/GeoDash/internal/store/geohash"
)

// embeddedStore is the sqlite-backed GeoStore of spec.md §4.A's
// "embedded-file" backend. modernc.org/sqlite is a pure-Go database/sql
// driver (no cgo), grounded on theRebelliousNerd-codenerd's go.mod.
type embeddedStore struct {
	db  *sqlx.DB
	log logging.Logger

	mu      sync.RWMutex
	geoIdx  *geohash.Index // in-process bounding-box pre-filter aux
}

func openEmbedded(ctx context.Context, path string, log logging.Logger) (GeoStore, error) {
	if path == "" {
		return nil, geoerr.Configuration("sqlite path must not be empty", nil)
	}
	// openEmbedded does not create the parent directory; it must already
	// exist when Open is called.
	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, geoerr.Configuration("failed to open sqlite database", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single-writer file, serialize.
	if err := db.PingContext(ctx); err != nil {
		return nil, geoerr.Connection("failed to open sqlite database", err)
	}
	return &embeddedStore{db: db, log: log, geoIdx: geohash.New()}, nil
}

func (s *embeddedStore) Backend() string { return "embedded-file" }

func (s *embeddedStore) Close() error { return s.db.Close() }

const embeddedSchema = `
CREATE TABLE IF NOT EXISTS city_data (
	id            INTEGER PRIMARY KEY,
	name          TEXT NOT NULL,
	ascii_name    TEXT NOT NULL,
	country       TEXT NOT NULL,
	country_code  TEXT NOT NULL,
	state         TEXT,
	state_code    TEXT,
	lat           REAL NOT NULL,
	lng           REAL NOT NULL,
	population    INTEGER,
	timezone      TEXT,
	geoname_id    INTEGER,
	source        TEXT
);
CREATE INDEX IF NOT EXISTS idx_city_ascii_name ON city_data(ascii_name);
CREATE INDEX IF NOT EXISTS idx_city_country ON city_data(country_code);
CREATE INDEX IF NOT EXISTS idx_city_state ON city_data(state);
CREATE INDEX IF NOT EXISTS idx_city_latlng ON city_data(lat, lng);

CREATE VIRTUAL TABLE IF NOT EXISTS city_fts USING fts5(
	name, ascii_name, country, state, content='city_data', content_rowid='id'
);
CREATE TRIGGER IF NOT EXISTS trg_city_fts_insert AFTER INSERT ON city_data BEGIN
	INSERT INTO city_fts(rowid, name, ascii_name, country, state)
	VALUES (new.id, new.name, new.ascii_name, new.country, new.state);
END;
CREATE TRIGGER IF NOT EXISTS trg_city_fts_update AFTER UPDATE ON city_data BEGIN
	INSERT INTO city_fts(city_fts, rowid, name, ascii_name, country, state)
	VALUES('delete', old.id, old.name, old.ascii_name, old.country, old.state);
	INSERT INTO city_fts(rowid, name, ascii_name, country, state)
	VALUES (new.id, new.name, new.ascii_name, new.country, new.state);
END;
CREATE TRIGGER IF NOT EXISTS trg_city_fts_delete AFTER DELETE ON city_data BEGIN
	INSERT INTO city_fts(city_fts, rowid, name, ascii_name, country, state)
	VALUES('delete', old.id, old.name, old.ascii_name, old.country, old.state);
END;
`

// EnsureSchema creates missing tables/indices/triggers. Idempotent: every
// statement is IF NOT EXISTS, matching spec.md §4.A.
func (s *embeddedStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, embeddedSchema); err != nil {
		return geoerr.Query("ensure_schema failed", err)
	}
	return s.rebuildGeohashIndex(ctx)
}

// rebuildGeohashIndex repopulates the in-process bounding-box pre-filter
// from whatever rows already exist (e.g. after a restart against a
// pre-populated database file).
func (s *embeddedStore) rebuildGeohashIndex(ctx context.Context) error {
	idx := geohash.New()
	rows, err := s.db.QueryxContext(ctx, `SELECT id, lat, lng FROM city_data`)
	if err != nil {
		return geoerr.Query("rebuild geohash index failed", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int32
		var lat, lng float64
		if err := rows.Scan(&id, &lat, &lng); err != nil {
			return geoerr.Query("rebuild geohash index scan failed", err)
		}
		idx.Insert(id, lat, lng)
	}
	s.mu.Lock()
	s.geoIdx = idx
	s.mu.Unlock()
	return rows.Err()
}

func (s *embeddedStore) RowCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM city_data`); err != nil {
		return 0, geoerr.Query("row_count failed", err)
	}
	return n, nil
}

const insertStmt = `
INSERT INTO city_data (id, name, ascii_name, country, country_code, state, state_code, lat, lng, population, timezone, geoname_id, source)
VALUES (:id, :name, :ascii_name, :country, :country_code, :state, :state_code, :lat, :lng, :population, :timezone, :geoname_id, :source)
ON CONFLICT(id) DO UPDATE SET
	name=excluded.name, ascii_name=excluded.ascii_name, country=excluded.country,
	country_code=excluded.country_code, state=excluded.state, state_code=excluded.state_code,
	lat=excluded.lat, lng=excluded.lng, population=excluded.population,
	timezone=excluded.timezone, geoname_id=excluded.geoname_id, source=excluded.source
`

// BulkInsert is one transaction per call, upserting on id conflict, per
// spec.md §4.A/§4.B.
func (s *embeddedStore) BulkInsert(ctx context.Context, rows []domain.City) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, geoerr.Transaction("bulk_insert begin failed", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range rows {
		if _, err := tx.NamedExecContext(ctx, insertStmt, cityRow(c)); err != nil {
			return 0, geoerr.Query("bulk_insert failed", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, geoerr.Transaction("bulk_insert commit failed", err)
	}

	s.mu.Lock()
	for _, c := range rows {
		s.geoIdx.Insert(c.ID, c.Lat, c.Lng)
	}
	s.mu.Unlock()
	return len(rows), nil
}

func (s *embeddedStore) DeleteWhereCountryNotIn(ctx context.Context, allowed []string) (int, error) {
	if len(allowed) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM city_data WHERE country_code NOT IN (?)`, allowed)
	if err != nil {
		return 0, geoerr.Query("delete_where_country_not_in build failed", err)
	}
	query = s.db.Rebind(query)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, geoerr.Query("delete_where_country_not_in failed", err)
	}
	n, _ := res.RowsAffected()
	return int(n), s.rebuildGeohashIndex(ctx)
}

func (s *embeddedStore) GetByID(ctx context.Context, id int32) (*domain.City, error) {
	var row cityRowScan
	err := s.db.GetContext(ctx, &row, `SELECT * FROM city_data WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, geoerr.DataNotFound(fmt.Sprintf("city %d", id))
	}
	if err != nil {
		return nil, geoerr.Query("get_by_id failed", err)
	}
	c := row.City()
	return &c, nil
}

// TextSearch uses the FTS5 virtual table with a bm25-ordered match,
// blended with the same 0.7/0.3 lexical/proximity weighting spec.md §4.A
// specifies when coordinates are supplied.
func (s *embeddedStore) TextSearch(ctx context.Context, p TextSearchParams) ([]domain.RankedCity, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, nil
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 10
	}
	ftsQuery := strings.ReplaceAll(p.Query, `"`, ``) + "*"

	sqlStr := `
	SELECT c.*, bm25(city_fts) AS lex_rank
	FROM city_fts f
	JOIN city_data c ON c.id = f.rowid
	WHERE city_fts MATCH ?`
	args := []interface{}{ftsQuery}
	if p.Country != "" {
		sqlStr += ` AND c.country_code = ?`
		args = append(args, strings.ToUpper(p.Country))
	}
	sqlStr += ` ORDER BY lex_rank LIMIT ?`
	args = append(args, limit*4) // over-fetch; re-ranked below when geo-biased

	rows, err := s.db.QueryxContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, geoerr.Query("text_search failed", err)
	}
	defer rows.Close()

	var out []domain.RankedCity
	for rows.Next() {
		var row cityRowScan
		var lexRank float64
		dest := row.scanDestWithExtra(&lexRank)
		if err := rows.Scan(dest...); err != nil {
			return nil, geoerr.Query("text_search scan failed", err)
		}
		// bm25() returns lower-is-better; invert to a 0..1-ish rank.
		lexicalRank := 1.0 / (1.0 + math.Abs(lexRank))
		rank := lexicalRank
		if p.UserLat != nil && p.UserLng != nil {
			dLat := row.Lat - *p.UserLat
			dLng := row.Lng - *p.UserLng
			d2 := dLat*dLat + dLng*dLng
			rank = 0.7*lexicalRank + 0.3/(1+d2)
		}
		out = append(out, domain.RankedCity{City: row.City(), Rank: rank})
	}
	if err := rows.Err(); err != nil {
		return nil, geoerr.Query("text_search row iteration failed", err)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank > out[j].Rank })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RadiusSearch returns the bounding-box candidates from the geohash
// auxiliary; GeoEngine performs Haversine refinement, per spec.md §4.A's
// "embedded backend ... refinement happens in GeoEngine."
func (s *embeddedStore) RadiusSearch(ctx context.Context, lat, lng, radiusKm float64) ([]domain.DistancedCity, error) {
	s.mu.RLock()
	ids := s.geoIdx.CandidatesNear(lat, lng)
	s.mu.RUnlock()
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM city_data WHERE id IN (?)`, ids)
	if err != nil {
		return nil, geoerr.Query("radius_search build failed", err)
	}
	query = s.db.Rebind(query)
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, geoerr.Query("radius_search failed", err)
	}
	defer rows.Close()

	var out []domain.DistancedCity
	for rows.Next() {
		var row cityRowScan
		if err := rows.StructScan(&row); err != nil {
			return nil, geoerr.Query("radius_search scan failed", err)
		}
		out = append(out, domain.DistancedCity{City: row.City()})
	}
	return out, rows.Err()
}

func (s *embeddedStore) DistinctCountries(ctx context.Context) ([]string, error) {
	var out []string
	if err := s.db.SelectContext(ctx, &out, `SELECT DISTINCT country FROM city_data ORDER BY country COLLATE NOCASE`); err != nil {
		return nil, geoerr.Query("distinct_countries failed", err)
	}
	return out, nil
}

func (s *embeddedStore) DistinctStates(ctx context.Context, country string) ([]string, error) {
	var out []string
	err := s.db.SelectContext(ctx, &out,
		`SELECT DISTINCT state FROM city_data WHERE country_code = ? AND state IS NOT NULL ORDER BY state COLLATE NOCASE`,
		strings.ToUpper(country))
	if err != nil {
		return nil, geoerr.Query("distinct_states failed", err)
	}
	return out, nil
}

func (s *embeddedStore) CitiesInState(ctx context.Context, state, country string) ([]domain.City, error) {
	var rows []cityRowScan
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM city_data WHERE state = ? COLLATE NOCASE AND country_code = ? ORDER BY population DESC, name COLLATE NOCASE`,
		state, strings.ToUpper(country))
	if err != nil {
		return nil, geoerr.Query("cities_in_state failed", err)
	}
	out := make([]domain.City, len(rows))
	for i, r := range rows {
		out[i] = r.City()
	}
	return out, nil
}

func (s *embeddedStore) StreamAll(ctx context.Context, fn func(domain.City) error) error {
	rows, err := s.db.QueryxContext(ctx, `SELECT * FROM city_data`)
	if err != nil {
		return geoerr.Query("stream_all failed", err)
	}
	defer rows.Close()
	for rows.Next() {
		var row cityRowScan
		if err := rows.StructScan(&row); err != nil {
			return geoerr.Query("stream_all scan failed", err)
		}
		if err := fn(row.City()); err != nil {
			return err
		}
	}
	return rows.Err()
}

// cityRow/cityRowScan bridge domain.City <-> the flat SQL row shape.

func cityRow(c domain.City) map[string]interface{} {
	return map[string]interface{}{
		"id": c.ID, "name": c.Name, "ascii_name": c.AsciiName,
		"country": c.Country, "country_code": c.CountryCode,
		"state": nullableString(c.State), "state_code": nullableString(c.StateCode),
		"lat": c.Lat, "lng": c.Lng, "population": c.Population,
		"timezone": nullableString(c.Timezone), "geoname_id": c.GeonameID, "source": c.Source,
	}
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

type cityRowScan struct {
	ID          int32          `db:"id"`
	Name        string         `db:"name"`
	AsciiName   string         `db:"ascii_name"`
	Country     string         `db:"country"`
	CountryCode string         `db:"country_code"`
	State       sql.NullString `db:"state"`
	StateCode   sql.NullString `db:"state_code"`
	Lat         float64        `db:"lat"`
	Lng         float64        `db:"lng"`
	Population  sql.NullInt64  `db:"population"`
	Timezone    sql.NullString `db:"timezone"`
	GeonameID   sql.NullInt64  `db:"geoname_id"`
	Source      sql.NullString `db:"source"`
}

func (r cityRowScan) City() domain.City {
	c := domain.City{
		ID: r.ID, Name: r.Name, AsciiName: r.AsciiName,
		Country: r.Country, CountryCode: r.CountryCode,
		State: r.State.String, StateCode: r.StateCode.String,
		Lat: r.Lat, Lng: r.Lng, Timezone: r.Timezone.String,
		Source: r.Source.String,
	}
	if r.Population.Valid {
		c.Population = r.Population.Int64
	}
	if r.GeonameID.Valid {
		c.GeonameID = &r.GeonameID.Int64
	}
	return c
}

func (r *cityRowScan) scanDestWithExtra(extra *float64) []interface{} {
	return []interface{}{
		&r.ID, &r.Name, &r.AsciiName, &r.Country, &r.CountryCode,
		&r.State, &r.StateCode, &r.Lat, &r.Lng, &r.Population,
		&r.Timezone, &r.GeonameID, &r.Source, extra,
	}
}
