// Package corpus implements component B of spec.md, CorpusLoader: parsing
// a canonicalised city CSV and bulk-inserting it into a GeoStore.
package corpus

import (
	"context"
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/cryptekbits/GeoDash/internal/domain"
	"github.com/cryptekbits/GeoDash/internal/config"
	"github.com/cryptekbits/GeoDash/internal/geoerr"
	"github.com/cryptekbits/GeoDash/internal/logging"
	"github.com/cryptekbits/GeoDash/internal/store"
)

// aliases maps recognised source-file column headers (lowercased) to the
// canonical field names of spec.md §3.
var aliases = map[string]string{
	"name": "name", "city": "name", "city_name": "name", "asciiname": "name",

	"ascii_name": "ascii_name",

	"country": "country", "country_name": "country",
	"country_code": "country_code", "iso2": "country_code", "countrycode": "country_code", "cc": "country_code",

	"state": "state", "region": "state", "admin1": "state", "admin1name": "state",
	"state_code": "state_code", "admin1_code": "state_code",

	"lat": "lat", "latitude": "lat",
	"lng": "lng", "lon": "lng", "long": "lng", "longitude": "lng",

	"population": "population", "pop": "population",
	"timezone": "timezone", "tz": "timezone",

	"geonameid": "geoname_id", "geoname_id": "geoname_id",
	"id": "id", "source": "source",
}

// ImportReport summarises one Load call, per spec.md §4.B's "Progress is
// logged" / "Parse and validation failures are counted and reported".
type ImportReport struct {
	Parsed                 int
	Inserted               int
	Rejected               int
	RejectReasons          map[string]int
	Batches                int
	BatchFailures          int
	DeletedByCountryFilter int
	Elapsed                time.Duration
}

// ResolveSource answers spec.md §4.B step 1 ("Locate"): if the caller did
// not supply a path or stream, consult config for a data directory. The
// download-URL side of that step is CSV download transport, an external
// collaborator concern out of scope per spec.md §1 — this function only
// resolves a local path, it never fetches.
func ResolveSource(cfg config.View) string {
	if p := cfg.GetString("data.source_path"); p != "" {
		return p
	}
	dir := cfg.GetString("data.dir")
	if dir == "" {
		dir = "./geodash-data"
	}
	return filepath.Join(dir, "cities.csv")
}

// Load runs the full pipeline of spec.md §4.B over src: parse, canonicalise,
// validate/filter, chunked transactional insert, optional country filter.
// src must support Seek so a UTF-8 decode failure can restart the stream
// under the ISO-8859-1 fallback without the caller re-opening it.
func Load(ctx context.Context, src io.ReadSeeker, st store.GeoStore, cfg config.View, log logging.Logger) (*ImportReport, error) {
	start := time.Now()
	rep := &ImportReport{RejectReasons: map[string]int{}}

	r, err := decodedReader(src)
	if err != nil {
		return nil, geoerr.DataImport("failed to open corpus stream", err)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, geoerr.DataImport("failed to read corpus header", err)
	}
	cols := resolveColumns(header)
	if _, ok := cols["name"]; !ok {
		return nil, geoerr.DataImport("corpus header has no recognised name column", nil)
	}

	batchSize := cfg.GetInt("data.batch_size")
	if batchSize <= 0 {
		batchSize = 5000
	}

	var seq int32
	batch := make([]domain.City, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, err := st.BulkInsert(ctx, batch)
		if err != nil {
			// spec.md §4.B: "Database errors during a batch abort that
			// batch's transaction but not the whole import."
			rep.BatchFailures++
			log.Warn("corpus batch insert failed, skipping batch",
				logging.Int("batch_size", len(batch)), logging.Err(err))
		} else {
			rep.Inserted += inserted
			rep.Batches++
			log.Info("corpus batch inserted",
				logging.Int("batch", rep.Batches), logging.Int("rows", inserted))
		}
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return rep, ctx.Err()
		default:
		}

		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed row is a parse failure, not a fatal error — only
			// a total failure to read the input (the header read above) is
			// fatal, per spec.md §4.B's failure semantics.
			rep.Rejected++
			rep.RejectReasons["malformed_row"]++
			continue
		}

		seq++
		city, reason, ok := parseRow(record, cols, seq)
		if !ok {
			rep.Rejected++
			rep.RejectReasons[reason]++
			continue
		}
		if err := city.Validate(); err != nil {
			rep.Rejected++
			rep.RejectReasons["invalid_"+fieldOf(err)]++
			continue
		}

		rep.Parsed++
		batch = append(batch, city)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return rep, err
			}
		}
	}
	if err := flush(); err != nil {
		return rep, err
	}

	if allowed := cfg.GetStringSlice("data.allowed_countries"); len(allowed) > 0 {
		deleted, err := st.DeleteWhereCountryNotIn(ctx, allowed)
		if err != nil {
			return rep, geoerr.DataImport("country filter post-pass failed", err)
		}
		rep.DeletedByCountryFilter = deleted
	}

	rep.Elapsed = time.Since(start)
	log.Info("corpus import complete",
		logging.Int("parsed", rep.Parsed), logging.Int("inserted", rep.Inserted),
		logging.Int("rejected", rep.Rejected), logging.Duration("elapsed", rep.Elapsed))
	return rep, nil
}

// decodedReader sniffs a sample of src for valid UTF-8 and, if it is not,
// rewinds and wraps src in an ISO-8859-1 decoder, per spec.md §4.B step 2.
func decodedReader(src io.ReadSeeker) (io.Reader, error) {
	sample := make([]byte, 64*1024)
	n, err := src.Read(sample)
	if err != nil && err != io.EOF {
		return nil, err
	}
	sample = sample[:n]
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if utf8.Valid(sample) {
		return src, nil
	}
	return transform.NewReader(src, charmap.ISO8859_1.NewDecoder()), nil
}

func resolveColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		canonical, ok := aliases[strings.ToLower(strings.TrimSpace(h))]
		if !ok {
			continue
		}
		// First occurrence wins; source files occasionally repeat a header
		// (e.g. both "city" and "city_name" mapping to "name").
		if _, exists := cols[canonical]; !exists {
			cols[canonical] = i
		}
	}
	return cols
}

func parseRow(record []string, cols map[string]int, seq int32) (domain.City, string, bool) {
	get := func(key string) string {
		i, ok := cols[key]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	name := get("name")
	countryCode := strings.ToUpper(get("country_code"))
	latStr, lngStr := get("lat"), get("lng")
	if name == "" {
		return domain.City{}, "missing_name", false
	}
	// A row without country_code is rejected even if a country name is
	// present — no synthesis, per spec.md §4.B step 3.
	if countryCode == "" {
		return domain.City{}, "missing_country_code", false
	}
	if latStr == "" || lngStr == "" {
		return domain.City{}, "missing_coordinates", false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return domain.City{}, "unparseable_lat", false
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return domain.City{}, "unparseable_lng", false
	}

	asciiName := get("ascii_name")
	if asciiName == "" {
		asciiName = domain.AsciiFold(name)
	}

	var geonameID *int64
	if gn := get("geoname_id"); gn != "" {
		if v, err := strconv.ParseInt(gn, 10, 64); err == nil {
			geonameID = &v
		}
	}

	id := seq
	if raw := get("id"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 32); err == nil && v != 0 {
			id = int32(v)
		}
	} else if geonameID != nil {
		id = int32(*geonameID)
	}

	var population int64
	if p := get("population"); p != "" {
		if v, err := strconv.ParseInt(p, 10, 64); err == nil {
			population = v
		}
	}

	c := domain.City{
		ID:          id,
		Name:        name,
		AsciiName:   asciiName,
		Country:     get("country"),
		CountryCode: countryCode,
		State:       get("state"),
		StateCode:   get("state_code"),
		Lat:         lat,
		Lng:         lng,
		Population:  population,
		Timezone:    get("timezone"),
		GeonameID:   geonameID,
		Source:      get("source"),
	}
	return c, "", true
}

// fieldOf narrows a geoerr.Error down to the field name it complained
// about, for RejectReasons bucketing. Falls back to "unknown" for anything
// that isn't the InvalidParameter shape City.Validate returns.
func fieldOf(err error) string {
	ge, ok := err.(*geoerr.Error)
	if !ok || ge.Field == "" {
		return "unknown"
	}
	return ge.Field
}
