package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	geodash "github.com/cryptekbits/GeoDash"
	"github.com/cryptekbits/GeoDash/internal/geoerr"
	"github.com/cryptekbits/GeoDash/internal/logging"
)

var (
	serverHost  string
	serverPort  int
	serverDebug bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the §6.1 HTTP surface over the Facade",
	Long: `Minimal HTTP edge exercising the core end to end: liveness, status,
search, city lookup, radius search and region browsing. Not a hardened API
gateway — request validation beyond the core's own defensive clamps,
authentication and rate limiting are out of scope.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serverCmd.Flags().StringVar(&serverHost, "host", "0.0.0.0", "bind host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "bind port")
	serverCmd.Flags().BoolVar(&serverDebug, "debug", false, "verbose request logging")
}

func runServer(ctx context.Context) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	log := buildLogger()

	f, err := geodash.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	w, err := f.NewWorker(ctx)
	if err != nil {
		_ = f.Shutdown()
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if serverDebug {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Timeout(15 * time.Second))

	h := &apiHandlers{w: w}
	r.Get("/health", h.health)
	r.Get("/api/status", h.status)
	r.Get("/api/cities/search", h.search)
	r.Get("/api/search", h.search) // legacy alias
	r.Get("/api/cities/search/stream", h.searchStream)
	r.Get("/api/city/{id}", h.city)
	r.Get("/api/cities/{id}", h.city) // legacy alias
	r.Get("/api/cities/coordinates", h.coordinates)
	r.Get("/api/coordinates", h.coordinates) // legacy alias
	r.Get("/api/countries", h.countries)
	r.Get("/api/states", h.states)
	r.Get("/api/cities/state", h.citiesInState)

	srv := &http.Server{
		Addr:         serverHost + ":" + strconv.Itoa(serverPort),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", logging.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutdown signal received")
	case err := <-errCh:
		_ = w.Close()
		_ = f.Shutdown()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", logging.String("error", err.Error()))
	}
	_ = w.Close()
	_ = f.Shutdown()
	return nil
}

type apiHandlers struct {
	w *geodash.Worker
}

func writeJSON(rw http.ResponseWriter, status int, env envelope) {
	env.StatusCode = status
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(env)
}

func writeErr(rw http.ResponseWriter, err error) {
	if ge, ok := err.(*geoerr.Error); ok {
		writeJSON(rw, ge.HTTPStatus(), envelope{Success: false, Error: ge.Message, ErrorCode: string(ge.Kind)})
		return
	}
	writeJSON(rw, http.StatusInternalServerError, envelope{Success: false, Error: err.Error(), ErrorCode: string(geoerr.KindUncategorized)})
}

func (h *apiHandlers) health(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, envelope{Success: true, Data: map[string]string{"status": "ok"}})
}

func (h *apiHandlers) status(rw http.ResponseWriter, r *http.Request) {
	n, backend, err := h.w.RowCount(r.Context())
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, envelope{Success: true, Data: tableInfo{Backend: backend, RowCount: n}})
}

func parseSearchParams(q url.Values) geodash.SearchParams {
	p := geodash.SearchParams{
		Query:         q.Get("query"),
		CountryFilter: q.Get("country"),
		UserCountry:   q.Get("user_country"),
	}
	if q.Get("query") == "" {
		p.Query = q.Get("q") // legacy alias's param name
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil {
		p.Limit = l
	}
	if lat, err := strconv.ParseFloat(q.Get("user_lat"), 64); err == nil {
		p.UserLat = &lat
	}
	if lng, err := strconv.ParseFloat(q.Get("user_lng"), 64); err == nil {
		p.UserLng = &lng
	}
	return p
}

func (h *apiHandlers) search(rw http.ResponseWriter, r *http.Request) {
	p := parseSearchParams(r.URL.Query())
	res, err := h.w.Search(r.Context(), p)
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, envelope{Success: true, Data: res})
}

// searchStream drains Worker.SearchStream onto the response as
// newline-delimited JSON, one line per snapshot: the exact+prefix tier
// first, then the fuzzy-inclusive superset once it's ready. SearchStream
// itself runs entirely on this handler's own goroutine (net/http already
// gives every request one), so draining it here doesn't add a second
// worker-internal thread, per spec.md §5.
func (h *apiHandlers) searchStream(rw http.ResponseWriter, r *http.Request) {
	p := parseSearchParams(r.URL.Query())

	rw.Header().Set("Content-Type", "application/x-ndjson")
	rw.WriteHeader(http.StatusOK)
	flusher, canFlush := rw.(http.Flusher)

	enc := json.NewEncoder(rw)
	for snap := range h.w.SearchStream(r.Context(), p) {
		if err := enc.Encode(envelope{Success: true, Data: snap}); err != nil {
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

func (h *apiHandlers) city(rw http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 32)
	if err != nil {
		writeErr(rw, geoerr.InvalidParameter("id", "id must be an integer"))
		return
	}
	c, err := h.w.City(r.Context(), int32(id))
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, envelope{Success: true, Data: c})
}

func (h *apiHandlers) coordinates(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
	if err1 != nil || err2 != nil {
		writeErr(rw, geoerr.InvalidParameter("lat/lng", "lat and lng must be numbers"))
		return
	}
	radius := 10.0
	if r2, err := strconv.ParseFloat(q.Get("radius_km"), 64); err == nil {
		radius = r2
	}
	res, err := h.w.Radius(r.Context(), lat, lng, radius)
	if err != nil {
		writeErr(rw, err)
		return
	}
	limit := 10
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if limit > 50 {
		limit = 50
	}
	if len(res) > limit {
		res = res[:limit]
	}
	writeJSON(rw, http.StatusOK, envelope{Success: true, Data: res})
}

func (h *apiHandlers) countries(rw http.ResponseWriter, r *http.Request) {
	res, err := h.w.Countries(r.Context())
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, envelope{Success: true, Data: res})
}

func (h *apiHandlers) states(rw http.ResponseWriter, r *http.Request) {
	res, err := h.w.States(r.Context(), r.URL.Query().Get("country"))
	if err != nil {
		writeErr(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, envelope{Success: true, Data: res})
}

func (h *apiHandlers) citiesInState(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.w.CitiesInState(r.Context(), q.Get("state"), q.Get("country"))
	if err != nil {
		writeErr(rw, err)
		return
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 && l < len(res) {
		res = res[:l]
	}
	writeJSON(rw, http.StatusOK, envelope{Success: true, Data: res})
}
