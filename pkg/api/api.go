package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"listens/pkg/geocode"
	"listens/pkg/storage"
)

const maxEntriesLimit = 100

type Config struct {
	ServiceName     string
	MaxEntries      int
	DisplayTimezone string
}

type API struct {
	ServiceName string
	DB          storage.Storage
	Geo         geocode.Geocoder

	maxEntries int
	displayTZ  *time.Location
	r          *mux.Router
	kw         *kafka.Writer
}

func New(cfg Config, db storage.Storage, geo geocode.Geocoder, kafkaWriter *kafka.Writer) (*API, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "listen-log"
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.DisplayTimezone == "" {
		cfg.DisplayTimezone = "UTC"
	}

	tz, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid display timezone %q: %w", cfg.DisplayTimezone, err)
	}

	api := API{
		ServiceName: cfg.ServiceName,
		DB:          db,
		Geo:         geo,
		maxEntries:  cfg.MaxEntries,
		displayTZ:   tz,
		r:           mux.NewRouter(),
		kw:          kafkaWriter,
	}
	api.endpoints()

	return &api, nil
}

func (api *API) Router() *mux.Router {
	return api.r
}

func (api *API) endpoints() {
	api.r.Use(api.requestIDMiddleware)
	api.r.Use(api.headerMiddleware)

	if api.kw != nil {
		api.r.Use(api.loggingMiddleware(api.kw))
	}

	api.r.HandleFunc("/", api.indexHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/log", api.createEntryHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/logs", api.logsPageHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/api/logs", api.entriesHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/robots.txt", api.robotsHandler).Methods(http.MethodGet)
}

// createEntryHandler accepts a strict {"latitude", "longitude"} JSON body and
// appends one listen entry. Coordinates may be an all-null pair (geolocation
// denied or unavailable on the client); the logged time is always server time.
func (api *API) createEntryHandler(w http.ResponseWriter, r *http.Request) {
	reqID := GetRequestID(r.Context())
	sID := shorten(reqID)
	ctx := r.Context()

	count, err := api.DB.Count(ctx)
	if err != nil {
		api.writeLog(w, http.StatusInternalServerError, LogResponse{Error: "internal error"})
		log.Errorf("[createEntryHandler][%s] Count() returned error: %v", sID, err)
		return
	}
	if count >= api.maxEntries {
		msg := fmt.Sprintf("log is full (%d entries), archive or delete entries before logging more", api.maxEntries)
		api.writeLog(w, http.StatusTooManyRequests, LogResponse{Error: msg})
		log.Warnf("[createEntryHandler][%s] rejected entry from %v: log is full", sID, r.RemoteAddr)
		return
	}

	defer r.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body == nil {
		api.writeLog(w, http.StatusBadRequest, LogResponse{Error: "JSON body must be an object"})
		log.Debugf("[createEntryHandler][%s] malformed body from %v: %v", sID, r.RemoteAddr, err)
		return
	}

	if errMsg := checkFields(body); errMsg != "" {
		api.writeLog(w, http.StatusBadRequest, LogResponse{Error: errMsg})
		log.Debugf("[createEntryHandler][%s] %s", sID, errMsg)
		return
	}

	lat, latOK := numberOrNull(body["latitude"])
	lon, lonOK := numberOrNull(body["longitude"])
	if !latOK || !lonOK {
		api.writeLog(w, http.StatusBadRequest, LogResponse{Error: "latitude and longitude must be numbers or null"})
		log.Debugf("[createEntryHandler][%s] non-numeric coordinates from %v", sID, r.RemoteAddr)
		return
	}

	if err := storage.ValidateCoordinates(lat, lon); err != nil {
		api.writeLog(w, http.StatusBadRequest, LogResponse{Error: err.Error()})
		log.Debugf("[createEntryHandler][%s] invalid coordinates from %v: %v", sID, r.RemoteAddr, err)
		return
	}

	entry := storage.Entry{Latitude: lat, Longitude: lon}
	if entry.HasCoordinates() {
		entry.Place = api.Geo.ReverseGeocode(ctx, *lat, *lon)
	}

	id, err := api.DB.AddEntry(ctx, entry)
	if err != nil {
		api.writeLog(w, http.StatusInternalServerError, LogResponse{Error: "internal error"})
		log.Errorf("[createEntryHandler][%s] AddEntry() returned error: %v", sID, err)
		return
	}

	api.writeLog(w, http.StatusOK, LogResponse{Success: true})
	log.Debugf("[createEntryHandler][%s] entry %v logged from %v", sID, id, r.RemoteAddr)
}

// entriesHandler serves the log as paginated JSON, newest first.
func (api *API) entriesHandler(w http.ResponseWriter, r *http.Request) {
	reqID := GetRequestID(r.Context())
	sID := shorten(reqID)

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 10
	}

	if limit > maxEntriesLimit {
		http.Error(w, "Limit parameter is too big", http.StatusBadRequest)
		log.Debugf("[entriesHandler][%s] request with too big limit parameter", sID)
		return
	}

	entries, numPages, err := api.DB.Entries(r.Context(), page, limit)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[entriesHandler][%s] Entries() returned error: %v", sID, err)
		return
	}
	if entries == nil {
		entries = []storage.Entry{}
	}

	resp := EntriesResponse{
		Entries:    entries,
		Pagination: Pagination{TotalPages: numPages, CurrentPage: page, Limit: limit},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[entriesHandler][%s] failed to encode response data: %v", sID, err)
		return
	}

	log.Debugf("[entriesHandler][%s] response sent to: %v", sID, r.RemoteAddr)
}

func (api *API) writeLog(w http.ResponseWriter, statusCode int, resp LogResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkFields verifies the body holds exactly the latitude and longitude
// keys. Returns an error message naming the offending fields, or "".
func checkFields(body map[string]any) string {
	allowed := map[string]bool{"latitude": true, "longitude": true}

	var missing []string
	for key := range allowed {
		if _, ok := body[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "missing fields: " + strings.Join(missing, ", ")
	}

	var extra []string
	for key := range body {
		if !allowed[key] {
			extra = append(extra, key)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return "unexpected fields: " + strings.Join(extra, ", ")
	}

	return ""
}

// numberOrNull maps a decoded JSON value to an optional float: JSON null is
// a valid absent coordinate, a number is its value, anything else fails.
func numberOrNull(v any) (*float64, bool) {
	if v == nil {
		return nil, true
	}
	if f, ok := v.(float64); ok {
		return &f, true
	}
	return nil, false
}

// GetRequestID extracts the request ID from the context.
// It returns the request ID as a string if present, otherwise returns an empty string.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
