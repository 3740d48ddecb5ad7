package api

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	log "github.com/sirupsen/logrus"

	"listens/pkg/storage"
)

//go:embed templates
var templatesFS embed.FS

var pages = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// displayTimeFormat is human-readable, no timezone suffix.
const displayTimeFormat = "02 Jan 2006, 15:04:05"

func (api *API) indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	data := struct{ ServiceName string }{ServiceName: api.ServiceName}
	if err := pages.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Errorf("[indexHandler] failed to render page: %v", err)
	}
}

// logRow is one line of the rendered log listing, with the logged time
// already converted to the configured display timezone.
type logRow struct {
	DisplayTime string
	Latitude    string
	Longitude   string
	Place       string
}

func (api *API) logsPageHandler(w http.ResponseWriter, r *http.Request) {
	reqID := GetRequestID(r.Context())
	sID := shorten(reqID)

	entries, err := api.DB.AllEntries(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[logsPageHandler][%s] AllEntries() returned error: %v", sID, err)
		return
	}

	rows := make([]logRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, api.toRow(e))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	data := struct {
		ServiceName string
		Rows        []logRow
	}{ServiceName: api.ServiceName, Rows: rows}

	if err := pages.ExecuteTemplate(w, "logs.html", data); err != nil {
		log.Errorf("[logsPageHandler][%s] failed to render page: %v", sID, err)
		return
	}

	log.Debugf("[logsPageHandler][%s] response sent to: %v", sID, r.RemoteAddr)
}

func (api *API) toRow(e storage.Entry) logRow {
	row := logRow{
		DisplayTime: e.LoggedAt.In(api.displayTZ).Format(displayTimeFormat),
		Place:       e.Place,
	}
	if e.HasCoordinates() {
		row.Latitude = fmt.Sprintf("%.6f", *e.Latitude)
		row.Longitude = fmt.Sprintf("%.6f", *e.Longitude)
	}

	return row
}

// robotsHandler asks well-behaved crawlers to stay away from the listing.
// Not a security boundary, just avoids accidental indexing.
func (api *API) robotsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "User-agent: *\nDisallow: /logs\n")
}
