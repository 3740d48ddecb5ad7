// Package geocode resolves coordinates to a human-readable place name
// using the Nominatim (OpenStreetMap) reverse geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org"
	timeout        = 4 * time.Second

	// Nominatim zoom 14 resolves to suburb level, which is detailed
	// enough for the log listing without hammering the API.
	zoomLevel = "14"
)

type Geocoder interface {
	// ReverseGeocode returns a place name for the given coordinates, or an
	// empty string when the lookup fails. It never returns an error: a
	// missing place name must not fail the caller's write path.
	ReverseGeocode(ctx context.Context, lat, lon float64) string
}

type Nominatim struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNominatim returns a Nominatim client. An empty baseURL selects the
// public OSM instance. Nominatim's usage policy requires an identifying
// User-Agent, so userAgent must not be empty.
func NewNominatim(baseURL, userAgent string) *Nominatim {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Nominatim{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Suburb  string `json:"suburb"`
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%f", lat))
	values.Set("lon", fmt.Sprintf("%f", lon))
	values.Set("format", "json")
	values.Set("zoom", zoomLevel)
	values.Set("addressdetails", "1")

	reqURL := n.baseURL + "/reverse?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		log.Debugf("[geocode] error creating request %s: %v", reqURL, err)
		return ""
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		log.Debugf("[geocode] error calling nominatim: %v", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debugf("[geocode] nominatim returned status %d", resp.StatusCode)
		return ""
	}

	var rev reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&rev); err != nil {
		log.Debugf("[geocode] error decoding nominatim response: %v", err)
		return ""
	}

	return placeName(rev)
}

// placeName assembles "suburb, city, state, country" from whichever address
// parts are present, preferring city over town over village. Falls back to
// the full display name when no parts are set.
func placeName(rev reverseResponse) string {
	addr := rev.Address

	settlement := addr.City
	if settlement == "" {
		settlement = addr.Town
	}
	if settlement == "" {
		settlement = addr.Village
	}

	var parts []string
	for _, p := range []string{addr.Suburb, settlement, addr.State, addr.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) == 0 {
		return rev.DisplayName
	}

	return strings.Join(parts, ", ")
}

// Noop is a Geocoder that resolves nothing. Used in dev mode and tests to
// avoid calling the public Nominatim instance.
type Noop struct{}

func (Noop) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	return ""
}
