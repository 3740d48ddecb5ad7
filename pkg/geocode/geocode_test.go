package geocode

import (
	"context"
	"os"
	"testing"

	"github.com/h2non/gock"
	log "github.com/sirupsen/logrus"
)

const testBaseURL = "https://nominatim.test"

func TestMain(m *testing.M) {
	log.SetLevel(log.PanicLevel)
	exitCode := m.Run()
	os.Exit(exitCode)
}

func TestNominatim_ReverseGeocode(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Get("/reverse").
		MatchParam("format", "json").
		MatchParam("zoom", "14").
		Reply(200).
		JSON(map[string]any{
			"display_name": "123 George St, The Rocks, Sydney, NSW, Australia",
			"address": map[string]string{
				"suburb":  "The Rocks",
				"city":    "Sydney",
				"state":   "New South Wales",
				"country": "Australia",
			},
		})

	geo := NewNominatim(testBaseURL, "listen-log-test/1.0")

	want := "The Rocks, Sydney, New South Wales, Australia"
	got := geo.ReverseGeocode(context.Background(), -33.8599, 151.2090)
	if got != want {
		t.Errorf("want place %q, got %q", want, got)
	}
}

func TestNominatim_ReverseGeocodeTownFallback(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Get("/reverse").
		Reply(200).
		JSON(map[string]any{
			"address": map[string]string{
				"town":    "Katoomba",
				"state":   "New South Wales",
				"country": "Australia",
			},
		})

	geo := NewNominatim(testBaseURL, "listen-log-test/1.0")

	want := "Katoomba, New South Wales, Australia"
	got := geo.ReverseGeocode(context.Background(), -33.7125, 150.3119)
	if got != want {
		t.Errorf("want place %q, got %q", want, got)
	}
}

func TestNominatim_ReverseGeocodeDisplayNameFallback(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Get("/reverse").
		Reply(200).
		JSON(map[string]any{
			"display_name": "Somewhere in the middle of the ocean",
		})

	geo := NewNominatim(testBaseURL, "listen-log-test/1.0")

	want := "Somewhere in the middle of the ocean"
	got := geo.ReverseGeocode(context.Background(), 0, 0)
	if got != want {
		t.Errorf("want place %q, got %q", want, got)
	}
}

func TestNominatim_ReverseGeocodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
	}{
		{
			name: "server error",
			setup: func() {
				gock.New(testBaseURL).Get("/reverse").Reply(500)
			},
		},
		{
			name: "malformed body",
			setup: func() {
				gock.New(testBaseURL).Get("/reverse").Reply(200).BodyString("not json")
			},
		},
		{
			name: "network failure",
			setup: func() {
				gock.New(testBaseURL).Get("/reverse").ReplyError(context.DeadlineExceeded)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			tt.setup()

			geo := NewNominatim(testBaseURL, "listen-log-test/1.0")
			if got := geo.ReverseGeocode(context.Background(), 1, 2); got != "" {
				t.Errorf("want empty place on failure, got %q", got)
			}
		})
	}
}

func TestNominatim_ReverseGeocodeSendsUserAgent(t *testing.T) {
	defer gock.Off()

	gock.New(testBaseURL).
		Get("/reverse").
		MatchHeader("User-Agent", "listen-log-test/1.0").
		Reply(200).
		JSON(map[string]any{
			"address": map[string]string{"city": "Sydney"},
		})

	geo := NewNominatim(testBaseURL, "listen-log-test/1.0")
	if got := geo.ReverseGeocode(context.Background(), -33.86, 151.2); got != "Sydney" {
		t.Errorf("want place %q, got %q", "Sydney", got)
	}
}
