package storage

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gofrs/uuid"
)

var (
	ErrConnectDB       = fmt.Errorf("unable to establish DB connection")
	ErrDBNotResponding = fmt.Errorf("DB not responding")

	ErrHalfCoordinate = fmt.Errorf("latitude and longitude must be provided together")
	ErrNotFinite      = fmt.Errorf("latitude and longitude must be finite numbers")
	ErrLatitudeRange  = fmt.Errorf("latitude must be between -90 and 90")
	ErrLongitudeRange = fmt.Errorf("longitude must be between -180 and 180")
)

// Entry is a single listen record: the moment the song was played and,
// when the visitor shared it, where. Coordinates are either both set or
// both nil. LoggedAt is always assigned by the server, never the client.
type Entry struct {
	ID        uuid.UUID `json:"id" bson:"_id"`
	LoggedAt  time.Time `json:"logged_at" bson:"logged_at"`
	Latitude  *float64  `json:"latitude" bson:"latitude"`
	Longitude *float64  `json:"longitude" bson:"longitude"`
	Place     string    `json:"place" bson:"place"`
}

// HasCoordinates reports whether the entry carries a coordinate pair.
func (e Entry) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

type Storage interface {
	// AddEntry persists an entry, assigning ID and LoggedAt if they are
	// zero values, and returns the entry ID.
	AddEntry(ctx context.Context, entry Entry) (uuid.UUID, error)
	// Entries returns one page of entries ordered by LoggedAt descending
	// along with the total number of pages for the given limit.
	Entries(ctx context.Context, page, limit int) ([]Entry, int, error)
	// AllEntries returns every entry ordered by LoggedAt descending.
	AllEntries(ctx context.Context) ([]Entry, error)
	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
}

// ValidateCoordinates checks the coordinate pair invariant: both nil, or
// both finite numbers within range. A half-set pair is rejected.
func ValidateCoordinates(lat, lon *float64) error {
	if lat == nil && lon == nil {
		return nil
	}
	if lat == nil || lon == nil {
		return ErrHalfCoordinate
	}
	if math.IsNaN(*lat) || math.IsInf(*lat, 0) || math.IsNaN(*lon) || math.IsInf(*lon, 0) {
		return ErrNotFinite
	}
	if *lat < -90 || *lat > 90 {
		return ErrLatitudeRange
	}
	if *lon < -180 || *lon > 180 {
		return ErrLongitudeRange
	}

	return nil
}
