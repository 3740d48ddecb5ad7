package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"listens/pkg/storage"
)

type Store struct {
	db *pgxpool.Pool
}

func New(ctx context.Context, conStr string) (*Store, error) {
	db, err := pgxpool.Connect(ctx, conStr)
	if err != nil {
		return nil, err
	}
	s := Store{
		db: db,
	}

	return &s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() {
	s.db.Close()
}

// AddEntry inserts a single listen entry. If the entry carries no ID a new
// UUIDv4 is generated, and a zero LoggedAt is replaced with the current
// server time in UTC. Returns the ID of the inserted entry.
func (s *Store) AddEntry(ctx context.Context, entry storage.Entry) (id uuid.UUID, err error) {
	if entry.ID == uuid.Nil {
		entry.ID, err = uuid.NewV4()
		if err != nil {
			return
		}
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now().UTC()
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO entries (id, logged_at, latitude, longitude, place)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		entry.ID,
		entry.LoggedAt,
		entry.Latitude,
		entry.Longitude,
		entry.Place,
	).Scan(&id)
	if err != nil {
		return
	}

	return
}

// Entries returns a paginated list of entries ordered by logged time
// descending. If page or limit are less than or equal to zero, they default
// to 1 and 10 respectively. Also returns the total number of pages available.
func (s *Store) Entries(ctx context.Context, page, limit int) (entries []storage.Entry, numPages int, err error) {
	if limit <= 0 {
		limit = 10
	}
	if page <= 0 {
		page = 1
	}

	offset := (page - 1) * limit

	rows, err := s.db.Query(ctx, `
		SELECT id, logged_at, latitude, longitude, place
		FROM entries
		ORDER BY logged_at DESC
		LIMIT $1 OFFSET $2
	`, limit,
		offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var e storage.Entry
		err := rows.Scan(
			&e.ID,
			&e.LoggedAt,
			&e.Latitude,
			&e.Longitude,
			&e.Place)
		if err != nil {
			return nil, 0, err
		}
		e.LoggedAt = e.LoggedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total, err := s.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	numPages = (total + limit - 1) / limit
	return
}

// AllEntries returns every stored entry ordered by logged time descending.
func (s *Store) AllEntries(ctx context.Context) (entries []storage.Entry, err error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, logged_at, latitude, longitude, place
		FROM entries
		ORDER BY logged_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var e storage.Entry
		err := rows.Scan(
			&e.ID,
			&e.LoggedAt,
			&e.Latitude,
			&e.Longitude,
			&e.Place)
		if err != nil {
			return nil, err
		}
		e.LoggedAt = e.LoggedAt.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (s *Store) Count(ctx context.Context) (count int, err error) {
	err = s.db.QueryRow(ctx, `SELECT COUNT(id) FROM entries`).Scan(&count)
	return
}
