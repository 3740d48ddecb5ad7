package memdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"listens/pkg/storage"
)

type Store struct {
	mu      sync.Mutex
	entries map[uuid.UUID]storage.Entry
}

func New() *Store {
	db := Store{
		entries: make(map[uuid.UUID]storage.Entry),
	}

	return &db
}

func (db *Store) AddEntry(ctx context.Context, entry storage.Entry) (uuid.UUID, error) {
	if entry.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return uuid.Nil, err
		}
		entry.ID = id
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now().UTC()
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	db.entries[entry.ID] = entry

	return entry.ID, nil
}

func (db *Store) Entries(ctx context.Context, page, limit int) (entries []storage.Entry, numPages int, err error) {
	if limit <= 0 {
		return []storage.Entry{}, 0, nil
	}

	all, err := db.AllEntries(ctx)
	if err != nil {
		return nil, 0, err
	}

	total := len(all)
	numPages = (total + limit - 1) / limit

	pageIndex := page - 1
	if pageIndex < 0 {
		pageIndex = 0
	}

	start := pageIndex * limit
	if start >= total {
		return []storage.Entry{}, numPages, nil
	}

	end := start + limit
	if end > total {
		end = total
	}

	return all[start:end], numPages, nil
}

func (db *Store) AllEntries(ctx context.Context) ([]storage.Entry, error) {
	db.mu.Lock()
	all := make([]storage.Entry, 0, len(db.entries))
	for _, e := range db.entries {
		all = append(all, e)
	}
	db.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].LoggedAt.After(all[j].LoggedAt)
	})

	return all, nil
}

func (db *Store) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return len(db.entries), nil
}
