package ayascan

import (
	"context"
	"strings"

	"github.com/himanishpuri/AyaScan/pkg/ayascan/storage"
)

// resultDAO is what both storage backends provide.
type resultDAO interface {
	Insert(ctx context.Context, letter, number string) (storage.Result, error)
	GetAll(ctx context.Context) ([]storage.Result, error)
	Search(ctx context.Context, q string) ([]storage.Result, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// storageAdapter turns a backend into a Storage: rows become Records and a
// blank query falls back to the full history.
type storageAdapter struct {
	dao resultDAO
}

// NewSQLiteStorage opens (or creates) a SQLite history file.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{dao: db}, nil
}

// NewPostgresStorage connects to a PostgreSQL history database.
func NewPostgresStorage(ctx context.Context, url string) (Storage, error) {
	db, err := storage.NewPGClient(ctx, url)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{dao: db}, nil
}

// OpenStorage picks the backend from the location: postgres:// URLs go to
// PostgreSQL, anything else is a SQLite file path.
func OpenStorage(ctx context.Context, location string) (Storage, error) {
	if storage.IsPostgresURL(location) {
		return NewPostgresStorage(ctx, location)
	}
	return NewSQLiteStorage(location)
}

func (s *storageAdapter) Insert(ctx context.Context, letter, number string) (Record, error) {
	row, err := s.dao.Insert(ctx, letter, number)
	if err != nil {
		return Record{}, err
	}
	return toRecord(row), nil
}

func (s *storageAdapter) GetAll(ctx context.Context) ([]Record, error) {
	rows, err := s.dao.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

func (s *storageAdapter) Search(ctx context.Context, query string) ([]Record, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return s.GetAll(ctx)
	}
	rows, err := s.dao.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

func (s *storageAdapter) Count(ctx context.Context) (int64, error) {
	return s.dao.Count(ctx)
}

func (s *storageAdapter) Close() error {
	return s.dao.Close()
}

func toRecord(r storage.Result) Record {
	return Record{
		ID:        r.ID,
		Letter:    r.Letter,
		Number:    r.Number,
		Timestamp: r.Timestamp,
	}
}

func toRecords(rows []storage.Result) []Record {
	out := make([]Record, len(rows))
	for i, r := range rows {
		out[i] = toRecord(r)
	}
	return out
}
