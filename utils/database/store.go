package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNotFound is returned by Store.Load when the key has no record.
var ErrNotFound = errors.New("database: record not found")

// Domain names one logical document of the store.
type Domain string

const (
	DomainTickets        Domain = "tickets"
	DomainClosedTickets  Domain = "closed_tickets"
	DomainTicketCounts   Domain = "ticket_counts"
	DomainReportCounts   Domain = "report_counts"
	DomainWarnings       Domain = "warnings"
	DomainPendingReports Domain = "pending_reports"
	DomainTempRoles      Domain = "temp_roles"
	DomainAFK            Domain = "afk"
	DomainLevels         Domain = "levels"
)

// Domains lists every domain in a stable order.
var Domains = []Domain{
	DomainTickets, DomainClosedTickets, DomainTicketCounts, DomainReportCounts,
	DomainWarnings, DomainPendingReports, DomainTempRoles, DomainAFK, DomainLevels,
}

// Store is a backend holding one flat id -> JSON record map per domain.
// Implementations make single operations atomic; cross-operation
// serialization is the job of DB.
type Store interface {
	Load(ctx context.Context, domain Domain, key string) (json.RawMessage, error)
	Save(ctx context.Context, domain Domain, key string, value json.RawMessage) error
	Remove(ctx context.Context, domain Domain, key string) error
	Scan(ctx context.Context, domain Domain) (map[string]json.RawMessage, error)
	Close() error
}

// DB pairs a backend with the per-key locks every read-modify-write goes through.
type DB struct {
	backend Store
	locks   *KeyedMutex
}

// New wraps an existing backend.
func New(s Store) *DB {
	return &DB{backend: s, locks: NewKeyedMutex()}
}

// Open builds the backend named by kind ("json" or "sqlite") rooted at dataDir.
func Open(kind, dataDir string) (*DB, error) {
	switch kind {
	case "", "json":
		s, err := NewJSONStore(dataDir)
		if err != nil {
			return nil, err
		}
		return New(s), nil
	case "sqlite":
		s, err := NewSQLiteStore(filepath.Join(dataDir, "echo.db"))
		if err != nil {
			return nil, err
		}
		return New(s), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}

// Backend exposes the raw store, used by the migration command.
func (db *DB) Backend() Store {
	return db.backend
}

// Lock takes the mutation lock for (domain, key) and returns its release.
func (db *DB) Lock(domain Domain, key string) func() {
	return db.locks.Lock(string(domain) + "/" + key)
}

func (db *DB) Close() error {
	return db.backend.Close()
}

// Copy writes every record of every domain from src into dst.
func Copy(ctx context.Context, dst, src Store) (int, error) {
	n := 0
	for _, d := range Domains {
		records, err := src.Scan(ctx, d)
		if err != nil {
			return n, fmt.Errorf("scan %s: %w", d, err)
		}
		for key, value := range records {
			if err := dst.Save(ctx, d, key, value); err != nil {
				return n, fmt.Errorf("save %s/%s: %w", d, key, err)
			}
			n++
		}
	}
	return n, nil
}
