// Package sqlloaders implements domaincache.Loaders against a
// database/sql handle backed by SQLite, the teacher's driver, modeled on
// the teacher's auth.Store query style: explicit SQL, errors.Wrap
// context, sql.ErrNoRows → KeyNotFound-shaped (found=false) results.
package sqlloaders

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fedimesh/qkvc/qerrors"
)

// Open opens (creating if absent) a SQLite database at path, matching
// the teacher's plain sql.Open("sqlite3", ...) idiom.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, qerrors.Wrap(err, "failed to open sqlite database")
	}
	return db, nil
}

// Store is the concrete Loaders implementation, holding the one shared
// *sql.DB handle every domain loader queries against.
type Store struct {
	db     *sql.DB
	policy HostPolicy
}

// New wraps db as a Store with no configured host policy; every newly
// discovered instance is created unblocked and unsilenced.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewWithPolicy wraps db as a Store that seeds newly discovered
// instances from policy (spec §4.5.6).
func NewWithPolicy(db *sql.DB, policy HostPolicy) *Store {
	return &Store{db: db, policy: policy}
}
