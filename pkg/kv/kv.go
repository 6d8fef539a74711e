package kv

import "context"

// TableFlags configures how a named table stores its entries.
type TableFlags uint8

const (
	// Default tables hold one value per key (a primary tree).
	Default TableFlags = 0
	// DupSort tables may hold many values per key, ordered by the
	// value itself within the key (a secondary index tree).
	DupSort TableFlags = 1 << 0
)

// TableConfig describes one named table at creation time.
type TableConfig struct {
	Flags TableFlags
}

// Env is an opened environment: one directory holding every table of
// one database. It corresponds to spec.md §6's "open/close a named
// environment with a map size".
type Env interface {
	// Begin starts a transaction. Only one writable transaction may be
	// open at a time; read transactions may run concurrently with it.
	Begin(ctx context.Context, writable bool) (Tx, error)

	// CreateTable creates a named table if absent, applying cfg. It is
	// valid only inside a writable transaction's lifetime via Tx.CreateTable;
	// this top-level form opens and commits its own transaction.
	CreateTable(ctx context.Context, name string, cfg TableConfig) error
	// DeleteTable removes a named table and all its entries.
	DeleteTable(ctx context.Context, name string) error
	// ListTables returns the names of every table currently present.
	ListTables(ctx context.Context) ([]string, error)

	// Size returns the approximate on-disk size of the environment, in
	// bytes, used to enforce the configured map-size quota.
	Size() (int64, error)
	// Resize updates the soft map-size quota enforced by Size-based
	// checks. bbolt itself grows its mmap automatically; Resize governs
	// only moldb's own MAP_FULL accounting (see pkg/kv/boltkv).
	Resize(newMapSize int64) error

	// Sync forces a durability barrier. If force is false the
	// implementation may no-op when it already fsyncs on every commit.
	Sync(force bool) error

	Close() error
}

// Tx is a single read or write transaction spanning possibly many
// tables.
type Tx interface {
	// Writable reports whether this transaction may mutate tables.
	Writable() bool

	// Table returns a handle to a table opened earlier with
	// Env.CreateTable, or a dberrors NOT_FOUND error if it does not exist.
	Table(name string) (Table, error)
	// CreateTable creates name within this transaction; only valid on
	// a writable Tx.
	CreateTable(name string, cfg TableConfig) (Table, error)
	// DeleteTable removes name within this transaction; only valid on
	// a writable Tx.
	DeleteTable(name string) error

	Commit() error
	// Rollback aborts the transaction. Calling Rollback after a
	// successful Commit is a no-op returning nil (boltkv drops the
	// ErrTxClosed bolt.Tx reports), so callers may unconditionally
	// `defer tx.Rollback()` after Begin.
	Rollback() error
}

// Table is a single named ordered key/value table bound to one
// transaction.
type Table interface {
	Flags() TableFlags

	// Get returns the value stored under key, or (nil, false) if absent.
	// For a DupSort table, Get returns the first (lowest) value under key.
	Get(key []byte) (value []byte, ok bool)
	// Put stores value under key, overwriting any existing value. For a
	// DupSort table, Put removes every value already stored under key
	// and then adds the (key, value) pair.
	Put(key, value []byte) error
	// Delete removes key (and, for a DupSort table, every value under
	// it). Deleting an absent key is not an error.
	Delete(key []byte) error

	// PutDup adds (key, value) to a DupSort table without disturbing any
	// other value already stored under key.
	PutDup(key, value []byte) error
	// DeleteDup removes exactly the (key, value) pair from a DupSort
	// table. Deleting an absent pair is not an error.
	DeleteDup(key, value []byte) error

	// Cursor returns a new cursor positioned before the first entry.
	Cursor() Cursor
}

// Cursor iterates a Table's entries in key order (and, within a key,
// in value order for a DupSort table). Key/value slices returned by a
// Cursor are borrowed: valid only until the cursor advances again or
// the owning transaction ends. Callers that need to retain them past
// that point must copy.
type Cursor interface {
	First() (key, value []byte, ok bool)
	Last() (key, value []byte, ok bool)
	Next() (key, value []byte, ok bool)
	Prev() (key, value []byte, ok bool)
	// Seek positions the cursor at the first key >= seek.
	Seek(seek []byte) (key, value []byte, ok bool)
	// SeekExact returns the value stored exactly at key, or ok=false if
	// key is absent; either way the cursor is left at the first key >= key.
	SeekExact(key []byte) (value []byte, ok bool)
}
