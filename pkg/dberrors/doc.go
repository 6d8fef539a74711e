/*
Package dberrors defines the typed error kinds shared by every layer of
moldb, from the raw key/value engine up through the collection engine.

# Architecture

Every exported moldb operation returns either nil or an *Error carrying
one of a fixed set of Kind values. Callers are expected to switch on
errors.Is against the sentinel Kind values (dberrors.NotFound,
dberrors.AlreadyExists, ...) rather than on error strings.

	┌────────────── CALLER ──────────────┐
	│  if errors.Is(err, dberrors.NotFound) │
	└──────────────────┬──────────────────┘
	                    │
	┌───────────────────▼───────────────────┐
	│              dberrors.Error             │
	│  Kind  - one of the 9 spec error kinds  │
	│  Op    - operation name ("InsertOne")   │
	│  Err   - wrapped underlying error       │
	└───────────────────┬───────────────────┘
	                    │
	┌───────────────────▼───────────────────┐
	│        pkg/kv/boltkv translation        │
	│  bolt.ErrDatabaseNotOpen -> IO          │
	│  bolt.ErrBucketNotFound  -> NotFound    │
	│  unrecognized            -> IO          │
	└─────────────────────────────────────────┘

Errors from the underlying engine are never returned to callers
unwrapped: pkg/kv/boltkv maps every bbolt error it can recognize to a
Kind and wraps everything else as IO, per spec.md §7.
*/
package dberrors
