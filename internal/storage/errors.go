package storage

import pkgerrors "trustgate/pkg/errors"

var (
	// ErrNotFound keeps storage-specific 404s consistent across the in-memory
	// and Postgres implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "record not found")

	// ErrDuplicateAttempt guards the write-once ledger invariant: a request ID
	// may be recorded at most once.
	ErrDuplicateAttempt = pkgerrors.New(pkgerrors.CodeInternal, "payment attempt already recorded")
)
