package geardb

import "errors"

// All of these report programmer or configuration errors: they are raised as
// panics (wrapping the sentinel, so errors.Is works on the recovered value)
// at the offending call, which aborts the operation before any mutation
// becomes observable.
var (
	ErrUnregisteredType   = errors.New("geardb: unregistered record type")
	ErrDuplicateQueryType = errors.New("geardb: duplicate record type in query")
	ErrTypeLimit          = errors.New("geardb: record type limit exceeded")
	ErrTypeTooLarge       = errors.New("geardb: record type too large")
	ErrTypeHasPointers    = errors.New("geardb: record type must be plain data")
	ErrIdOutOfRange       = errors.New("geardb: gear id out of range")
	ErrArchetypeTooLarge  = errors.New("geardb: combined record sizes exceed block capacity")
	ErrBlockLimit         = errors.New("geardb: block limit exceeded")
)
