package redisstore

import "errors"

var (
	// ErrNilClient is returned when the store is created without a client.
	ErrNilClient = errors.New("redis client cannot be nil")
	// ErrScopeRequired is returned by Find and Count when the filter does not
	// pin down owner type, owner ID and dimension. Redis holds the log as one
	// sorted set per scope, so cross-scope queries have no key to scan.
	ErrScopeRequired = errors.New("filter must set owner type, owner id and dimension")
)
