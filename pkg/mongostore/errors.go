package mongostore

import "errors"

// ErrNilDatabase is returned when the store is created without a database.
var ErrNilDatabase = errors.New("mongo database cannot be nil")
