package mongo

import "errors"

var (
	// ErrEmptyConnectionURL is returned when the connection URL is empty.
	// Set it via the MONGODB_URL environment variable.
	ErrEmptyConnectionURL = errors.New("empty mongodb connection URL")
	// ErrFailedToConnectToMongo is returned when no connect attempt reaches
	// the server.
	ErrFailedToConnectToMongo = errors.New("failed to connect to mongo")
	// ErrHealthcheckFailed is returned by Healthcheck when the ping fails.
	ErrHealthcheckFailed = errors.New("mongo healthcheck failed")
)
