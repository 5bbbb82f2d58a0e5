package redis

import "errors"

var (
	// ErrEmptyConnectionURL is returned when the connection URL is empty.
	// Set it via the REDIS_URL environment variable.
	ErrEmptyConnectionURL = errors.New("empty redis connection URL")
	// ErrFailedToParseRedisConnString is returned when the connection URL
	// cannot be parsed.
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	// ErrRedisNotReady is returned when the server does not answer a ping
	// within the configured attempts.
	ErrRedisNotReady = errors.New("redis is not ready")
	// ErrHealthcheckFailed is returned by Healthcheck when the ping fails.
	ErrHealthcheckFailed = errors.New("redis healthcheck failed")
)
