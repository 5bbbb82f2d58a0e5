// Package redis establishes Redis connections with retry logic and
// environment-driven configuration.
//
// # Usage
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
// Config carries env tags, so it loads through
// github.com/aw-studio/go-states/pkg/config or any env-tag parser.
//
// Connect pings the server before returning and retries on failure, so a
// returned client is known to be reachable. Healthcheck wraps the same ping
// for readiness probes:
//
//	health := redis.Healthcheck(client)
//	if err := health(ctx); err != nil {
//		// report not ready
//	}
package redis
