// Package mongo establishes MongoDB connections with retry logic and
// environment-driven configuration.
//
// # Usage
//
//	var cfg mongo.Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	db, err := mongo.NewWithDatabase(ctx, cfg, "app")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Client().Disconnect(ctx)
//
// Config carries env tags, so it loads through
// github.com/aw-studio/go-states/pkg/config or any env-tag parser.
//
// New pings the server before returning and retries on failure, so a
// returned client is known to be reachable. Healthcheck wraps the same ping
// for readiness probes.
package mongo
