// Package config loads env-tagged configuration structs with .env bootstrap
// and per-type caching.
//
// # Usage
//
// Each connectivity package declares a Config struct with env tags; hosts
// load them through this package so a .env file works in development and
// repeated loads of the same type stay consistent:
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//	pool, err := pg.Connect(ctx, cfg)
//
// The first Load in a process reads ./.env if present without overriding
// variables the environment already sets. LoadEnv loads named files
// explicitly and does override, which suits selecting per-environment files
// at startup:
//
//	config.MustLoadEnv(".env.production")
//
// Load caches by config type, so two components loading the same Config get
// identical values even if the environment changed in between. Tests that
// mutate the environment use Reload or ResetCache to see fresh values.
package config
