package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	cacheMu sync.Mutex
	cache   = map[reflect.Type]any{}

	dotenvOnce sync.Once
)

// Load parses environment variables into cfg based on its env tags. The
// first call in a process loads a .env file from the working directory if
// one exists, and each distinct config type is parsed once: later calls get
// the cached copy, so every component sharing a Config type sees identical
// values.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() {
		// A missing .env file is fine, deployments set the process env.
		_ = godotenv.Load()
	})

	key := reflect.TypeOf(*cfg)

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cached, ok := cache[key]; ok {
		*cfg = cached.(T)
		return nil
	}
	if err := env.Parse(cfg); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache[key] = *cfg
	return nil
}

// MustLoad works like Load and panics when loading fails. Meant for
// configurations the process cannot start without.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
}

// Reload parses cfg fresh from the environment and replaces the cached copy
// for its type. Mostly useful in tests that mutate the environment after a
// Load.
func Reload[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilPointer
	}
	if err := env.Parse(cfg); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cacheMu.Lock()
	cache[reflect.TypeOf(*cfg)] = *cfg
	cacheMu.Unlock()
	return nil
}

// ResetCache drops every cached config so the next Load parses again.
func ResetCache() {
	cacheMu.Lock()
	cache = map[reflect.Type]any{}
	cacheMu.Unlock()
}

// LoadEnv loads environment files by path. Named files override variables
// that are already set, since naming a file is an explicit request for its
// values. With no arguments it loads ./.env without overriding, same as
// Load's implicit bootstrap.
func LoadEnv(paths ...string) error {
	var err error
	if len(paths) == 0 {
		err = godotenv.Load()
	} else {
		err = godotenv.Overload(paths...)
	}
	if err != nil {
		return errors.Join(ErrLoadingEnvFiles, err)
	}
	return nil
}

// MustLoadEnv works like LoadEnv and panics when a file cannot be loaded.
func MustLoadEnv(paths ...string) {
	if err := LoadEnv(paths...); err != nil {
		panic(fmt.Sprintf("failed to load env files: %v", err))
	}
}
