// Package config loads typed configuration structs from the environment,
// reading an optional .env file first. Each struct type is parsed once per
// process and cached, so independent components can load the same config
// without re-reading the environment.
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
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrNilPointer    = errors.New("nil pointer provided to config loader")
)

var (
	mu     sync.RWMutex
	values = make(map[string]any)

	dotenvOnce sync.Once
)

// Load parses environment variables into v based on `env` struct tags.
// Subsequent calls for the same type return the cached value.
func Load[T any](v *T) error {
	dotenvOnce.Do(func() {
		// The .env file is optional; absence is not an error.
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}

	key := typeName[T]()

	mu.RLock()
	if cached, ok := values[key]; ok {
		*v = cached.(T)
		mu.RUnlock()
		return nil
	}
	mu.RUnlock()

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}

	mu.Lock()
	// First writer wins so concurrent loaders observe one value.
	if cached, ok := values[key]; ok {
		*v = cached.(T)
	} else {
		values[key] = *v
	}
	mu.Unlock()

	return nil
}

// MustLoad panics when loading fails; for configuration the process cannot
// start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

func typeName[T any]() string {
	var zero T
	if t := reflect.TypeOf(zero); t != nil {
		return t.String()
	}
	return fmt.Sprintf("%T", *new(T))
}
