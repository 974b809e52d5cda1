package config

import (
	"errors"
	"fmt"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config holds the server's runtime settings, populated from flags and
// QUIZCLASH_-prefixed environment variables.
type Config struct {
	Bind      string
	Port      int
	StaticDir string

	Store    string
	MongoURI string
	MongoDB  string
	RedisURI string

	AdminUsername string
	AdminPassword string
	JWTSecret     string
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	switch c.Store {
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("invalid store %q (must be %q or %q)", c.Store, StoreMongo, StoreMemory)
	}
	if c.Store == StoreMongo && c.MongoURI == "" {
		return errors.New("--mongo-uri is required with --store=mongo")
	}
	if c.JWTSecret == "" {
		return errors.New("--jwt-secret must not be empty")
	}
	return nil
}
