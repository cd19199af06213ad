package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage remembers which user ids earlier fetches have already reported.
// It never stores payloads and is never consulted in place of a network fetch.

// Store tracks seen user ids.
type Store interface {
	Close() error
	SeenUser(id int) (bool, error)
	MarkUser(id int) error
}

// Options controls retention for concrete store implementations.
type Options struct {
	UserTTL         time.Duration
	CleanupInterval time.Duration
}

const (
	defaultUserTTL         = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return NewNoopStore(), nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.UserTTL <= 0 {
		opts.UserTTL = defaultUserTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

// NewNoopStore returns a Store that never remembers anything.
func NewNoopStore() Store { return noopStore{} }

type noopStore struct{}

func (noopStore) Close() error               { return nil }
func (noopStore) SeenUser(int) (bool, error) { return false, nil }
func (noopStore) MarkUser(int) error         { return nil }
