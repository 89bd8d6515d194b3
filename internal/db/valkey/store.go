// Package valkey provides the Valkey driver. Valkey speaks the same wire
// protocol as Redis, so the driver reuses the redis command implementations
// and differs only in connection defaults (RESP3 with client-side caching).
package valkey

import (
	"fmt"

	"github.com/redis/rueidis"

	"github.com/lectern-labs/lectern/internal/db"
	dbredis "github.com/lectern-labs/lectern/internal/db/redis"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Config holds connection parameters for a Valkey store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
}

// Store implements db.Store for Valkey.
type Store struct {
	*dbredis.Store
}

// NewStore creates a Valkey store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: cfg.Addrs,
		Username:    cfg.Username,
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{Store: dbredis.NewStoreWithClient(client)}, nil
}
