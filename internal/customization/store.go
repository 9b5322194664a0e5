// Package customization holds runtime-tunable settings that staff can
// flip without a redeploy, backed by Redis.  When Redis is unavailable
// the store degrades to environment variables and compiled-in defaults,
// so a Redis outage changes nothing about who may enter the lab.
package customization

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/lab-access-control/internal/policy"
)

// Recognized customization keys.
const (
	KeySelfLogIn  = "self_log_in"  // kiosk self-service entry
	KeySelfLogOut = "self_log_out" // kiosk self-service exit
)

const keyPrefix = "customization:"

// Store reads and writes customization values.  A nil Redis client is
// valid; reads then come from the environment (CUSTOMIZATION_<KEY>)
// and writes are rejected.
type Store struct {
	rdb *redis.Client
}

// NewStore returns a Store backed by the given Redis client, which may
// be nil.
func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// Get returns the raw value for the key, falling back to the
// environment and then to def.
func (s *Store) Get(ctx context.Context, key, def string) string {
	if s.rdb != nil {
		v, err := s.rdb.Get(ctx, keyPrefix+key).Result()
		if err == nil {
			return v
		}
		if err != redis.Nil {
			log.Printf("customization: reading %q: %v", key, err)
		}
	}
	if v := os.Getenv("CUSTOMIZATION_" + strings.ToUpper(key)); v != "" {
		return v
	}
	return def
}

// GetBool returns the key interpreted as a boolean.
func (s *Store) GetBool(ctx context.Context, key string, def bool) bool {
	v := s.Get(ctx, key, "")
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on", "enabled":
		return true
	case "0", "false", "no", "off", "disabled":
		return false
	}
	return def
}

// Set stores a value.  Returns redis.ErrClosed-like failures to the
// caller; with no Redis the store is read-only.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if s.rdb == nil {
		return errReadOnly
	}
	return s.rdb.Set(ctx, keyPrefix+key, value, 0).Err()
}

// Toggles reads the feature switches the policy layer consumes.  Both
// self-service flows default to enabled.
func (s *Store) Toggles(ctx context.Context) policy.Toggles {
	return policy.Toggles{
		SelfLogIn:  s.GetBool(ctx, KeySelfLogIn, true),
		SelfLogOut: s.GetBool(ctx, KeySelfLogOut, true),
	}
}

type readOnlyError struct{}

func (readOnlyError) Error() string { return "customization store is read-only without redis" }

var errReadOnly = readOnlyError{}
