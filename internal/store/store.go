// Package store persists card records and the redemption ledger in Redis,
// along with the status, user, and credential index sets derived from them.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout. Cards are hashes keyed by ID with a separate code->ID string key;
// index sets partition card IDs by status. Redemptions are hashes keyed by ID
// with global, per-user, and per-credential index sets.
const (
	cardKeyPrefix       = "quota_card:"
	cardCodeKeyPrefix   = "quota_card_code:"
	cardsAllKey         = "quota_cards:all"
	cardStatusKeyPrefix = "quota_cards:status:"

	redemptionKeyPrefix     = "redemption:"
	redemptionsAllKey       = "redemptions:all"
	redemptionUserKeyPrefix = "redemptions:user:"
	redemptionAPIKeyPrefix  = "redemptions:apikey:"
)

// ErrNotFound reports a missing card, code mapping, or redemption record.
var ErrNotFound = errors.New("store: not found")

// StateMismatchError reports a conditional transition that observed a status
// other than the expected one. Status is the status actually observed.
type StateMismatchError struct {
	Status string
}

func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("store: state mismatch, current status is %s", e.Status)
}

// Store provides card and redemption persistence over a shared Redis backend.
type Store struct {
	rdb redis.UniversalClient
}

// Open connects to Redis using a redis:// URL and verifies the connection.
func Open(redisURL string) (*Store, error) {
	opts, errParse := redis.ParseURL(redisURL)
	if errParse != nil {
		return nil, fmt.Errorf("store: parse redis url: %w", errParse)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if errPing := rdb.Ping(pingCtx).Err(); errPing != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("store: ping redis: %w", errPing)
	}
	return &Store{rdb: rdb}, nil
}

// New wraps an existing Redis client. Used by tests and by callers that manage
// the client lifecycle themselves.
func New(rdb redis.UniversalClient) *Store {
	return &Store{rdb: rdb}
}

// Close releases the underlying Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// HealthCheck verifies the backend is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func cardKey(id string) string       { return cardKeyPrefix + id }
func cardCodeKey(code string) string { return cardCodeKeyPrefix + code }
func cardStatusKey(status string) string {
	return cardStatusKeyPrefix + status
}
func redemptionKey(id string) string { return redemptionKeyPrefix + id }
func redemptionUserKey(userID string) string {
	return redemptionUserKeyPrefix + userID
}
func redemptionAPIKeyKey(apiKeyID string) string {
	return redemptionAPIKeyPrefix + apiKeyID
}
