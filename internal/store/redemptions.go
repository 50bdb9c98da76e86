package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/QuotaCardService/internal/models"
)

// redemptionTransitionScript performs a compare-and-set status transition on a
// redemption hash. Redemptions have no status-partitioned sets, so only the
// hash changes.
//
// KEYS[1] redemption hash. ARGV[1] expected status, ARGV[2] new status,
// ARGV[3..] extra field/value pairs. Same return convention as the card script.
var redemptionTransitionScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if status == false then
  return ''
end
if status ~= ARGV[1] then
  return status
end
redis.call('HSET', KEYS[1], 'status', ARGV[2])
for i = 3, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return 'OK'
`)

// SaveRedemption writes the ledger entry and registers it in the global,
// per-user, and per-credential index sets.
func (s *Store) SaveRedemption(ctx context.Context, rec *models.Redemption) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redemptionKey(rec.ID), redemptionToMap(rec))
		pipe.SAdd(ctx, redemptionsAllKey, rec.ID)
		pipe.SAdd(ctx, redemptionUserKey(rec.UserID), rec.ID)
		pipe.SAdd(ctx, redemptionAPIKeyKey(rec.APIKeyID), rec.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: save redemption: %w", err)
	}
	return nil
}

// GetRedemption loads a ledger entry by ID.
func (s *Store) GetRedemption(ctx context.Context, id string) (*models.Redemption, error) {
	data, err := s.rdb.HGetAll(ctx, redemptionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: get redemption: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return redemptionFromMap(data), nil
}

// ListRedemptionIDs selects the user index when userID is set, otherwise the
// credential index when apiKeyID is set, otherwise the global index.
func (s *Store) ListRedemptionIDs(ctx context.Context, userID, apiKeyID string) ([]string, error) {
	key := redemptionsAllKey
	switch {
	case userID != "":
		key = redemptionUserKey(userID)
	case apiKeyID != "":
		key = redemptionAPIKeyKey(apiKeyID)
	}
	ids, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list redemption ids: %w", err)
	}
	return ids, nil
}

// MarkRedemptionRevoked transitions a ledger entry active -> revoked with
// revocation fields. At most one concurrent caller succeeds.
func (s *Store) MarkRedemptionRevoked(ctx context.Context, id string, at time.Time, by, reason string) error {
	keys := []string{redemptionKey(id)}
	res, err := redemptionTransitionScript.Run(ctx, s.rdb, keys,
		models.RedemptionStatusActive, models.RedemptionStatusRevoked,
		"revokedAt", formatTime(at),
		"revokedBy", by,
		"revokeReason", reason,
	).Result()
	if err != nil {
		return fmt.Errorf("store: mark redemption revoked: %w", err)
	}
	switch out := res.(string); out {
	case "OK":
		return nil
	case "":
		return ErrNotFound
	default:
		return &StateMismatchError{Status: out}
	}
}

// SetActualQuotaDeducted records the collaborator-reported clawback amount on
// an already revoked ledger entry.
func (s *Store) SetActualQuotaDeducted(ctx context.Context, id string, amount float64) error {
	if err := s.rdb.HSet(ctx, redemptionKey(id), "actualQuotaDeducted", formatFloat(amount)).Err(); err != nil {
		return fmt.Errorf("store: set actual quota deducted: %w", err)
	}
	return nil
}
