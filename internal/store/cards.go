package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/router-for-me/QuotaCardService/internal/models"
)

// cardTransitionScript performs a compare-and-set status transition on a card
// hash and moves the card between status index sets in the same atomic step,
// so no reader can observe the card in two status sets or in neither.
//
// KEYS[1] card hash, KEYS[2] source status set, KEYS[3] target status set.
// ARGV[1] card ID, ARGV[2] expected status, ARGV[3] new status,
// ARGV[4..] extra field/value pairs written with the transition.
// Returns "OK" on success, "" when the card is missing, or the observed status.
var cardTransitionScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if status == false then
  return ''
end
if status ~= ARGV[2] then
  return status
end
redis.call('HSET', KEYS[1], 'status', ARGV[3])
for i = 4, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('SMOVE', KEYS[2], KEYS[3], ARGV[1])
return 'OK'
`)

// RegisterCode claims the code->ID mapping for a freshly generated code.
// It reports false when the code is already taken, so callers can retry with a
// new code instead of silently overwriting an existing card.
func (s *Store) RegisterCode(ctx context.Context, code, cardID string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, cardCodeKey(code), cardID, 0).Result()
	if err != nil {
		return false, fmt.Errorf("store: register code: %w", err)
	}
	return ok, nil
}

// SaveCard writes the card record and registers it in the global and
// status-partitioned index sets.
func (s *Store) SaveCard(ctx context.Context, card *models.Card) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, cardKey(card.ID), cardToMap(card))
		pipe.SAdd(ctx, cardsAllKey, card.ID)
		pipe.SAdd(ctx, cardStatusKey(card.Status), card.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: save card: %w", err)
	}
	return nil
}

// GetCard loads a card record by ID.
func (s *Store) GetCard(ctx context.Context, id string) (*models.Card, error) {
	data, err := s.rdb.HGetAll(ctx, cardKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: get card: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return cardFromMap(data), nil
}

// CardIDByCode resolves a card code to its ID.
func (s *Store) CardIDByCode(ctx context.Context, code string) (string, error) {
	id, err := s.rdb.Get(ctx, cardCodeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: card id by code: %w", err)
	}
	return id, nil
}

// DeleteCard removes the card record and every index entry, including the
// code->ID mapping. Callers must have verified the card is deletable.
func (s *Store) DeleteCard(ctx context.Context, card *models.Card) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cardKey(card.ID))
		pipe.Del(ctx, cardCodeKey(card.Code))
		pipe.SRem(ctx, cardsAllKey, card.ID)
		pipe.SRem(ctx, cardStatusKey(card.Status), card.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: delete card: %w", err)
	}
	return nil
}

// ListCardIDs returns IDs from the status index when status is non-empty, or
// from the global index otherwise.
func (s *Store) ListCardIDs(ctx context.Context, status string) ([]string, error) {
	key := cardsAllKey
	if status != "" {
		key = cardStatusKey(status)
	}
	ids, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("store: list card ids: %w", err)
	}
	return ids, nil
}

// CountCardsByStatus returns the cardinality of each status index.
func (s *Store) CountCardsByStatus(ctx context.Context) (map[string]int64, error) {
	cmds := make(map[string]*redis.IntCmd, len(models.CardStatuses))
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, status := range models.CardStatuses {
			cmds[status] = pipe.SCard(ctx, cardStatusKey(status))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: count cards by status: %w", err)
	}
	counts := make(map[string]int64, len(cmds))
	for status, cmd := range cmds {
		counts[status] = cmd.Val()
	}
	return counts, nil
}

// CountCards returns the cardinality of the global card index.
func (s *Store) CountCards(ctx context.Context) (int64, error) {
	n, err := s.rdb.SCard(ctx, cardsAllKey).Result()
	if err != nil {
		return 0, fmt.Errorf("store: count cards: %w", err)
	}
	return n, nil
}

// CardProvenance carries the redemption fields written alongside the
// unused -> redeemed transition.
type CardProvenance struct {
	UserID     string    // Redeeming user ID.
	Username   string    // Redeeming username.
	APIKeyID   string    // Target credential ID.
	APIKeyName string    // Target credential name snapshot.
	RedeemedAt time.Time // Redemption time.
}

// MarkCardRedeemed transitions a card unused -> redeemed with provenance.
// At most one concurrent caller succeeds; the rest observe a StateMismatchError
// carrying the post-transition status.
func (s *Store) MarkCardRedeemed(ctx context.Context, id string, p CardProvenance) error {
	return s.transitionCard(ctx, id, models.CardStatusUnused, models.CardStatusRedeemed,
		"redeemedBy", p.UserID,
		"redeemedByUsername", p.Username,
		"redeemedApiKeyId", p.APIKeyID,
		"redeemedApiKeyName", p.APIKeyName,
		"redeemedAt", formatTime(p.RedeemedAt),
	)
}

// MarkCardExpired transitions a card unused -> expired.
func (s *Store) MarkCardExpired(ctx context.Context, id string) error {
	return s.transitionCard(ctx, id, models.CardStatusUnused, models.CardStatusExpired)
}

// MarkCardRevoked transitions a card redeemed -> revoked with revocation fields.
func (s *Store) MarkCardRevoked(ctx context.Context, id string, at time.Time, by, reason string) error {
	return s.transitionCard(ctx, id, models.CardStatusRedeemed, models.CardStatusRevoked,
		"revokedAt", formatTime(at),
		"revokedBy", by,
		"revokeReason", reason,
	)
}

func (s *Store) transitionCard(ctx context.Context, id, from, to string, fields ...string) error {
	args := make([]interface{}, 0, 3+len(fields))
	args = append(args, id, from, to)
	for _, f := range fields {
		args = append(args, f)
	}
	keys := []string{cardKey(id), cardStatusKey(from), cardStatusKey(to)}
	res, err := cardTransitionScript.Run(ctx, s.rdb, keys, args...).Result()
	if err != nil {
		return fmt.Errorf("store: transition card: %w", err)
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
