// Package cards manages the card lifecycle: creation, lookup, listing,
// deletion, and per-status statistics.
package cards

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/router-for-me/QuotaCardService/internal/cardcode"
	"github.com/router-for-me/QuotaCardService/internal/models"
	"github.com/router-for-me/QuotaCardService/internal/store"
)

// codeAttempts bounds retries when a generated code collides with an existing
// one. Collisions are practically negligible over the 32^12 keyspace, but a
// collision must never overwrite an existing card.
const codeAttempts = 5

// CreateParams holds the configuration for a new card.
type CreateParams struct {
	Type        string     // quota | time | combo; defaults to quota.
	QuotaAmount float64    // Required >0 for quota/combo.
	TimeAmount  int        // Required >0 for time/combo.
	TimeUnit    string     // hours | days | months; defaults to days.
	ExpiresAt   *time.Time // Optional card validity deadline.
	Note        string     // Free-form issuance note.
	CreatedBy   string     // Issuing actor.
}

// Stats aggregates card counts per status.
type Stats struct {
	Total    int64 `json:"total"`
	Unused   int64 `json:"unused"`
	Redeemed int64 `json:"redeemed"`
	Revoked  int64 `json:"revoked"`
	Expired  int64 `json:"expired"`
}

// Manager orchestrates card lifecycle operations over the card store.
type Manager struct {
	store *store.Store
}

// NewManager constructs a Manager.
func NewManager(s *store.Store) *Manager {
	return &Manager{store: s}
}

// Create validates the configuration, generates an ID and a unique code, and
// persists the card with status unused. It has no effect on any credential.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*models.Card, error) {
	if params.Type == "" {
		params.Type = models.CardTypeQuota
	}
	if params.TimeUnit == "" {
		params.TimeUnit = models.TimeUnitDays
	}
	if !models.ValidCardType(params.Type) {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown card type %q", params.Type)}
	}
	if !models.ValidTimeUnit(params.TimeUnit) {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown time unit %q", params.TimeUnit)}
	}
	if (params.Type == models.CardTypeQuota || params.Type == models.CardTypeCombo) && params.QuotaAmount <= 0 {
		return nil, &ValidationError{Reason: "quotaAmount is required for quota/combo cards"}
	}
	if (params.Type == models.CardTypeTime || params.Type == models.CardTypeCombo) && params.TimeAmount <= 0 {
		return nil, &ValidationError{Reason: "timeAmount is required for time/combo cards"}
	}

	id := uuid.NewString()
	code, err := m.claimCode(ctx, id)
	if err != nil {
		return nil, err
	}

	card := &models.Card{
		ID:          id,
		Code:        code,
		Type:        params.Type,
		QuotaAmount: params.QuotaAmount,
		TimeAmount:  params.TimeAmount,
		TimeUnit:    params.TimeUnit,
		Status:      models.CardStatusUnused,
		ExpiresAt:   params.ExpiresAt,
		CreatedBy:   params.CreatedBy,
		CreatedAt:   time.Now().UTC(),
		Note:        params.Note,
	}
	if errSave := m.store.SaveCard(ctx, card); errSave != nil {
		return nil, errSave
	}
	log.Infof("created %s card %s (%s)", card.Type, card.Code, card.ID)
	return card, nil
}

// claimCode generates codes until one registers cleanly in the code index.
func (m *Manager) claimCode(ctx context.Context, cardID string) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, errGen := cardcode.Generate()
		if errGen != nil {
			return "", errGen
		}
		ok, errReg := m.store.RegisterCode(ctx, code, cardID)
		if errReg != nil {
			return "", errReg
		}
		if ok {
			return code, nil
		}
		log.Warnf("card code collision on attempt %d, regenerating", attempt+1)
	}
	return "", fmt.Errorf("cards: could not claim a unique code after %d attempts", codeAttempts)
}

// CreateBatch creates count cards from the same configuration, each via an
// independent Create call. Cards created before a failure remain valid; the
// partial batch is returned alongside the error so callers know how many
// succeeded.
func (m *Manager) CreateBatch(ctx context.Context, params CreateParams, count int) ([]*models.Card, error) {
	if count <= 0 {
		return nil, &ValidationError{Reason: "count must be positive"}
	}
	created := make([]*models.Card, 0, count)
	for i := 0; i < count; i++ {
		card, errCreate := m.Create(ctx, params)
		if errCreate != nil {
			return created, fmt.Errorf("cards: batch failed after %d of %d: %w", len(created), count, errCreate)
		}
		created = append(created, card)
	}
	log.Infof("batch created %d cards", count)
	return created, nil
}

// GetByCode resolves a card by its human-facing code.
func (m *Manager) GetByCode(ctx context.Context, code string) (*models.Card, error) {
	id, err := m.store.CardIDByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, err
	}
	return m.GetByID(ctx, id)
}

// GetByID loads a card by ID.
func (m *Manager) GetByID(ctx context.Context, id string) (*models.Card, error) {
	card, err := m.store.GetCard(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

// List returns cards filtered by status (all when empty), sorted by creation
// time descending with ties broken by ID for determinism. Total reflects the
// filtered set size before pagination.
func (m *Manager) List(ctx context.Context, status string, limit, offset int) ([]*models.Card, int, error) {
	if status != "" {
		valid := false
		for _, s := range models.CardStatuses {
			if s == status {
				valid = true
				break
			}
		}
		if !valid {
			return nil, 0, &ValidationError{Reason: fmt.Sprintf("unknown status %q", status)}
		}
	}
	ids, err := m.store.ListCardIDs(ctx, status)
	if err != nil {
		return nil, 0, err
	}
	loaded := make([]*models.Card, 0, len(ids))
	for _, id := range ids {
		card, errGet := m.store.GetCard(ctx, id)
		if errors.Is(errGet, store.ErrNotFound) {
			continue
		}
		if errGet != nil {
			return nil, 0, errGet
		}
		loaded = append(loaded, card)
	}
	sort.Slice(loaded, func(i, j int) bool {
		if !loaded[i].CreatedAt.Equal(loaded[j].CreatedAt) {
			return loaded[i].CreatedAt.After(loaded[j].CreatedAt)
		}
		return loaded[i].ID < loaded[j].ID
	})
	total := len(loaded)
	return paginate(loaded, limit, offset), total, nil
}

// Delete removes an unused card and all of its index entries. Cards with
// redemption history are never deleted, preserving audit integrity.
func (m *Manager) Delete(ctx context.Context, id string) error {
	card, err := m.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if card.Status != models.CardStatusUnused {
		return &StateError{Status: card.Status}
	}
	if errDel := m.store.DeleteCard(ctx, card); errDel != nil {
		return errDel
	}
	log.Infof("deleted card %s", card.Code)
	return nil
}

// Stats returns card counts per status. Total is the sum of the per-status
// index cardinalities and must always equal the global index cardinality.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	counts, err := m.store.CountCardsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		Unused:   counts[models.CardStatusUnused],
		Redeemed: counts[models.CardStatusRedeemed],
		Revoked:  counts[models.CardStatusRevoked],
		Expired:  counts[models.CardStatusExpired],
	}
	stats.Total = stats.Unused + stats.Redeemed + stats.Revoked + stats.Expired
	return stats, nil
}

// paginate slices records by limit/offset without reallocating.
func paginate(cards []*models.Card, limit, offset int) []*models.Card {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(cards) {
		return []*models.Card{}
	}
	end := len(cards)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return cards[offset:end]
}
