// Package redemption applies card effects to credentials and keeps the
// auditable ledger that lets any redemption be reversed.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/router-for-me/QuotaCardService/internal/cards"
	"github.com/router-for-me/QuotaCardService/internal/models"
	"github.com/router-for-me/QuotaCardService/internal/store"
)

// ErrRedemptionNotFound reports an unknown redemption record.
var ErrRedemptionNotFound = errors.New("redemption not found")

// ErrAlreadyRevoked reports a revocation attempt on a non-active redemption.
var ErrAlreadyRevoked = errors.New("redemption is already revoked")

// ErrNotAggregated reports a quota/combo card redeemed onto a credential that
// does not pool usage. Time-only cards bypass this rule.
var ErrNotAggregated = errors.New("only aggregated credentials can redeem quota cards")

// Result carries the outcome of a successful redemption.
type Result struct {
	RedemptionID string     `json:"redemptionId"`
	CardCode     string     `json:"cardCode"`
	CardType     string     `json:"cardType"`
	QuotaAdded   float64    `json:"quotaAdded"`
	TimeAdded    int        `json:"timeAdded"`
	TimeUnit     string     `json:"timeUnit"`
	BeforeQuota  float64    `json:"beforeQuota"`
	AfterQuota   float64    `json:"afterQuota"`
	BeforeExpiry *time.Time `json:"beforeExpiry"`
	AfterExpiry  *time.Time `json:"afterExpiry"`
}

// RevokeResult carries the outcome of a revocation.
type RevokeResult struct {
	RedemptionID        string  `json:"redemptionId"`
	CardCode            string  `json:"cardCode"`
	ActualQuotaDeducted float64 `json:"actualQuotaDeducted"`
	Reason              string  `json:"reason"`
}

// Engine orchestrates redemption and revocation over the card store, the
// redemption ledger, and the credential collaborator.
type Engine struct {
	store *store.Store
	creds CredentialService
}

// NewEngine constructs an Engine with its collaborator injected explicitly.
func NewEngine(s *store.Store, creds CredentialService) *Engine {
	return &Engine{store: s, creds: creds}
}

// Redeem applies the card identified by code to the target credential.
//
// The status transition unused -> redeemed is the first durable write: it is a
// compare-and-set, so of any number of concurrent attempts exactly one
// proceeds to apply effects and the rest fail against the post-transition
// status. A crash after the transition leaves a consumed card, never a
// double-payable one. Quota is applied before the time extension; after-values
// come from the collaborator, which owns clamping and rounding.
func (e *Engine) Redeem(ctx context.Context, code, apiKeyID, userID, username string) (*Result, error) {
	id, err := e.store.CardIDByCode(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil, cards.ErrCardNotFound
	}
	if err != nil {
		return nil, err
	}
	card, err := e.store.GetCard(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, cards.ErrCardNotFound
	}
	if err != nil {
		return nil, err
	}

	if card.Status != models.CardStatusUnused {
		return nil, &cards.StateError{Status: card.Status}
	}

	// Lazy expiry: the only path that produces the expired status.
	if card.ExpiresAt != nil && card.ExpiresAt.Before(time.Now()) {
		if errExpire := e.store.MarkCardExpired(ctx, card.ID); errExpire != nil {
			var mismatch *store.StateMismatchError
			if !errors.As(errExpire, &mismatch) {
				return nil, errExpire
			}
			// Lost a race to another transition; the card is spent either way.
		}
		return nil, cards.ErrCardExpired
	}

	cred, err := e.creds.GetCredential(ctx, apiKeyID)
	if err != nil {
		return nil, err
	}
	if card.Type != models.CardTypeTime && !cred.IsAggregated {
		return nil, ErrNotAggregated
	}

	beforeQuota := cred.QuotaLimit
	beforeExpiry := cred.ExpiresAt

	now := time.Now().UTC()
	errMark := e.store.MarkCardRedeemed(ctx, card.ID, store.CardProvenance{
		UserID:     userID,
		Username:   username,
		APIKeyID:   apiKeyID,
		APIKeyName: cred.Name,
		RedeemedAt: now,
	})
	if errMark != nil {
		var mismatch *store.StateMismatchError
		if errors.As(errMark, &mismatch) {
			if mismatch.Status == models.CardStatusExpired {
				return nil, cards.ErrCardExpired
			}
			return nil, &cards.StateError{Status: mismatch.Status}
		}
		if errors.Is(errMark, store.ErrNotFound) {
			return nil, cards.ErrCardNotFound
		}
		return nil, errMark
	}

	// The card is consumed from here on. Effects apply exactly once; a
	// failure below still writes the ledger entry with whatever was applied,
	// so the grant stays revocable.
	var (
		applyErr    error
		quotaAdded  float64
		timeAdded   int
		afterQuota  = beforeQuota
		afterExpiry = beforeExpiry
	)
	if card.Type == models.CardTypeQuota || card.Type == models.CardTypeCombo {
		newLimit, errInc := e.creds.IncreaseQuotaLimit(ctx, apiKeyID, card.QuotaAmount)
		if errInc != nil {
			applyErr = fmt.Errorf("increase quota limit: %w", errInc)
		} else {
			afterQuota = newLimit
			quotaAdded = card.QuotaAmount
		}
	}
	if applyErr == nil && (card.Type == models.CardTypeTime || card.Type == models.CardTypeCombo) {
		newExpiry, errExt := e.creds.ExtendExpiry(ctx, apiKeyID, card.TimeAmount, card.TimeUnit)
		if errExt != nil {
			applyErr = fmt.Errorf("extend expiry: %w", errExt)
		} else {
			afterExpiry = &newExpiry
			timeAdded = card.TimeAmount
		}
	}

	rec := &models.Redemption{
		ID:           uuid.NewString(),
		CardID:       card.ID,
		CardCode:     card.Code,
		CardType:     card.Type,
		UserID:       userID,
		Username:     username,
		APIKeyID:     apiKeyID,
		APIKeyName:   cred.Name,
		QuotaAdded:   quotaAdded,
		TimeAdded:    timeAdded,
		TimeUnit:     card.TimeUnit,
		BeforeQuota:  beforeQuota,
		AfterQuota:   afterQuota,
		BeforeExpiry: beforeExpiry,
		AfterExpiry:  afterExpiry,
		Timestamp:    now,
		Status:       models.RedemptionStatusActive,
	}
	if errSave := e.store.SaveRedemption(ctx, rec); errSave != nil {
		log.Errorf("card %s consumed but ledger write failed: %v", card.Code, errSave)
		return nil, errSave
	}
	if applyErr != nil {
		log.Errorf("card %s consumed with partial effect application: %v", card.Code, applyErr)
		return nil, fmt.Errorf("redemption: card %s consumed, effect application failed: %w", card.Code, applyErr)
	}

	log.Infof("card %s redeemed by %s onto credential %s", card.Code, userID, apiKeyID)
	return &Result{
		RedemptionID: rec.ID,
		CardCode:     rec.CardCode,
		CardType:     rec.CardType,
		QuotaAdded:   rec.QuotaAdded,
		TimeAdded:    rec.TimeAdded,
		TimeUnit:     rec.TimeUnit,
		BeforeQuota:  rec.BeforeQuota,
		AfterQuota:   rec.AfterQuota,
		BeforeExpiry: rec.BeforeExpiry,
		AfterExpiry:  rec.AfterExpiry,
	}, nil
}

// Revoke reverses the quota effect of an active redemption and terminally
// invalidates the originating card. Time extensions already granted are kept;
// only the quota grant is clawed back, clamped by the collaborator to what the
// credential still holds. The ledger transition active -> revoked is the first
// durable write so concurrent revocations cannot double-deduct.
func (e *Engine) Revoke(ctx context.Context, redemptionID, actor, reason string) (*RevokeResult, error) {
	rec, err := e.store.GetRedemption(ctx, redemptionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRedemptionNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.Status != models.RedemptionStatusActive {
		return nil, ErrAlreadyRevoked
	}

	now := time.Now().UTC()
	errMark := e.store.MarkRedemptionRevoked(ctx, redemptionID, now, actor, reason)
	if errMark != nil {
		var mismatch *store.StateMismatchError
		if errors.As(errMark, &mismatch) {
			return nil, ErrAlreadyRevoked
		}
		if errors.Is(errMark, store.ErrNotFound) {
			return nil, ErrRedemptionNotFound
		}
		return nil, errMark
	}

	var actualDeducted float64
	if rec.QuotaAdded > 0 {
		actualDeducted, err = e.creds.DeductQuotaLimit(ctx, rec.APIKeyID, rec.QuotaAdded)
		if err != nil {
			log.Errorf("redemption %s revoked but quota deduction failed: %v", redemptionID, err)
			return nil, fmt.Errorf("redemption: deduct quota limit: %w", err)
		}
		if errSet := e.store.SetActualQuotaDeducted(ctx, redemptionID, actualDeducted); errSet != nil {
			return nil, errSet
		}
	}

	if errCard := e.store.MarkCardRevoked(ctx, rec.CardID, now, actor, reason); errCard != nil {
		var mismatch *store.StateMismatchError
		if !errors.As(errCard, &mismatch) && !errors.Is(errCard, store.ErrNotFound) {
			return nil, errCard
		}
		log.Warnf("redemption %s revoked but card %s transition skipped: %v", redemptionID, rec.CardID, errCard)
	}

	log.Infof("revoked redemption %s by %s, deducted %v", redemptionID, actor, actualDeducted)
	return &RevokeResult{
		RedemptionID:        redemptionID,
		CardCode:            rec.CardCode,
		ActualQuotaDeducted: actualDeducted,
		Reason:              reason,
	}, nil
}

// Redemptions lists ledger entries scoped to a user or a credential, or
// globally when neither filter is set, sorted by timestamp descending. Total
// reflects the filtered set size before pagination.
func (e *Engine) Redemptions(ctx context.Context, userID, apiKeyID string, limit, offset int) ([]*models.Redemption, int, error) {
	ids, err := e.store.ListRedemptionIDs(ctx, userID, apiKeyID)
	if err != nil {
		return nil, 0, err
	}
	loaded := make([]*models.Redemption, 0, len(ids))
	for _, id := range ids {
		rec, errGet := e.store.GetRedemption(ctx, id)
		if errors.Is(errGet, store.ErrNotFound) {
			continue
		}
		if errGet != nil {
			return nil, 0, errGet
		}
		loaded = append(loaded, rec)
	}
	sort.Slice(loaded, func(i, j int) bool {
		if !loaded[i].Timestamp.Equal(loaded[j].Timestamp) {
			return loaded[i].Timestamp.After(loaded[j].Timestamp)
		}
		return loaded[i].ID < loaded[j].ID
	})
	total := len(loaded)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(loaded) {
		return []*models.Redemption{}, total, nil
	}
	end := len(loaded)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return loaded[offset:end], total, nil
}
