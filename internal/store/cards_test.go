package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/router-for-me/QuotaCardService/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb)
}

func testCard(id, code string) *models.Card {
	return &models.Card{
		ID:          id,
		Code:        code,
		Type:        models.CardTypeCombo,
		QuotaAmount: 100,
		TimeAmount:  30,
		TimeUnit:    models.TimeUnitDays,
		Status:      models.CardStatusUnused,
		CreatedBy:   "admin",
		CreatedAt:   time.Now().UTC(),
		Note:        "test card",
	}
}

func TestCardStore_SaveAndGetRoundtrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	expires := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Millisecond)
	card := testCard("card-1", "CC_AAAA_BBBB_CCCC")
	card.ExpiresAt = &expires
	if errSave := s.SaveCard(ctx, card); errSave != nil {
		t.Fatalf("save card: %v", errSave)
	}

	got, errGet := s.GetCard(ctx, "card-1")
	if errGet != nil {
		t.Fatalf("get card: %v", errGet)
	}
	if got.Code != card.Code || got.Type != card.Type || got.Status != models.CardStatusUnused {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
	if got.QuotaAmount != 100 || got.TimeAmount != 30 || got.TimeUnit != models.TimeUnitDays {
		t.Fatalf("amounts mismatch: %+v", got)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("expiresAt mismatch: got %v, want %v", got.ExpiresAt, expires)
	}
	if got.RedeemedAt != nil || got.RevokedAt != nil {
		t.Fatalf("expected empty provenance on fresh card: %+v", got)
	}
}

func TestCardStore_GetMissing(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	if _, err := s.GetCard(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.CardIDByCode(context.Background(), "CC_ZZZZ_ZZZZ_ZZZZ"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
	}
}

func TestCardStore_RegisterCodeCollision(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	ok, errFirst := s.RegisterCode(ctx, "CC_AAAA_BBBB_CCCC", "card-1")
	if errFirst != nil || !ok {
		t.Fatalf("first registration should succeed: ok=%v err=%v", ok, errFirst)
	}
	ok, errSecond := s.RegisterCode(ctx, "CC_AAAA_BBBB_CCCC", "card-2")
	if errSecond != nil {
		t.Fatalf("second registration errored: %v", errSecond)
	}
	if ok {
		t.Fatalf("second registration must not overwrite the existing code")
	}
	id, errResolve := s.CardIDByCode(ctx, "CC_AAAA_BBBB_CCCC")
	if errResolve != nil || id != "card-1" {
		t.Fatalf("code must still map to card-1, got %q err=%v", id, errResolve)
	}
}

func TestCardStore_MarkCardRedeemed(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	card := testCard("card-1", "CC_AAAA_BBBB_CCCC")
	if errSave := s.SaveCard(ctx, card); errSave != nil {
		t.Fatalf("save card: %v", errSave)
	}

	now := time.Now().UTC()
	errMark := s.MarkCardRedeemed(ctx, "card-1", CardProvenance{
		UserID:     "user-1",
		Username:   "alice",
		APIKeyID:   "key-1",
		APIKeyName: "main key",
		RedeemedAt: now,
	})
	if errMark != nil {
		t.Fatalf("mark redeemed: %v", errMark)
	}

	got, errGet := s.GetCard(ctx, "card-1")
	if errGet != nil {
		t.Fatalf("get card: %v", errGet)
	}
	if got.Status != models.CardStatusRedeemed {
		t.Fatalf("status = %q, want redeemed", got.Status)
	}
	if got.RedeemedBy != "user-1" || got.RedeemedByUsername != "alice" || got.RedeemedAPIKeyID != "key-1" {
		t.Fatalf("provenance not written: %+v", got)
	}
	if got.RedeemedAt == nil || !got.RedeemedAt.Equal(now.Truncate(0)) {
		t.Fatalf("redeemedAt = %v, want %v", got.RedeemedAt, now)
	}

	// Index sets must have moved atomically.
	unused, _ := s.ListCardIDs(ctx, models.CardStatusUnused)
	redeemed, _ := s.ListCardIDs(ctx, models.CardStatusRedeemed)
	if len(unused) != 0 {
		t.Fatalf("unused index still holds %v", unused)
	}
	if len(redeemed) != 1 || redeemed[0] != "card-1" {
		t.Fatalf("redeemed index = %v, want [card-1]", redeemed)
	}
}

func TestCardStore_MarkCardRedeemed_StateMismatch(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	card := testCard("card-1", "CC_AAAA_BBBB_CCCC")
	if errSave := s.SaveCard(ctx, card); errSave != nil {
		t.Fatalf("save card: %v", errSave)
	}
	prov := CardProvenance{UserID: "user-1", APIKeyID: "key-1", RedeemedAt: time.Now().UTC()}
	if errFirst := s.MarkCardRedeemed(ctx, "card-1", prov); errFirst != nil {
		t.Fatalf("first transition: %v", errFirst)
	}

	errSecond := s.MarkCardRedeemed(ctx, "card-1", prov)
	var mismatch *StateMismatchError
	if !errors.As(errSecond, &mismatch) {
		t.Fatalf("expected StateMismatchError, got %v", errSecond)
	}
	if mismatch.Status != models.CardStatusRedeemed {
		t.Fatalf("observed status = %q, want redeemed", mismatch.Status)
	}

	if errMissing := s.MarkCardRedeemed(ctx, "ghost", prov); !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing card, got %v", errMissing)
	}
}

func TestCardStore_DeleteCardRemovesAllIndexEntries(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	card := testCard("card-1", "CC_AAAA_BBBB_CCCC")
	if _, err := s.RegisterCode(ctx, card.Code, card.ID); err != nil {
		t.Fatalf("register code: %v", err)
	}
	if errSave := s.SaveCard(ctx, card); errSave != nil {
		t.Fatalf("save card: %v", errSave)
	}

	if errDel := s.DeleteCard(ctx, card); errDel != nil {
		t.Fatalf("delete card: %v", errDel)
	}
	if _, err := s.GetCard(ctx, card.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record should be gone, got %v", err)
	}
	if _, err := s.CardIDByCode(ctx, card.Code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("code mapping should be gone, got %v", err)
	}
	all, _ := s.ListCardIDs(ctx, "")
	unused, _ := s.ListCardIDs(ctx, models.CardStatusUnused)
	if len(all) != 0 || len(unused) != 0 {
		t.Fatalf("index sets not emptied: all=%v unused=%v", all, unused)
	}
}

func TestCardStore_CountsMatchIndexCardinalities(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		card := testCard(id, "CC_"+id+"AAA_BBBB_CCCC")
		if errSave := s.SaveCard(ctx, card); errSave != nil {
			t.Fatalf("save card %s: %v", id, errSave)
		}
	}
	prov := CardProvenance{UserID: "u", APIKeyID: "k", RedeemedAt: time.Now().UTC()}
	if errMark := s.MarkCardRedeemed(ctx, "a", prov); errMark != nil {
		t.Fatalf("mark redeemed: %v", errMark)
	}

	counts, errCount := s.CountCardsByStatus(ctx)
	if errCount != nil {
		t.Fatalf("count by status: %v", errCount)
	}
	if counts[models.CardStatusUnused] != 2 || counts[models.CardStatusRedeemed] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	var sum int64
	for _, n := range counts {
		sum += n
	}
	total, errTotal := s.CountCards(ctx)
	if errTotal != nil {
		t.Fatalf("count cards: %v", errTotal)
	}
	if sum != total {
		t.Fatalf("per-status sum %d != global index cardinality %d", sum, total)
	}
}
