package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/router-for-me/QuotaCardService/internal/cards"
	"github.com/router-for-me/QuotaCardService/internal/redemption"
	"github.com/router-for-me/QuotaCardService/internal/store"
)

const testToken = "test-admin-token"

type stubCredentials struct{}

func (stubCredentials) GetCredential(context.Context, string) (*redemption.Credential, error) {
	return nil, redemption.ErrCredentialNotFound
}

func (stubCredentials) IncreaseQuotaLimit(context.Context, string, float64) (float64, error) {
	return 0, redemption.ErrCredentialNotFound
}

func (stubCredentials) DeductQuotaLimit(context.Context, string, float64) (float64, error) {
	return 0, redemption.ErrCredentialNotFound
}

func (stubCredentials) ExtendExpiry(context.Context, string, int, string) (time.Time, error) {
	return time.Time{}, redemption.ErrCredentialNotFound
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := store.New(rdb)

	engine := gin.New()
	RegisterAdminRoutes(engine, cards.NewManager(s), redemption.NewEngine(s, stubCredentials{}), testToken)
	return engine
}

func doRequest(t *testing.T, router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAdminRoutes_RequireToken(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	if rec := doRequest(t, router, http.MethodGet, "/v0/admin/cards", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/v0/admin/cards", "wrong", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(t, router, http.MethodGet, "/v0/admin/cards", testToken, ""); rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
}

func TestAdminRoutes_CardLifecycle(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v0/admin/cards", testToken,
		`{"type":"quota","quota_amount":100,"note":"launch promo"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID     string `json:"id"`
		Code   string `json:"code"`
		Status string `json:"status"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode create response: %v", errDecode)
	}
	if created.ID == "" || !strings.HasPrefix(created.Code, "CC_") || created.Status != "unused" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	rec = doRequest(t, router, http.MethodGet, "/v0/admin/cards/"+created.ID, testToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/v0/admin/cards/stats", testToken, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: status = %d", rec.Code)
	}
	var stats struct {
		Total  int64 `json:"total"`
		Unused int64 `json:"unused"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &stats); errDecode != nil {
		t.Fatalf("decode stats: %v", errDecode)
	}
	if stats.Total != 1 || stats.Unused != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	rec = doRequest(t, router, http.MethodDelete, "/v0/admin/cards/"+created.ID, testToken, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, router, http.MethodGet, "/v0/admin/cards/"+created.ID, testToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted: status = %d, want 404", rec.Code)
	}
}

func TestAdminRoutes_ValidationAndNotFound(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v0/admin/cards", testToken, `{"type":"quota"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing quota_amount: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/v0/admin/cards/batch", testToken,
		`{"type":"quota","quota_amount":10,"count":0}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("zero count: status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/v0/admin/cards/ghost", testToken, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown card: status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/v0/admin/redemptions/ghost/revoke", testToken,
		`{"reason":"cleanup"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown redemption: status = %d, want 404", rec.Code)
	}
}

func TestAdminRoutes_BatchCreate(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v0/admin/cards/batch", testToken,
		`{"type":"time","time_amount":30,"time_unit":"days","count":5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("batch: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Created int               `json:"created"`
		Cards   []json.RawMessage `json:"cards"`
	}
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode batch response: %v", errDecode)
	}
	if out.Created != 5 || len(out.Cards) != 5 {
		t.Fatalf("unexpected batch response: created=%d cards=%d", out.Created, len(out.Cards))
	}
}
