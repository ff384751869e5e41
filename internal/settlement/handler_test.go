package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fkhayef/tally/internal/activity"
	"github.com/fkhayef/tally/internal/balance"
	"github.com/fkhayef/tally/internal/cache"
	"github.com/fkhayef/tally/internal/expense"
	"github.com/fkhayef/tally/internal/jobs"
	"github.com/fkhayef/tally/internal/ledger"
	"github.com/fkhayef/tally/internal/lock"
	mw "github.com/fkhayef/tally/pkg/middleware"
	"github.com/fkhayef/tally/pkg/response"
)

type allowAll struct{}

func (allowAll) IsMember(context.Context, string, string) (bool, error) { return true, nil }

func newHandlerFixture(t *testing.T) (http.Handler, *balance.MemoryStore) {
	t.Helper()
	log := zap.NewNop()

	runner := jobs.NewRunner(jobs.Config{BackoffBase: time.Millisecond}, log)
	runner.Start()
	t.Cleanup(runner.Stop)

	store := balance.NewMemoryStore()
	layer := cache.NewLayer(cache.NewNoop(), log)

	ledgerService := ledger.NewService(
		expense.NewMemoryRegistry(),
		ledger.NewMemorySettlementLog(),
		store,
		lock.NewLocalService(),
		layer,
		runner,
		activity.NewEmitter(activity.NewMemoryStore(), runner, log),
		allowAll{},
		ledger.ServiceConfig{},
		log,
	)
	handler := NewHandler(ledgerService, NewService(store, layer, time.Minute))

	r := chi.NewRouter()
	r.Use(mw.RequireUser)
	r.Mount("/settlements", handler.Routes())
	return r, store
}

func doJSON(t *testing.T, h http.Handler, method, target, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("X-User-ID", caller)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSettleDebtorDefaultsToCaller(t *testing.T) {
	h, store := newHandlerFixture(t)
	require.NoError(t, store.Increment(context.Background(), balance.ScopeDirect, "bob", "alice", 1000, "e1"))

	rec := doJSON(t, h, http.MethodPost, "/settlements", "bob",
		`{"scope":"direct","creditorId":"alice","amount":400}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var settled ledger.Settlement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settled))
	assert.Equal(t, "bob", settled.DebtorID)
	assert.Equal(t, "alice", settled.CreditorID)

	entry, err := store.GetPair(context.Background(), balance.ScopeDirect, "bob", "alice")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.EqualValues(t, 600, entry.Amount)
}

func TestSettleCreditorRecordsRepaymentReceived(t *testing.T) {
	h, store := newHandlerFixture(t)
	require.NoError(t, store.Increment(context.Background(), balance.ScopeDirect, "bob", "alice", 1000, "e1"))

	// Alice, the creditor, records that bob paid her back.
	rec := doJSON(t, h, http.MethodPost, "/settlements", "alice",
		`{"scope":"direct","debtorId":"bob","creditorId":"alice","amount":1000}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var settled ledger.Settlement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settled))
	assert.Equal(t, "bob", settled.DebtorID)

	entry, err := store.GetPair(context.Background(), balance.ScopeDirect, "bob", "alice")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSettleRejectsThirdParty(t *testing.T) {
	h, store := newHandlerFixture(t)
	require.NoError(t, store.Increment(context.Background(), balance.ScopeDirect, "bob", "alice", 1000, "e1"))

	rec := doJSON(t, h, http.MethodPost, "/settlements", "carol",
		`{"scope":"direct","debtorId":"bob","creditorId":"alice","amount":400}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, response.SlugForbidden, body.Error)
}

func TestPlanGlobalFlag(t *testing.T) {
	h, store := newHandlerFixture(t)
	ctx := context.Background()
	require.NoError(t, store.Increment(ctx, "trip", "bob", "alice", 3000, "e1"))
	require.NoError(t, store.Increment(ctx, "rent", "alice", "bob", 1000, "e2"))

	rec := doJSON(t, h, http.MethodGet, "/settlements/plan?global=true", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var plan PlanResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	require.Len(t, plan.Transfers, 1)
	assert.Equal(t, Transfer{From: "bob", To: "alice", Amount: 2000}, plan.Transfers[0])

	// scope and global together are ambiguous.
	rec = doJSON(t, h, http.MethodGet, "/settlements/plan?scope=trip&global=true", "alice", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
