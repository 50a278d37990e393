package service_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paygate/reconcile/internal/config"
	"github.com/paygate/reconcile/internal/ledger"
	"github.com/paygate/reconcile/internal/models"
	"github.com/paygate/reconcile/internal/service"
)

func ledgerServer(t *testing.T, pages map[string]string) *ledger.Fetcher {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		body, ok := pages[page]
		if !ok {
			body = `{"code":200,"desc":"success","data":{"transactions":[]}}`
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return ledger.NewFetcher(config.LedgerConfig{BaseURL: srv.URL, APIKey: "k"}, srv.Client())
}

func TestSweep_AppliesLabeledTransactions(t *testing.T) {
	store := newMemStore(openCharge(1, 7, 250000))
	fetcher := ledgerServer(t, map[string]string{
		"1": `{"code":200,"desc":"success","data":{"transactions":[
			{"id":"TX1","amount":250500,"description":"UserID7 thanh toan","reference":""},
			{"id":"TX2","amount":99000,"description":"CK tu NGUYEN VAN A","reference":""},
			{"id":"TX1","amount":250500,"description":"UserID7 thanh toan","reference":""}
		]}}`,
	})
	rec := service.NewReconciler(paymentRepo{store}, store, fetcher, nil, nil, nil, nil)

	from := time.Now().AddDate(0, 0, -1)
	result, err := rec.Sweep(context.Background(), from, time.Now(), 50)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 1, result.Outcomes[models.OutcomeApplied])
	assert.Equal(t, 1, result.Outcomes[models.OutcomeAlreadyApplied])
	assert.Equal(t, 1, result.Outcomes[models.OutcomeNoMatch]) // no ownership token
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, models.ChargeConfirmed, store.charges[1].Status)
}

func TestSweep_PagesUntilShortPage(t *testing.T) {
	store := newMemStore()
	var txns1, txns2 string
	for i := 0; i < 2; i++ {
		txns1 += fmt.Sprintf(`{"id":"P1-%d","amount":1000,"description":"no token"},`, i)
	}
	txns1 = txns1[:len(txns1)-1]
	txns2 = `{"id":"P2-0","amount":1000,"description":"no token"}`

	fetcher := ledgerServer(t, map[string]string{
		"1": fmt.Sprintf(`{"code":200,"desc":"success","data":{"transactions":[%s]}}`, txns1),
		"2": fmt.Sprintf(`{"code":200,"desc":"success","data":{"transactions":[%s]}}`, txns2),
	})
	rec := service.NewReconciler(paymentRepo{store}, store, fetcher, nil, nil, nil, nil)

	result, err := rec.Sweep(context.Background(), time.Now().AddDate(0, 0, -1), time.Now(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Fetched)
}

func TestSweep_ProviderErrorAbortsCleanly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	fetcher := ledger.NewFetcher(config.LedgerConfig{BaseURL: srv.URL, APIKey: "k"}, srv.Client())

	store := newMemStore(openCharge(1, 7, 250000))
	rec := service.NewReconciler(paymentRepo{store}, store, fetcher, nil, nil, nil, nil)

	_, err := rec.Sweep(context.Background(), time.Now().AddDate(0, 0, -1), time.Now(), 50)
	var perr *ledger.ProviderError
	assert.ErrorAs(t, err, &perr)
	// Nothing applied, nothing corrupted; next poll re-reads the window.
	assert.Len(t, store.payments, 0)
	assert.Equal(t, models.ChargeOpen, store.charges[1].Status)
}
