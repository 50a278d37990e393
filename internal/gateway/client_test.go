package gateway_test

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paygate/reconcile/internal/config"
	"github.com/paygate/reconcile/internal/gateway"
	"github.com/paygate/reconcile/internal/models"
	"github.com/paygate/reconcile/internal/signature"
)

type fakeChargeRepo struct {
	charges map[int64]*models.PendingCharge
}

func (f *fakeChargeRepo) GetByID(_ context.Context, id int64) (*models.PendingCharge, error) {
	c, ok := f.charges[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

func (f *fakeChargeRepo) GetOpenByUser(_ context.Context, userID int64) (*models.PendingCharge, error) {
	for _, c := range f.charges {
		if c.UserID == userID && c.Status == models.ChargeOpen {
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func openCharge(id, userID, amount int64) *fakeChargeRepo {
	return &fakeChargeRepo{charges: map[int64]*models.PendingCharge{
		id: {ID: id, UserID: userID, Amount: amount, Status: models.ChargeOpen, CreatedAt: time.Now()},
	}}
}

func TestCreateOrder_SignsAndSubmitsForm(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Write([]byte(`{"return_code":1,"order_url":"https://gw.example/pay/abc"}`))
	}))
	defer srv.Close()

	cfg := config.GatewayConfig{
		AppID:          "2554",
		Key1:           "req-key",
		Key2:           "cb-key",
		CreateOrderURL: srv.URL,
		CallbackURL:    "https://shop.example/payments/callback",
	}
	client := gateway.NewClient(cfg, openCharge(12, 7, 250000), srv.Client())

	res, err := client.CreateOrder(context.Background(), 12)
	require.NoError(t, err)
	assert.Contains(t, string(res.RawResponse), "order_url")
	assert.Regexp(t, `^\d{6}_\d{6}$`, res.TransID)

	assert.Equal(t, "2554", form.Get("app_id"))
	assert.Equal(t, "7", form.Get("app_user"))
	assert.Equal(t, "250000", form.Get("amount"))
	assert.Equal(t, res.TransID, form.Get("app_trans_id"))
	assert.Contains(t, form.Get("embed_data"), "uid=7")
	assert.Contains(t, form.Get("item"), `"id":12`)

	canonical := signature.Canonical(
		form.Get("app_id"), form.Get("app_trans_id"), form.Get("app_user"),
		form.Get("amount"), form.Get("app_time"), form.Get("embed_data"), form.Get("item"))
	assert.True(t, signature.Verify("req-key", canonical, form.Get("mac")))
}

func TestCreateOrder_ChargeGuards(t *testing.T) {
	repo := &fakeChargeRepo{charges: map[int64]*models.PendingCharge{
		1: {ID: 1, UserID: 7, Amount: 1000, Status: models.ChargeConfirmed},
		2: {ID: 2, UserID: 8, Amount: 0, Status: models.ChargeOpen},
	}}
	client := gateway.NewClient(config.GatewayConfig{AppID: "2554", Key1: "k"}, repo, nil)

	_, err := client.CreateOrder(context.Background(), 99)
	assert.ErrorIs(t, err, gateway.ErrChargeNotFound)

	_, err = client.CreateOrder(context.Background(), 1)
	assert.ErrorIs(t, err, gateway.ErrChargeNotFound)

	_, err = client.CreateOrder(context.Background(), 2)
	assert.ErrorIs(t, err, gateway.ErrInvalidAmount)
}

func TestCreateOrder_GatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	cfg := config.GatewayConfig{AppID: "2554", Key1: "k", CreateOrderURL: srv.URL}
	client := gateway.NewClient(cfg, openCharge(12, 7, 250000), &http.Client{Timeout: time.Second})

	_, err := client.CreateOrder(context.Background(), 12)
	assert.ErrorIs(t, err, gateway.ErrGatewayUnavailable)
}

func TestNewTransID_Format(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	id := gateway.NewTransID(now)
	assert.Regexp(t, regexp.MustCompile(`^240115_\d{6}$`), id)
}
