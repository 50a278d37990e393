package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/paygate/reconcile/internal/config"
	"github.com/paygate/reconcile/internal/gateway"
	"github.com/paygate/reconcile/internal/handlers"
	"github.com/paygate/reconcile/internal/models"
	"github.com/paygate/reconcile/internal/qr"
)

func newCheckoutRouter(t *testing.T, s *store, gatewayURL string) *gin.Engine {
	t.Helper()
	cfg := config.GatewayConfig{
		AppID:          "2554",
		Key1:           "req-key",
		CreateOrderURL: gatewayURL,
		CallbackURL:    "https://shop.example/payments/callback",
	}
	client := gateway.NewClient(cfg, s, &http.Client{Timeout: time.Second})
	builder := qr.NewBuilder(config.QRConfig{
		BaseURL:     "https://img.vietqr.io/image",
		AccountNo:   "0071000123456",
		AccountName: "CONG TY TNHH ABC",
		AcquirerID:  "970436",
		Template:    "compact2",
		ImageURL:    "http://127.0.0.1:1", // unreachable, forces URL fallback
	}, &http.Client{Timeout: 100 * time.Millisecond})

	handler := handlers.NewCheckoutHandler(client, builder, s)
	r := gin.New()
	r.POST("/checkout/:chargeID/gateway", handler.CreateGatewayOrder)
	r.GET("/checkout/:chargeID/qr", handler.QRContent)
	return r
}

func TestCreateGatewayOrder_RelaysGatewayResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"return_code":1,"order_url":"https://gw.example/pay/abc"}`))
	}))
	defer srv.Close()

	s := &store{
		charges:  map[int64]*models.PendingCharge{12: {ID: 12, UserID: 7, Amount: 250000, Status: models.ChargeOpen}},
		payments: map[string]*models.PaymentRecord{},
	}
	r := newCheckoutRouter(t, s, srv.URL)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkout/12/gateway", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "order_url")
	assert.NotEmpty(t, w.Header().Get("X-App-Trans-Id"))
}

func TestCreateGatewayOrder_UnknownCharge(t *testing.T) {
	s := &store{charges: map[int64]*models.PendingCharge{}, payments: map[string]*models.PaymentRecord{}}
	r := newCheckoutRouter(t, s, "http://127.0.0.1:1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkout/99/gateway", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateGatewayOrder_GatewayDownIsRetryable(t *testing.T) {
	s := &store{
		charges:  map[int64]*models.PendingCharge{12: {ID: 12, UserID: 7, Amount: 250000, Status: models.ChargeOpen}},
		payments: map[string]*models.PaymentRecord{},
	}
	r := newCheckoutRouter(t, s, "http://127.0.0.1:1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/checkout/12/gateway", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, models.ChargeOpen, s.charges[12].Status, "creation failure mutates nothing")
}

func TestQRContent_FallsBackToURL(t *testing.T) {
	s := &store{
		charges:  map[int64]*models.PendingCharge{12: {ID: 12, UserID: 7, Amount: 250000, Status: models.ChargeOpen}},
		payments: map[string]*models.PaymentRecord{},
	}
	r := newCheckoutRouter(t, s, "http://127.0.0.1:1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkout/12/qr", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"content":"UserID7"`)
	assert.Contains(t, body, "970436-0071000123456-compact2.png")
	assert.Contains(t, body, `"qr_data_uri":""`)
}

func TestQRContent_ConfirmedChargeIsNotPayable(t *testing.T) {
	s := &store{
		charges:  map[int64]*models.PendingCharge{12: {ID: 12, UserID: 7, Amount: 250000, Status: models.ChargeConfirmed}},
		payments: map[string]*models.PaymentRecord{},
	}
	r := newCheckoutRouter(t, s, "http://127.0.0.1:1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checkout/12/qr", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
