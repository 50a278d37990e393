// Package gateway talks to the external wallet gateway: signed
// order-creation requests out, checksum-verified payment callbacks in.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paygate/reconcile/internal/config"
	"github.com/paygate/reconcile/internal/interfaces"
	"github.com/paygate/reconcile/internal/models"
	"github.com/paygate/reconcile/internal/signature"
)

var (
	ErrChargeNotFound     = errors.New("gateway: pending charge not found or not open")
	ErrInvalidAmount      = errors.New("gateway: charge amount must be positive")
	ErrGatewayUnavailable = errors.New("gateway: provider unreachable")
)

// CreateOrderResult carries the gateway's verbatim response body. It is
// presentation data (redirect URL or QR embed), not a payment confirmation.
type CreateOrderResult struct {
	TransID     string
	RawResponse []byte
}

type Client struct {
	cfg     config.GatewayConfig
	charges interfaces.ChargeRepository
	client  *http.Client
}

func NewClient(cfg config.GatewayConfig, charges interfaces.ChargeRepository, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{cfg: cfg, charges: charges, client: client}
}

// NewTransID builds a gateway transaction id: yymmdd prefix plus a random
// six-digit suffix. Collisions are possible but accepted; the gateway
// rejects a reused id and creation is safe to retry.
func NewTransID(now time.Time) string {
	return fmt.Sprintf("%s_%06d", now.Format("060102"), rand.Intn(1000000))
}

// CreateOrder resolves the charge, signs the order payload and submits it.
// Nothing is persisted, so any failure is safe to retry.
func (c *Client) CreateOrder(ctx context.Context, chargeID int64) (*CreateOrderResult, error) {
	charge, err := c.charges.GetByID(ctx, chargeID)
	if err == sql.ErrNoRows {
		return nil, ErrChargeNotFound
	}
	if err != nil {
		return nil, err
	}
	if charge.Status != models.ChargeOpen {
		return nil, ErrChargeNotFound
	}
	if charge.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	transID := NewTransID(now)
	amount := strconv.FormatInt(charge.Amount, 10)
	appUser := strconv.FormatInt(charge.UserID, 10)
	appTime := strconv.FormatInt(now.UnixMilli(), 10)

	// The gateway redirects the payer here after payment; uid lets the
	// callback handler attribute the payment without a session.
	redirect := fmt.Sprintf("%s?uid=%d", c.cfg.CallbackURL, charge.UserID)
	embedData := fmt.Sprintf(`{"redirecturl":%s}`, strconv.Quote(redirect))
	items := fmt.Sprintf(`[{"id":%d,"amount":%d}]`, charge.ID, charge.Amount)

	canonical := signature.Canonical(c.cfg.AppID, transID, appUser, amount, appTime, embedData, items)
	mac, err := signature.Sign(c.cfg.Key1, canonical)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("app_id", c.cfg.AppID)
	form.Set("app_trans_id", transID)
	form.Set("app_user", appUser)
	form.Set("amount", amount)
	form.Set("app_time", appTime)
	form.Set("embed_data", embedData)
	form.Set("item", items)
	form.Set("description", fmt.Sprintf("Thanh toan don hang #%d", charge.ID))
	form.Set("mac", mac)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.CreateOrderURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	return &CreateOrderResult{TransID: transID, RawResponse: body}, nil
}
