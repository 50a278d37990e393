// Package qr formats manual bank-transfer payloads: a provider image URL
// with the amount and transfer note embedded, or a generated data-URI.
package qr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/paygate/reconcile/internal/config"
)

type Builder struct {
	cfg    config.QRConfig
	client *http.Client
}

func NewBuilder(cfg config.QRConfig, client *http.Client) *Builder {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Builder{cfg: cfg, client: client}
}

// BuildURL returns the provider's image deep link with the amount and
// URL-escaped transfer note. Pure formatting, no network.
func (b *Builder) BuildURL(amount int64, content string) string {
	return fmt.Sprintf("%s/%s-%s-%s.png?amount=%d&addInfo=%s&accountName=%s",
		b.cfg.BaseURL, b.cfg.AcquirerID, b.cfg.AccountNo, b.cfg.Template,
		amount, url.QueryEscape(content), url.QueryEscape(b.cfg.AccountName))
}

type generateRequest struct {
	AccountNo   string `json:"accountNo"`
	AccountName string `json:"accountName"`
	AcqID       string `json:"acqId"`
	AddInfo     string `json:"addInfo"`
	Amount      int64  `json:"amount"`
	Template    string `json:"template"`
}

type generateResponse struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
	Data struct {
		QRDataURL string `json:"qrDataURL"`
	} `json:"data"`
}

// BuildDataURI asks the provider's generate API for a base64 image. Any
// failure returns an empty string; callers fall back to BuildURL.
func (b *Builder) BuildDataURI(ctx context.Context, amount int64, content string) string {
	payload, err := json.Marshal(generateRequest{
		AccountNo:   b.cfg.AccountNo,
		AccountName: b.cfg.AccountName,
		AcqID:       b.cfg.AcquirerID,
		AddInfo:     content,
		Amount:      amount,
		Template:    b.cfg.Template,
	})
	if err != nil {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.ImageURL, bytes.NewReader(payload))
	if err != nil {
		return ""
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ""
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return ""
	}
	if parsed.Code != "00" {
		return ""
	}
	return parsed.Data.QRDataURL
}
