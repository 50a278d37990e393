// Package ledger reads the bank-aggregator statement feed. The feed is the
// source of truth for incoming transfers; nothing here is persisted.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paygate/reconcile/internal/config"
	"github.com/paygate/reconcile/internal/models"
)

var ErrMalformedResponse = errors.New("ledger: malformed provider response")

// ProviderError is a non-2xx or provider-signalled failure. The poll loop
// logs it and retries on the next cycle.
type ProviderError struct {
	StatusCode int
	Code       int
	Desc       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ledger provider error: http=%d code=%d desc=%s", e.StatusCode, e.Code, e.Desc)
}

type Fetcher struct {
	cfg    config.LedgerConfig
	client *http.Client
}

func NewFetcher(cfg config.LedgerConfig, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{cfg: cfg, client: client}
}

type feedTransaction struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	When        string `json:"when"`
}

type feedResponse struct {
	Code int    `json:"code"`
	Desc string `json:"desc"`
	Data struct {
		Transactions []feedTransaction `json:"transactions"`
	} `json:"data"`
}

// Fetch returns one page of bank transactions for the date range. Unknown
// fields in the provider payload are ignored.
func (f *Fetcher) Fetch(ctx context.Context, from, to time.Time, page, pageSize int) ([]models.BankTransaction, error) {
	url := fmt.Sprintf("%s/transactions?from=%s&to=%s&page=%d&pageSize=%d",
		f.cfg.BaseURL, from.Format("2006-01-02"), to.Format("2006-01-02"), page, pageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Apikey "+f.cfg.APIKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Desc: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Desc: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := &ProviderError{StatusCode: resp.StatusCode, Desc: http.StatusText(resp.StatusCode)}
		var parsed feedResponse
		if json.Unmarshal(body, &parsed) == nil {
			perr.Code = parsed.Code
			if parsed.Desc != "" {
				perr.Desc = parsed.Desc
			}
		}
		return nil, perr
	}

	var parsed feedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	txns := make([]models.BankTransaction, 0, len(parsed.Data.Transactions))
	for _, t := range parsed.Data.Transactions {
		txn := models.BankTransaction{
			TransactionID: t.ID,
			Amount:        t.Amount,
			Description:   t.Description,
			Reference:     t.Reference,
		}
		if when, err := time.Parse(time.RFC3339, t.When); err == nil {
			txn.OccurredAt = when
		}
		txns = append(txns, txn)
	}
	return txns, nil
}
