// Package account provides the account-balance-source collaborator the
// driver uses to size starting_notional. It is not part of the evaluator
// core.
package account

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// Source provides the anchor-denominated free balance used as
// starting_notional.
type Source interface {
	Balance(ctx context.Context) (float64, error)
}

// Static is a fixed-balance Source, useful for tests and dry runs.
type Static struct {
	Amount float64
}

// Balance returns the fixed amount.
func (s Static) Balance(context.Context) (float64, error) {
	return s.Amount, nil
}

// REST fetches the anchor-denominated balance from an exchange account
// endpoint.
type REST struct {
	Client      *resty.Client
	BalanceURL  string
	AnchorAsset string
}

// restBalanceResponse decodes balances as decimal.Decimal: exchange balance
// APIs report fixed-point strings, and decoding straight to float64 risks
// silently losing precision at the wire boundary. The evaluator core itself
// never sees a decimal.Decimal — only the float64 produced below.
type restBalanceResponse struct {
	Balances map[string]decimal.Decimal `json:"balances"`
}

// Balance fetches and decodes the account balance document, returning the
// figure for the configured anchor asset.
func (r *REST) Balance(ctx context.Context) (float64, error) {
	var body restBalanceResponse
	resp, err := r.Client.R().
		SetContext(ctx).
		SetResult(&body).
		Get(r.BalanceURL)
	if err != nil {
		return 0, fmt.Errorf("fetch balance: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("fetch balance: status %d", resp.StatusCode())
	}
	amount, ok := body.Balances[r.AnchorAsset]
	if !ok {
		return 0, fmt.Errorf("balance response missing anchor asset %s", r.AnchorAsset)
	}
	return amount.InexactFloat64(), nil
}
