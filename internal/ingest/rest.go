// Package ingest provides illustrative collaborator implementations of the
// market-listing, order-book, and ticker feed interfaces the core consumes.
// These are demo adapters, not part of the pricing/scoring core: credential
// loading and exchange-specific wire formats are explicitly out of scope
// for the core itself.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"cyclearb/internal/market"
)

// RESTMarketSource fetches the tradable market listing once at startup.
type RESTMarketSource struct {
	Client  *resty.Client
	BaseURL string
}

// NewRESTMarketSource builds a RESTMarketSource with bounded per-request
// timeout and retry/backoff, matching the feed-task error discipline: feed
// errors are retried here and never surfaced to the evaluator.
func NewRESTMarketSource(baseURL string, timeout time.Duration) *RESTMarketSource {
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	return &RESTMarketSource{Client: c, BaseURL: baseURL}
}

type marketListingEntry struct {
	MarketCode string `json:"market_code"`
	Base       string `json:"base"`
	Quote      string `json:"quote"`
}

// ListMarkets fetches and decodes the market listing document.
func (r *RESTMarketSource) ListMarkets(ctx context.Context) ([]market.Info, error) {
	var entries []marketListingEntry
	resp, err := r.Client.R().
		SetContext(ctx).
		SetResult(&entries).
		Get(r.BaseURL + "/markets")
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list markets: status %d", resp.StatusCode())
	}

	out := make([]market.Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, market.Info{MarketCode: e.MarketCode, Base: e.Base, Quote: e.Quote})
	}
	return out, nil
}

// FilterMarkets keeps only markets whose quote is in allowedQuotes and whose
// base and quote are both enabled in tokens. This reproduces the listing
// filter the original driver applies before graph construction.
func FilterMarkets(markets []market.Info, allowedQuotes map[string]bool, enabled map[string]bool) []market.Info {
	out := make([]market.Info, 0, len(markets))
	for _, m := range markets {
		if !allowedQuotes[m.Quote] {
			continue
		}
		if !enabled[m.Base] || !enabled[m.Quote] {
			continue
		}
		out = append(out, m)
	}
	return out
}
