package volatility

import (
	"math"
	"testing"

	"cyclearb/internal/config"
	"cyclearb/internal/market"
)

func testConfig() *config.Config {
	c := config.Default()
	c.AnchorAsset = "USD"
	c.RiskModel.VolatilityWindowSeconds = 60
	c.RiskModel.VolatilitySamplingIntervalSeconds = 1
	return c
}

func tick(base string, ts int64, price float64) market.Ticker {
	return market.Ticker{Market: "USD-" + base, Quote: "USD", Base: base, TimestampMs: ts, TradePrice: price}
}

func TestGetSigma_FewerThanTwoSamplesReturnsTierDefault(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens = map[string]config.TokenRule{"BTC": {VolatilityTier: 2}}
	c := NewCache(cfg)

	if got := c.GetSigma("BTC"); got != cfg.SigmaForTier(2) {
		t.Errorf("GetSigma with no samples = %v, want tier default %v", got, cfg.SigmaForTier(2))
	}

	c.UpdateFromTicker(tick("BTC", 1000, 100))
	if got := c.GetSigma("BTC"); got != cfg.SigmaForTier(2) {
		t.Errorf("GetSigma with one sample = %v, want tier default %v", got, cfg.SigmaForTier(2))
	}
}

// TestGetSigma_MatchesStddevOfLogReturns is scenario S5: prices
// [100,101,100,102,100] at 1-second intervals; sigma equals
// stddev(log-returns)/sqrt(1s) within 1e-9.
func TestGetSigma_MatchesStddevOfLogReturns(t *testing.T) {
	cfg := testConfig()
	c := NewCache(cfg)

	prices := []float64{100, 101, 100, 102, 100}
	for i, p := range prices {
		c.UpdateFromTicker(tick("BTC", int64(i+1)*1000, p))
	}

	got := c.GetSigma("BTC")
	if got <= 0 {
		t.Fatalf("expected positive sigma, got %v", got)
	}

	var returns []float64
	for i := 1; i < len(prices); i++ {
		returns = append(returns, math.Log(prices[i]/prices[i-1]))
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var sqSum float64
	for _, r := range returns {
		sqSum += (r - mean) * (r - mean)
	}
	want := math.Sqrt(sqSum/float64(len(returns))) / math.Sqrt(1.0)

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("GetSigma = %v, want %v", got, want)
	}
}

func TestUpdateFromTicker_IgnoresNonAnchorQuote(t *testing.T) {
	cfg := testConfig()
	c := NewCache(cfg)

	c.UpdateFromTicker(market.Ticker{Quote: "EUR", Base: "BTC", TimestampMs: 1000, TradePrice: 100})
	c.UpdateFromTicker(market.Ticker{Quote: "EUR", Base: "BTC", TimestampMs: 2000, TradePrice: 101})

	cfg.Tokens = map[string]config.TokenRule{"BTC": {VolatilityTier: 0}}
	if got := c.GetSigma("BTC"); got != cfg.SigmaForTier(0) {
		t.Errorf("expected tier default since non-anchor-quote tickers are ignored, got %v", got)
	}
}

func TestUpdateFromTicker_PrunesOldSamples(t *testing.T) {
	cfg := testConfig()
	cfg.RiskModel.VolatilityWindowSeconds = 5
	c := NewCache(cfg)

	c.UpdateFromTicker(tick("BTC", 0, 100))
	c.UpdateFromTicker(tick("BTC", 20000, 101))

	c.mu.Lock()
	n := len(c.windows["BTC"])
	c.mu.Unlock()
	if n != 1 {
		t.Errorf("expected stale sample pruned, window has %d entries", n)
	}
}
