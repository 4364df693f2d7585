// Package volatility implements the per-asset sliding-window return
// volatility cache. One mutex guards all windows, and readers copy out the
// samples they need before computing on them.
package volatility

import (
	"math"
	"sync"

	"cyclearb/internal/config"
	"cyclearb/internal/market"
)

// Sample is one (timestamp, price) observation in an asset's window.
type Sample struct {
	TimestampMs int64
	Price       float64
}

// Cache holds a sliding window of price samples per asset.
type Cache struct {
	mu      sync.Mutex
	windows map[string][]Sample
	cfg     *config.Config
}

// NewCache returns an empty Cache bound to cfg for window size, sampling
// interval, and tier defaults.
func NewCache(cfg *config.Config) *Cache {
	return &Cache{windows: make(map[string][]Sample), cfg: cfg}
}

// UpdateFromTicker appends a sample for the ticker's base asset, but only if
// the ticker's quote matches the configured anchor asset. After appending,
// samples older than the configured window are pruned from the front.
func (c *Cache) UpdateFromTicker(t market.Ticker) {
	if t.Quote != c.cfg.AnchorAsset {
		return
	}
	if t.TradePrice <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w := append(c.windows[t.Base], Sample{TimestampMs: t.TimestampMs, Price: t.TradePrice})
	cutoff := t.TimestampMs - int64(c.cfg.RiskModel.VolatilityWindowSeconds)*1000
	w = pruneBefore(w, cutoff)
	c.windows[t.Base] = w
}

func pruneBefore(w []Sample, cutoff int64) []Sample {
	i := 0
	for i < len(w) && w[i].TimestampMs < cutoff {
		i++
	}
	if i == 0 {
		return w
	}
	out := make([]Sample, len(w)-i)
	copy(out, w[i:])
	return out
}

// GetSigma returns the per-second return sigma for asset, using the
// configured token volatility tier's default when fewer than two samples
// are available.
func (c *Cache) GetSigma(asset string) float64 {
	c.mu.Lock()
	samples := append([]Sample{}, c.windows[asset]...)
	c.mu.Unlock()

	return c.sigmaFromWindow(asset, samples)
}

// SnapshotSigmas returns GetSigma for every requested asset, read under a
// single lock acquisition per asset matching the consistency discipline of
// per-asset reads.
func (c *Cache) SnapshotSigmas(assets []string) map[string]float64 {
	out := make(map[string]float64, len(assets))
	for _, a := range assets {
		out[a] = c.GetSigma(a)
	}
	return out
}

func (c *Cache) sigmaFromWindow(asset string, samples []Sample) float64 {
	tier := 0
	if rule, ok := c.cfg.Tokens[asset]; ok {
		tier = rule.VolatilityTier
	}
	tierDefault := c.cfg.SigmaForTier(tier)

	if len(samples) < 2 {
		return tierDefault
	}

	returns := make([]float64, 0, len(samples)-1)
	deltas := make([]float64, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1], samples[i]
		if prev.Price > 0 && cur.Price > 0 {
			returns = append(returns, math.Log(cur.Price/prev.Price))
		}
		if d := cur.TimestampMs - prev.TimestampMs; d > 0 {
			deltas = append(deltas, float64(d)/1000.0)
		}
	}

	if len(returns) == 0 {
		return tierDefault
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sqSum float64
	for _, r := range returns {
		d := r - mean
		sqSum += d * d
	}
	variance := sqSum / float64(len(returns))
	sigma := math.Sqrt(math.Max(variance, 0))

	avgDelta := c.cfg.RiskModel.VolatilitySamplingIntervalSeconds
	if len(deltas) > 0 {
		var dSum float64
		for _, d := range deltas {
			dSum += d
		}
		avgDelta = dSum / float64(len(deltas))
	}
	if avgDelta <= 0 {
		avgDelta = c.cfg.RiskModel.VolatilitySamplingIntervalSeconds
	}

	return sigma / math.Sqrt(avgDelta)
}
