package graph

import (
	"testing"

	"cyclearb/internal/config"
	"cyclearb/internal/market"
)

// TestBuildPaths_TerminalTokenCannotBridge is scenario S6: assets A (anchor),
// X (bridge), Y (terminal only), markets A-X, X-Y, A-Y, max_length=4.
// Expected cycles include A->X->Y->A but not A->Y->X->A (Y cannot bridge to
// X).
func TestBuildPaths_TerminalTokenCannotBridge(t *testing.T) {
	cfg := config.Default()
	cfg.AnchorAsset = "A"
	cfg.Paths.MinLength = 2
	cfg.Paths.MaxLength = 4
	cfg.Graph.QuoteMinNotional = map[string]float64{"A": 1.0}
	cfg.Tokens = map[string]config.TokenRule{
		"X": {Enabled: true, AllowedAsBridge: true},
		"Y": {Enabled: true, AllowedAsTerminalAsset: true},
	}

	markets := []market.Info{
		{MarketCode: "A-X", Base: "X", Quote: "A"},
		{MarketCode: "X-Y", Base: "Y", Quote: "X"},
		{MarketCode: "A-Y", Base: "Y", Quote: "A"},
	}

	g := Build(markets, cfg)
	pm := BuildPaths(g, cfg)

	found := func(assets ...string) bool {
		for _, p := range pm.Paths {
			if equalAssets(p.Assets, assets) {
				return true
			}
		}
		return false
	}

	if !found("A", "X", "Y", "A") {
		t.Error("expected cycle A->X->Y->A to be enumerated")
	}
	if found("A", "Y", "X", "A") {
		t.Error("did not expect cycle A->Y->X->A (Y cannot bridge to X)")
	}
}

func equalAssets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildPaths_EveryPathStartsAndEndsAtAnchor(t *testing.T) {
	cfg := config.Default()
	cfg.AnchorAsset = "USD"
	cfg.Paths.MinLength = 2
	cfg.Paths.MaxLength = 3
	cfg.Graph.QuoteMinNotional = map[string]float64{"USD": 1.0, "BTC": 1.0}
	cfg.Tokens = map[string]config.TokenRule{
		"BTC": {Enabled: true, AllowedAsBridge: true, AllowedAsTerminalAsset: true},
		"ETH": {Enabled: true, AllowedAsBridge: true, AllowedAsTerminalAsset: true},
	}
	markets := []market.Info{
		{MarketCode: "USD-BTC", Base: "BTC", Quote: "USD"},
		{MarketCode: "BTC-ETH", Base: "ETH", Quote: "BTC"},
		{MarketCode: "USD-ETH", Base: "ETH", Quote: "USD"},
	}

	g := Build(markets, cfg)
	pm := BuildPaths(g, cfg)

	if len(pm.Paths) == 0 {
		t.Fatal("expected at least one path")
	}
	for _, p := range pm.Paths {
		if p.Assets[0] != "USD" || p.Assets[len(p.Assets)-1] != "USD" {
			t.Errorf("path %s: assets = %v, want start/end USD", p.PathID, p.Assets)
		}
		if len(p.Edges) < cfg.Paths.MinLength || len(p.Edges) > cfg.Paths.MaxLength {
			t.Errorf("path %s: len(edges)=%d out of bounds", p.PathID, len(p.Edges))
		}
		for i, e := range p.Edges {
			if e.FromAsset != p.Assets[i] {
				t.Errorf("path %s edge %d: FromAsset=%s, want %s", p.PathID, i, e.FromAsset, p.Assets[i])
			}
		}
	}
}

func TestBuildPaths_DeterministicAcrossRuns(t *testing.T) {
	cfg := config.Default()
	cfg.AnchorAsset = "USD"
	cfg.Paths.MinLength = 2
	cfg.Paths.MaxLength = 4
	cfg.Graph.QuoteMinNotional = map[string]float64{"USD": 1.0, "BTC": 1.0}
	cfg.Tokens = map[string]config.TokenRule{
		"BTC": {Enabled: true, AllowedAsBridge: true, AllowedAsTerminalAsset: true},
		"ETH": {Enabled: true, AllowedAsBridge: true, AllowedAsTerminalAsset: true},
	}
	markets := []market.Info{
		{MarketCode: "USD-BTC", Base: "BTC", Quote: "USD"},
		{MarketCode: "BTC-ETH", Base: "ETH", Quote: "BTC"},
		{MarketCode: "USD-ETH", Base: "ETH", Quote: "USD"},
	}

	g := Build(markets, cfg)
	pm1 := BuildPaths(g, cfg)
	pm2 := BuildPaths(g, cfg)

	if len(pm1.Paths) != len(pm2.Paths) {
		t.Fatalf("path count differs across runs: %d vs %d", len(pm1.Paths), len(pm2.Paths))
	}
	for i := range pm1.Paths {
		if pm1.Paths[i].PathID != pm2.Paths[i].PathID {
			t.Errorf("path %d: ID %s vs %s", i, pm1.Paths[i].PathID, pm2.Paths[i].PathID)
		}
	}
}
