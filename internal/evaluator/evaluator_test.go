package evaluator

import (
	"math"
	"testing"

	"cyclearb/internal/config"
	"cyclearb/internal/graph"
	"cyclearb/internal/orderbook"
)

func testConfig() *config.Config {
	c := config.Default()
	c.AnchorAsset = "USD"
	c.Graph.MinNotionalMultiplier = 1.0
	c.Graph.FirstLegMultiplier = 1.0
	c.RiskModel.MinProfitMargin = 0.0
	c.RiskModel.VolRiskMultiplier = 0.5
	return c
}

func cyclePath(fee float64) graph.PathDefinition {
	return graph.PathDefinition{
		PathID: "path_0",
		Assets: []string{"USD", "BTC", "USD"},
		Edges: []graph.Edge{
			{MarketCode: "USD-BTC", FromAsset: "USD", ToAsset: "BTC", Side: graph.Buy, FeeRate: fee, MinTotal: 0},
			{MarketCode: "USD-BTC", FromAsset: "BTC", ToAsset: "USD", Side: graph.Sell, FeeRate: fee, MinTotal: 0},
		},
	}
}

func snap(bid, bidSize, ask, askSize float64) *orderbook.Snapshot {
	return &orderbook.Snapshot{
		Bids: []orderbook.Level{{Price: bid, Size: bidSize}},
		Asks: []orderbook.Level{{Price: ask, Size: askSize}},
	}
}

// TestEvaluate_S1_PerfectMidZeroFeeZeroSpread is scenario S1.
func TestEvaluate_S1_PerfectMidZeroFeeZeroSpread(t *testing.T) {
	cfg := testConfig()
	path := cyclePath(0)
	snaps := map[string]*orderbook.Snapshot{"USD-BTC": snap(100, 1, 100, 1)}

	eval, dbg := Evaluate(path, 50, snaps, nil, cfg, true)

	if eval != nil {
		t.Fatalf("expected rejection since delta_final must be strictly > min_profit, got %+v", eval)
	}
	if dbg == nil || dbg.Reason != ReasonBelowProfitThreshold {
		t.Fatalf("expected below-profit-threshold rejection, got %+v", dbg)
	}
}

func TestEvaluate_S1_DeltaComponentsAreZero(t *testing.T) {
	cfg := testConfig()
	cfg.RiskModel.MinProfitMargin = -1
	path := cyclePath(0)
	snaps := map[string]*orderbook.Snapshot{"USD-BTC": snap(100, 1, 100, 1)}

	eval, _ := Evaluate(path, 50, snaps, nil, cfg, false)
	if eval == nil {
		t.Fatal("expected acceptance with a permissive min_profit_margin")
	}
	if math.Abs(eval.DeltaInst) > 1e-12 || math.Abs(eval.DeltaVol) > 1e-12 || math.Abs(eval.DeltaSlip) > 1e-12 {
		t.Errorf("expected all deltas ~0, got inst=%v vol=%v slip=%v", eval.DeltaInst, eval.DeltaVol, eval.DeltaSlip)
	}
}

// TestEvaluate_S2_ProfitableCycle is scenario S2.
func TestEvaluate_S2_ProfitableCycle(t *testing.T) {
	cfg := testConfig()
	path := cyclePath(0)
	snaps := map[string]*orderbook.Snapshot{"USD-BTC": snap(101, 10, 100, 10)}

	eval, _ := Evaluate(path, 100, snaps, nil, cfg, false)
	if eval == nil {
		t.Fatal("expected acceptance")
	}
	if math.Abs(eval.DeltaInst-0.01) > 1e-9 {
		t.Errorf("DeltaInst = %v, want 0.01", eval.DeltaInst)
	}
	if eval.DeltaSlip != 0 {
		t.Errorf("DeltaSlip = %v, want 0", eval.DeltaSlip)
	}
}

// TestEvaluate_S3_DepthStarvation is scenario S3.
func TestEvaluate_S3_DepthStarvation(t *testing.T) {
	cfg := testConfig()
	path := cyclePath(0)
	snaps := map[string]*orderbook.Snapshot{
		"USD-BTC": {
			Bids: []orderbook.Level{{Price: 100, Size: 1}},
			Asks: []orderbook.Level{{Price: 100, Size: 0.5}},
		},
	}

	_, dbg := Evaluate(path, 100, snaps, nil, cfg, true)
	if dbg == nil || dbg.Reason != ReasonInsufficientAskDepth {
		t.Fatalf("expected insufficient-ask-depth, got %+v", dbg)
	}
}

// TestEvaluate_S4_FeeAndSpreadCanonicalCheck is scenario S4: for a symmetric
// book with half-spread h and per-leg fee f, the round-trip delta_inst ~=
// -(2h+2f) to first order.
func TestEvaluate_S4_FeeAndSpreadCanonicalCheck(t *testing.T) {
	cfg := testConfig()
	cfg.RiskModel.MinProfitMargin = -1
	h := 0.001
	f := 0.0004
	mid := 100.0
	path := cyclePath(f)
	snaps := map[string]*orderbook.Snapshot{
		"USD-BTC": snap(mid*(1-h), 1000, mid*(1+h), 1000),
	}

	eval, _ := Evaluate(path, 100, snaps, nil, cfg, false)
	if eval == nil {
		t.Fatal("expected acceptance (threshold ignored via a permissive min_profit_margin)")
	}

	want := -(2*h + 2*f)
	if math.Abs(eval.DeltaInst-want) > 1e-4 {
		t.Errorf("DeltaInst = %v, want ~%v", eval.DeltaInst, want)
	}
}

func TestEvaluate_RejectsBelowFirstLegMinimum(t *testing.T) {
	cfg := testConfig()
	path := cyclePath(0)
	path.Edges[0].MinTotal = 60
	snaps := map[string]*orderbook.Snapshot{"USD-BTC": snap(100, 1, 100, 1)}

	_, dbg := Evaluate(path, 50, snaps, nil, cfg, true)
	if dbg == nil || dbg.Reason != ReasonStartingNotionalBelowMinimum {
		t.Fatalf("expected starting-notional-below-minimum, got %+v", dbg)
	}
}

func TestEvaluate_AcceptsExactlyAtFirstLegMinimum(t *testing.T) {
	cfg := testConfig()
	cfg.RiskModel.MinProfitMargin = -1
	path := cyclePath(0)
	path.Edges[0].MinTotal = 50
	snaps := map[string]*orderbook.Snapshot{"USD-BTC": snap(100, 1, 100, 1)}

	eval, dbg := Evaluate(path, 50, snaps, nil, cfg, true)
	if eval == nil {
		t.Fatalf("expected acceptance at exact minimum boundary, got rejection %+v", dbg)
	}
}

func TestEvaluate_MissingSnapshotIsRejected(t *testing.T) {
	cfg := testConfig()
	path := cyclePath(0)
	snaps := map[string]*orderbook.Snapshot{}

	_, dbg := Evaluate(path, 100, snaps, nil, cfg, true)
	if dbg == nil || dbg.Reason != ReasonMissingSnapshot {
		t.Fatalf("expected missing-snapshot, got %+v", dbg)
	}
}

func TestEvaluate_VolRiskDiscountsAcceptance(t *testing.T) {
	cfg := testConfig()
	cfg.RiskModel.VolRiskMultiplier = 1.0
	path := cyclePath(0)
	snaps := map[string]*orderbook.Snapshot{"USD-BTC": snap(101, 10, 100, 10)}

	withoutVol, _ := Evaluate(path, 100, snaps, nil, cfg, false)
	withVol, _ := Evaluate(path, 100, snaps, map[string]float64{"BTC": 0.5}, cfg, false)

	if withoutVol == nil {
		t.Fatal("expected acceptance without volatility")
	}
	if withVol != nil {
		t.Fatal("expected rejection once a high sigma dominates the discount")
	}
}
