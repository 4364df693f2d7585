// Package evaluator deterministically simulates walking a cycle against
// frozen order-book snapshots, converting a starting notional into an
// ending notional through N legs net of fees, and scores the result against
// a volatility-risk discount and realised slippage.
package evaluator

import (
	"math"

	"cyclearb/internal/config"
	"cyclearb/internal/graph"
	"cyclearb/internal/orderbook"
)

const epsilon = 1e-9

// RejectionReason is one member of the evaluation-rejection taxonomy. These
// are ordinary return-path outcomes, never exceptions.
type RejectionReason string

const (
	ReasonStartingNotionalBelowMinimum RejectionReason = "starting-notional-below-minimum"
	ReasonMissingSnapshot               RejectionReason = "missing-snapshot"
	ReasonInvalidSnapshot                RejectionReason = "invalid-snapshot"
	ReasonInputBelowMinimum              RejectionReason = "input-below-minimum"
	ReasonInsufficientAskDepth           RejectionReason = "insufficient-ask-depth"
	ReasonInsufficientBidDepth           RejectionReason = "insufficient-bid-depth"
	ReasonNotionalBelowMinimum           RejectionReason = "notional-below-minimum"
	ReasonInvalidVWAP                    RejectionReason = "invalid-vwap"
	ReasonNonPositiveOutput              RejectionReason = "non-positive-output"
	ReasonBelowProfitThreshold           RejectionReason = "below-profit-threshold"
	ReasonEvaluated                      RejectionReason = "evaluated"
)

// LegResult records one leg's simulated fill.
type LegResult struct {
	MarketCode    string
	Side          graph.Side
	Spent         float64
	Received      float64
	EffectivePrice float64
	InputAmount   float64
	OutputAmount  float64
	FeeRate       float64
	LevelsUsed    int
}

// PathEvaluation is the result of a successfully accepted path walk.
type PathEvaluation struct {
	PathID          string
	StartingAmount  float64
	FinalAmount     float64
	DeltaInst       float64
	DeltaVol        float64
	DeltaSlip       float64
	DeltaFinal      float64
	Legs            []LegResult
}

// TopOfBook is a minimal captured view for debug records.
type TopOfBook struct {
	Market  string
	BestBid float64
	BestAsk float64
}

// EvaluationDebug carries a rejection (or acceptance) reason plus captured
// top-of-book views, when debug mode is requested.
type EvaluationDebug struct {
	PathID    string
	Reason    RejectionReason
	TopOfBook []TopOfBook
}

// Evaluate walks path against the given snapshots and sigmas, returning
// either a successful evaluation, or nil plus (optionally, if debug) a
// debug record describing the rejection. In debug mode a successful
// evaluation also comes with a debug record whose reason is "evaluated".
func Evaluate(
	path graph.PathDefinition,
	startingNotional float64,
	snapshots map[string]*orderbook.Snapshot,
	sigmaByAsset map[string]float64,
	cfg *config.Config,
	debug bool,
) (*PathEvaluation, *EvaluationDebug) {
	if len(path.Edges) == 0 {
		return nil, debugRecord(path.PathID, ReasonNonPositiveOutput, nil, debug)
	}

	first := path.Edges[0]
	minFirst := first.MinTotal * cfg.Graph.FirstLegMultiplier
	if startingNotional < minFirst {
		return nil, debugRecord(path.PathID, ReasonStartingNotionalBelowMinimum, nil, debug)
	}

	var tops []TopOfBook
	legs := make([]LegResult, 0, len(path.Edges))
	slippage := 0.0
	x := startingNotional

	for i, edge := range path.Edges {
		if x <= 0 {
			return nil, debugRecord(path.PathID, ReasonNonPositiveOutput, tops, debug)
		}

		snap, ok := snapshots[edge.MarketCode]
		if !ok || snap == nil {
			return nil, debugRecord(path.PathID, ReasonMissingSnapshot, tops, debug)
		}
		if len(snap.Bids) == 0 || len(snap.Asks) == 0 {
			return nil, debugRecord(path.PathID, ReasonInvalidSnapshot, tops, debug)
		}

		tops = append(tops, TopOfBook{Market: edge.MarketCode, BestBid: snap.Bids[0].Price, BestAsk: snap.Asks[0].Price})

		multiplier := cfg.Graph.MinNotionalMultiplier
		if i == 0 {
			multiplier = cfg.Graph.FirstLegMultiplier
		}
		minQuoteRequired := edge.MinTotal * multiplier

		var leg LegResult
		var reason RejectionReason
		var ok2 bool

		switch edge.Side {
		case graph.Buy:
			leg, reason, ok2 = simulateBuy(edge, x, snap, minQuoteRequired)
		default:
			leg, reason, ok2 = simulateSell(edge, x, snap, minQuoteRequired)
		}
		if !ok2 {
			return nil, debugRecord(path.PathID, reason, tops, debug)
		}

		legSlip := slippageFor(edge, leg, snap)
		slippage += legSlip
		legs = append(legs, leg)

		if i+1 < len(path.Edges) {
			nextEdge := path.Edges[i+1]
			nextSnap, ok := snapshots[nextEdge.MarketCode]
			if !ok || nextSnap == nil {
				return nil, debugRecord(path.PathID, ReasonMissingSnapshot, tops, debug)
			}
			if len(nextSnap.Bids) == 0 || len(nextSnap.Asks) == 0 {
				return nil, debugRecord(path.PathID, ReasonInvalidSnapshot, tops, debug)
			}

			nextMinQuote := nextEdge.MinTotal * cfg.Graph.MinNotionalMultiplier
			var inputAsQuote float64
			if nextEdge.Side == graph.Buy {
				inputAsQuote = leg.OutputAmount
			} else {
				bestBid := nextSnap.Bids[0].Price
				if bestBid <= 0 {
					return nil, debugRecord(path.PathID, ReasonInvalidSnapshot, tops, debug)
				}
				inputAsQuote = leg.OutputAmount * bestBid
			}
			if inputAsQuote < nextMinQuote {
				return nil, debugRecord(path.PathID, ReasonInputBelowMinimum, tops, debug)
			}
		}

		x = leg.OutputAmount
	}

	final := x
	deltaInst := final/startingNotional - 1

	maxSigma := 0.0
	for _, a := range path.Assets {
		if a == cfg.AnchorAsset {
			continue
		}
		if s, ok := sigmaByAsset[a]; ok && s > maxSigma {
			maxSigma = s
		}
	}
	deltaVol := cfg.RiskModel.VolRiskMultiplier * maxSigma

	extraEdge := 0.0
	for _, a := range path.Assets {
		if rule, ok := cfg.Tokens[a]; ok && rule.ExtraEdgeRequired > extraEdge {
			extraEdge = rule.ExtraEdgeRequired
		}
	}
	minProfit := cfg.RiskModel.MinProfitMargin + extraEdge

	deltaFinal := deltaInst - deltaVol - slippage

	eval := &PathEvaluation{
		PathID:         path.PathID,
		StartingAmount: startingNotional,
		FinalAmount:    final,
		DeltaInst:      deltaInst,
		DeltaVol:       deltaVol,
		DeltaSlip:      slippage,
		DeltaFinal:     deltaFinal,
		Legs:           legs,
	}

	if deltaFinal > minProfit {
		if debug {
			return eval, &EvaluationDebug{PathID: path.PathID, Reason: ReasonEvaluated, TopOfBook: tops}
		}
		return eval, nil
	}
	return nil, debugRecord(path.PathID, ReasonBelowProfitThreshold, tops, debug)
}

func debugRecord(pathID string, reason RejectionReason, tops []TopOfBook, debug bool) *EvaluationDebug {
	if !debug {
		return nil
	}
	return &EvaluationDebug{PathID: pathID, Reason: reason, TopOfBook: tops}
}

// simulateBuy walks asks ascending, consuming quote input x to acquire base.
func simulateBuy(edge graph.Edge, x float64, snap *orderbook.Snapshot, minQuoteRequired float64) (LegResult, RejectionReason, bool) {
	remaining := x
	var spent, acquired float64
	levels := 0

	for _, lvl := range snap.Asks {
		if remaining <= epsilon {
			break
		}
		levelCost := lvl.Price * lvl.Size
		if remaining >= levelCost {
			spent += levelCost
			acquired += lvl.Size
			remaining -= levelCost
		} else {
			units := remaining / lvl.Price
			spent += remaining
			acquired += units
			remaining = 0
		}
		levels++
	}

	if remaining > epsilon || acquired <= 0 {
		return LegResult{}, ReasonInsufficientAskDepth, false
	}
	if spent < minQuoteRequired {
		return LegResult{}, ReasonNotionalBelowMinimum, false
	}

	vwap := spent / acquired
	if vwap <= 0 {
		return LegResult{}, ReasonInvalidVWAP, false
	}
	effectivePrice := vwap * (1 + edge.FeeRate)
	// The fee is paid in quote terms, which is equivalent to receiving
	// fewer base units at the fee-inclusive effective price.
	output := spent / effectivePrice

	return LegResult{
		MarketCode:     edge.MarketCode,
		Side:           graph.Buy,
		Spent:          spent,
		Received:       acquired,
		EffectivePrice: effectivePrice,
		InputAmount:    x,
		OutputAmount:   output,
		FeeRate:        edge.FeeRate,
		LevelsUsed:     levels,
	}, "", true
}

// simulateSell walks bids descending, consuming base input x to receive quote.
func simulateSell(edge graph.Edge, x float64, snap *orderbook.Snapshot, minQuoteRequired float64) (LegResult, RejectionReason, bool) {
	remaining := x
	var proceeds, baseConsumed float64
	levels := 0

	for _, lvl := range snap.Bids {
		if remaining <= epsilon {
			break
		}
		if lvl.Size <= remaining {
			proceeds += lvl.Price * lvl.Size
			baseConsumed += lvl.Size
			remaining -= lvl.Size
		} else {
			proceeds += lvl.Price * remaining
			baseConsumed += remaining
			remaining = 0
		}
		levels++
	}

	if remaining > epsilon {
		return LegResult{}, ReasonInsufficientBidDepth, false
	}

	vwap := proceeds / x
	if vwap <= 0 {
		return LegResult{}, ReasonInvalidVWAP, false
	}
	effectivePrice := vwap * (1 - edge.FeeRate)
	output := x * effectivePrice

	if output < minQuoteRequired {
		return LegResult{}, ReasonNotionalBelowMinimum, false
	}

	return LegResult{
		MarketCode:     edge.MarketCode,
		Side:           graph.Sell,
		Spent:          baseConsumed,
		Received:       proceeds,
		EffectivePrice: effectivePrice,
		InputAmount:    x,
		OutputAmount:   output,
		FeeRate:        edge.FeeRate,
		LevelsUsed:     levels,
	}, "", true
}

func slippageFor(edge graph.Edge, leg LegResult, snap *orderbook.Snapshot) float64 {
	if edge.Side == graph.Buy {
		bestAsk := snap.Asks[0].Price
		return math.Max(0, (leg.EffectivePrice-bestAsk)/bestAsk)
	}
	bestBid := snap.Bids[0].Price
	return math.Max(0, (bestBid-leg.EffectivePrice)/bestBid)
}
