// Package graph builds the directed market multigraph and enumerates
// admissible cycles over it.
package graph

import (
	"strings"

	"cyclearb/internal/config"
	"cyclearb/internal/market"
)

// Side identifies which side of a market an edge trades.
type Side int

const (
	// Buy consumes quote to produce base.
	Buy Side = iota
	// Sell consumes base to produce quote.
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Edge is one directed trading action against a specific market.
type Edge struct {
	MarketCode string
	FromAsset  string
	ToAsset    string
	Side       Side
	FeeRate    float64
	MinTotal   float64
	Exchange   string
}

// MarketGraph is a directed multigraph indexed by source asset, built once
// from a market listing and immutable thereafter.
type MarketGraph struct {
	bySource map[string][]Edge
	edges    []Edge
}

// Build constructs the graph. Each market (base B, quote Q) contributes a
// buy edge Q->B and a sell edge B->Q sharing the same market code, fee rate,
// and minimum notional. Markets are consumed in the order given, so
// iteration over OutEdges is deterministic.
func Build(markets []market.Info, cfg *config.Config) *MarketGraph {
	g := &MarketGraph{bySource: make(map[string][]Edge)}

	for _, m := range markets {
		exchange := ""
		code := m.MarketCode
		if idx := strings.Index(code, "::"); idx >= 0 {
			exchange = code[:idx]
		}

		minTotal := cfg.QuoteMinNotional(m.Quote) * cfg.Graph.MinNotionalMultiplier

		buy := Edge{
			MarketCode: code,
			FromAsset:  m.Quote,
			ToAsset:    m.Base,
			Side:       Buy,
			FeeRate:    cfg.Graph.TakerFeeRate,
			MinTotal:   minTotal,
			Exchange:   exchange,
		}
		sell := Edge{
			MarketCode: code,
			FromAsset:  m.Base,
			ToAsset:    m.Quote,
			Side:       Sell,
			FeeRate:    cfg.Graph.TakerFeeRate,
			MinTotal:   minTotal,
			Exchange:   exchange,
		}

		g.addEdge(buy)
		g.addEdge(sell)
	}

	return g
}

func (g *MarketGraph) addEdge(e Edge) {
	g.edges = append(g.edges, e)
	g.bySource[e.FromAsset] = append(g.bySource[e.FromAsset], e)
}

// OutEdges returns the edges leaving asset, in insertion order.
func (g *MarketGraph) OutEdges(asset string) []Edge {
	return g.bySource[asset]
}

// Edges returns every edge in the graph, in insertion order.
func (g *MarketGraph) Edges() []Edge {
	return g.edges
}
