// Package scanner orchestrates one pass over the enumerated cycles: for
// every path, it reads the required snapshots from the order-book cache,
// evaluates it, and tracks the best result of the pass.
package scanner

import (
	"time"

	"github.com/google/uuid"

	"cyclearb/internal/config"
	"cyclearb/internal/evaluator"
	"cyclearb/internal/graph"
	"cyclearb/internal/orderbook"
	"cyclearb/internal/volatility"
)

// Summary reports the outcome of one scan pass.
type Summary struct {
	PassID         string
	Evaluated      int
	Opportunities  int
	DurationMs     int64
	BestPathID     string
	BestAssets     []string
	BestDeltaFinal float64
	HasOpportunity bool

	// Rejections counts, by reason, every path that reached evaluation but
	// was not accepted.
	Rejections map[evaluator.RejectionReason]int64
	// DebugRecords holds the evaluator's per-path debug record for every
	// rejection, populated only when RunOnce is called with debug set.
	DebugRecords []*evaluator.EvaluationDebug
}

// Scanner drives repeated passes over a static PathModel against the
// mutable order-book and volatility caches.
type Scanner struct {
	Graph      *graph.MarketGraph
	Paths      *graph.PathModel
	Books      *orderbook.Cache
	Vol        *volatility.Cache
	Config     *config.Config
}

// New constructs a Scanner bound to its collaborators.
func New(g *graph.MarketGraph, pm *graph.PathModel, books *orderbook.Cache, vol *volatility.Cache, cfg *config.Config) *Scanner {
	return &Scanner{Graph: g, Paths: pm, Books: books, Vol: vol, Config: cfg}
}

// RunOnce performs one scan pass: for every path, it pulls required
// snapshots, evaluates, and keeps the best result. Paths missing any
// required snapshot are skipped, not rejected. The driver imposes no
// ordering guarantees across passes.
func (s *Scanner) RunOnce(startingNotional float64, debug bool) Summary {
	start := time.Now()
	sum := Summary{PassID: uuid.NewString(), Rejections: make(map[evaluator.RejectionReason]int64)}

	if !s.Books.HasData() {
		sum.DurationMs = time.Since(start).Milliseconds()
		return sum
	}

	for _, path := range s.Paths.Paths {
		marketCodes := make([]string, 0, len(path.Edges))
		for _, e := range path.Edges {
			marketCodes = append(marketCodes, e.MarketCode)
		}

		snaps := s.Books.SnapshotMany("", marketCodes)
		if len(snaps) != len(uniqueMarkets(marketCodes)) {
			continue
		}

		sigmas := s.Vol.SnapshotSigmas(path.Assets)

		sum.Evaluated++
		// Always ask for the debug record, even outside debug mode: the
		// rejection reason it carries is what drives scanner_rejections_total,
		// not just the optional verbose log.
		eval, dbg := evaluator.Evaluate(path, startingNotional, snaps, sigmas, s.Config, true)
		if eval == nil {
			if dbg != nil {
				sum.Rejections[dbg.Reason]++
				if debug {
					sum.DebugRecords = append(sum.DebugRecords, dbg)
				}
			}
			continue
		}

		sum.Opportunities++
		if !sum.HasOpportunity || eval.DeltaFinal > sum.BestDeltaFinal {
			sum.HasOpportunity = true
			sum.BestPathID = path.PathID
			sum.BestAssets = path.Assets
			sum.BestDeltaFinal = eval.DeltaFinal
		}
	}

	sum.DurationMs = time.Since(start).Milliseconds()
	return sum
}

func uniqueMarkets(codes []string) map[string]struct{} {
	out := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		out[c] = struct{}{}
	}
	return out
}
