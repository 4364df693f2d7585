package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cyclearb/internal/account"
	"cyclearb/internal/config"
	"cyclearb/internal/evaluator"
	"cyclearb/internal/graph"
	"cyclearb/internal/ingest"
	"cyclearb/internal/logger"
	"cyclearb/internal/market"
	"cyclearb/internal/metrics"
	"cyclearb/internal/obslog"
	"cyclearb/internal/orderbook"
	"cyclearb/internal/scanner"
	"cyclearb/internal/volatility"

	"go.uber.org/zap"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the scanner config file")
	flag.Parse()

	logger.Banner(version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Config", fmt.Sprintf("Failed to load: %v", err))
		os.Exit(1)
	}

	zlog, err := obslog.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		logger.Error("Log", fmt.Sprintf("Failed to build logger: %v", err))
		os.Exit(1)
	}
	defer zlog.Sync()

	logger.Section("Market listing")
	markets, err := loadMarkets(cfg)
	if err != nil {
		logger.Error("Markets", fmt.Sprintf("Failed to load: %v", err))
		os.Exit(1)
	}
	logger.Stats("markets", len(markets))

	g := graph.Build(markets, cfg)
	pm := graph.BuildPaths(g, cfg)
	logger.Stats("paths", len(pm.Paths))

	books := orderbook.NewCache()
	vol := volatility.NewCache(cfg)

	if err := runSelfTest(g, pm, cfg); err != nil {
		logger.Error("SelfTest", fmt.Sprintf("Probe out of expected band: %v", err))
		os.Exit(1)
	}
	logger.Success("SelfTest", "round-trip probes within expected band")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startIngestion(ctx, cfg, books, vol, zlog)

	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics.ListenAddr)
	}

	bal := account.Static{Amount: cfg.Graph.QuoteMinNotional(cfg.AnchorAsset) * 100}

	sc := scanner.New(g, pm, books, vol, cfg)
	runLoop(ctx, sc, bal, cfg, zlog)

	logger.Info("Scanner", "stopped")
}

func loadMarkets(cfg *config.Config) ([]market.Info, error) {
	if cfg.Exchange.RESTBaseURL == "" {
		return nil, fmt.Errorf("exchange.rest_base_url is required")
	}
	src := ingest.NewRESTMarketSource(cfg.Exchange.RESTBaseURL, cfg.Exchange.RequestTimeout)
	listed, err := src.ListMarkets(context.Background())
	if err != nil {
		return nil, err
	}

	allowedQuotes := make(map[string]bool, len(cfg.Exchange.AllowedQuotes))
	for _, q := range cfg.Exchange.AllowedQuotes {
		allowedQuotes[q] = true
	}
	enabled := make(map[string]bool, len(cfg.Tokens))
	for asset, rule := range cfg.Tokens {
		enabled[asset] = rule.Enabled
	}
	enabled[cfg.AnchorAsset] = true
	if len(allowedQuotes) == 0 {
		allowedQuotes[cfg.AnchorAsset] = true
	}

	return ingest.FilterMarkets(listed, allowedQuotes, enabled), nil
}

func startIngestion(ctx context.Context, cfg *config.Config, books *orderbook.Cache, vol *volatility.Cache, zlog *zap.Logger) {
	if cfg.Exchange.WSURL == "" {
		return
	}

	obFeed := &ingest.WSOrderbookFeed{
		URL:   cfg.Exchange.WSURL,
		Cache: books,
		OnError: func(err error) {
			metrics.IngestionFeedErrorsTotal.WithLabelValues("orderbook").Inc()
			zlog.Warn("orderbook feed error", zap.Error(err))
		},
	}
	tkFeed := &ingest.WSTickerFeed{
		URL:   cfg.Exchange.WSURL,
		Cache: vol,
		OnError: func(err error) {
			metrics.IngestionFeedErrorsTotal.WithLabelValues("ticker").Inc()
			zlog.Warn("ticker feed error", zap.Error(err))
		},
	}

	go obFeed.Run(ctx)
	go tkFeed.Run(ctx)
}

func startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	logger.Server(addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics", fmt.Sprintf("server failed: %v", err))
		}
	}()
}

func runLoop(ctx context.Context, sc *scanner.Scanner, bal account.Static, cfg *config.Config, zlog *zap.Logger) {
	ticker := time.NewTicker(cfg.Scanner.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			notional, err := bal.Balance(ctx)
			if err != nil {
				zlog.Warn("balance fetch failed", zap.Error(err))
				continue
			}
			sum := sc.RunOnce(notional, cfg.Scanner.Debug)
			metrics.ObserveSummary(sum.Evaluated, sum.Opportunities, sum.DurationMs, sum.BestDeltaFinal, sum.HasOpportunity)
			metrics.OrderbookCacheMarkets.Set(float64(sc.Books.Markets()))

			for reason, count := range sum.Rejections {
				metrics.RejectionsTotal.WithLabelValues(string(reason)).Add(float64(count))
			}

			if cfg.Scanner.Debug {
				for _, rec := range sum.DebugRecords {
					zlog.Debug("evaluation rejected",
						zap.String("pass_id", sum.PassID),
						zap.String("path_id", rec.PathID),
						zap.String("reason", string(rec.Reason)),
					)
				}
			}

			if sum.HasOpportunity {
				zlog.Info("scan pass",
					zap.String("pass_id", sum.PassID),
					zap.Int("evaluated", sum.Evaluated),
					zap.Int("opportunities", sum.Opportunities),
					zap.Int64("duration_ms", sum.DurationMs),
					zap.String("best_path_id", sum.BestPathID),
					zap.Float64("best_delta_final", sum.BestDeltaFinal),
				)
			}
		}
	}
}

// runSelfTest seeds a private cache with a synthetic flat book for each
// configured market and asserts every two-leg round trip through the anchor
// comes back within a small band of zero, as a sanity check before trading
// on live data. This reproduces the startup round-trip probe from the
// reference driver this scanner's wiring is based on.
func runSelfTest(g *graph.MarketGraph, pm *graph.PathModel, cfg *config.Config) error {
	// Probes measure delta_inst only, so the profit threshold must not
	// reject them before the band check runs.
	probeCfg := *cfg
	probeCfg.RiskModel.MinProfitMargin = math.Inf(-1)

	books := orderbook.NewCache()
	for _, e := range g.Edges() {
		books.Update("", e.MarketCode, market.RawOrderbook{
			Bids: []market.Level{{Price: 100, Size: 1e6}},
			Asks: []market.Level{{Price: 100, Size: 1e6}},
		})
	}

	for _, p := range pm.Paths {
		if len(p.Edges) != 2 {
			continue
		}
		marketCodes := []string{p.Edges[0].MarketCode, p.Edges[1].MarketCode}
		snaps := books.SnapshotMany("", marketCodes)
		if len(snaps) != len(uniqueStrings(marketCodes)) {
			continue
		}
		// Well above the leg minimums, so fees on the first leg cannot push
		// the second leg's input below its minimum.
		probeNotional := 10 * p.Edges[0].MinTotal * math.Max(cfg.Graph.FirstLegMultiplier, cfg.Graph.MinNotionalMultiplier)
		if probeNotional <= 0 {
			probeNotional = 100
		}
		eval, _ := evaluator.Evaluate(p, probeNotional, snaps, nil, &probeCfg, false)
		if eval == nil {
			continue
		}
		if math.Abs(eval.DeltaInst) > 0.03 {
			return fmt.Errorf("path %s delta_inst out of band: %v", p.PathID, eval.DeltaInst)
		}
	}
	return nil
}

func uniqueStrings(ss []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ss))
	for _, s := range ss {
		out[s] = struct{}{}
	}
	return out
}
