// Package market defines the wire-level shapes produced by market-listing,
// orderbook, and ticker collaborators, before they are adapted into the
// graph, orderbook, and volatility caches.
package market

// Info describes one listed market as reported by a listing source.
// MarketCode is "QUOTE-BASE", optionally prefixed "EX::" to denote an
// exchange.
type Info struct {
	MarketCode string
	Base       string
	Quote      string
}

// Level is one raw (price, size) pair as delivered by an orderbook feed,
// before the cache sorts and validates it.
type Level struct {
	Price float64
	Size  float64
}

// RawOrderbook is the untrusted shape delivered by an orderbook feed. Level
// order is not trusted.
type RawOrderbook struct {
	Bids        []Level
	Asks        []Level
	TimestampMs int64
}

// Ticker is a trade-price event delivered by a ticker feed.
type Ticker struct {
	Market      string
	Quote       string
	Base        string
	TimestampMs int64
	TradePrice  float64
}
