package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"cyclearb/internal/market"
	"cyclearb/internal/volatility"
)

// WSTickerFeed subscribes to a trade-price stream and publishes events into
// the volatility cache.
type WSTickerFeed struct {
	URL     string
	Cache   *volatility.Cache
	OnError func(error)
}

type tickerEvent struct {
	Market     string  `json:"market"`
	Quote      string  `json:"quote"`
	Base       string  `json:"base"`
	TsMs       int64   `json:"timestamp"`
	TradePrice float64 `json:"trade_price"`
}

// Run connects and reads ticker events until ctx is cancelled, reconnecting
// with backoff on read error.
func (f *WSTickerFeed) Run(ctx context.Context) {
	backoff := 500 * time.Millisecond
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.URL, nil)
		if err != nil {
			f.reportError(fmt.Errorf("dial: %w", err))
			if !sleepOrDone(ctx, backoff) {
				return
			}
			continue
		}

		f.readLoop(ctx, conn)
		conn.Close()

		if !sleepOrDone(ctx, backoff) {
			return
		}
	}
}

func (f *WSTickerFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Closing the connection on cancellation unblocks a pending read.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.reportError(fmt.Errorf("read: %w", err))
			return
		}

		var ev tickerEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			f.reportError(fmt.Errorf("decode: %w", err))
			continue
		}

		f.Cache.UpdateFromTicker(market.Ticker{
			Market:      ev.Market,
			Quote:       ev.Quote,
			Base:        ev.Base,
			TimestampMs: ev.TsMs,
			TradePrice:  ev.TradePrice,
		})
	}
}

func (f *WSTickerFeed) reportError(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}
