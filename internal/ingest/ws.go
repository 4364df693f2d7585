package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"cyclearb/internal/market"
	"cyclearb/internal/orderbook"
)

// WSOrderbookFeed subscribes to a depth stream and publishes every update
// into an order-book cache.
type WSOrderbookFeed struct {
	URL     string
	Markets []string
	Cache   *orderbook.Cache
	OnError func(error)
}

type depthEvent struct {
	Market string          `json:"market"`
	Bids   [][2]float64    `json:"bids"`
	Asks   [][2]float64    `json:"asks"`
	TsMs   int64           `json:"timestamp"`
}

// Run connects and reads depth events until ctx is cancelled, reconnecting
// with backoff on read error. It honours cooperative cancellation: it
// unwinds at its next suspension point (the blocked read) and closes the
// connection on shutdown.
func (f *WSOrderbookFeed) Run(ctx context.Context) {
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

func (f *WSOrderbookFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
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

		var ev depthEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			f.reportError(fmt.Errorf("decode: %w", err))
			continue
		}

		raw := market.RawOrderbook{TimestampMs: ev.TsMs}
		for _, b := range ev.Bids {
			raw.Bids = append(raw.Bids, market.Level{Price: b[0], Size: b[1]})
		}
		for _, a := range ev.Asks {
			raw.Asks = append(raw.Asks, market.Level{Price: a[0], Size: a[1]})
		}

		f.Cache.Update("", ev.Market, raw)
	}
}

func (f *WSOrderbookFeed) reportError(err error) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
