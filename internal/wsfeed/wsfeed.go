// Package wsfeed is a thin, reconnecting WebSocket frame subscriber.
// It decodes inbound frames onto a typed channel and nothing more —
// it is not an exchange client (building one is an explicit Non-goal
// of this engine); it exists so the exchange.Handle capability
// adapters have a concrete, idiomatic transport for the public
// book-ticker and private order-update feeds named in SPEC_FULL.md §6.
// gorilla/websocket is adopted here because it is the transport used
// across the majority of the reference pack
// (ChoSanghyuk-blackholedex, yohannesjx-sniperterminal,
// 0xtitan6-polymarket-mm, thrasher-corp-gocryptotrader).
package wsfeed

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dasein108/cex-arbitrage-sub002/internal/xlog"
)

// Decoder turns one inbound WebSocket frame into a typed value. A
// decoder that returns an error for a frame it does not recognize
// (e.g. a ping/pong control message already handled by gorilla) should
// return ok=false rather than an error.
type Decoder[T any] func(frame []byte) (value T, ok bool, err error)

// Subscriber maintains a reconnecting WebSocket connection to URL,
// decoding every text/binary frame with Decode and delivering the
// result on Out. Reconnects with capped exponential backoff on any
// read/dial error until ctx is cancelled.
type Subscriber[T any] struct {
	URL    string
	Decode Decoder[T]
	Out    chan T
	log    xlog.Logger

	// Dial is overridable for tests; defaults to websocket.DefaultDialer.
	Dial func(ctx context.Context, url string) (*websocket.Conn, error)
}

// New constructs a Subscriber with a reasonably sized output buffer.
func New[T any](url string, decode Decoder[T], log xlog.Logger) *Subscriber[T] {
	if log == nil {
		log = xlog.Nop()
	}
	return &Subscriber[T]{
		URL:    url,
		Decode: decode,
		Out:    make(chan T, 256),
		log:    log,
		Dial: func(ctx context.Context, url string) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			return conn, err
		},
	}
}

// Run blocks, maintaining the connection until ctx is cancelled.
// Callers typically invoke this in its own goroutine.
func (s *Subscriber[T]) Run(ctx context.Context) {
	backoff := 500 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := s.Dial(ctx, s.URL)
		if err != nil {
			s.log.Warn("wsfeed: dial %s failed: %v (retry in %s)", s.URL, err, backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 500 * time.Millisecond
		s.readLoop(ctx, conn)
		conn.Close()
	}
}

func (s *Subscriber[T]) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("wsfeed: read error on %s: %v", s.URL, err)
			}
			return
		}
		value, ok, err := s.Decode(frame)
		if err != nil {
			s.log.Warn("wsfeed: decode error on %s: %v", s.URL, err)
			continue
		}
		if !ok {
			continue
		}
		select {
		case s.Out <- value:
		case <-ctx.Done():
			return
		default:
			// Drop the oldest buffered value rather than block the
			// read loop.
			select {
			case <-s.Out:
			default:
			}
			select {
			case s.Out <- value:
			default:
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
