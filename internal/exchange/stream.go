package exchange

import (
	"context"
	"log/slog"
	"time"

	"arbwatch/internal/model"

	"github.com/gorilla/websocket"
)

const (
	minBackoff = time.Second
	maxBackoff = 16 * time.Second
)

// feedSpec describes one exchange feed.
type feedSpec struct {
	name      string
	url       string
	subscribe func(c *websocket.Conn) error
	parse     func(message []byte, now time.Time) []model.PriceQuote
}

// streamer holds what every client shares: logger, status listener and dialer.
type streamer struct {
	logger     *slog.Logger
	listener   StatusListener
	dialer     *websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	now        func() time.Time
}

func newStreamer(logger *slog.Logger, listener StatusListener) streamer {
	if listener == nil {
		listener = nopListener{}
	}
	return streamer{
		logger:     logger,
		listener:   listener,
		dialer:     websocket.DefaultDialer,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		now:        time.Now,
	}
}

// run connects to feed.url, subscribes, and forwards parsed quotes to
// priceChan. Connection failures back off exponentially up to maxBackoff.
// It returns nil once ctx is cancelled.
func (s streamer) run(ctx context.Context, feed feedSpec, priceChan chan<- model.PriceQuote) error {
	logger := s.logger.With("exchange", feed.name)
	backoff := s.minBackoff

	wait := func() bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
			backoff *= 2
			if backoff > s.maxBackoff {
				backoff = s.maxBackoff
			}
			return true
		}
	}

	for {
		if ctx.Err() != nil {
			logger.Info("Stream: context cancelled, shutting down")
			return nil
		}

		logger.Info("Stream: connecting to WebSocket", "url", feed.url, "backoff", backoff)
		c, _, err := s.dialer.DialContext(ctx, feed.url, nil)
		if err != nil {
			logger.Error("Stream: WebSocket connection failed", "error", err)
			if !wait() {
				return nil
			}
			continue
		}

		if feed.subscribe != nil {
			if err := feed.subscribe(c); err != nil {
				logger.Error("Stream: failed to send subscription", "error", err)
				c.Close()
				if !wait() {
					return nil
				}
				continue
			}
		}

		// Reset backoff on successful connection
		backoff = s.minBackoff
		logger.Info("Stream: connected successfully")
		s.listener.OnExchangeConnect(feed.name)

		if done := s.read(ctx, logger, c, feed, priceChan); done {
			s.listener.OnExchangeDisconnect(feed.name)
			return nil
		}
		s.listener.OnExchangeDisconnect(feed.name)
		if !wait() {
			return nil
		}
	}
}

// read pumps messages until the connection fails or ctx ends. It reports
// true when ctx ended.
func (s streamer) read(ctx context.Context, logger *slog.Logger, c *websocket.Conn, feed feedSpec, priceChan chan<- model.PriceQuote) bool {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-stop:
		}
	}()
	defer c.Close()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("Stream: context cancelled, closing connection")
				return true
			}
			logger.Error("Stream: failed to read message", "error", err)
			return false
		}

		for _, q := range feed.parse(message, s.now()) {
			select {
			case priceChan <- q:
				logger.Debug("Stream: sent price quote", "symbol", q.Instrument, "price", q.Price)
			case <-ctx.Done():
				logger.Info("Stream: context cancelled while sending price quote")
				return true
			}
		}
	}
}
