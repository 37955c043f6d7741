package gasprice

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/flasharb/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// readWait is the time allowed between incoming messages. New heads
	// arrive roughly every block, so this is generous.
	readWait = 2 * time.Minute

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// Feed tracks the network base fee by subscribing to new block headers over a
// JSON-RPC WebSocket endpoint. The latest observed base fee is cached and
// served lock-free; until the first header arrives a configured fallback
// price is reported instead.
type Feed struct {
	wsURL    string
	fallback *big.Int
	logger   *slog.Logger

	latest atomic.Pointer[big.Int]
}

var _ domain.GasOracle = (*Feed)(nil)

// NewFeed creates a feed for the given WebSocket JSON-RPC endpoint.
// fallbackWei is reported until the first header is received.
func NewFeed(wsURL string, fallbackWei *big.Int, logger *slog.Logger) *Feed {
	return &Feed{
		wsURL:    wsURL,
		fallback: new(big.Int).Set(fallbackWei),
		logger:   logger.With("component", "gasprice"),
	}
}

// GasPrice returns the most recently observed base fee, or the fallback if no
// header has been received yet.
func (f *Feed) GasPrice(ctx context.Context) (*big.Int, error) {
	if p := f.latest.Load(); p != nil {
		return new(big.Int).Set(p), nil
	}
	return new(big.Int).Set(f.fallback), nil
}

// Run maintains the subscription until ctx is cancelled, reconnecting with
// exponential backoff on failure. It blocks and always returns nil on
// cancellation.
func (f *Feed) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		err := f.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		f.logger.Warn("feed disconnected, reconnecting",
			"error", err,
			"delay", delay.String(),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// stream runs one connect-subscribe-read cycle.
func (f *Feed) stream(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("gasprice: connect: %w", err)
	}
	defer conn.Close()

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			conn.Close()
		case <-done:
		}
	}()

	sub := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "eth_subscribe",
		"params":  []any{"newHeads"},
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("gasprice: subscribe: %w", err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(readWait))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("gasprice: read: %w", err)
		}
		f.handleMessage(raw)
	}
}

// handleMessage parses one JSON-RPC frame and caches the base fee from
// newHeads notifications. Other frames, including the subscription ack,
// are dropped.
func (f *Feed) handleMessage(raw []byte) {
	var msg struct {
		Method string `json:"method"`
		Params struct {
			Result struct {
				Number        string `json:"number"`
				BaseFeePerGas string `json:"baseFeePerGas"`
			} `json:"result"`
		} `json:"params"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Method != "eth_subscription" {
		return
	}

	fee, err := parseHexWei(msg.Params.Result.BaseFeePerGas)
	if err != nil {
		f.logger.Warn("bad base fee in header",
			"block", msg.Params.Result.Number,
			"error", err,
		)
		return
	}
	f.latest.Store(fee)
	f.logger.Debug("base fee updated",
		"block", msg.Params.Result.Number,
		"base_fee_wei", fee.String(),
	)
}

func parseHexWei(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, fmt.Errorf("empty quantity")
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return v, nil
}
