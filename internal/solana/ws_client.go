package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures the WebSocket confirmation client.
type WSConfig struct {
	// HandshakeTimeout bounds the initial dial.
	HandshakeTimeout time.Duration
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
	// WriteTimeout is the per-message write deadline.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// WSConfirmer waits for transaction confirmation over a signature
// subscription. Signature subscriptions are one-shot on the node side (the
// notification fires once and the subscription is dropped), so the confirmer
// dials per wait rather than holding a long-lived connection.
type WSConfirmer struct {
	endpoint  string
	config    WSConfig
	requestID atomic.Uint64
}

// NewWSConfirmer creates a confirmer for a ws:// or wss:// endpoint.
func NewWSConfirmer(endpoint string, config *WSConfig) *WSConfirmer {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	return &WSConfirmer{endpoint: endpoint, config: cfg}
}

// signatureNotification is the payload delivered when a signature reaches the
// subscribed commitment.
type signatureNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Err interface{} `json:"err"`
			} `json:"value"`
		} `json:"result"`
		Subscription int64 `json:"subscription"`
	} `json:"params"`
}

// WaitForSignature blocks until the signature reaches the commitment level or
// ctx expires. A transaction that landed with an on-chain error returns an
// error with the node's error payload.
func (c *WSConfirmer) WaitForSignature(ctx context.Context, signature, commitment string) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	sub := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "signatureSubscribe",
		Params: []interface{}{
			signature,
			map[string]interface{}{"commitment": commitment},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe write: %w", err)
	}

	// Unblock reads when the caller gives up.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("websocket read: %w", err)
		}

		var notif signatureNotification
		if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "signatureNotification" {
			// Subscription ack or unrelated frame.
			continue
		}

		if txErr := notif.Params.Result.Value.Err; txErr != nil {
			return fmt.Errorf("transaction failed on chain: %v", txErr)
		}
		return nil
	}
}
