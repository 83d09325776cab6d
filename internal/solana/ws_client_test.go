package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsTestServer upgrades connections and feeds them to handler.
func wsTestServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestWSConfirmer_WaitForSignature(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn) {
		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			t.Errorf("read subscribe: %v", err)
			return
		}
		if req.Method != "signatureSubscribe" {
			t.Errorf("expected signatureSubscribe, got %s", req.Method)
		}

		// Subscription ack, then the one-shot notification.
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 42})
		conn.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "signatureNotification",
			"params": map[string]interface{}{
				"result":       map[string]interface{}{"value": map[string]interface{}{"err": nil}},
				"subscription": 42,
			},
		})
	})
	defer server.Close()

	confirmer := NewWSConfirmer(wsURL(server), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := confirmer.WaitForSignature(ctx, "sig123", "confirmed"); err != nil {
		t.Fatalf("WaitForSignature: %v", err)
	}
}

func TestWSConfirmer_TransactionError(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn) {
		var req rpcRequest
		conn.ReadJSON(&req)
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 1})

		notif := map[string]interface{}{
			"jsonrpc": "2.0",
			"method":  "signatureNotification",
			"params": map[string]interface{}{
				"result": map[string]interface{}{
					"value": map[string]interface{}{
						"err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
					},
				},
				"subscription": 1,
			},
		}
		raw, _ := json.Marshal(notif)
		conn.WriteMessage(websocket.TextMessage, raw)
	})
	defer server.Close()

	confirmer := NewWSConfirmer(wsURL(server), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := confirmer.WaitForSignature(ctx, "sig123", "confirmed")
	if err == nil {
		t.Fatal("expected on-chain error, got nil")
	}
	if !strings.Contains(err.Error(), "failed on chain") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWSConfirmer_ContextCancelled(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn) {
		var req rpcRequest
		conn.ReadJSON(&req)
		conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 1})
		// Never send the notification.
		time.Sleep(2 * time.Second)
	})
	defer server.Close()

	confirmer := NewWSConfirmer(wsURL(server), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := confirmer.WaitForSignature(ctx, "sig123", "confirmed")
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}
