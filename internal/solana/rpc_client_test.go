package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func rpcServer(t *testing.T, method string, result interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != method {
			t.Errorf("expected method %s, got %s", method, req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetBalance(t *testing.T) {
	server := rpcServer(t, "getBalance", map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value":   uint64(2_500_000_000),
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	balance, err := client.GetBalance(context.Background(), "wallet123")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 2_500_000_000 {
		t.Errorf("expected 2500000000 lamports, got %d", balance)
	}
}

func TestHTTPClient_GetLatestBlockhash(t *testing.T) {
	server := rpcServer(t, "getLatestBlockhash", map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value": map[string]interface{}{
			"blockhash":            "9sHcv6xwn9YkB8nxTUGKDwPwNnmqVp5oAXxU8Fdkm4J6",
			"lastValidBlockHeight": 12345,
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	blockhash, err := client.GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if blockhash != "9sHcv6xwn9YkB8nxTUGKDwPwNnmqVp5oAXxU8Fdkm4J6" {
		t.Errorf("unexpected blockhash %q", blockhash)
	}
}

func TestHTTPClient_GetSlot(t *testing.T) {
	server := rpcServer(t, "getSlot", uint64(987654))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}
	if slot != 987654 {
		t.Errorf("expected slot 987654, got %d", slot)
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "sendTransaction" {
			t.Errorf("expected method sendTransaction, got %s", req.Method)
		}

		encoded, ok := req.Params[0].(string)
		if !ok {
			t.Fatalf("expected string param, got %T", req.Params[0])
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			t.Fatalf("decode tx: %v", err)
		}
		if len(decoded) != len(raw) {
			t.Errorf("expected %d bytes, got %d", len(raw), len(decoded))
		}

		opts, ok := req.Params[1].(map[string]interface{})
		if !ok || opts["skipPreflight"] != true {
			t.Errorf("expected skipPreflight=true, got %v", req.Params[1])
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "sig123",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	sig, err := client.SendTransaction(context.Background(), raw)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != "sig123" {
		t.Errorf("expected sig123, got %q", sig)
	}
}

func TestHTTPClient_GetSignatureStatuses(t *testing.T) {
	server := rpcServer(t, "getSignatureStatuses", map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value": []interface{}{
			map[string]interface{}{
				"slot":               100,
				"confirmations":      5,
				"confirmationStatus": "confirmed",
				"err":                nil,
			},
			nil,
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	statuses, err := client.GetSignatureStatuses(context.Background(), []string{"sigA", "sigB"})
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0] == nil || statuses[0].ConfirmationStatus != "confirmed" {
		t.Errorf("unexpected first status: %+v", statuses[0])
	}
	if statuses[1] != nil {
		t.Errorf("expected nil status for unknown signature, got %+v", statuses[1])
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32002, "message": "blockhash not found"},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.GetSlot(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestSignatureStatus_Confirmed(t *testing.T) {
	tests := []struct {
		name   string
		status *SignatureStatus
		level  string
		want   bool
	}{
		{"nil status", nil, "confirmed", false},
		{"confirmed at confirmed", &SignatureStatus{ConfirmationStatus: "confirmed"}, "confirmed", true},
		{"finalized at confirmed", &SignatureStatus{ConfirmationStatus: "finalized"}, "confirmed", true},
		{"processed at confirmed", &SignatureStatus{ConfirmationStatus: "processed"}, "confirmed", false},
		{"confirmed at finalized", &SignatureStatus{ConfirmationStatus: "confirmed"}, "finalized", false},
		{"processed at processed", &SignatureStatus{ConfirmationStatus: "processed"}, "processed", true},
		{"on-chain error", &SignatureStatus{ConfirmationStatus: "finalized", Err: "InstructionError"}, "confirmed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Confirmed(tt.level); got != tt.want {
				t.Errorf("Confirmed(%s) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}
