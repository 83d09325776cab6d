// Package solana provides HTTP JSON-RPC and WebSocket clients for Solana
// nodes. Clients are single-attempt: retry and endpoint rotation belong to the
// endpoint pool, not the transport.
package solana

import "context"

// Client defines the RPC surface the execution engine needs: reads (balance,
// blockhash, slot) and writes (submit, status).
type Client interface {
	// Endpoint returns the RPC URL this client talks to.
	Endpoint() string

	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, address string) (uint64, error)

	// GetLatestBlockhash returns the most recent blockhash (base58).
	GetLatestBlockhash(ctx context.Context) (string, error)

	// GetSlot returns the current slot. Used as a health probe.
	GetSlot(ctx context.Context) (uint64, error)

	// SendTransaction submits a serialized signed transaction and returns its
	// signature.
	SendTransaction(ctx context.Context, serialized []byte) (string, error)

	// GetSignatureStatuses returns confirmation status per signature; a nil
	// entry means the signature is unknown to the node.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}

// SignatureStatus reports how far a transaction has progressed.
type SignatureStatus struct {
	Slot               uint64
	Confirmations      *uint64
	ConfirmationStatus string // "processed" | "confirmed" | "finalized"
	Err                interface{}
}

// Confirmed reports whether the status satisfies the requested commitment.
func (s *SignatureStatus) Confirmed(level string) bool {
	if s == nil || s.Err != nil {
		return false
	}
	switch level {
	case "processed":
		return s.ConfirmationStatus != ""
	case "confirmed":
		return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
	case "finalized":
		return s.ConfirmationStatus == "finalized"
	default:
		return false
	}
}
