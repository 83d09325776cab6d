package domain

import "time"

// ExecutionMethod records how a trade reached the chain.
type ExecutionMethod string

const (
	MethodStandard ExecutionMethod = "Standard"
	MethodBundle   ExecutionMethod = "Bundle"
)

// ConfirmationLevel is the commitment the engine waits for.
type ConfirmationLevel string

const (
	ConfirmationProcessed ConfirmationLevel = "processed"
	ConfirmationConfirmed ConfirmationLevel = "confirmed"
	ConfirmationFinalized ConfirmationLevel = "finalized"
)

// UrgencyLevel classifies how aggressively a trade must land.
type UrgencyLevel int

const (
	UrgencyUnset UrgencyLevel = iota
	UrgencyLow
	UrgencyMedium
	UrgencyHigh
	UrgencyCritical
)

func (u UrgencyLevel) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyMedium:
		return "medium"
	case UrgencyHigh:
		return "high"
	case UrgencyCritical:
		return "critical"
	default:
		return "unset"
	}
}

// ExecutionOptions tunes a single trade attempt. The zero value of any field
// falls back to the engine defaults.
type ExecutionOptions struct {
	UseBundle         bool              // submit through the bundle relay
	TimeSensitive     bool              // escalates the recommended urgency
	BundleTip         uint64            // tip in lamports
	MaxSlippageBps    uint16            // base slippage tolerance
	ConfirmationLevel ConfirmationLevel // commitment to wait for
	PriorityFeeRate   uint64            // micro-lamports per compute unit
	MaxRetries        uint32            // RPC submission attempts
	Urgency           UrgencyLevel      // UrgencyUnset lets the guard recommend
}

// DefaultExecutionOptions returns the engine defaults: 3% slippage, confirmed
// commitment, 0.001 SOL tip, no bundling.
func DefaultExecutionOptions() ExecutionOptions {
	return ExecutionOptions{
		UseBundle:         false,
		BundleTip:         1_000_000,
		MaxSlippageBps:    300,
		ConfirmationLevel: ConfirmationConfirmed,
		PriorityFeeRate:   50_000,
		MaxRetries:        3,
		Urgency:           UrgencyUnset,
	}
}

// TradeResult is the outcome of one executed trade.
type TradeResult struct {
	Signature     string
	Success       bool
	ExecutionTime time.Duration
	Method        ExecutionMethod
}
