package domain

// Venue identifies the exchange program a token trades on.
type Venue string

// Supported venues.
const (
	VenueRaydium Venue = "Raydium"
	VenueOrca    Venue = "Orca"
	VenuePumpFun Venue = "PumpFun"
)

// TokenInfo describes a tradeable token as produced by the decision layer.
// The execution core consumes it read-only.
type TokenInfo struct {
	Mint     string // token mint address (base58)
	Symbol   string
	Decimals uint8

	// Pool data advertised by the decision layer. Reserve estimates are
	// derived from these when on-chain reserve data is unavailable.
	PoolAddress  string  // pool / whirlpool / bonding curve address
	LiquiditySOL float64 // pool liquidity in SOL
	LiquidityUSD float64
	PriceUSD     float64

	Venue Venue
}

// Lamports per SOL.
const LamportsPerSOL = 1_000_000_000
