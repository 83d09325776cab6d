// Package liquidity computes constant-product market-maker quotes and guards
// trades against excessive price impact.
package liquidity

import (
	"math"

	"github.com/aitachi/SolSniperPro/internal/domain"
)

// Basis point scale (10000 = 100%).
const bpsScale = 10_000

// MaxEffectiveSlippageBps caps the liquidity-adjusted tolerance at 10%.
const MaxEffectiveSlippageBps uint16 = 1000

// Quote is the result of validating a trade size against a pool's reserves.
// It is produced once per trade attempt and consumed by the engine to set the
// transaction's minimum-output guard.
type Quote struct {
	AmountIn     uint64
	ReserveIn    uint64
	ReserveOut   uint64
	ExpectedOut  uint64
	MinAmountOut uint64
	// PriceImpactBps is the approximate price move caused by the trade.
	PriceImpactBps uint16
	// EffectiveSlippageBps is the liquidity-adjusted tolerance applied.
	EffectiveSlippageBps uint16
}

// Guard validates swap quotes against a slippage budget that scales with pool
// depth: shallow pools get a wider tolerance so legitimate thin markets are
// not rejected outright.
type Guard struct {
	maxSlippageBps    uint16
	dynamicAdjustment bool
}

// NewGuard creates a Guard with the given base tolerance in basis points.
func NewGuard(maxSlippageBps uint16, dynamicAdjustment bool) *Guard {
	return &Guard{maxSlippageBps: maxSlippageBps, dynamicAdjustment: dynamicAdjustment}
}

// DefaultGuard returns a Guard with 3% base tolerance and dynamic adjustment.
func DefaultGuard() *Guard {
	return NewGuard(300, true)
}

// PriceImpactBps approximates the price impact of swapping amountIn against a
// pool holding reserveIn, as amountIn/reserveIn in basis points, capped at
// 10000. An empty pool yields the cap.
func (g *Guard) PriceImpactBps(amountIn, reserveIn, reserveOut uint64) uint16 {
	if reserveIn == 0 || reserveOut == 0 {
		return bpsScale
	}
	impact := float64(amountIn) / float64(reserveIn) * bpsScale
	if impact >= bpsScale {
		return bpsScale
	}
	return uint16(impact)
}

// OutputAmount computes the exact constant-product output with the fee
// deducted from the input first:
//
//	out = reserveOut * in' / (reserveIn + in'),  in' = in * (1 - fee)
func (g *Guard) OutputAmount(amountIn, reserveIn, reserveOut uint64, feeBps uint16) uint64 {
	if reserveIn == 0 || reserveOut == 0 {
		return 0
	}
	inAfterFee := float64(amountIn) * (1 - float64(feeBps)/bpsScale)
	out := float64(reserveOut) * inAfterFee / (float64(reserveIn) + inAfterFee)
	return uint64(out)
}

// EffectiveSlippageBps scales the base tolerance by pool depth:
// x1.0 at >=100 SOL, x1.2 at >=50, x1.5 at >=20, x2.0 below, capped at 1000.
func (g *Guard) EffectiveSlippageBps(liquiditySOL float64) uint16 {
	if !g.dynamicAdjustment {
		return g.maxSlippageBps
	}

	multiplier := 2.0
	switch {
	case liquiditySOL >= 100:
		multiplier = 1.0
	case liquiditySOL >= 50:
		multiplier = 1.2
	case liquiditySOL >= 20:
		multiplier = 1.5
	}

	adjusted := uint16(float64(g.maxSlippageBps) * multiplier)
	if adjusted > MaxEffectiveSlippageBps {
		return MaxEffectiveSlippageBps
	}
	return adjusted
}

// ValidateQuote computes the full quote and rejects it when the price impact
// exceeds the liquidity-adjusted tolerance. The engine must not submit a
// transaction whose quote was rejected.
func (g *Guard) ValidateQuote(amountIn, reserveIn, reserveOut uint64, liquiditySOL float64, feeBps uint16) (*Quote, error) {
	impact := g.PriceImpactBps(amountIn, reserveIn, reserveOut)
	tolerance := g.EffectiveSlippageBps(liquiditySOL)
	expectedOut := g.OutputAmount(amountIn, reserveIn, reserveOut, feeBps)
	minOut := uint64(float64(expectedOut) * (1 - float64(tolerance)/bpsScale))

	if impact > tolerance {
		return nil, domain.NewError(domain.CodeImpactTooHigh,
			"price impact %.2f%% exceeds max slippage %.2f%%",
			float64(impact)/100, float64(tolerance)/100)
	}

	return &Quote{
		AmountIn:             amountIn,
		ReserveIn:            reserveIn,
		ReserveOut:           reserveOut,
		ExpectedOut:          expectedOut,
		MinAmountOut:         minOut,
		PriceImpactBps:       impact,
		EffectiveSlippageBps: tolerance,
	}, nil
}

// CheckRealized verifies the realized output of an executed trade against the
// base tolerance. Positive slippage always passes.
func (g *Guard) CheckRealized(expected, actual uint64) error {
	if actual >= expected || expected == 0 {
		return nil
	}
	slippageBps := float64(expected-actual) / float64(expected) * bpsScale
	if slippageBps > float64(g.maxSlippageBps) {
		return domain.NewError(domain.CodeSlippageExceeded,
			"realized slippage %.2f%% exceeds max %.2f%%",
			slippageBps/100, float64(g.maxSlippageBps)/100)
	}
	return nil
}

// OptimalAmount binary-searches [0, desired] for the largest input whose price
// impact stays within maxImpactBps, so oversized trades shrink instead of
// aborting.
func (g *Guard) OptimalAmount(desired, reserveIn, reserveOut uint64, maxImpactBps uint16) uint64 {
	if g.PriceImpactBps(desired, reserveIn, reserveOut) <= maxImpactBps {
		return desired
	}

	var low, optimal uint64
	high := desired
	for low <= high {
		mid := low + (high-low)/2
		if g.PriceImpactBps(mid, reserveIn, reserveOut) <= maxImpactBps {
			optimal = mid
			low = mid + 1
		} else {
			if mid == 0 {
				break
			}
			high = mid - 1
		}
	}
	return optimal
}

// NaiveMinOut estimates a minimum output from spot prices alone, used as the
// fallback when pool reserve data is unavailable. tokenPriceUSD of zero yields
// zero (no floor).
func NaiveMinOut(amountSOL, solPriceUSD, tokenPriceUSD float64, decimals uint8, maxSlippageBps uint16) uint64 {
	if tokenPriceUSD <= 0 {
		return 0
	}
	expectedTokens := amountSOL * solPriceUSD / tokenPriceUSD
	minTokens := expectedTokens * (1 - float64(maxSlippageBps)/bpsScale)
	if minTokens <= 0 {
		return 0
	}
	return uint64(minTokens * math.Pow10(int(decimals)))
}
