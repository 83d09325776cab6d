package liquidity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitachi/SolSniperPro/internal/domain"
)

const (
	sol      = uint64(1_000_000_000)
	reserve  = 100 * sol  // 100 SOL
	tokenRes = 1000 * sol // 1000 TOKEN (9 decimals)
)

func TestPriceImpactBps(t *testing.T) {
	g := DefaultGuard()

	assert.Equal(t, uint16(100), g.PriceImpactBps(1*sol, reserve, tokenRes), "1 SOL into 100 SOL reserve is 1%")
	assert.Equal(t, uint16(1000), g.PriceImpactBps(10*sol, reserve, tokenRes), "10 SOL into 100 SOL reserve is 10%")
	assert.Equal(t, uint16(10000), g.PriceImpactBps(1*sol, 0, tokenRes), "empty pool caps at 100%")
	assert.Equal(t, uint16(10000), g.PriceImpactBps(500*sol, reserve, tokenRes), "oversized trade caps at 100%")
}

func TestPriceImpactMonotonic(t *testing.T) {
	g := DefaultGuard()

	// Increasing in amountIn.
	prev := uint16(0)
	for _, amount := range []uint64{sol / 10, sol, 5 * sol, 20 * sol, 80 * sol} {
		impact := g.PriceImpactBps(amount, reserve, tokenRes)
		assert.GreaterOrEqual(t, impact, prev)
		prev = impact
	}

	// Decreasing in reserveIn.
	prevImpact := uint16(10000)
	for _, r := range []uint64{10 * sol, 50 * sol, 200 * sol, 1000 * sol} {
		impact := g.PriceImpactBps(sol, r, tokenRes)
		assert.LessOrEqual(t, impact, prevImpact)
		prevImpact = impact
	}
}

func TestOutputAmount(t *testing.T) {
	g := DefaultGuard()

	// (1000 * 0.997) / (100 + 0.997) ~= 9.87 TOKEN
	out := g.OutputAmount(1*sol, reserve, tokenRes, 30)
	assert.Greater(t, out, uint64(9_800_000_000))
	assert.Less(t, out, uint64(9_900_000_000))

	assert.Zero(t, g.OutputAmount(1*sol, 0, tokenRes, 30))
	assert.Zero(t, g.OutputAmount(1*sol, reserve, 0, 30))
}

func TestOutputNeverDrainsPool(t *testing.T) {
	g := DefaultGuard()

	for _, amount := range []uint64{1, sol, 100 * sol, 10_000 * sol} {
		for _, rIn := range []uint64{sol, reserve} {
			out := g.OutputAmount(amount, rIn, tokenRes, 30)
			assert.Less(t, out, tokenRes, "constant product pool cannot output more than it holds")
		}
	}
}

func TestEffectiveSlippageTiers(t *testing.T) {
	g := NewGuard(300, true)

	assert.Equal(t, uint16(300), g.EffectiveSlippageBps(100))
	assert.Equal(t, uint16(360), g.EffectiveSlippageBps(60))
	assert.Equal(t, uint16(450), g.EffectiveSlippageBps(30))
	assert.Equal(t, uint16(600), g.EffectiveSlippageBps(10))

	// Cap at 1000 bps.
	wide := NewGuard(900, true)
	assert.Equal(t, uint16(1000), wide.EffectiveSlippageBps(5))

	// Static guard ignores liquidity.
	static := NewGuard(300, false)
	assert.Equal(t, uint16(300), static.EffectiveSlippageBps(5))
}

func TestValidateQuote(t *testing.T) {
	g := DefaultGuard()

	q, err := g.ValidateQuote(1*sol, reserve, tokenRes, 50, 30)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), q.PriceImpactBps)
	assert.Equal(t, uint16(360), q.EffectiveSlippageBps, "3% x1.2 for 50 SOL liquidity")
	assert.Greater(t, q.ExpectedOut, uint64(0))
	assert.Less(t, q.MinAmountOut, q.ExpectedOut)
}

func TestValidateQuoteRejectsHighImpact(t *testing.T) {
	g := DefaultGuard()

	// 30 SOL against a 100 SOL reserve is 30% impact, far over 3.6%.
	_, err := g.ValidateQuote(30*sol, reserve, tokenRes, 50, 30)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeImpactTooHigh))
}

func TestZeroAmountQuote(t *testing.T) {
	g := DefaultGuard()

	q, err := g.ValidateQuote(0, reserve, tokenRes, 100, 30)
	require.NoError(t, err)
	assert.Zero(t, q.ExpectedOut)
	assert.Zero(t, q.PriceImpactBps)
}

func TestCheckRealized(t *testing.T) {
	g := NewGuard(300, false)

	assert.NoError(t, g.CheckRealized(100, 100))
	assert.NoError(t, g.CheckRealized(100, 105), "positive slippage passes")
	assert.NoError(t, g.CheckRealized(100, 98), "2% within 3% budget")

	err := g.CheckRealized(100, 95)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeSlippageExceeded))
}

func TestOptimalAmount(t *testing.T) {
	g := DefaultGuard()

	optimal := g.OptimalAmount(50*sol, reserve, tokenRes, 500)
	assert.LessOrEqual(t, optimal, 50*sol)
	assert.LessOrEqual(t, g.PriceImpactBps(optimal, reserve, tokenRes), uint16(500))

	// Acceptable trades are returned unchanged.
	assert.Equal(t, 1*sol, g.OptimalAmount(1*sol, reserve, tokenRes, 500))

	// Impossible ceiling shrinks to zero.
	assert.Zero(t, g.OptimalAmount(50*sol, 0, tokenRes, 500))
}

func TestNaiveMinOut(t *testing.T) {
	// 1 SOL at $150, token at $0.00001: 15M tokens, minus 3%.
	min := NaiveMinOut(1.0, 150.0, 0.00001, 9, 300)
	assert.Greater(t, min, uint64(14_000_000)*sol)

	assert.Zero(t, NaiveMinOut(1.0, 150.0, 0, 9, 300), "unknown price yields no floor")
}
