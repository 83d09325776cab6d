// Package engine orchestrates trade execution: pre-flight checks, quote
// protection, transaction building, protected submission and confirmation.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aitachi/SolSniperPro/internal/domain"
	"github.com/aitachi/SolSniperPro/internal/endpoint"
	"github.com/aitachi/SolSniperPro/internal/liquidity"
	"github.com/aitachi/SolSniperPro/internal/mev"
	"github.com/aitachi/SolSniperPro/internal/observability"
	"github.com/aitachi/SolSniperPro/internal/solana"
	"github.com/aitachi/SolSniperPro/internal/txbuild"
	"github.com/aitachi/SolSniperPro/internal/wallet"
)

// ammFeeBps is the swap fee charged by the pool, deducted from the input.
const ammFeeBps = 30

// defaultSOLPriceUSD seeds the naive quote fallback when no price feed is
// wired in.
const defaultSOLPriceUSD = 150.0

// BundleRelay submits ordered transaction bundles and waits for inclusion.
type BundleRelay interface {
	SubmitBundle(ctx context.Context, serializedTxs [][]byte) (string, error)
	WaitForBundle(ctx context.Context, bundleID string) error
}

// SignatureConfirmer waits for a signature to reach a commitment level.
type SignatureConfirmer interface {
	WaitForSignature(ctx context.Context, signature, commitment string) error
}

// Engine executes buy and sell trades through the endpoint pool with price
// impact and front-running protection.
type Engine struct {
	wallets  *wallet.Manager
	pool     *endpoint.Pool
	liqGuard *liquidity.Guard
	mevGuard *mev.Guard

	relay     BundleRelay        // nil disables bundle submission
	confirmer SignatureConfirmer // nil falls back to status polling

	dedup    *dedupGuard
	defaults domain.ExecutionOptions

	computeUnits   uint32
	confirmTimeout time.Duration
	solPriceUSD    float64

	metrics *observability.Metrics
	logger  *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLiquidityGuard replaces the price impact guard.
func WithLiquidityGuard(g *liquidity.Guard) EngineOption {
	return func(e *Engine) { e.liqGuard = g }
}

// WithMEVGuard replaces the front-running protection guard.
func WithMEVGuard(g *mev.Guard) EngineOption {
	return func(e *Engine) { e.mevGuard = g }
}

// WithRelay enables bundle submission through the given relay.
func WithRelay(relay BundleRelay) EngineOption {
	return func(e *Engine) { e.relay = relay }
}

// WithConfirmer uses a WebSocket confirmer instead of status polling.
func WithConfirmer(c SignatureConfirmer) EngineOption {
	return func(e *Engine) { e.confirmer = c }
}

// WithDefaultOptions replaces the per-trade defaults.
func WithDefaultOptions(opts domain.ExecutionOptions) EngineOption {
	return func(e *Engine) { e.defaults = opts }
}

// WithDedupWindow overrides the duplicate-trade window.
func WithDedupWindow(window time.Duration) EngineOption {
	return func(e *Engine) { e.dedup = newDedupGuard(window) }
}

// WithComputeUnits sets the per-transaction compute unit cap.
func WithComputeUnits(units uint32) EngineOption {
	return func(e *Engine) { e.computeUnits = units }
}

// WithConfirmTimeout bounds how long the engine waits for confirmation.
func WithConfirmTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.confirmTimeout = d }
}

// WithSOLPrice sets the SOL/USD price used by the naive quote fallback.
func WithSOLPrice(usd float64) EngineOption {
	return func(e *Engine) { e.solPriceUSD = usd }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithEngineLogger attaches a logger.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// New creates an Engine over the given wallets and endpoint pool.
func New(wallets *wallet.Manager, pool *endpoint.Pool, opts ...EngineOption) *Engine {
	e := &Engine{
		wallets:        wallets,
		pool:           pool,
		liqGuard:       liquidity.DefaultGuard(),
		mevGuard:       mev.DefaultGuard(),
		dedup:          newDedupGuard(defaultDedupWindow),
		defaults:       domain.DefaultExecutionOptions(),
		computeUnits:   200_000,
		confirmTimeout: time.Minute,
		solPriceUSD:    defaultSOLPriceUSD,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartCacheCleaner sweeps expired dedup entries every minute until ctx is
// cancelled.
func (e *Engine) StartCacheCleaner(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.dedup.sweep()
			}
		}
	}()
}

// resolveOptions fills unset fields from the engine defaults.
func (e *Engine) resolveOptions(opts *domain.ExecutionOptions) domain.ExecutionOptions {
	if opts == nil {
		return e.defaults
	}
	resolved := *opts
	if resolved.MaxSlippageBps == 0 {
		resolved.MaxSlippageBps = e.defaults.MaxSlippageBps
	}
	if resolved.ConfirmationLevel == "" {
		resolved.ConfirmationLevel = e.defaults.ConfirmationLevel
	}
	if resolved.PriorityFeeRate == 0 {
		resolved.PriorityFeeRate = e.defaults.PriorityFeeRate
	}
	if resolved.MaxRetries == 0 {
		resolved.MaxRetries = e.defaults.MaxRetries
	}
	if resolved.BundleTip == 0 {
		resolved.BundleTip = e.defaults.BundleTip
	}
	return resolved
}

// ExecuteBuy buys a token with amountSOL from the primary wallet.
func (e *Engine) ExecuteBuy(ctx context.Context, token *domain.TokenInfo, amountSOL float64, opts *domain.ExecutionOptions) (*domain.TradeResult, error) {
	return e.executeBuyAs(ctx, e.wallets.Primary(), token, amountSOL, opts)
}

func (e *Engine) executeBuyAs(ctx context.Context, kp *wallet.Keypair, token *domain.TokenInfo, amountSOL float64, opts *domain.ExecutionOptions) (*domain.TradeResult, error) {
	start := time.Now()
	options := e.resolveOptions(opts)

	if amountSOL <= 0 {
		return nil, domain.NewError(domain.CodeInvalidInput, "buy amount must be positive, got %f", amountSOL)
	}
	amountLamports := uint64(amountSOL * domain.LamportsPerSOL)

	e.logger.Info("executing buy",
		zap.String("symbol", token.Symbol),
		zap.String("mint", token.Mint),
		zap.Float64("amount_sol", amountSOL),
		zap.String("venue", string(token.Venue)))

	dedupKey := tradeKey(kp.Address.String(), token.Mint, "buy")
	if !e.dedup.tryAcquire(dedupKey) {
		if e.metrics != nil {
			e.metrics.DuplicatesBlocked.Inc()
		}
		return nil, domain.NewError(domain.CodeDuplicateTrade,
			"duplicate buy of %s within %s", token.Mint, e.dedup.window)
	}

	result, err := e.executeTrade(ctx, kp, token, tradeLeg{
		side:           "buy",
		amountIn:       amountLamports,
		reservesOf:     buyReserves,
		minOutFallback: e.naiveBuyFloor(token, amountSOL, options.MaxSlippageBps),
		amountSOL:      amountSOL,
	}, options)
	if err != nil {
		e.dedup.release(dedupKey)
		return nil, err
	}

	result.ExecutionTime = time.Since(start)
	e.recordTrade("buy", result)
	return result, nil
}

// ExecuteSell sells amountTokens (in base units) of a token from the primary
// wallet. Reserves are reversed relative to a buy: the token side is the
// input.
func (e *Engine) ExecuteSell(ctx context.Context, token *domain.TokenInfo, amountTokens uint64, opts *domain.ExecutionOptions) (*domain.TradeResult, error) {
	start := time.Now()
	options := e.resolveOptions(opts)
	kp := e.wallets.Primary()

	if amountTokens == 0 {
		return nil, domain.NewError(domain.CodeInvalidInput, "sell amount is zero")
	}

	e.logger.Info("executing sell",
		zap.String("symbol", token.Symbol),
		zap.String("mint", token.Mint),
		zap.Uint64("amount_tokens", amountTokens))

	dedupKey := tradeKey(kp.Address.String(), token.Mint, "sell")
	if !e.dedup.tryAcquire(dedupKey) {
		if e.metrics != nil {
			e.metrics.DuplicatesBlocked.Inc()
		}
		return nil, domain.NewError(domain.CodeDuplicateTrade,
			"duplicate sell of %s within %s", token.Mint, e.dedup.window)
	}

	result, err := e.executeTrade(ctx, kp, token, tradeLeg{
		side:       "sell",
		amountIn:   amountTokens,
		reservesOf: sellReserves,
		// No spot-price floor on sells: with reserves unavailable the trade
		// goes out unguarded rather than with a wrong-unit floor.
		minOutFallback: 0,
		amountSOL:      0,
	}, options)
	if err != nil {
		e.dedup.release(dedupKey)
		return nil, err
	}

	result.ExecutionTime = time.Since(start)
	e.recordTrade("sell", result)
	return result, nil
}

// LegResult is the outcome of one wallet's leg of a concurrent trade.
type LegResult struct {
	WalletIndex int
	Result      *domain.TradeResult
	Err         error
}

// ExecuteConcurrent splits totalAmountSOL across walletCount wallets (the
// primary plus sub wallets) and buys in parallel. Every leg runs to
// completion; failures are reported per leg instead of aborting the rest.
func (e *Engine) ExecuteConcurrent(ctx context.Context, token *domain.TokenInfo, totalAmountSOL float64, walletCount int, opts *domain.ExecutionOptions) ([]LegResult, error) {
	if walletCount <= 0 {
		return nil, domain.NewError(domain.CodeInvalidInput, "wallet count must be positive, got %d", walletCount)
	}
	if totalAmountSOL <= 0 {
		return nil, domain.NewError(domain.CodeInvalidInput, "total amount must be positive, got %f", totalAmountSOL)
	}

	available := e.wallets.SubWalletCount() + 1
	if walletCount > available {
		walletCount = available
	}
	amountPerWallet := totalAmountSOL / float64(walletCount)

	e.logger.Info("concurrent snipe",
		zap.String("symbol", token.Symbol),
		zap.Int("wallets", walletCount),
		zap.Float64("total_sol", totalAmountSOL),
		zap.Float64("per_wallet_sol", amountPerWallet))

	results := make([]LegResult, walletCount)
	var group errgroup.Group
	group.SetLimit(walletCount)
	for i := 0; i < walletCount; i++ {
		i := i
		group.Go(func() error {
			kp := e.wallets.Primary()
			if i > 0 {
				kp = e.wallets.SubWallet(i - 1)
			}

			res, err := e.executeBuyAs(ctx, kp, token, amountPerWallet, opts)
			results[i] = LegResult{WalletIndex: i, Result: res, Err: err}
			if err != nil {
				e.logger.Warn("concurrent leg failed",
					zap.Int("wallet_index", i),
					zap.Error(err))
			}
			// Leg failures are reported in results, not as a group error.
			return nil
		})
	}
	group.Wait()

	return results, nil
}

// tradeLeg abstracts the direction-specific parts of a trade so buy and sell
// share one pipeline.
type tradeLeg struct {
	side           string
	amountIn       uint64
	reservesOf     func(token *domain.TokenInfo) (reserveIn, reserveOut uint64)
	minOutFallback uint64
	amountSOL      float64 // SOL notional, zero for sells
}

// executeTrade runs the shared pipeline: balance check, quote protection,
// transaction build, protected submission, confirmation.
func (e *Engine) executeTrade(ctx context.Context, kp *wallet.Keypair, token *domain.TokenInfo, leg tradeLeg, options domain.ExecutionOptions) (*domain.TradeResult, error) {
	// Pre-flight: the wallet must cover the trade plus fees. Sells only pay
	// fees in SOL.
	spendLamports := uint64(0)
	if leg.side == "buy" {
		spendLamports = leg.amountIn
	}
	feeLamports := options.PriorityFeeRate * uint64(e.computeUnits) / 1_000_000
	required := wallet.EstimateTotalCost(spendLamports, feeLamports)
	if options.UseBundle {
		required += options.BundleTip
	}

	sufficient, err := e.wallets.HasSufficientBalance(ctx, kp.Address, required)
	if err != nil {
		return nil, err
	}
	if !sufficient {
		e.recordRejection("insufficient_balance")
		return nil, domain.NewError(domain.CodeInsufficientBalance,
			"wallet %s needs %d lamports", kp.Address, required)
	}

	minOut, err := e.protectedMinOut(token, leg, options)
	if err != nil {
		e.recordRejection("impact_too_high")
		return nil, err
	}

	urgency := options.Urgency
	if urgency == domain.UrgencyUnset {
		urgency = e.mevGuard.RecommendUrgency(options.TimeSensitive, leg.amountSOL, token.LiquiditySOL)
	}
	plan := e.mevGuard.Protect(urgency)
	if options.UseBundle && e.relay != nil {
		plan = mev.ProtectionPlan{Kind: mev.PlanBundle, TipLamports: options.BundleTip}
	}
	if plan.Kind == mev.PlanBundle && e.relay == nil {
		plan = mev.ProtectionPlan{Kind: mev.PlanPriorityFee, FeeMicroLamports: e.mevGuard.PriorityFee(urgency)}
	}

	tx, err := e.buildSwapTransaction(ctx, kp, token, leg, minOut, plan, options)
	if err != nil {
		return nil, err
	}

	if plan.Kind == mev.PlanBundle {
		return e.submitBundle(ctx, kp, tx, plan.TipLamports)
	}
	return e.submitStandard(ctx, tx, options)
}

// protectedMinOut validates the trade against pool reserves and returns the
// minimum output. Without reserve data it falls back to the leg's spot-price
// floor; a rejected quote never falls back.
func (e *Engine) protectedMinOut(token *domain.TokenInfo, leg tradeLeg, options domain.ExecutionOptions) (uint64, error) {
	reserveIn, reserveOut := leg.reservesOf(token)
	if reserveIn == 0 || reserveOut == 0 {
		e.logger.Debug("no reserve data, using spot-price floor",
			zap.String("mint", token.Mint),
			zap.Uint64("min_out", leg.minOutFallback))
		return leg.minOutFallback, nil
	}

	quote, err := e.liqGuard.ValidateQuote(leg.amountIn, reserveIn, reserveOut, token.LiquiditySOL, ammFeeBps)
	if err != nil {
		if e.metrics != nil {
			e.metrics.QuotesRejected.Inc()
			e.metrics.SlippageChecks.WithLabelValues("fail").Inc()
		}
		return 0, err
	}
	if e.metrics != nil {
		e.metrics.SlippageChecks.WithLabelValues("pass").Inc()
	}

	e.logger.Info("quote validated",
		zap.String("side", leg.side),
		zap.Uint64("expected_out", quote.ExpectedOut),
		zap.Uint64("min_out", quote.MinAmountOut),
		zap.Float64("price_impact_pct", float64(quote.PriceImpactBps)/100),
		zap.Float64("slippage_pct", float64(quote.EffectiveSlippageBps)/100))
	return quote.MinAmountOut, nil
}

// naiveBuyFloor computes the spot-price minimum output for a buy.
func (e *Engine) naiveBuyFloor(token *domain.TokenInfo, amountSOL float64, maxSlippageBps uint16) uint64 {
	return liquidity.NaiveMinOut(amountSOL, e.solPriceUSD, token.PriceUSD, token.Decimals, maxSlippageBps)
}

// buyReserves estimates pool reserves for a buy from the advertised
// liquidity, assuming the pool is balanced 50/50 between SOL and the token.
func buyReserves(token *domain.TokenInfo) (uint64, uint64) {
	reserveSOL, reserveToken := estimateReserves(token)
	return reserveSOL, reserveToken
}

// sellReserves is the buy estimate with the sides swapped.
func sellReserves(token *domain.TokenInfo) (uint64, uint64) {
	reserveSOL, reserveToken := estimateReserves(token)
	return reserveToken, reserveSOL
}

func estimateReserves(token *domain.TokenInfo) (reserveSOL, reserveToken uint64) {
	if token.LiquiditySOL <= 0 || token.PriceUSD <= 0 {
		return 0, 0
	}
	reserveSOL = uint64(token.LiquiditySOL * 0.5 * domain.LamportsPerSOL)

	tokenValueUSD := token.LiquidityUSD * 0.5
	tokenCount := tokenValueUSD / token.PriceUSD
	reserveToken = uint64(tokenCount * pow10(token.Decimals))
	return reserveSOL, reserveToken
}

func pow10(n uint8) float64 {
	result := 1.0
	for i := uint8(0); i < n; i++ {
		result *= 10
	}
	return result
}

// buildSwapTransaction assembles and signs the venue swap with the plan's
// priority fee applied.
func (e *Engine) buildSwapTransaction(ctx context.Context, kp *wallet.Keypair, token *domain.TokenInfo, leg tradeLeg, minOut uint64, plan mev.ProtectionPlan, options domain.ExecutionOptions) ([]byte, error) {
	mint, err := txbuild.ParseAddress(token.Mint)
	if err != nil {
		return nil, err
	}
	pool, err := txbuild.ParseAddress(token.PoolAddress)
	if err != nil {
		return nil, domain.WrapError(domain.CodeInvalidInput, err, "pool address for %s", token.Symbol)
	}

	wsolAccount, err := txbuild.AssociatedTokenAddress(kp.Address, txbuild.WSOLMint)
	if err != nil {
		return nil, err
	}
	tokenAccount, err := txbuild.AssociatedTokenAddress(kp.Address, mint)
	if err != nil {
		return nil, err
	}

	source, destination := wsolAccount, tokenAccount
	if leg.side == "sell" {
		source, destination = tokenAccount, wsolAccount
	}

	swapBuilder, err := txbuild.BuilderFor(token.Venue)
	if err != nil {
		return nil, err
	}
	swapIx, err := swapBuilder.BuildSwap(txbuild.SwapParams{
		Wallet:             kp.Address,
		Pool:               pool,
		SourceAccount:      source,
		DestinationAccount: destination,
		AmountIn:           leg.amountIn,
		MinAmountOut:       minOut,
	})
	if err != nil {
		return nil, err
	}

	blockhash, err := endpoint.Execute(ctx, e.pool, func(ctx context.Context, client solana.Client) (string, error) {
		return client.GetLatestBlockhash(ctx)
	})
	if err != nil {
		return nil, domain.WrapError(domain.CodeRPCFailed, err, "fetch blockhash")
	}

	feeRate := options.PriorityFeeRate
	if plan.Kind == mev.PlanPriorityFee {
		feeRate = plan.FeeMicroLamports
	}

	return txbuild.NewBuilder().
		WithComputeUnits(e.computeUnits).
		WithPriorityFee(feeRate).
		Build(kp.PrivateKey, blockhash, swapIx)
}

// submitBundle sends a tip transfer plus the trade as an ordered bundle
// through the relay and waits for it to land.
func (e *Engine) submitBundle(ctx context.Context, kp *wallet.Keypair, tradeTx []byte, tipLamports uint64) (*domain.TradeResult, error) {
	tipAccount, err := txbuild.ParseAddress(mev.RandomTipAccount())
	if err != nil {
		return nil, err
	}

	blockhash, err := endpoint.Execute(ctx, e.pool, func(ctx context.Context, client solana.Client) (string, error) {
		return client.GetLatestBlockhash(ctx)
	})
	if err != nil {
		return nil, domain.WrapError(domain.CodeRPCFailed, err, "fetch blockhash for tip")
	}

	tipTx, err := txbuild.NewBuilder().
		Build(kp.PrivateKey, blockhash, txbuild.SOLTransfer(kp.Address, tipAccount, tipLamports))
	if err != nil {
		return nil, err
	}

	bundleID, err := e.relay.SubmitBundle(ctx, [][]byte{tipTx, tradeTx})
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordBundle(false, tipLamports)
		}
		return nil, err
	}

	if err := e.relay.WaitForBundle(ctx, bundleID); err != nil {
		if e.metrics != nil {
			e.metrics.RecordBundle(false, tipLamports)
		}
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.RecordBundle(true, tipLamports)
	}

	return &domain.TradeResult{
		Signature: txbuild.SignatureOf(tradeTx),
		Success:   true,
		Method:    domain.MethodBundle,
	}, nil
}

// submitStandard sends the transaction through the endpoint pool and waits
// for the requested commitment.
func (e *Engine) submitStandard(ctx context.Context, tx []byte, options domain.ExecutionOptions) (*domain.TradeResult, error) {
	signature, err := endpoint.ExecuteBudget(ctx, e.pool, options.MaxRetries, func(ctx context.Context, client solana.Client) (string, error) {
		return client.SendTransaction(ctx, tx)
	})
	if err != nil {
		return nil, domain.WrapError(domain.CodeRPCFailed, err, "send transaction")
	}

	if err := e.waitForConfirmation(ctx, signature, options.ConfirmationLevel); err != nil {
		return nil, err
	}

	return &domain.TradeResult{
		Signature: signature,
		Success:   true,
		Method:    domain.MethodStandard,
	}, nil
}

// waitForConfirmation blocks until the signature reaches the commitment,
// preferring the WebSocket confirmer and falling back to status polling.
func (e *Engine) waitForConfirmation(ctx context.Context, signature string, level domain.ConfirmationLevel) error {
	ctx, cancel := context.WithTimeout(ctx, e.confirmTimeout)
	defer cancel()

	if e.confirmer != nil {
		return e.confirmer.WaitForSignature(ctx, signature, string(level))
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return domain.WrapError(domain.CodeRPCFailed, ctx.Err(),
				"transaction %s not confirmed in time", signature)
		case <-ticker.C:
			statuses, err := endpoint.Execute(ctx, e.pool, func(ctx context.Context, client solana.Client) ([]*solana.SignatureStatus, error) {
				return client.GetSignatureStatuses(ctx, []string{signature})
			})
			if err != nil {
				continue
			}
			if len(statuses) == 1 && statuses[0].Confirmed(string(level)) {
				return nil
			}
			if len(statuses) == 1 && statuses[0] != nil && statuses[0].Err != nil {
				return domain.NewError(domain.CodeRPCFailed,
					"transaction %s failed on chain: %v", signature, statuses[0].Err)
			}
		}
	}
}

func (e *Engine) recordTrade(side string, result *domain.TradeResult) {
	e.logger.Info("trade executed",
		zap.String("side", side),
		zap.String("signature", result.Signature),
		zap.Duration("execution_time", result.ExecutionTime),
		zap.String("method", string(result.Method)))
	if e.metrics != nil {
		e.metrics.RecordTrade(side, string(result.Method), result.Success, result.ExecutionTime)
	}
}

func (e *Engine) recordRejection(reason string) {
	if e.metrics != nil {
		e.metrics.RecordRejection(reason)
	}
}

func tradeKey(walletAddr, mint, side string) string {
	return fmt.Sprintf("%s|%s|%s", walletAddr, mint, side)
}
