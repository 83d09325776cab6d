// Package main runs the trade execution service: an HTTP API over the
// execution engine, plus Prometheus metrics and endpoint health checking.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aitachi/SolSniperPro/internal/config"
	"github.com/aitachi/SolSniperPro/internal/domain"
	"github.com/aitachi/SolSniperPro/internal/endpoint"
	"github.com/aitachi/SolSniperPro/internal/engine"
	"github.com/aitachi/SolSniperPro/internal/liquidity"
	"github.com/aitachi/SolSniperPro/internal/logging"
	"github.com/aitachi/SolSniperPro/internal/mev"
	"github.com/aitachi/SolSniperPro/internal/observability"
	"github.com/aitachi/SolSniperPro/internal/solana"
	"github.com/aitachi/SolSniperPro/internal/wallet"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML)")
	listenAddr := flag.String("listen-addr", ":8080", "Trade API HTTP address")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metrics *observability.Metrics
	if cfg.Telemetry.Enabled {
		metrics = observability.NewMetrics("")
	}

	eng, pool, err := buildEngine(cfg, logger, metrics)
	if err != nil {
		logger.Fatal("build engine", zap.Error(err))
	}

	pool.StartHealthChecker(ctx, cfg.RPC.HealthCheckInterval)
	eng.StartCacheCleaner(ctx)

	if metrics != nil {
		go serveMetrics(*metricsAddr, logger)
		go countUptime(ctx, metrics)
	}

	server := &http.Server{
		Addr:    *listenAddr,
		Handler: newAPI(eng, pool, logger),
	}

	go func() {
		logger.Info("trade API listening", zap.String("addr", *listenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	cancel()
	logger.Info("shutdown complete")
}

// buildEngine wires the endpoint pool, wallets, guards and relay from config.
func buildEngine(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*engine.Engine, *endpoint.Pool, error) {
	poolOpts := []endpoint.Option{
		endpoint.WithStrategy(parseStrategy(cfg.RPC.Strategy)),
		endpoint.WithMaxRetries(cfg.RPC.MaxRetries),
		endpoint.WithBaseBackoff(cfg.RPC.RetryBackoff),
		endpoint.WithPoolLogger(logger.Named("endpoint")),
	}
	if metrics != nil {
		poolOpts = append(poolOpts, endpoint.WithObserver(metrics))
	}
	pool := endpoint.NewPoolFromURLs(cfg.RPC.Endpoints, cfg.RPC.Timeout, poolOpts...)

	var wallets *wallet.Manager
	if cfg.Wallet.KeypairPath != "" {
		var err error
		wallets, err = wallet.NewManagerFromFile(cfg.Wallet.KeypairPath, pool)
		if err != nil {
			return nil, nil, err
		}
	} else {
		primary, err := wallet.NewKeypair()
		if err != nil {
			return nil, nil, err
		}
		wallets = wallet.NewManager(primary, pool)
		logger.Warn("no keypair configured, generated an ephemeral wallet",
			zap.String("address", primary.Address.String()))
	}
	for i := 0; i < cfg.Wallet.SubWallets; i++ {
		if _, err := wallets.GenerateSubWallet(); err != nil {
			return nil, nil, err
		}
	}

	defaults := domain.DefaultExecutionOptions()
	defaults.MaxSlippageBps = uint16(cfg.Execution.MaxSlippageBps)
	defaults.ConfirmationLevel = domain.ConfirmationLevel(cfg.Execution.ConfirmationLevel)
	defaults.PriorityFeeRate = cfg.Execution.PriorityFeeRate
	defaults.MaxRetries = cfg.Execution.MaxRetries
	defaults.BundleTip = cfg.MEV.MinTipLamports

	engOpts := []engine.EngineOption{
		engine.WithLiquidityGuard(liquidity.NewGuard(uint16(cfg.Execution.MaxSlippageBps), cfg.Execution.DynamicSlippage)),
		engine.WithMEVGuard(mev.NewGuard(cfg.MEV.BundlingEnabled, cfg.MEV.MinTipLamports, cfg.MEV.DynamicAdjustment,
			mev.WithBasePriorityFee(cfg.Execution.PriorityFeeRate),
			mev.WithLogger(logger.Named("mev")))),
		engine.WithDefaultOptions(defaults),
		engine.WithDedupWindow(cfg.Execution.DedupWindow),
		engine.WithComputeUnits(cfg.Execution.ComputeUnits),
		engine.WithConfirmTimeout(cfg.Execution.ConfirmTimeout),
		engine.WithEngineLogger(logger.Named("engine")),
	}
	if metrics != nil {
		engOpts = append(engOpts, engine.WithMetrics(metrics))
	}
	if cfg.MEV.BundlingEnabled {
		engOpts = append(engOpts, engine.WithRelay(mev.NewRelayClient(cfg.MEV.RelayURL,
			mev.WithRelayTimeout(cfg.MEV.RelayTimeout),
			mev.WithRelayLogger(logger.Named("relay")))))
	}
	if cfg.RPC.WebSocketURL != "" {
		engOpts = append(engOpts, engine.WithConfirmer(solana.NewWSConfirmer(cfg.RPC.WebSocketURL, nil)))
	}

	return engine.New(wallets, pool, engOpts...), pool, nil
}

func parseStrategy(s string) endpoint.Strategy {
	switch s {
	case "lowest_latency":
		return endpoint.LowestLatency
	case "random":
		return endpoint.Random
	default:
		return endpoint.RoundRobin
	}
}

func countUptime(ctx context.Context, metrics *observability.Metrics) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UptimeSeconds.Inc()
		}
	}
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	logger.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server", zap.Error(err))
	}
}

// api exposes the engine over HTTP.
type api struct {
	engine *engine.Engine
	pool   *endpoint.Pool
	logger *zap.Logger
}

func newAPI(eng *engine.Engine, pool *endpoint.Pool, logger *zap.Logger) http.Handler {
	a := &api{engine: eng, pool: pool, logger: logger.Named("api")}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/buy", a.handleBuy)
	mux.HandleFunc("/api/v1/sell", a.handleSell)
	mux.HandleFunc("/api/v1/snipe", a.handleSnipe)
	return mux
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := a.pool.Stats()
	healthy := 0
	for _, s := range stats {
		if s.Healthy {
			healthy++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ok",
		"healthy_endpoints": healthy,
		"total_endpoints":   len(stats),
		"endpoints":         stats,
	})
}

// tradeRequest is the shared payload for buy, sell and snipe calls.
type tradeRequest struct {
	Token       domain.TokenInfo         `json:"token"`
	AmountSOL   float64                  `json:"amount_sol,omitempty"`
	AmountUnits uint64                   `json:"amount_units,omitempty"`
	WalletCount int                      `json:"wallet_count,omitempty"`
	Options     *domain.ExecutionOptions `json:"options,omitempty"`
}

func (a *api) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !decodeTrade(w, r, &req) {
		return
	}

	result, err := a.engine.ExecuteBuy(r.Context(), &req.Token, req.AmountSOL, req.Options)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) handleSell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !decodeTrade(w, r, &req) {
		return
	}

	result, err := a.engine.ExecuteSell(r.Context(), &req.Token, req.AmountUnits, req.Options)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *api) handleSnipe(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if !decodeTrade(w, r, &req) {
		return
	}

	results, err := a.engine.ExecuteConcurrent(r.Context(), &req.Token, req.AmountSOL, req.WalletCount, req.Options)
	if err != nil {
		writeTradeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func decodeTrade(w http.ResponseWriter, r *http.Request, req *tradeRequest) bool {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

// writeTradeError maps error codes to HTTP statuses.
func writeTradeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.CodeOf(err) {
	case domain.CodeInvalidInput, domain.CodeUnsupportedVenue, domain.CodeTxTooLarge:
		status = http.StatusBadRequest
	case domain.CodeDuplicateTrade:
		status = http.StatusConflict
	case domain.CodeInsufficientBalance, domain.CodeImpactTooHigh, domain.CodeSlippageExceeded:
		status = http.StatusUnprocessableEntity
	case domain.CodeEndpointsUnhealthy, domain.CodeRPCFailed, domain.CodeRelayError, domain.CodeBundleTimeout:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"code":  string(domain.CodeOf(err)),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
