// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	RPC       RPCConfig       `mapstructure:"rpc"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Execution ExecutionConfig `mapstructure:"execution"`
	MEV       MEVConfig       `mapstructure:"mev"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// RPCConfig holds RPC endpoint pool configuration.
type RPCConfig struct {
	Endpoints           []string      `mapstructure:"endpoints"`
	WebSocketURL        string        `mapstructure:"websocket_url"`
	Strategy            string        `mapstructure:"strategy"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRetries          uint32        `mapstructure:"max_retries"`
	RetryBackoff        time.Duration `mapstructure:"retry_backoff"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
}

// WalletConfig holds wallet key material locations.
type WalletConfig struct {
	KeypairPath string `mapstructure:"keypair_path"`
	SubWallets  int    `mapstructure:"sub_wallets"`
}

// ExecutionConfig holds trade execution parameters.
type ExecutionConfig struct {
	MaxSlippageBps    uint32        `mapstructure:"max_slippage_bps"`
	DynamicSlippage   bool          `mapstructure:"dynamic_slippage"`
	ConfirmationLevel string        `mapstructure:"confirmation_level"`
	ConfirmTimeout    time.Duration `mapstructure:"confirm_timeout"`
	MaxRetries        uint32        `mapstructure:"max_retries"`
	PriorityFeeRate   uint64        `mapstructure:"priority_fee_rate"`
	ComputeUnits      uint32        `mapstructure:"compute_units"`
	DedupWindow       time.Duration `mapstructure:"dedup_window"`
	MaxConcurrentLegs int           `mapstructure:"max_concurrent_legs"`
}

// MEVConfig holds MEV protection and bundle relay configuration.
type MEVConfig struct {
	BundlingEnabled   bool          `mapstructure:"bundling_enabled"`
	RelayURL          string        `mapstructure:"relay_url"`
	MinTipLamports    uint64        `mapstructure:"min_tip_lamports"`
	DynamicAdjustment bool          `mapstructure:"dynamic_adjustment"`
	RelayTimeout      time.Duration `mapstructure:"relay_timeout"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SNIPER")
	v.AutomaticEnv()
	bindEnvVars(v)
	setDefaults(v)

	// Config file not found is OK, env vars and defaults carry the load.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "SNIPER_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "SNIPER_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "SNIPER_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("rpc.endpoints", "SNIPER_RPC_ENDPOINTS", "RPC_ENDPOINTS")
	v.BindEnv("rpc.websocket_url", "SNIPER_RPC_WS_URL", "RPC_WS_URL")
	v.BindEnv("rpc.strategy", "SNIPER_RPC_STRATEGY")

	v.BindEnv("wallet.keypair_path", "SNIPER_KEYPAIR_PATH", "KEYPAIR_PATH")

	v.BindEnv("execution.max_slippage_bps", "SNIPER_MAX_SLIPPAGE_BPS")
	v.BindEnv("execution.priority_fee_rate", "SNIPER_PRIORITY_FEE_RATE")

	v.BindEnv("mev.bundling_enabled", "SNIPER_BUNDLING_ENABLED")
	v.BindEnv("mev.relay_url", "SNIPER_RELAY_URL", "RELAY_URL")
	v.BindEnv("mev.min_tip_lamports", "SNIPER_MIN_TIP_LAMPORTS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "solsniper")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("rpc.endpoints", []string{"https://api.mainnet-beta.solana.com"})
	v.SetDefault("rpc.strategy", "round_robin")
	v.SetDefault("rpc.timeout", "30s")
	v.SetDefault("rpc.max_retries", 3)
	v.SetDefault("rpc.retry_backoff", "500ms")
	v.SetDefault("rpc.health_check_interval", "30s")

	v.SetDefault("wallet.sub_wallets", 0)

	v.SetDefault("execution.max_slippage_bps", 300)
	v.SetDefault("execution.dynamic_slippage", true)
	v.SetDefault("execution.confirmation_level", "confirmed")
	v.SetDefault("execution.confirm_timeout", "60s")
	v.SetDefault("execution.max_retries", 3)
	v.SetDefault("execution.priority_fee_rate", 50_000)
	v.SetDefault("execution.compute_units", 200_000)
	v.SetDefault("execution.dedup_window", "5s")
	v.SetDefault("execution.max_concurrent_legs", 8)

	v.SetDefault("mev.bundling_enabled", true)
	v.SetDefault("mev.relay_url", "https://mainnet.block-engine.jito.wtf")
	v.SetDefault("mev.min_tip_lamports", 1_000_000)
	v.SetDefault("mev.dynamic_adjustment", true)
	v.SetDefault("mev.relay_timeout", "10s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.RPC.Endpoints) == 0 {
		return fmt.Errorf("rpc.endpoints cannot be empty")
	}
	switch c.RPC.Strategy {
	case "round_robin", "lowest_latency", "random":
	default:
		return fmt.Errorf("invalid rpc.strategy: %s", c.RPC.Strategy)
	}
	switch c.Execution.ConfirmationLevel {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("invalid execution.confirmation_level: %s", c.Execution.ConfirmationLevel)
	}
	if c.Execution.MaxSlippageBps == 0 || c.Execution.MaxSlippageBps > 10_000 {
		return fmt.Errorf("execution.max_slippage_bps must be in (0, 10000], got %d", c.Execution.MaxSlippageBps)
	}
	if c.MEV.BundlingEnabled && c.MEV.RelayURL == "" {
		return fmt.Errorf("mev.relay_url is required when bundling is enabled")
	}
	return nil
}
