package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RPC       RPCConfig       `mapstructure:"rpc"`
	Router    RouterConfig    `mapstructure:"router"`
	Swap      SwapConfig      `mapstructure:"swap"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	APIKey        string `mapstructure:"api_key"`
}

type RPCConfig struct {
	PrimaryURL     string `mapstructure:"primary_url"`
	FallbackURL    string `mapstructure:"fallback_url"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	BaseDelayMs    int    `mapstructure:"base_delay_ms"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type RouterConfig struct {
	// Ordered quote endpoints, tried first to last.
	Endpoints      []string `mapstructure:"endpoints"`
	APIKey         string   `mapstructure:"api_key"`
	PlatformFeeBps int64    `mapstructure:"platform_fee_bps"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	TokenCacheTTL  int      `mapstructure:"token_cache_ttl_seconds"`
}

type SwapConfig struct {
	PollIntervalMs      int    `mapstructure:"poll_interval_ms"`
	MaxPolls            int    `mapstructure:"max_polls"`
	QuoteRefreshSeconds int    `mapstructure:"quote_refresh_seconds"`
	OptimisticConfirm   bool   `mapstructure:"optimistic_confirm"`
	FeeReserveLamports  uint64 `mapstructure:"fee_reserve_lamports"`
}

type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	WalletListMax int    `mapstructure:"wallet_list_max"`
	GlobalListMax int    `mapstructure:"global_list_max"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. MOLTYDEX_RPC_PRIMARY_URL
	viper.SetEnvPrefix("moltydex")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("rpc.primary_url", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("rpc.max_attempts", 3)
	viper.SetDefault("rpc.base_delay_ms", 500)
	viper.SetDefault("rpc.timeout_seconds", 25)
	viper.SetDefault("router.endpoints", []string{"https://quote-api.jup.ag/v6", "https://lite-api.jup.ag/swap/v1"})
	viper.SetDefault("router.platform_fee_bps", 50)
	viper.SetDefault("router.timeout_seconds", 10)
	viper.SetDefault("router.token_cache_ttl_seconds", 300)
	viper.SetDefault("swap.poll_interval_ms", 2000)
	viper.SetDefault("swap.max_polls", 60)
	viper.SetDefault("swap.quote_refresh_seconds", 20)
	viper.SetDefault("swap.optimistic_confirm", true)
	viper.SetDefault("swap.fee_reserve_lamports", 10_000_000)
	viper.SetDefault("redis.wallet_list_max", 500)
	viper.SetDefault("redis.global_list_max", 10000)
	viper.SetDefault("rate_limit.rps", 10)
	viper.SetDefault("rate_limit.burst", 20)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
