package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	BaseURL        string   `mapstructure:"base_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ChainConfig holds the per-chain settings for on-chain verification.
type ChainConfig struct {
	// ReceivingAddress is the platform's receiving wallet on this chain.
	ReceivingAddress string `mapstructure:"receiving_address"`
	// MinConfirmations overrides the chain default when > 0.
	MinConfirmations int `mapstructure:"min_confirmations"`
	// RequestsPerMinute caps outbound scan-API calls for this chain (0 = unlimited).
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

// VerificationConfig holds the tunable parameters of the verification engine.
// All of these are externally configurable so thresholds can be adjusted
// without redeploying chain adapters.
type VerificationConfig struct {
	// AutoApproveThreshold is the minimum confidence score (inclusive)
	// for a payment to become an auto-approval candidate.
	AutoApproveThreshold int `mapstructure:"auto_approve_threshold"`
	// ReviewWindowHours is the manual review window; expires_at = created_at + window.
	ReviewWindowHours int `mapstructure:"review_window_hours"`
	// AdapterTimeoutSeconds bounds a single chain adapter call.
	AdapterTimeoutSeconds int `mapstructure:"adapter_timeout_seconds"`
	// AdapterRetries is the number of retries after a transient chain failure.
	AdapterRetries int `mapstructure:"adapter_retries"`
	// AmountToleranceUSD is the absolute tolerance band for amount matching.
	AmountToleranceUSD float64 `mapstructure:"amount_tolerance_usd"`
	// AmountTolerancePercent is the relative tolerance band (e.g. 1.5 = 1.5%).
	AmountTolerancePercent float64 `mapstructure:"amount_tolerance_percent"`
	// ExpireBlockchainFailed controls whether blockchain_failed records are
	// also reaped by the expiry sweep or stay actionable for admins.
	ExpireBlockchainFailed bool `mapstructure:"expire_blockchain_failed"`
	// WorkerPoolSize caps concurrent verifications across payments.
	WorkerPoolSize int `mapstructure:"worker_pool_size"`
	// QueueSize is the buffered capacity of the verification work queue.
	QueueSize int `mapstructure:"queue_size"`

	EtherscanAPIKey string `mapstructure:"etherscan_api_key"`
	TrongridAPIKey  string `mapstructure:"trongrid_api_key"`

	Chains map[string]ChainConfig `mapstructure:"chains"`
}

func (v *VerificationConfig) ReviewWindow() time.Duration {
	return time.Duration(v.ReviewWindowHours) * time.Hour
}

func (v *VerificationConfig) AdapterTimeout() time.Duration {
	return time.Duration(v.AdapterTimeoutSeconds) * time.Second
}
