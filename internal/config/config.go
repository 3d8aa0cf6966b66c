package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress            string
	DatabaseURI           string
	PaymentGatewayAddress string
	RedisURL              string
	AuthSecret            string
	LogLevel              string
	ShutdownTimeout       time.Duration

	DualControlThreshold    decimal.Decimal
	EscrowExpiry            time.Duration
	MaintenanceMode         bool
	EmergencyStop           bool
	MinWithdrawalAmount     decimal.Decimal
	WithdrawalFeePercent    decimal.Decimal
	DailyLimitEnabled       bool
	ReconcileInterval       time.Duration
	ReconcileStaleAfter     time.Duration
	ReconcileBatch          int
	ReconcileWorkerPoolSize int
}

const (
	defaultRunAddress          = ":8080"
	defaultRedisURL            = "redis://localhost:6379/0"
	defaultAuthSecret          = "change-me-in-production"
	defaultLogLevel            = "info"
	defaultShutdownTimeout     = 10 * time.Second
	defaultDualControl         = "1000"
	defaultEscrowExpiryHours   = 24
	defaultMinWithdrawal       = "10"
	defaultFeePercent          = "0"
	defaultReconcileInterval   = time.Minute
	defaultReconcileStaleAfter = 5 * time.Minute
	defaultReconcileBatch      = 16
	defaultReconcileWorkers    = 2
)

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:              getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:             getString(lookup, "DATABASE_URI", ""),
		PaymentGatewayAddress:   getString(lookup, "PAYMENT_GATEWAY_ADDRESS", ""),
		RedisURL:                getString(lookup, "REDIS_URL", defaultRedisURL),
		AuthSecret:              getString(lookup, "AUTH_SECRET", defaultAuthSecret),
		LogLevel:                getString(lookup, "LOG_LEVEL", defaultLogLevel),
		ShutdownTimeout:         getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		MaintenanceMode:         getBool(lookup, "BLOCKCHAIN_MAINTENANCE_MODE", false),
		EmergencyStop:           getBool(lookup, "EMERGENCY_STOP_WITHDRAWALS", false),
		DailyLimitEnabled:       getBool(lookup, "DAILY_LIMIT_ENABLED", true),
		ReconcileInterval:       getDuration(lookup, "RECONCILE_INTERVAL", defaultReconcileInterval),
		ReconcileStaleAfter:     getDuration(lookup, "RECONCILE_STALE_AFTER", defaultReconcileStaleAfter),
		ReconcileBatch:          getInt(lookup, "RECONCILE_BATCH", defaultReconcileBatch),
		ReconcileWorkerPoolSize: getInt(lookup, "RECONCILE_WORKERS", defaultReconcileWorkers),
	}

	fs := flag.NewFlagSet("withdrawgate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
		reconcileStr       = cfg.ReconcileInterval.String()
		staleAfterStr      = cfg.ReconcileStaleAfter.String()
		thresholdStr       = getString(lookup, "DUAL_CONTROL_WITHDRAWAL_THRESHOLD", defaultDualControl)
		minWithdrawalStr   = getString(lookup, "MIN_WITHDRAWAL_AMOUNT", defaultMinWithdrawal)
		feePercentStr      = getString(lookup, "WITHDRAWAL_FEE_PERCENT", defaultFeePercent)
		expiryHours        = getInt(lookup, "DUAL_CONTROL_ESCROW_EXPIRY_HOURS", defaultEscrowExpiryHours)
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.PaymentGatewayAddress, "p", cfg.PaymentGatewayAddress, "Payment gateway base URL")
	fs.StringVar(&cfg.RedisURL, "redis", cfg.RedisURL, "Redis URL for notification events")
	fs.StringVar(&cfg.AuthSecret, "auth-secret", cfg.AuthSecret, "Secret for verifying auth tokens")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.StringVar(&thresholdStr, "dual-control-threshold", thresholdStr, "Withdrawal amount requiring a second admin")
	fs.IntVar(&expiryHours, "escrow-expiry-hours", expiryHours, "Hours before a dual-control escrow expires")
	fs.BoolVar(&cfg.MaintenanceMode, "maintenance", cfg.MaintenanceMode, "Start in blockchain maintenance mode")
	fs.BoolVar(&cfg.EmergencyStop, "emergency-stop", cfg.EmergencyStop, "Pause all new withdrawal requests")
	fs.StringVar(&minWithdrawalStr, "min-withdrawal", minWithdrawalStr, "Minimum withdrawal amount")
	fs.StringVar(&feePercentStr, "fee-percent", feePercentStr, "Withdrawal fee, percent of gross amount")
	fs.BoolVar(&cfg.DailyLimitEnabled, "daily-limit", cfg.DailyLimitEnabled, "Cap withdrawals at daily earnings")
	fs.StringVar(&reconcileStr, "reconcile-interval", reconcileStr, "Interval between payment reconciliation sweeps")
	fs.StringVar(&staleAfterStr, "reconcile-stale-after", staleAfterStr, "Age of an in-flight payment before reconciliation")
	fs.IntVar(&cfg.ReconcileBatch, "reconcile-batch", cfg.ReconcileBatch, "Maximum payments per reconciliation sweep")
	fs.IntVar(&cfg.ReconcileWorkerPoolSize, "reconcile-workers", cfg.ReconcileWorkerPoolSize, "Number of concurrent reconciliation workers")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}
	if cfg.ReconcileInterval, err = time.ParseDuration(reconcileStr); err != nil {
		return nil, fmt.Errorf("invalid reconcile interval: %w", err)
	}
	if cfg.ReconcileStaleAfter, err = time.ParseDuration(staleAfterStr); err != nil {
		return nil, fmt.Errorf("invalid reconcile stale age: %w", err)
	}
	if cfg.DualControlThreshold, err = decimal.NewFromString(thresholdStr); err != nil {
		return nil, fmt.Errorf("invalid dual control threshold: %w", err)
	}
	if cfg.MinWithdrawalAmount, err = decimal.NewFromString(minWithdrawalStr); err != nil {
		return nil, fmt.Errorf("invalid min withdrawal amount: %w", err)
	}
	if cfg.WithdrawalFeePercent, err = decimal.NewFromString(feePercentStr); err != nil {
		return nil, fmt.Errorf("invalid withdrawal fee percent: %w", err)
	}

	if secretFile, ok := lookup("AUTH_SECRET_FILE"); ok && secretFile != "" {
		content, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, fmt.Errorf("read auth secret file: %w", err)
		}
		cfg.AuthSecret = strings.TrimSpace(string(content))
	}

	if expiryHours <= 0 {
		expiryHours = defaultEscrowExpiryHours
	}
	cfg.EscrowExpiry = time.Duration(expiryHours) * time.Hour

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = defaultReconcileInterval
	}
	if cfg.ReconcileStaleAfter <= 0 {
		cfg.ReconcileStaleAfter = defaultReconcileStaleAfter
	}
	if cfg.ReconcileBatch <= 0 {
		cfg.ReconcileBatch = defaultReconcileBatch
	}
	if cfg.ReconcileWorkerPoolSize <= 0 {
		cfg.ReconcileWorkerPoolSize = defaultReconcileWorkers
	}

	if !cfg.DualControlThreshold.IsPositive() {
		return nil, fmt.Errorf("dual control threshold must be positive")
	}
	if cfg.MinWithdrawalAmount.IsNegative() {
		return nil, fmt.Errorf("min withdrawal amount must not be negative")
	}
	if cfg.WithdrawalFeePercent.IsNegative() || cfg.WithdrawalFeePercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("withdrawal fee percent must be in [0, 100)")
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	if cfg.PaymentGatewayAddress == "" {
		return nil, fmt.Errorf("payment gateway address must be provided")
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(lookup envLookup, key string, def bool) bool {
	if v, ok := lookup(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
