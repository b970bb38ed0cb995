package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string
	LogLevel   string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret string
	TokenTTL  time.Duration

	AnnualInterestRate decimal.Decimal
	MinDeposit         decimal.Decimal
	MinWithdrawal      decimal.Decimal
	MpesaPaybill       string
}

// Load reads configuration from the environment with sane defaults for local
// development. Monetary values are parsed into decimals up front so a bad
// value fails at boot, not mid-operation.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("server_port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "password")
	v.SetDefault("db_name", "mmf_ledger")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("jwt_secret", "dolaglobo-secret-key-2024-prod")
	v.SetDefault("token_ttl", "720h")
	v.SetDefault("annual_interest_rate", "0.15")
	v.SetDefault("min_deposit", "50")
	v.SetDefault("min_withdrawal", "50")
	v.SetDefault("mpesa_paybill", "4114517")

	cfg := &Config{
		ServerPort:   v.GetString("server_port"),
		LogLevel:     v.GetString("log_level"),
		DBHost:       v.GetString("db_host"),
		DBPort:       v.GetString("db_port"),
		DBUser:       v.GetString("db_user"),
		DBPassword:   v.GetString("db_password"),
		DBName:       v.GetString("db_name"),
		DBSSLMode:    v.GetString("db_sslmode"),
		JWTSecret:    v.GetString("jwt_secret"),
		MpesaPaybill: v.GetString("mpesa_paybill"),
	}

	ttl, err := time.ParseDuration(v.GetString("token_ttl"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	cfg.TokenTTL = ttl

	for _, field := range []struct {
		key  string
		dst  *decimal.Decimal
		name string
	}{
		{"annual_interest_rate", &cfg.AnnualInterestRate, "ANNUAL_INTEREST_RATE"},
		{"min_deposit", &cfg.MinDeposit, "MIN_DEPOSIT"},
		{"min_withdrawal", &cfg.MinWithdrawal, "MIN_WITHDRAWAL"},
	} {
		d, err := decimal.NewFromString(v.GetString(field.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", field.name, err)
		}
		*field.dst = d
	}

	return cfg, nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}
