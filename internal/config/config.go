package config

import (
	"fmt"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	// DatabaseURL points at the postgres instance the ledger store writes
	// to. Empty means run without persistence.
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	DemoCurrency      string `env:"DEMO_CURRENCY" envDefault:"USD"`
	DemoReserveAmount string `env:"DEMO_RESERVE_AMOUNT" envDefault:"100.00"`
	DemoChargeAmount  string `env:"DEMO_CHARGE_AMOUNT" envDefault:"60.00"`
	DemoCreditAmount  string `env:"DEMO_CREDIT_AMOUNT" envDefault:"30.00"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}
