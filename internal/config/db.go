package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Драйверы хранилища.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

type DBConfig struct {
	Driver   string `env:"DB_DRIVER" envDefault:"postgres"`
	Host     string `env:"DB_HOST" envDefault:"postgres"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"consult"`
	Password string `env:"DB_PASSWORD" envDefault:"consult"`
	Name     string `env:"DB_NAME" envDefault:"consult_db"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	TimeZone string `env:"DB_TIMEZONE" envDefault:"UTC"`

	// Путь к файлу для sqlite (":memory:" для тестов и локального запуска).
	SQLitePath string `env:"DB_SQLITE_PATH" envDefault:"consult.db"`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifeTime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
}

func LoadDBConfig() (*DBConfig, error) {
	cfg := &DBConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse db env: %w", err)
	}

	switch cfg.Driver {
	case DriverPostgres, DriverMySQL:
		// минимальная валидация
		if cfg.Host == "" || cfg.User == "" || cfg.Name == "" {
			return nil, fmt.Errorf("invalid DB config: host/user/name must not be empty")
		}
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("invalid DB config: sqlite path must not be empty")
		}
	default:
		return nil, fmt.Errorf("invalid DB config: unknown driver %q", cfg.Driver)
	}

	return cfg, nil
}
