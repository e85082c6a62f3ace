package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bizvistar/billing-backend/pkg/config"
	"github.com/bizvistar/billing-backend/pkg/logger"
)

// Client owns the shared GORM pool.
type Client struct {
	conn *gorm.DB
}

// New opens the pool. With useSQLite the DSN is a sqlite path, which local
// runs and tests use; otherwise it is a postgres URL.
func New(ctx context.Context, cfg config.DBConfig, useSQLite bool, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}

	conn, err := gorm.Open(dialector(cfg.DSN, useSQLite), &gorm.Config{
		Logger:                 newQueryLogger(logg, cfg.SlowQuery),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	configurePool(sqlDB, cfg)

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"sqlite":         useSQLite,
			"max_open_conns": cfg.MaxOpenConns,
		}), "database connection established")
	}
	return &Client{conn: conn}, nil
}

func dialector(dsn string, useSQLite bool) gorm.Dialector {
	if useSQLite {
		return sqlite.Open(dsn)
	}
	// The simple protocol keeps pgbouncer in transaction mode happy.
	return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true})
}

func configurePool(sqlDB *sql.DB, cfg config.DBConfig) {
	if n := cfg.MaxOpenConns; n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := cfg.MaxIdleConns; n > 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if d := cfg.ConnMaxLifetime; d > 0 {
		sqlDB.SetConnMaxLifetime(d)
	}
	if d := cfg.ConnMaxIdleTime; d > 0 {
		sqlDB.SetConnMaxIdleTime(d)
	}
}

// FromGorm wraps an already opened connection.
func FromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction bound to ctx. An error or panic from fn
// rolls back; a panic is re-raised after the rollback.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return c.conn.WithContext(ctx).Transaction(fn)
}
