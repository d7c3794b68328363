// Package mysql - адаптер MySQL/MariaDB на go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/toonlabs/toondb/pkg/adapters"
	"github.com/toonlabs/toondb/pkg/adapters/base"
)

func init() {
	adapters.Register("mysql", func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter - адаптер MySQL
type Adapter struct {
	*base.SQLAdapter
}

// Connect открывает подключение к MySQL.
// Из дискретных полей DSN собирается в формате драйвера:
// "user:pass@tcp(host:port)/dbname?parseTime=true".
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		if cfg.Host == "" || cfg.Database == "" {
			return fmt.Errorf("%w: mysql requires dsn or host and database", adapters.ErrConnection)
		}
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		// parseTime отдает DATETIME как time.Time вместо []byte
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cfg.User, cfg.Password, cfg.Host, port, cfg.Database)
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("%w: %v", adapters.ErrConnection, err)
	}

	// Одно подключение: LAST_INSERT_ID() привязан к соединению,
	// восстановление вставленных строк требует той же сессии
	db.SetMaxOpenConns(1)

	sa, err := base.NewSQLAdapter(cfg, base.MySQLDialect(), base.NewDBSession(db), true)
	if err != nil {
		db.Close()
		return err
	}
	a.SQLAdapter = sa

	if err := a.Ping(ctx); err != nil {
		a.Close(ctx)
		return err
	}
	return nil
}

// NewWithDB создает адаптер поверх заимствованного пула.
// Close такого адаптера пул не закрывает.
func NewWithDB(cfg adapters.Config, db *sql.DB) (*Adapter, error) {
	sa, err := base.NewSQLAdapter(cfg, base.MySQLDialect(), base.NewDBSession(db), false)
	if err != nil {
		return nil, err
	}
	return &Adapter{SQLAdapter: sa}, nil
}
