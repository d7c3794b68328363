// Package sqlite - адаптер SQLite на чистом Go драйвере modernc.org/sqlite.
// Не требует cgo, подходит для :memory: баз в тестах.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/toonlabs/toondb/pkg/adapters"
	"github.com/toonlabs/toondb/pkg/adapters/base"
)

func init() {
	adapters.Register("sqlite", func() adapters.Adapter {
		return &Adapter{}
	})
}

// Adapter - адаптер SQLite
type Adapter struct {
	*base.SQLAdapter
}

// Connect открывает базу SQLite.
// DSN - путь к файлу или ":memory:"; если DSN пуст, берется Database.
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = cfg.Database
	}
	if dsn == "" {
		return fmt.Errorf("%w: sqlite requires dsn or database path", adapters.ErrConnection)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("%w: %v", adapters.ErrConnection, err)
	}

	// Одно подключение: пул с несколькими соединениями видел бы
	// РАЗНЫЕ базы для :memory: и терял бы last_insert_rowid
	db.SetMaxOpenConns(1)

	sa, err := base.NewSQLAdapter(cfg, base.SQLiteDialect(), base.NewDBSession(db), true)
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
	sa, err := base.NewSQLAdapter(cfg, base.SQLiteDialect(), base.NewDBSession(db), false)
	if err != nil {
		return nil, err
	}
	return &Adapter{SQLAdapter: sa}, nil
}
