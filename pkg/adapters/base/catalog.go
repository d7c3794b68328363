package base

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/toonlabs/toondb/pkg/adapters"
	"github.com/toonlabs/toondb/pkg/security"
)

// Catalog - кэш метаданных таблиц на экземпляр адаптера.
// Системный каталог опрашивается один раз на таблицу; повторные
// обращения идут из кэша до явного сброса.
type Catalog struct {
	mu      sync.Mutex
	session adapters.Session
	dialect *Dialect
	schema  string
	cache   map[string]*adapters.TableSchema
}

// NewCatalog создает кэш схем.
// schema - схема по умолчанию для диалектов, которые ее используют.
func NewCatalog(s adapters.Session, d *Dialect, schema string) *Catalog {
	return &Catalog{
		session: s,
		dialect: d,
		schema:  schema,
		cache:   make(map[string]*adapters.TableSchema),
	}
}

// Get возвращает метаданные таблицы, при промахе читая системный каталог.
// Имя может быть квалифицировано схемой ("schema.table").
func (c *Catalog) Get(ctx context.Context, table string) (*adapters.TableSchema, error) {
	if err := security.ValidateIdentifier(table); err != nil {
		return nil, fmt.Errorf("%w: %v", adapters.ErrSecurity, err)
	}

	key := strings.ToLower(table)

	c.mu.Lock()
	if ts, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return ts, nil
	}
	c.mu.Unlock()

	schema, name := c.splitTable(table)
	ts, err := c.dialect.Describe(ctx, c.session, schema, name)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[key] = ts
	c.mu.Unlock()

	return ts, nil
}

// Tables возвращает упорядоченный список таблиц базы (без кэширования).
// includeViews добавляет представления.
func (c *Catalog) Tables(ctx context.Context, includeViews bool) ([]string, error) {
	tables, err := c.dialect.ListTables(ctx, c.session, c.schema, includeViews)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list tables: %v", adapters.ErrSchema, err)
	}
	return tables, nil
}

// Invalidate сбрасывает кэш одной таблицы
func (c *Catalog) Invalidate(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, strings.ToLower(table))
}

// Reset сбрасывает весь кэш
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*adapters.TableSchema)
}

// ValidateColumns проверяет, что все имена колонок записи существуют
// в таблице. Защита от опечаток до построения SQL.
func (c *Catalog) ValidateColumns(ctx context.Context, table string, columns []string) (*adapters.TableSchema, error) {
	ts, err := c.Get(ctx, table)
	if err != nil {
		return nil, err
	}

	for _, col := range columns {
		if _, ok := ts.Column(col); !ok {
			return nil, fmt.Errorf("%w: column %q does not exist in table %s", adapters.ErrSchema, col, table)
		}
	}

	return ts, nil
}

func (c *Catalog) splitTable(table string) (schema, name string) {
	if i := strings.IndexByte(table, '.'); i >= 0 {
		return table[:i], table[i+1:]
	}
	return c.schema, table
}
