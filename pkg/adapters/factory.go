package adapters

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constructor возвращает новый, еще не подключенный адаптер
type Constructor func() Adapter

// Factory - реестр конструкторов адаптеров по типу СУБД
type Factory struct {
	mu       sync.RWMutex
	registry map[string]Constructor
}

// NewFactory создает пустой реестр
func NewFactory() *Factory {
	return &Factory{registry: make(map[string]Constructor)}
}

// Register связывает тип СУБД с конструктором адаптера.
// dbType - один из: "postgres", "mysql", "sqlite", "mssql", "mongo".
func (f *Factory) Register(dbType string, build Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[dbType] = build
}

// IsRegistered проверяет, известен ли реестру тип СУБД
func (f *Factory) IsRegistered(dbType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.registry[dbType]
	return ok
}

// Create создает адаптер по конфигурации и подключает его
func (f *Factory) Create(ctx context.Context, cfg Config) (Adapter, error) {
	f.mu.RLock()
	build, ok := f.registry[cfg.Type]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown database type %q (registered: %s)",
			cfg.Type, strings.Join(f.registeredTypes(), ", "))
	}

	a := build()
	if err := a.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	return a, nil
}

func (f *Factory) registeredTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]string, 0, len(f.registry))
	for t := range f.registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

var defaultFactory = NewFactory()

// Register регистрирует бэкенд в общем реестре.
// Вызывается из init() пакетов бэкендов; пустой импорт пакета
// делает его тип доступным для New.
func Register(dbType string, build Constructor) {
	defaultFactory.Register(dbType, build)
}

// New создает и подключает адаптер через общий реестр.
//
//	adapter, err := adapters.New(ctx, adapters.Config{
//	    Type: "sqlite",
//	    DSN:  ":memory:",
//	})
func New(ctx context.Context, cfg Config) (Adapter, error) {
	return defaultFactory.Create(ctx, cfg)
}
