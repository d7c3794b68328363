// Package config загружает именованные профили подключений из YAML.
// Один файл описывает несколько баз, клиент выбирает профиль по имени.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config - корень конфигурационного файла
type Config struct {
	Default     string                `yaml:"default"`     // Имя профиля по умолчанию (опционально)
	Connections map[string]Connection `yaml:"connections"` // Именованные профили подключений
}

// Connection описывает одно подключение к базе данных.
// Достаточно либо DSN, либо дискретных полей host/port/user/database.
type Connection struct {
	Type     string `yaml:"type"`     // Тип: postgres, mysql, sqlite, mssql, mongo
	DSN      string `yaml:"dsn"`      // Готовая строка подключения (приоритетнее дискретных полей)
	Host     string `yaml:"host"`     // Хост сервера
	Port     int    `yaml:"port"`     // Порт (0 = порт по умолчанию для типа)
	User     string `yaml:"user"`     // Имя пользователя
	Password string `yaml:"password"` // Пароль
	Database string `yaml:"database"` // Имя базы (для sqlite - путь к файлу)
	Schema   string `yaml:"schema"`   // Схема (postgres/mssql)
	ReadOnly bool   `yaml:"read_only"` // Пропускать только SELECT на поверхности Query
	Verbose  bool   `yaml:"verbose"`   // Печатать строки журнала экономии в stdout
	Stats    Stats  `yaml:"stats"`     // Учет экономии токенов
}

// Stats - параметры учета экономии токенов
type Stats struct {
	Enabled bool   `yaml:"enabled"`  // Включить учет
	LogFile string `yaml:"log_file"` // Путь к файлу журнала (пустое = без файла)
}

// Load загружает конфигурацию из YAML файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.SetDefaults()

	return &config, nil
}

// Connection возвращает профиль по имени.
// Пустое имя выбирает профиль default.
func (c *Config) Connection(name string) (Connection, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" {
		return Connection{}, fmt.Errorf("connection name is required (no default set)")
	}

	conn, ok := c.Connections[name]
	if !ok {
		return Connection{}, fmt.Errorf("unknown connection '%s'", name)
	}
	return conn, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if len(c.Connections) == 0 {
		return fmt.Errorf("at least one connection is required")
	}

	if c.Default != "" {
		if _, ok := c.Connections[c.Default]; !ok {
			return fmt.Errorf("default connection '%s' is not defined", c.Default)
		}
	}

	for name, conn := range c.Connections {
		if err := conn.Validate(); err != nil {
			return fmt.Errorf("connection '%s': %w", name, err)
		}
	}

	return nil
}

// Validate проверяет корректность одного профиля
func (conn *Connection) Validate() error {
	if conn.Type == "" {
		return fmt.Errorf("type is required")
	}

	validTypes := map[string]bool{
		"postgres": true,
		"mysql":    true,
		"sqlite":   true,
		"mssql":    true,
		"mongo":    true,
	}
	if !validTypes[conn.Type] {
		return fmt.Errorf("unsupported type '%s', must be one of: postgres, mysql, sqlite, mssql, mongo", conn.Type)
	}

	if conn.DSN == "" {
		switch conn.Type {
		case "sqlite":
			if conn.Database == "" {
				return fmt.Errorf("database (file path) is required for sqlite")
			}
		default:
			if conn.Host == "" {
				return fmt.Errorf("either dsn or host is required")
			}
			if conn.Database == "" {
				return fmt.Errorf("database is required")
			}
		}
	}

	return nil
}

// SetDefaults устанавливает значения по умолчанию для необязательных полей
func (c *Config) SetDefaults() {
	for name, conn := range c.Connections {
		conn.SetDefaults()
		c.Connections[name] = conn
	}
}

// SetDefaults заполняет порт и схему по умолчанию для типа СУБД
func (conn *Connection) SetDefaults() {
	if conn.Port == 0 {
		switch conn.Type {
		case "postgres":
			conn.Port = 5432
		case "mysql":
			conn.Port = 3306
		case "mssql":
			conn.Port = 1433
		case "mongo":
			conn.Port = 27017
		}
	}

	if conn.Schema == "" {
		switch conn.Type {
		case "postgres":
			conn.Schema = "public"
		case "mssql":
			conn.Schema = "dbo"
		}
	}
}
