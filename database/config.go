/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tomoncle/fleetbook/resilience"
	"github.com/uptrace/bun/driver/sqliteshim"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingConnectionString = errors.New("database connection string is not configured")
	ErrNotConnected            = errors.New("database not connected")
)

const (
	TypePostgres = "postgres"
	TypeMySQL    = "mysql"
	TypeSQLite   = "sqlite"
)

// LoadConfig reads the YAML file at path (skipped when path is empty),
// loads .env files and applies DB_* environment overrides.
func LoadConfig(path string, envFiles ...string) (*Config, error) {
	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	overrideFromEnv(&cfg.ConnectionConfig)
	return cfg, nil
}

// LoadEnvFiles loads the given .env files (".env" when none is given) into
// the process environment. Missing files are skipped and variables already
// set are kept.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// overrideFromEnv overrides configuration values from environment variables.
func overrideFromEnv(cfg *ConnectionConfig) {
	if dsn := os.Getenv("DB_CONNECTION_STRING"); dsn != "" {
		cfg.ConnectionString = dsn
	}
	if typ := os.Getenv("DB_TYPE"); typ != "" {
		cfg.Type = typ
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		cfg.Driver = driver
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if username := os.Getenv("DB_USERNAME"); username != "" {
		cfg.Username = username
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.SSLMode = sslmode
	}
	// Connection pool config
	if maxIdle := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdle != "" {
		if val, err := strconv.Atoi(maxIdle); err == nil {
			cfg.MaxIdleConns = val
		}
	}
	if maxOpen := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpen != "" {
		if val, err := strconv.Atoi(maxOpen); err == nil {
			cfg.MaxOpenConns = val
		}
	}
	if maxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); maxLifetime != "" {
		if val, err := strconv.Atoi(maxLifetime); err == nil {
			cfg.ConnMaxLifetime = time.Duration(val) * time.Second
		}
	}
	if enableReconnect := os.Getenv("DB_ENABLE_RECONNECT"); enableReconnect != "" {
		cfg.EnableReconnect = enableReconnect == "true"
	}
	if enableQueryLog := os.Getenv("DB_ENABLE_QUERY_LOG"); enableQueryLog != "" {
		cfg.EnableQueryLog = enableQueryLog == "true"
	}
}

// NormalizedType folds the accepted type aliases into postgres, mysql or
// sqlite. Unknown types are returned lower-cased.
func (c *ConnectionConfig) NormalizedType() string {
	switch t := strings.ToLower(strings.TrimSpace(c.Type)); t {
	case "postgresql", "pg", TypePostgres:
		return TypePostgres
	case "sqlite3", TypeSQLite:
		return TypeSQLite
	default:
		return t
	}
}

// DriverName returns the database/sql driver registered for the type.
func (c *ConnectionConfig) DriverName() (string, error) {
	switch c.NormalizedType() {
	case TypeMySQL:
		return "mysql", nil
	case TypePostgres:
		switch strings.ToLower(c.Driver) {
		case "", "pq", "postgres":
			return "postgres", nil
		case "pgx":
			return "pgx", nil
		default:
			return "", fmt.Errorf("unsupported postgres driver: %s", c.Driver)
		}
	case TypeSQLite:
		return sqliteshim.ShimName, nil
	}
	return "", fmt.Errorf("unsupported database type: %s", c.Type)
}

// Resolve returns the connection string: the explicit one when set,
// otherwise one built from the individual fields. It fails with
// ErrMissingConnectionString when neither is available.
func (c *ConnectionConfig) Resolve() (string, error) {
	if s := strings.TrimSpace(c.ConnectionString); s != "" {
		return s, nil
	}
	connectTimeout := c.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	switch c.NormalizedType() {
	case TypeSQLite:
		if c.DBName == "" {
			return "", ErrMissingConnectionString
		}
		if c.DBName == ":memory:" || strings.HasPrefix(c.DBName, "file:") || strings.HasSuffix(c.DBName, ".db") {
			return c.DBName, nil
		}
		return fmt.Sprintf("%s.db", c.DBName), nil
	case TypeMySQL:
		if c.Host == "" || c.DBName == "" {
			return "", ErrMissingConnectionString
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%s&readTimeout=%s&writeTimeout=%s",
			c.Username, c.Password, c.Host, c.portOr(3306), c.DBName,
			connectTimeout, c.ReadTimeout, c.WriteTimeout,
		), nil
	case TypePostgres:
		if c.Host == "" || c.DBName == "" {
			return "", ErrMissingConnectionString
		}
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.Username, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Host, c.portOr(5432)),
			Path:   "/" + c.DBName,
		}
		q := url.Values{}
		q.Set("sslmode", sslMode)
		q.Set("connect_timeout", strconv.Itoa(int(connectTimeout.Seconds())))
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return "", fmt.Errorf("unsupported database type: %s", c.Type)
}

func (c *ConnectionConfig) portOr(def int) int {
	if c.Port > 0 {
		return c.Port
	}
	return def
}

// RetryPolicies converts the resilience section into policies. The
// database pipeline is always present and retries only transient errors.
func (c *Config) RetryPolicies() ([]resilience.Policy, error) {
	policies := make([]resilience.Policy, 0, len(c.Resilience)+1)
	hasDatabase := false
	for _, pc := range c.Resilience {
		p, err := pc.ToPolicy(IsTransient)
		if err != nil {
			return nil, err
		}
		if p.Name == resilience.DatabasePipeline {
			hasDatabase = true
		}
		policies = append(policies, p)
	}
	if !hasDatabase {
		p := resilience.DefaultPolicy(resilience.DatabasePipeline)
		p.ShouldRetry = IsTransient
		policies = append(policies, p)
	}
	return policies, nil
}
