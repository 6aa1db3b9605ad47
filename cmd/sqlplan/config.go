package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"

	"github.com/queryplan/sqlplan/cmd/sqlplan/api"
)

const (
	DebugMode   = "debug"
	ReleaseMode = "release"
)

// loadConfig reads the JSON config file when given, then lets SQLPLAN_*
// environment variables (and a .env file) override individual fields.
func loadConfig(path string) (api.Config, string, error) {
	var cfg api.Config
	if path != "" {
		configContent, err := os.ReadFile(path)
		if err != nil {
			return cfg, "", fmt.Errorf("failed to read config file: %w", err)
		}
		if err = json.Unmarshal(configContent, &cfg); err != nil {
			return cfg, "", fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// a missing .env file is the common case
	_ = godotenv.Load(".env")

	cfg.ListenAddr = cast.ToString(getOrReturnDefaultValue("SQLPLAN_LISTEN_ADDR", cfg.ListenAddr))
	cfg.Driver = cast.ToString(getOrReturnDefaultValue("SQLPLAN_DRIVER", cfg.Driver))
	cfg.DSN = cast.ToString(getOrReturnDefaultValue("SQLPLAN_DSN", cfg.DSN))
	cfg.AccessDir = cast.ToString(getOrReturnDefaultValue("SQLPLAN_ACCESS_DIR", cfg.AccessDir))
	cfg.QueriesDir = cast.ToString(getOrReturnDefaultValue("SQLPLAN_QUERIES_DIR", cfg.QueriesDir))
	cfg.QueryTimeout = cast.ToString(getOrReturnDefaultValue("SQLPLAN_QUERY_TIMEOUT", cfg.QueryTimeout))

	var err error
	if cfg.CheckTableAccess, err = cast.ToBoolE(getOrReturnDefaultValue("SQLPLAN_CHECK_TABLE_ACCESS", cfg.CheckTableAccess)); err != nil {
		return cfg, "", fmt.Errorf("invalid SQLPLAN_CHECK_TABLE_ACCESS: %w", err)
	}
	if cfg.Limit, err = cast.ToInt64E(getOrReturnDefaultValue("SQLPLAN_LIMIT", cfg.Limit)); err != nil {
		return cfg, "", fmt.Errorf("invalid SQLPLAN_LIMIT: %w", err)
	}
	if cfg.MaxFilterDepth, err = cast.ToIntE(getOrReturnDefaultValue("SQLPLAN_MAX_FILTER_DEPTH", cfg.MaxFilterDepth)); err != nil {
		return cfg, "", fmt.Errorf("invalid SQLPLAN_MAX_FILTER_DEPTH: %w", err)
	}
	env := cast.ToString(getOrReturnDefaultValue("ENVIRONMENT", ReleaseMode))

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.QueriesDir == "" {
		cfg.QueriesDir = "./data/queries"
	}
	if cfg.DSN != "" && cfg.Driver == "" {
		cfg.Driver = "pgx"
	}
	return cfg, env, nil
}

func getOrReturnDefaultValue(key string, defaultValue any) any {
	val, exists := os.LookupEnv(key)
	if exists {
		return val
	}
	return defaultValue
}
