// Package config loads and validates pdnsadmin configuration.
//
// Configuration comes from an optional YAML file and PDNSADMIN_* environment
// variables, layered over built-in defaults. Environment variables use the
// dotted key with dots replaced by underscores, e.g. PDNSADMIN_DATABASE_DSN.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvConfigPath names the environment variable consulted when no -config flag is given.
const EnvConfigPath = "PDNSADMIN_CONFIG"

// ResolveConfigPath returns the flag value if set, otherwise PDNSADMIN_CONFIG.
func ResolveConfigPath(flagValue string) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(EnvConfigPath))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.dsn", "pdnsadmin.db")

	v.SetDefault("pdns_api.url", "http://127.0.0.1:8081")
	v.SetDefault("pdns_api.server_id", "localhost")
	v.SetDefault("pdns_api.key", "")
	v.SetDefault("pdns_api.timeout", 10*time.Second)

	v.SetDefault("dnssec.enabled", false)

	v.SetDefault("dns.hostmaster", "hostmaster.example.net")
	v.SetDefault("dns.ns1", "ns1.example.net")
	v.SetDefault("dns.ttl", 86400)
	v.SetDefault("dns.soa_refresh", 28800)
	v.SetDefault("dns.soa_retry", 7200)
	v.SetDefault("dns.soa_expire", 604800)
	v.SetDefault("dns.soa_minimum", 86400)
	v.SetDefault("dns.top_level_tld_check", false)
	v.SetDefault("dns.strict_tld_check", false)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.basic_auth_enabled", true)
	v.SetDefault("api.basic_auth_realm", "Poweradmin API")
	v.SetDefault("api.max_keys_per_user", 5)

	v.SetDefault("session.redis_addr", "")
	v.SetDefault("session.redis_password", "")
	v.SetDefault("session.redis_db", 0)
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.cookie_secure", false)

	v.SetDefault("interface.add_reverse_record", true)
	v.SetDefault("interface.rows_per_page", 10)
	v.SetDefault("interface.show_serial", false)

	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.structured", false)
	v.SetDefault("logging.structured_format", "json")
	v.SetDefault("logging.include_pid", false)

	v.SetDefault("metrics.enabled", true)
}

// Load reads configuration from path (may be empty) and the environment,
// then validates it. A missing or unparsable file is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PDNSADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates and normalizes the configuration.
func (cfg *Config) Validate() error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return errors.New("server.port must be 1..65535")
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	cfg.Database.Type = strings.ToLower(strings.TrimSpace(cfg.Database.Type))
	switch cfg.Database.Type {
	case "", DatabaseSQLite, "sqlite3":
		cfg.Database.Type = DatabaseSQLite
	case DatabasePostgres, "postgres", "postgresql":
		cfg.Database.Type = DatabasePostgres
	default:
		return fmt.Errorf("database.type must be %q or %q", DatabaseSQLite, DatabasePostgres)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}

	cfg.PdnsAPI.URL = strings.TrimRight(strings.TrimSpace(cfg.PdnsAPI.URL), "/")
	if cfg.PdnsAPI.ServerID == "" {
		cfg.PdnsAPI.ServerID = "localhost"
	}
	if cfg.PdnsAPI.Timeout <= 0 {
		cfg.PdnsAPI.Timeout = 10 * time.Second
	}
	if cfg.DNSSEC.Enabled && cfg.PdnsAPI.URL == "" {
		return errors.New("pdns_api.url is required when dnssec is enabled")
	}

	if cfg.DNS.TTL <= 0 {
		return errors.New("dns.ttl must be positive")
	}

	if cfg.API.BasicAuthRealm == "" {
		cfg.API.BasicAuthRealm = "Poweradmin API"
	}
	if cfg.API.MaxKeysPerUser <= 0 {
		cfg.API.MaxKeysPerUser = 5
	}

	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 30 * time.Minute
	}

	if cfg.Interface.RowsPerPage <= 0 {
		cfg.Interface.RowsPerPage = 10
	}

	// Normalize logging
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.StructuredFormat == "" {
		cfg.Logging.StructuredFormat = "json"
	}
	if cfg.Logging.ExtraFields == nil {
		cfg.Logging.ExtraFields = map[string]string{}
	}

	return nil
}
