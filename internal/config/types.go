package config

import "time"

// Database backends.
const (
	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "pgsql"
)

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host" json:"host"`
	Port int    `mapstructure:"port" json:"port"`
}

// DatabaseConfig selects the SQL backend.
//
// For sqlite the DSN is a file path. For pgsql it is a pgx connection string.
type DatabaseConfig struct {
	Type string `mapstructure:"type" json:"type"`
	DSN  string `mapstructure:"dsn" json:"-"`
}

// PdnsAPIConfig points at the PowerDNS HTTP API used for DNSSEC operations.
type PdnsAPIConfig struct {
	URL      string        `mapstructure:"url" json:"url"`
	ServerID string        `mapstructure:"server_id" json:"server_id"`
	Key      string        `mapstructure:"key" json:"-"`
	Timeout  time.Duration `mapstructure:"timeout" json:"timeout"`
}

// DNSSECConfig toggles DNSSEC features.
type DNSSECConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// DNSConfig holds the defaults used when new zones are created and the
// hostname validation switches.
type DNSConfig struct {
	Hostmaster       string `mapstructure:"hostmaster" json:"hostmaster"`
	NS1              string `mapstructure:"ns1" json:"ns1"`
	TTL              int    `mapstructure:"ttl" json:"ttl"`
	SOARefresh       int    `mapstructure:"soa_refresh" json:"soa_refresh"`
	SOARetry         int    `mapstructure:"soa_retry" json:"soa_retry"`
	SOAExpire        int    `mapstructure:"soa_expire" json:"soa_expire"`
	SOAMinimum       int    `mapstructure:"soa_minimum" json:"soa_minimum"`
	TopLevelTLDCheck bool   `mapstructure:"top_level_tld_check" json:"top_level_tld_check"`
	StrictTLDCheck   bool   `mapstructure:"strict_tld_check" json:"strict_tld_check"`
}

// APIConfig contains the public API switches.
type APIConfig struct {
	Enabled          bool   `mapstructure:"enabled" json:"enabled"`
	BasicAuthEnabled bool   `mapstructure:"basic_auth_enabled" json:"basic_auth_enabled"`
	BasicAuthRealm   string `mapstructure:"basic_auth_realm" json:"basic_auth_realm"`
	MaxKeysPerUser   int    `mapstructure:"max_keys_per_user" json:"max_keys_per_user"`
}

// SessionConfig controls the server-side session store.
//
// When RedisAddr is empty sessions and confirmation tokens are kept in memory.
type SessionConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr" json:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" json:"-"`
	RedisDB       int           `mapstructure:"redis_db" json:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl" json:"ttl"`
	CookieSecure  bool          `mapstructure:"cookie_secure" json:"cookie_secure"`
}

// InterfaceConfig holds UI/API behavior switches.
type InterfaceConfig struct {
	AddReverseRecord bool `mapstructure:"add_reverse_record" json:"add_reverse_record"`
	RowsPerPage      int  `mapstructure:"rows_per_page" json:"rows_per_page"`
	ShowSerial       bool `mapstructure:"show_serial" json:"show_serial"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level            string            `mapstructure:"level" json:"level"`
	Structured       bool              `mapstructure:"structured" json:"structured"`
	StructuredFormat string            `mapstructure:"structured_format" json:"structured_format"`
	IncludePID       bool              `mapstructure:"include_pid" json:"include_pid"`
	ExtraFields      map[string]string `mapstructure:"extra_fields" json:"extra_fields,omitempty"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" json:"server"`
	Database  DatabaseConfig  `mapstructure:"database" json:"database"`
	PdnsAPI   PdnsAPIConfig   `mapstructure:"pdns_api" json:"pdns_api"`
	DNSSEC    DNSSECConfig    `mapstructure:"dnssec" json:"dnssec"`
	DNS       DNSConfig       `mapstructure:"dns" json:"dns"`
	API       APIConfig       `mapstructure:"api" json:"api"`
	Session   SessionConfig   `mapstructure:"session" json:"session"`
	Interface InterfaceConfig `mapstructure:"interface" json:"interface"`
	Logging   LoggingConfig   `mapstructure:"logging" json:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" json:"metrics"`
}
