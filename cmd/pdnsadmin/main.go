package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jroosing/pdnsadmin/internal/config"
	"github.com/jroosing/pdnsadmin/internal/logging"
	"github.com/jroosing/pdnsadmin/internal/server"
)

// overrides are command line settings that take precedence over the
// configuration file and environment.
type overrides struct {
	host      string
	port      int
	dsn       string
	dbType    string
	redisAddr string
	pdnsURL   string
	dnssec    bool
	jsonLogs  bool
	debug     bool
}

// apply copies the non-zero overrides into cfg. A postgres:// DSN selects
// the pgsql backend unless a type is given explicitly.
func (o overrides) apply(cfg *config.Config) {
	if o.host != "" {
		cfg.Server.Host = o.host
	}
	if o.port != 0 {
		cfg.Server.Port = o.port
	}
	if o.dsn != "" {
		cfg.Database.DSN = o.dsn
		if o.dbType == "" {
			if strings.HasPrefix(o.dsn, "postgres://") || strings.HasPrefix(o.dsn, "postgresql://") {
				cfg.Database.Type = config.DatabasePostgres
			} else {
				cfg.Database.Type = config.DatabaseSQLite
			}
		}
	}
	if o.dbType != "" {
		cfg.Database.Type = o.dbType
	}
	if o.redisAddr != "" {
		cfg.Session.RedisAddr = o.redisAddr
	}
	if o.pdnsURL != "" {
		cfg.PdnsAPI.URL = o.pdnsURL
	}
	if o.dnssec {
		cfg.DNSSEC.Enabled = true
	}
	if o.jsonLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}
	if o.debug {
		cfg.Logging.Level = "DEBUG"
	}
}

func main() {
	var o overrides
	configPath := flag.String("config", "", "Path to YAML configuration file (or set PDNSADMIN_CONFIG)")
	flag.StringVar(&o.host, "host", "", "Override bind host")
	flag.IntVar(&o.port, "port", 0, "Override bind port")
	flag.StringVar(&o.dsn, "db", "", "Override database DSN (SQLite path or postgres:// URL)")
	flag.StringVar(&o.dbType, "db-type", "", "Override database type (sqlite or pgsql)")
	flag.StringVar(&o.redisAddr, "redis", "", "Store sessions in Redis at host:port")
	flag.StringVar(&o.pdnsURL, "pdns-url", "", "Override PowerDNS API URL")
	flag.BoolVar(&o.dnssec, "dnssec", false, "Enable DNSSEC management")
	flag.BoolVar(&o.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	flag.BoolVar(&o.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(config.ResolveConfigPath(*configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	o.apply(cfg)

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})
	logger.Info("pdnsadmin starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"database", cfg.Database.Type,
		"dnssec", cfg.DNSSEC.Enabled,
	)

	if err := server.NewRunner(logger).Run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "server exited with error: %v\n", err)
		os.Exit(1)
	}
}
