package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"courier/pkg/logger"
)

// EffectiveConfigResult is the merged view of file, env and flags that the
// rest of the server consumes.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	// Source names the winning origin for addr/db: "flags", "env" or
	// "config".
	Source string
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// ResolveConfigPath picks the config path: an explicitly-set flag wins,
// then COURIER_CONFIG, then the flag default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if p := os.Getenv("COURIER_CONFIG"); p != "" {
		return p
	}
	return flagVal
}

// LoadEffective loads the config file (tolerating a missing file) and
// overlays environment variables. Flag precedence is applied by the caller,
// which knows which flags were explicitly set.
func LoadEffective(path string) (EffectiveConfigResult, error) {
	cfg, err := Load(path)
	source := "config"
	if err != nil {
		if !os.IsNotExist(err) && !strings.Contains(err.Error(), "not found") {
			return EffectiveConfigResult{}, err
		}
		logger.Warn("config_file_missing", "path", path)
		cfg = &Config{}
		source = "defaults"
	}

	envUsed := applyEnv(cfg)
	if envUsed {
		source = "env"
	}

	return EffectiveConfigResult{
		Config: cfg,
		Addr:   cfg.Addr(),
		DBPath: cfg.Server.DBPath,
		Source: source,
	}, nil
}

// applyEnv overlays COURIER_* environment variables onto cfg and reports
// whether any were present.
func applyEnv(cfg *Config) bool {
	used := false
	if v := os.Getenv("COURIER_ADDR"); v != "" {
		used = true
		host, port, ok := strings.Cut(v, ":")
		if ok {
			cfg.Server.Address = host
			if p, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = p
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("COURIER_DB_PATH"); v != "" {
		used = true
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("COURIER_TOKEN_SECRET"); v != "" {
		used = true
		cfg.Security.Token.Secret = v
	}
	if v := os.Getenv("COURIER_ADMIN_EMAILS"); v != "" {
		used = true
		cfg.Security.AdminEmails = cfg.Security.AdminEmails[:0]
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				cfg.Security.AdminEmails = append(cfg.Security.AdminEmails, e)
			}
		}
	}
	if v := os.Getenv("COURIER_RECONCILE_CRON"); v != "" {
		used = true
		cfg.Reconcile.Enabled = true
		cfg.Reconcile.Cron = v
	}
	if v := os.Getenv("COURIER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return used
}
