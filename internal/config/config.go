package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	Timeout        string
	ConfirmTimeout string
	RPCURL         string
	Account        string
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	Timeout        time.Duration
	ConfirmTimeout time.Duration

	ChainName     string
	RPCURL        string
	SS58Network   uint16
	TokenSymbol   string
	TokenDecimals int

	Account string

	StorePath     string
	StoreLockPath string
	SnapshotTTL   time.Duration
}

type fileConfig struct {
	Output         string `yaml:"output"`
	Timeout        string `yaml:"timeout"`
	ConfirmTimeout string `yaml:"confirm_timeout"`
	Account        string `yaml:"account"`
	Chain          struct {
		Name          string `yaml:"name"`
		RPCURL        string `yaml:"rpc_url"`
		SS58Network   *int   `yaml:"ss58_network"`
		TokenSymbol   string `yaml:"token_symbol"`
		TokenDecimals *int   `yaml:"token_decimals"`
	} `yaml:"chain"`
	Store struct {
		Path        string `yaml:"path"`
		LockPath    string `yaml:"lock_path"`
		SnapshotTTL string `yaml:"snapshot_ttl"`
	} `yaml:"store"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.ConfirmTimeout <= 0 {
		settings.ConfirmTimeout = 4 * time.Minute
	}
	if settings.SnapshotTTL <= 0 {
		settings.SnapshotTTL = 5 * time.Minute
	}
	if settings.TokenDecimals <= 0 {
		settings.TokenDecimals = 12
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	storePath, lockPath, err := defaultStorePaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:     "json",
		Timeout:        30 * time.Second,
		ConfirmTimeout: 4 * time.Minute,
		ChainName:      "westend",
		RPCURL:         "wss://westend-rpc.polkadot.io",
		SS58Network:    42,
		TokenSymbol:    "WND",
		TokenDecimals:  12,
		StorePath:      storePath,
		StoreLockPath:  lockPath,
		SnapshotTTL:    5 * time.Minute,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "stakectl", "config.yaml"), nil
}

func defaultStorePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "stakectl")
	return filepath.Join(dir, "store.db"), filepath.Join(dir, "store.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.ConfirmTimeout != "" {
		d, err := time.ParseDuration(cfg.ConfirmTimeout)
		if err != nil {
			return fmt.Errorf("config confirm_timeout: %w", err)
		}
		settings.ConfirmTimeout = d
	}
	if cfg.Account != "" {
		settings.Account = cfg.Account
	}
	if cfg.Chain.Name != "" {
		settings.ChainName = strings.ToLower(cfg.Chain.Name)
	}
	if cfg.Chain.RPCURL != "" {
		settings.RPCURL = cfg.Chain.RPCURL
	}
	if cfg.Chain.SS58Network != nil {
		if *cfg.Chain.SS58Network < 0 || *cfg.Chain.SS58Network > 16383 {
			return fmt.Errorf("config chain.ss58_network out of range")
		}
		settings.SS58Network = uint16(*cfg.Chain.SS58Network)
	}
	if cfg.Chain.TokenSymbol != "" {
		settings.TokenSymbol = cfg.Chain.TokenSymbol
	}
	if cfg.Chain.TokenDecimals != nil {
		settings.TokenDecimals = *cfg.Chain.TokenDecimals
	}
	if cfg.Store.Path != "" {
		settings.StorePath = cfg.Store.Path
	}
	if cfg.Store.LockPath != "" {
		settings.StoreLockPath = cfg.Store.LockPath
	}
	if cfg.Store.SnapshotTTL != "" {
		d, err := time.ParseDuration(cfg.Store.SnapshotTTL)
		if err != nil {
			return fmt.Errorf("config store.snapshot_ttl: %w", err)
		}
		settings.SnapshotTTL = d
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("STAKECTL_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("STAKECTL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("STAKECTL_CONFIRM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.ConfirmTimeout = d
		}
	}
	if v := os.Getenv("STAKECTL_RPC_URL"); v != "" {
		settings.RPCURL = v
	}
	if v := os.Getenv("STAKECTL_ACCOUNT"); v != "" {
		settings.Account = v
	}
	if v := os.Getenv("STAKECTL_SS58_NETWORK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 16383 {
			settings.SS58Network = uint16(n)
		}
	}
	if v := os.Getenv("STAKECTL_STORE_PATH"); v != "" {
		settings.StorePath = v
	}
	if v := os.Getenv("STAKECTL_STORE_LOCK_PATH"); v != "" {
		settings.StoreLockPath = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		parts := strings.Split(flags.Select, ",")
		fields := make([]string, 0, len(parts))
		for _, part := range parts {
			f := strings.TrimSpace(part)
			if f != "" {
				fields = append(fields, f)
			}
		}
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.ConfirmTimeout != "" {
		d, err := time.ParseDuration(flags.ConfirmTimeout)
		if err != nil {
			return fmt.Errorf("parse --confirm-timeout: %w", err)
		}
		settings.ConfirmTimeout = d
	}
	if strings.TrimSpace(flags.RPCURL) != "" {
		settings.RPCURL = strings.TrimSpace(flags.RPCURL)
	}
	if strings.TrimSpace(flags.Account) != "" {
		settings.Account = strings.TrimSpace(flags.Account)
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
