// Package config loads the potledger TOML configuration.
package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"potledger/internal/models"
	"potledger/internal/services"
	"potledger/internal/store"
)

// Config is the root of the configuration file.
type Config struct {
	Server     Server      `toml:"server"`
	Log        Log         `toml:"log"`
	Store      Store       `toml:"store"`
	Pool       Pool        `toml:"pool"`
	Metrics    Metrics     `toml:"metrics"`
	Principals []Principal `toml:"principals"`
	Genesis    []Genesis   `toml:"genesis"`
}

type Server struct {
	Listen string `toml:"listen"`
	Mode   string `toml:"mode"` // gin mode: debug, release or test
}

type Log struct {
	File       string `toml:"file"`
	Verbose    bool   `toml:"verbose"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

type Store struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
}

// Pool describes the pool's identities and fee policy.
type Pool struct {
	Admin      string `toml:"admin"`
	Asset      string `toml:"asset"`
	Decimals   int32  `toml:"decimals"`
	FeePercent uint64 `toml:"fee_percent"`
	RoundVault string `toml:"round_vault"`
	PrizeVault string `toml:"prize_vault"`
	House      string `toml:"house"`
	Treasury   string `toml:"treasury"`
}

type Metrics struct {
	ReportInterval duration `toml:"report_interval"`
}

// Principal maps a bearer token to a caller identity.
type Principal struct {
	Name  string `toml:"name"`
	Token string `toml:"token"`
}

// Genesis funds a custody account at startup.
type Genesis struct {
	Account string `toml:"account"`
	Balance uint64 `toml:"balance"`
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Default returns a configuration that runs entirely in memory.
func Default() *Config {
	return &Config{
		Server: Server{Listen: ":8080", Mode: "release"},
		Log:    Log{MaxSizeMB: 100, MaxBackups: 5},
		Store:  Store{Driver: store.MemoryDriver},
		Pool: Pool{
			Asset:      "SOL",
			Decimals:   9,
			FeePercent: services.DefaultFeePercent,
			RoundVault: "round-vault",
			PrizeVault: "prize-vault",
		},
		Metrics: Metrics{ReportInterval: duration{10 * time.Minute}},
	}
}

// Load decodes the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Errorf("%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return errors.Errorf("server.mode %q is not one of %s, %s, %s",
			c.Server.Mode, gin.DebugMode, gin.ReleaseMode, gin.TestMode)
	}
	known := false
	for _, d := range store.Drivers() {
		known = known || d == c.Store.Driver
	}
	if !known {
		return errors.Errorf("store.driver %q is not one of %s", c.Store.Driver, strings.Join(store.Drivers(), ", "))
	}
	if c.Store.Driver != store.MemoryDriver && c.Store.Path == "" {
		return errors.Errorf("store.path is required for the %s driver", c.Store.Driver)
	}
	if c.Pool.FeePercent > 100 {
		return errors.Errorf("pool.fee_percent %d is above 100", c.Pool.FeePercent)
	}
	if c.Pool.Decimals < 0 || c.Pool.Decimals > 18 {
		return errors.Errorf("pool.decimals %d out of range", c.Pool.Decimals)
	}
	if c.Metrics.ReportInterval.Duration < 0 {
		return errors.New("metrics.report_interval must not be negative")
	}

	if t := c.Pool.Treasury; t != "" && (t == c.Pool.RoundVault || t == c.Pool.PrizeVault) {
		return errors.Errorf("pool.treasury %q is a pool vault", t)
	}
	reserved := c.Pool.accountNames()
	seen := make(map[string]bool)
	for i, p := range c.Principals {
		if p.Name == "" || p.Token == "" {
			return errors.Errorf("principals[%d] needs a name and a token", i)
		}
		if key, ok := reserved[p.Name]; ok {
			return errors.Errorf("principals[%d]: name %q is the %s account", i, p.Name, key)
		}
		if seen[p.Token] {
			return errors.Errorf("principals[%d]: token reused", i)
		}
		seen[p.Token] = true
	}
	for i, g := range c.Genesis {
		if g.Account == "" {
			return errors.Errorf("genesis[%d] needs an account", i)
		}
	}
	return nil
}

// accountNames maps each configured custody account to its config key.
// Callers must never authenticate as one of them.
func (p Pool) accountNames() map[string]string {
	names := make(map[string]string)
	for key, name := range map[string]string{
		"pool.round_vault": p.RoundVault,
		"pool.prize_vault": p.PrizeVault,
		"pool.house":       p.House,
		"pool.treasury":    p.Treasury,
	} {
		if name != "" {
			names[name] = key
		}
	}
	return names
}

// FeePolicy returns the pool's fee policy.
func (p Pool) FeePolicy() services.FeePolicy {
	return services.FeePolicy{Percent: p.FeePercent, House: models.PrincipalID(p.House)}
}

// Accounts returns the custody account layout.
func (p Pool) Accounts() services.Accounts {
	return services.Accounts{
		RoundVault: models.PrincipalID(p.RoundVault),
		PrizeVault: models.PrincipalID(p.PrizeVault),
		Treasury:   models.PrincipalID(p.Treasury),
	}
}
