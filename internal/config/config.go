// Package config loads server and CLI settings from an optional config file,
// a .env file and QCHEM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mmynk/qchemaxis/internal/auth"
)

// EnvPrefix prefixes every environment variable, e.g. QCHEM_JWT_SECRET.
const EnvPrefix = "QCHEM"

type Config struct {
	Server   ServerSettings   `mapstructure:"server"`
	Database DatabaseSettings `mapstructure:"database"`
	JWT      JWTSettings      `mapstructure:"jwt"`
	Security SecuritySettings `mapstructure:"security"`
	Admin    AdminSettings    `mapstructure:"admin"`
	Log      LogSettings      `mapstructure:"log"`
}

type ServerSettings struct {
	Address     string   `mapstructure:"address"`
	Port        int      `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`
	DevMode     bool     `mapstructure:"dev_mode"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ListenAddr returns host:port.
func (s ServerSettings) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

type DatabaseSettings struct {
	Path string `mapstructure:"path"`
}

type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type SecuritySettings struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// AdminSettings lists the accounts allowed on admin endpoints. Empty means
// every authenticated user.
type AdminSettings struct {
	Emails []string `mapstructure:"emails"`
}

type LogSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var keys = []string{
	"server.address",
	"server.port",
	"server.mode",
	"server.dev_mode",
	"server.cors_origins",
	"database.path",
	"jwt.secret",
	"jwt.ttl",
	"security.bcrypt_cost",
	"admin.emails",
	"log.level",
	"log.format",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("database.path", "./data/qchemaxis.db")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.ttl", auth.DefaultTokenDuration)
	v.SetDefault("security.bcrypt_cost", 10)
	v.SetDefault("admin.emails", []string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. A .env file in the working directory is loaded
// first if present; path names an optional YAML file. Environment variables
// override both.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	setDefaults(v)

	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, fmt.Errorf("jwt.secret is required (set %s_JWT_SECRET)", EnvPrefix))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, fmt.Errorf("jwt.ttl must be positive, got %s", c.JWT.TTL))
	}
	if c.Security.BcryptCost < auth.MinBcryptCost {
		errs = append(errs, fmt.Errorf("security.bcrypt_cost must be at least %d, got %d", auth.MinBcryptCost, c.Security.BcryptCost))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	return errors.Join(errs...)
}
