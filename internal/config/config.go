// Package config loads sqlclause settings with precedence
// flags > env > config file > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/sqlclause/internal/clause"
	"github.com/roach88/sqlclause/internal/store"
)

const (
	envPrefix    = "SQLCLAUSE"
	maxWalkDepth = 25
)

// ConfigNames are the file names searched for, in order.
var ConfigNames = []string{"sqlclause.yaml", "sqlclause.yml"}

// Config is the resolved configuration.
type Config struct {
	// Dialect renders statements for `render` when no database is set.
	Dialect  string       `mapstructure:"dialect"`
	SpecsDir string       `mapstructure:"specs_dir"`
	Database store.Config `mapstructure:"database"`
}

// FlagKeys maps command-line flag names to config keys. Flags present in
// Loader.Flags and changed by the user override every other source.
var FlagKeys = map[string]string{
	"dialect": "dialect",
	"driver":  "database.driver",
	"dsn":     "database.dsn",
}

// Loader reads configuration from a filesystem. The zero value uses the
// OS filesystem and the process working directory.
type Loader struct {
	Fs    afero.Fs
	Dir   string
	Flags *pflag.FlagSet
}

// Load is Loader{}.Load.
func Load(explicitPath string) (*Config, string, error) {
	return Loader{}.Load(explicitPath)
}

// Load discovers the config file, applies .env files, then unmarshals.
// It returns the config and the file it came from (empty if none).
func (l Loader) Load(explicitPath string) (*Config, string, error) {
	fs := l.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	dir := l.Dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, "", fmt.Errorf("getting cwd: %w", err)
		}
		dir = cwd
	}

	if err := loadDotenv(fs, dir); err != nil {
		return nil, "", err
	}

	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindFlags(v, l.Flags); err != nil {
		return nil, "", err
	}

	configPath, err := findConfigFile(fs, dir, explicitPath)
	if err != nil {
		return nil, "", err
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Check(); err != nil {
		return nil, configPath, err
	}
	return &cfg, configPath, nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range FlagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dialect", string(clause.SQLite))
	v.SetDefault("specs_dir", "specs")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.conn_max_lifetime", "0s")
}

// loadDotenv applies .env then .env.local from dir. Variables already in
// the environment win over .env; .env.local overrides both.
func loadDotenv(fs afero.Fs, dir string) error {
	for _, f := range []struct {
		name     string
		override bool
	}{
		{".env", false},
		{".env.local", true},
	} {
		path := filepath.Join(dir, f.name)
		file, err := fs.Open(path)
		if err != nil {
			continue
		}
		vars, err := godotenv.Parse(file)
		file.Close()
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		for k, val := range vars {
			if _, set := os.LookupEnv(k); set && !f.override {
				continue
			}
			os.Setenv(k, val)
		}
	}
	return nil
}

// findConfigFile walks up from dir looking for ConfigNames, stopping at a
// .git entry or after maxWalkDepth levels.
func findConfigFile(fs afero.Fs, dir, explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := fs.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	for i := 0; i < maxWalkDepth; i++ {
		for _, name := range ConfigNames {
			path := filepath.Join(dir, name)
			if _, err := fs.Stat(path); err == nil {
				return path, nil
			}
		}
		if _, err := fs.Stat(filepath.Join(dir, ".git")); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

// Check rejects unknown dialects and drivers.
func (c *Config) Check() error {
	if _, err := clause.ParseDialect(c.Dialect); err != nil {
		return fmt.Errorf("dialect: %w", err)
	}
	if _, err := store.DialectFor(c.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	return nil
}

// StoreConfig returns the database section, requiring a DSN.
func (c *Config) StoreConfig() (store.Config, error) {
	sc := c.Database
	if sc.DSN == "" {
		return store.Config{}, fmt.Errorf("database.dsn is required")
	}
	return sc, nil
}

// DialectValue returns the parsed dialect.
func (c *Config) DialectValue() clause.Dialect {
	d, _ := clause.ParseDialect(c.Dialect)
	return d
}
