package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	configDir  = ".pgkksql"
	configFile = "config"
	configType = "yaml"

	// DefaultRowLimit is appended to SELECTs that carry no LIMIT of their own.
	DefaultRowLimit = 1000
)

// Preferences holds user preferences.
type Preferences struct {
	Query    QueryPreferences   `mapstructure:"query"`
	Profiles ProfilePreferences `mapstructure:"profiles"`
	Log      LogPreferences     `mapstructure:"log"`
	UI       UIPreferences      `mapstructure:"ui"`
}

type QueryPreferences struct {
	RowLimit     int  `mapstructure:"row_limit"`
	LimitEnabled bool `mapstructure:"limit_enabled"`
}

type ProfilePreferences struct {
	Path       string `mapstructure:"path"`
	UseKeyring bool   `mapstructure:"use_keyring"`
}

type LogPreferences struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type UIPreferences struct {
	Theme string `mapstructure:"theme"`
}

// Load reads preferences from path, or from ~/.pgkksql/config.yaml when path
// is empty. A missing file yields the defaults.
func Load(path string) (*Preferences, error) {
	dir, err := DirPath()
	if err != nil {
		return nil, fmt.Errorf("config dir: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFile)
		v.SetConfigType(configType)
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("PGKKSQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("query.row_limit", DefaultRowLimit)
	v.SetDefault("query.limit_enabled", true)
	v.SetDefault("profiles.path", filepath.Join(dir, "connections.yaml"))
	v.SetDefault("profiles.use_keyring", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dir, "pgkksql.log"))
	v.SetDefault("ui.theme", "default")

	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	prefs := &Preferences{}
	if err := v.Unmarshal(prefs); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if prefs.Query.RowLimit <= 0 {
		prefs.Query.RowLimit = DefaultRowLimit
	}

	return prefs, nil
}

// Defaults returns the preferences used when no config file can be read.
func Defaults() *Preferences {
	dir, err := DirPath()
	if err != nil {
		dir = os.TempDir()
	}
	return &Preferences{
		Query:    QueryPreferences{RowLimit: DefaultRowLimit, LimitEnabled: true},
		Profiles: ProfilePreferences{Path: filepath.Join(dir, "connections.yaml")},
		Log:      LogPreferences{Level: "info", File: filepath.Join(dir, "pgkksql.log")},
		UI:       UIPreferences{Theme: "default"},
	}
}

// DirPath returns ~/.pgkksql.
func DirPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}

// isNotFound reports whether err means the config file is absent. viper
// returns ConfigFileNotFoundError only for search paths; an explicit file
// surfaces the os error instead.
func isNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf) || errors.Is(err, fs.ErrNotExist)
}
