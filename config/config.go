package config

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quickchat-app/quickchat/globals"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultRecentLimit    = 50
	defaultMaxUsers       = 50
	defaultMaxMessageLen  = 2000
	defaultEditWindow     = 5 * time.Minute
	defaultTypingExpiry   = 10 * time.Second
	defaultTypingSweep    = "@every 5s"
	defaultUploadDir      = "public/uploads"
	defaultMaxUploadBytes = 10 << 20
)

var defaultUploadTypes = []string{
	"image/jpeg", "image/png", "image/gif", "image/webp",
	"video/mp4", "video/webm",
}

// Config is the global configuration object which is filled via the
// configuration file, environment (prefix QCHAT) and command-line flags.
type Config struct {
	HistoryConfig     HistoryConfig     `mapstructure:"history"`
	MessagesConfig    MessagesConfig    `mapstructure:"messages"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	UploadsConfig     UploadsConfig     `mapstructure:"uploads"`
	RoomConfig        RoomConfig        `mapstructure:"room"`
	LogLevel          string            `mapstructure:"log_level"`
}

// HistoryConfig configures how many persisted messages are replayed to a
// newly joined connection.
type HistoryConfig struct {
	RecentLimit int `mapstructure:"recent_limit"`
}

// MessagesConfig configures message lifecycle policy: the edit window, the
// server-side typing expiry and the maximum body length.
type MessagesConfig struct {
	EditWindow   time.Duration `mapstructure:"edit_window"`
	TypingExpiry time.Duration `mapstructure:"typing_expiry"`
	TypingSweep  string        `mapstructure:"typing_sweep"` // cron spec
	MaxLength    int           `mapstructure:"max_length"`
}

// PersistenceConfig configures the persistence backend. Type is one of
// "buntdb", "sqlite" or "postgres", DSN is the file name resp. connection
// string (":memory:" is valid for buntdb and sqlite).
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// UploadsConfig configures the file upload boundary.
type UploadsConfig struct {
	Dir          string   `mapstructure:"dir"`
	MaxBytes     int64    `mapstructure:"max_bytes"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// RoomConfig configures defaults applied to newly created rooms.
type RoomConfig struct {
	MaxUsers int `mapstructure:"max_users"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.StringP("log-level", "l", "", "log level (TRACE/DEBUG/INFO/WARN/ERROR)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. It returns a Config
// object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("log_level", "INFO")
	viper.SetDefault("history.recent_limit", defaultRecentLimit)
	viper.SetDefault("messages.edit_window", defaultEditWindow)
	viper.SetDefault("messages.typing_expiry", defaultTypingExpiry)
	viper.SetDefault("messages.typing_sweep", defaultTypingSweep)
	viper.SetDefault("messages.max_length", defaultMaxMessageLen)
	viper.SetDefault("persistence.type", "buntdb")
	viper.SetDefault("persistence.dsn", ":memory:")
	viper.SetDefault("uploads.dir", defaultUploadDir)
	viper.SetDefault("uploads.max_bytes", defaultMaxUploadBytes)
	viper.SetDefault("uploads.allowed_types", defaultUploadTypes)
	viper.SetDefault("room.max_users", defaultMaxUsers)
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("QCHAT")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := ioutil.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	globals.AppLogger.Debug("config", "cfg", cfg, "all", viper.AllSettings())
	return &cfg, nil
}
