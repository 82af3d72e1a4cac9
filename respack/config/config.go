package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	internal "github.com/ZanzyTHEbar/respack/respack"
	"github.com/ZanzyTHEbar/respack/respack/common"
	"github.com/ZanzyTHEbar/respack/respack/resource"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Pack PackConfig `mapstructure:"pack"`
	Log  LogConfig  `mapstructure:"log"`
}

// PackConfig describes one packaging run.
type PackConfig struct {
	Inputs       []string `mapstructure:"inputs"`
	Output       string   `mapstructure:"output"`
	PackageName  string   `mapstructure:"packageName"`
	ModuleName   string   `mapstructure:"moduleName"`
	ModuleNames  []string `mapstructure:"moduleNames"`
	StartID      string   `mapstructure:"startId"` // hex, e.g. 0x01000000
	IDDefined    string   `mapstructure:"idDefined"`
	SysIDDefined string   `mapstructure:"sysIdDefined"`
	Headers      []string `mapstructure:"headers"`
	Threads      int      `mapstructure:"threads"`
	ForceWrite   bool     `mapstructure:"forceWrite"`
	Overlap      bool     `mapstructure:"overlap"`
	Append       bool     `mapstructure:"append"`
	Combine      bool     `mapstructure:"combine"`
	// DependEntry is the build output of the entry module a feature module depends on.
	DependEntry string `mapstructure:"dependEntry"`
	// DependIDs lists ids of DependEntry's index imported into this build, hex.
	DependIDs []string `mapstructure:"dependIds"`
	IgnoredFiles []string `mapstructure:"ignoredFiles"`
	// CacheDir holds the id cache, relative to Output unless absolute.
	CacheDir string `mapstructure:"cacheDir"`
}

// LogConfig stores logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.SetConfigName(internal.DefaultConfigName)
		v.SetConfigType("yaml")
	}

	v.SetDefault("pack.threads", internal.DefaultPoolSize)
	v.SetDefault("pack.cacheDir", internal.CachesDir)
	v.SetDefault("pack.headers", []string{})
	v.SetDefault("pack.inputs", []string{})
	v.SetDefault("pack.output", "")
	v.SetDefault("pack.packageName", "")
	v.SetDefault("pack.moduleName", "")
	v.SetDefault("pack.startId", "")
	v.SetDefault("pack.idDefined", "")
	v.SetDefault("pack.sysIdDefined", "")
	v.SetDefault("pack.forceWrite", false)
	v.SetDefault("pack.overlap", false)
	v.SetDefault("pack.append", false)
	v.SetDefault("pack.combine", false)
	v.SetDefault("pack.dependEntry", "")
	v.SetDefault("pack.dependIds", []string{})
	v.SetDefault("log.level", internal.DefaultLogLevel)

	v.SetEnvPrefix(internal.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // pack.output -> RESPACK_PACK_OUTPUT
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	AppConfig = cfg
	return &cfg, nil
}

// StartIDValue parses StartID; an empty value yields 0.
func (c PackConfig) StartIDValue() (int64, error) {
	if c.StartID == "" {
		return 0, nil
	}
	return parseHexID("start id", c.StartID)
}

// DependIDValues parses DependIDs.
func (c PackConfig) DependIDValues() ([]int64, error) {
	ids := make([]int64, 0, len(c.DependIDs))
	for _, raw := range c.DependIDs {
		id, err := parseHexID("depend id", raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Mode returns the pack mode selected by Overlap and Append.
func (c PackConfig) Mode() resource.PackMode {
	switch {
	case c.Append:
		return resource.PackAppend
	case c.Overlap:
		return resource.PackOverlap
	default:
		return resource.PackNormal
	}
}

func parseHexID(what, raw string) (int64, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	id, err := strconv.ParseInt(s, 16, 64)
	if err != nil || id <= 0 {
		return 0, common.NewConfigurationError("%s '%s' is not a positive hex number", what, raw)
	}
	return id, nil
}

// CachePath returns the id cache document location.
func (c PackConfig) CachePath() string {
	dir := c.CacheDir
	if dir == "" {
		dir = internal.CachesDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.Output, dir)
	}
	return filepath.Join(dir, internal.IDDefinedFile)
}

// Validate checks option combinations before a build starts.
func (c PackConfig) Validate() error {
	switch {
	case len(c.Inputs) == 0:
		return common.NewConfigurationError("at least one input is required")
	case c.Output == "":
		return common.NewConfigurationError("output is required")
	case c.PackageName == "":
		return common.NewConfigurationError("package name is required")
	case c.Threads < 0:
		return common.NewConfigurationError("threads must not be negative, got %d", c.Threads)
	case c.StartID != "" && c.IDDefined != "":
		return common.NewConfigurationError("the start id and %s cannot be used together", c.IDDefined)
	case c.Overlap && c.Append:
		return common.NewConfigurationError("overlap and append cannot be used together")
	case len(c.DependIDs) > 0 && c.DependEntry == "":
		return common.NewConfigurationError("depend ids need a depend entry")
	}
	if _, err := c.StartIDValue(); err != nil {
		return err
	}
	if _, err := c.DependIDValues(); err != nil {
		return err
	}
	if len(c.ModuleNames) > 0 && c.ModuleName != "" && !slices.Contains(c.ModuleNames, c.ModuleName) {
		return common.NewConfigurationError("module name '%s' is not in %v", c.ModuleName, c.ModuleNames)
	}
	return nil
}
