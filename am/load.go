package am

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/teranos/batchwatch/errors"
)

// EnvPrefix prefixes every environment override (BATCHWATCH_REPORT_LOOKBACK_HOURS, ...)
const EnvPrefix = "BATCHWATCH"

// ConfigFileName is the file name searched for in each config location
const ConfigFileName = "am.toml"

// SystemConfigPath is the lowest-precedence config file
var SystemConfigPath = filepath.Join("/etc", "batchwatch", ConfigFileName)

var (
	globalConfig  *Config
	viperInstance *viper.Viper
	loadedFiles   []string

	// ConfigSources records which file each merged key came from during the last load
	ConfigSources = map[string]SourceInfo{}
)

// Load reads the batchwatch configuration, validates it and caches the result
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := initViper()

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}

	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	return initViper()
}

// LoadWithViper unmarshals and validates configuration from a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path, ignoring the
// other config locations and the environment
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid config in %s", configPath)
	}
	return config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viperInstance = nil
	loadedFiles = nil
	ConfigSources = map[string]SourceInfo{}
}

// LoadedFiles returns the config files merged by the last load, lowest precedence first
func LoadedFiles() []string {
	initViper()
	out := make([]string, len(loadedFiles))
	copy(out, loadedFiles)
	return out
}

// ActiveConfigFile returns the highest-precedence config file that was merged,
// or empty string when only defaults and environment are in effect
func ActiveConfigFile() string {
	files := LoadedFiles()
	if len(files) == 0 {
		return ""
	}
	return files[len(files)-1]
}

// initViper initializes Viper with configuration sources and defaults
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	// .env values never override variables already set in the environment
	loadDotEnv()

	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)

	SetDefaults(v)

	// Precedence (lowest to highest): system < user < project < env vars
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

func loadDotEnv() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
}

// findProjectConfig searches for am.toml by walking up the directory tree.
// Returns the path to the first config file found, or empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// UserConfigPath returns ~/.batchwatch/am.toml
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".batchwatch", ConfigFileName)
}

// mergeConfigFiles merges configuration files in precedence order and records
// the source of every key it sets
func mergeConfigFiles(v *viper.Viper) {
	type candidate struct {
		path   string
		source ConfigSource
	}

	candidates := []candidate{{SystemConfigPath, SourceSystem}}
	if user := UserConfigPath(); user != "" {
		candidates = append(candidates, candidate{user, SourceUser})
	}
	if project := findProjectConfig(); project != "" && project != UserConfigPath() {
		candidates = append(candidates, candidate{project, SourceProject})
	}

	for _, c := range candidates {
		if _, err := os.Stat(c.path); err != nil {
			continue
		}

		fileViper := viper.New()
		fileViper.SetConfigFile(c.path)
		fileViper.SetConfigType("toml")
		if err := fileViper.ReadInConfig(); err != nil {
			continue
		}

		// MergeConfigMap merges nested tables key by key and stays below the
		// environment in viper's precedence, unlike Set
		if err := v.MergeConfigMap(fileViper.AllSettings()); err != nil {
			continue
		}
		for _, key := range fileViper.AllKeys() {
			ConfigSources[key] = SourceInfo{Source: c.source, Path: c.path}
		}
		loadedFiles = append(loadedFiles, c.path)
	}
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	return initViper().Get(key)
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	return initViper().GetString(key)
}

// GetInt returns a configuration value as int using dot notation
func GetInt(key string) int {
	return initViper().GetInt(key)
}

// GetDatabaseSource returns the configured driver and data source
func GetDatabaseSource() (driver, source string, err error) {
	config, err := Load()
	if err != nil {
		return "", "", err
	}
	return config.Database.Driver, config.Database.DataSource(), nil
}
