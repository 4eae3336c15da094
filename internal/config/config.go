package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes environment overrides, e.g. TEXTPIPE_BATCH_THREADS.
const EnvPrefix = "TEXTPIPE"

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a config manager and loads the initial config.
// cfgFile takes precedence; otherwise config.yaml is searched for in the
// working directory and then in homeDir.
func NewManager(cfgFile, homeDir string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile, homeDir); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile, homeDir string) error {
	defaults := DefaultConfig()
	cm.v.SetDefault("annotators", defaults.Annotators)
	cm.v.SetDefault("enforce_requirements", defaults.EnforceRequirements)
	// Leaf defaults so a file's stages map adds to them instead of replacing them.
	for stage, opts := range defaults.Stages {
		for key, value := range opts {
			cm.v.SetDefault("stages."+stage+"."+key, value)
		}
	}
	cm.v.SetDefault("batch.output_directory", defaults.Batch.OutputDirectory)
	cm.v.SetDefault("batch.input_directory", defaults.Batch.InputDirectory)
	cm.v.SetDefault("batch.output_format", defaults.Batch.OutputFormat)
	cm.v.SetDefault("batch.output_extension", defaults.Batch.OutputExtension)
	cm.v.SetDefault("batch.replace_extension", defaults.Batch.ReplaceExtension)
	cm.v.SetDefault("batch.no_clobber", defaults.Batch.NoClobber)
	cm.v.SetDefault("batch.randomize", defaults.Batch.Randomize)
	cm.v.SetDefault("batch.seed", defaults.Batch.Seed)
	cm.v.SetDefault("batch.continue_on_error", defaults.Batch.ContinueOnError)
	cm.v.SetDefault("batch.threads", defaults.Batch.Threads)
	cm.v.SetDefault("batch.exclude_files", defaults.Batch.ExcludeFiles)
	cm.v.SetDefault("batch.extension", defaults.Batch.Extension)
	cm.v.SetDefault("batch.serializer", defaults.Batch.Serializer)
	cm.v.SetDefault("batch.input_serializer", defaults.Batch.InputSerializer)
	cm.v.SetDefault("batch.output_serializer", defaults.Batch.OutputSerializer)
	cm.v.SetDefault("batch.pdftotext", defaults.Batch.PDFToText)
	cm.v.SetDefault("index.path", defaults.Index.Path)

	// Environment variables with TEXTPIPE_ prefix
	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		if homeDir != "" {
			cm.v.AddConfigPath(homeDir)
		}
	}

	// Try to read config file (not required)
	if err := cm.v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConfigFile returns the config file in use, or "" when running on defaults.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// BindPFlag makes a command-line flag override key when it is set.
func (cm *Manager) BindPFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: nil flag", key)
	}
	return cm.v.BindPFlag(key, flag)
}

// Reload re-reads the bound flags and environment into a fresh Config.
func (cm *Manager) Reload() (*Config, error) {
	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.mu.Lock()
	cm.config = cfg
	cm.mu.Unlock()
	return cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. Invalid edits are
// logged and the previous config stays in effect.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			slog.Warn("ignoring invalid config change", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# textpipe configuration
# Stage options live under stages.<stage>.<option>.
# Secrets use ${ENV_VAR} syntax, e.g. export OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
