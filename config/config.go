package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/meysamhadeli/docai/providers"
	"github.com/meysamhadeli/docai/retry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version of the docai binary.
const Version = "1.0.0"

// ConfigFileName is looked up in the project directory with any viper supported extension.
const ConfigFileName = "docai-config"

// RetryConfig mirrors retry.Policy in the configuration file.
type RetryConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
}

// FileConfig is the content of a configuration file. Zero values mean "not set".
type FileConfig struct {
	Provider          string                                `mapstructure:"provider"`
	FallbackProvider  string                                `mapstructure:"fallback_provider"`
	Parallelism       int                                   `mapstructure:"parallelism"`
	DryRun            *bool                                 `mapstructure:"dry_run"`
	Theme             string                                `mapstructure:"theme"`
	LogLevel          string                                `mapstructure:"log_level"`
	CacheDir          string                                `mapstructure:"cache_dir"`
	BackupDir         string                                `mapstructure:"backup_dir"`
	RequestsPerMinute int                                   `mapstructure:"requests_per_minute"`
	Retry             RetryConfig                           `mapstructure:"retry"`
	Providers         map[string]providers.AIProviderConfig `mapstructure:"providers"`
}

// Config is the resolved configuration of a run.
type Config struct {
	Provider          string
	FallbackProvider  string
	Parallelism       int
	DryRun            bool
	Theme             string
	LogLevel          string
	CacheDir          string
	BackupDir         string
	RequestsPerMinute int
	Retry             RetryConfig
	Providers         map[string]providers.AIProviderConfig

	// Source is the configuration file that was read, if any.
	Source string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider:    "openai",
		Parallelism: 4,
		Theme:       "dracula",
		LogLevel:    "info",
		Retry: RetryConfig{
			MaxAttempts:       retry.DefaultMaxAttempts,
			InitialDelay:      retry.DefaultInitialDelay,
			BackoffMultiplier: retry.DefaultBackoffMultiplier,
		},
		Providers: map[string]providers.AIProviderConfig{
			"openai": {Provider: "openai", BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
			"ollama": {Provider: "ollama", BaseURL: "http://localhost:11434/api", Model: "llama3.1"},
		},
	}
}

// ProviderConfig returns the settings of the named provider.
func (c Config) ProviderConfig(name string) providers.AIProviderConfig {
	name = strings.ToLower(strings.TrimSpace(name))
	settings := c.Providers[name]
	if settings.Provider == "" {
		settings.Provider = name
	}
	return settings
}

// RetryPolicy converts the retry settings.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:       c.Retry.MaxAttempts,
		InitialDelay:      c.Retry.InitialDelay,
		BackoffMultiplier: c.Retry.BackoffMultiplier,
	}
}

// Validate rejects settings no run can work with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Provider) == "" {
		errs = append(errs, errors.New("provider must be set"))
	}
	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("requests_per_minute must not be negative, got %d", c.RequestsPerMinute))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.InitialDelay < 0 {
		errs = append(errs, fmt.Errorf("retry.initial_delay must not be negative, got %s", c.Retry.InitialDelay))
	}
	if c.Retry.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Errorf("retry.backoff_multiplier must be at least 1, got %g", c.Retry.BackoffMultiplier))
	}
	return errors.Join(errs...)
}

// Resolve merges defaults, the file and the environment. Each set file field
// replaces the default and each non empty environment variable replaces the file.
func Resolve(file FileConfig, env map[string]string) (Config, error) {
	cfg := Default()

	setString(&cfg.Provider, file.Provider)
	setString(&cfg.FallbackProvider, file.FallbackProvider)
	setInt(&cfg.Parallelism, file.Parallelism)
	if file.DryRun != nil {
		cfg.DryRun = *file.DryRun
	}
	setString(&cfg.Theme, file.Theme)
	setString(&cfg.LogLevel, file.LogLevel)
	setString(&cfg.CacheDir, file.CacheDir)
	setString(&cfg.BackupDir, file.BackupDir)
	setInt(&cfg.RequestsPerMinute, file.RequestsPerMinute)
	setInt(&cfg.Retry.MaxAttempts, file.Retry.MaxAttempts)
	if file.Retry.InitialDelay > 0 {
		cfg.Retry.InitialDelay = file.Retry.InitialDelay
	}
	if file.Retry.BackoffMultiplier > 0 {
		cfg.Retry.BackoffMultiplier = file.Retry.BackoffMultiplier
	}
	for name, settings := range file.Providers {
		name = strings.ToLower(name)
		cfg.Providers[name] = mergeProvider(cfg.Providers[name], settings, name)
	}

	var errs []error
	lookup := func(key string) (string, bool) {
		value := strings.TrimSpace(env[key])
		return value, value != ""
	}
	envString := func(key string, target *string) {
		if value, ok := lookup(key); ok {
			*target = value
		}
	}
	envInt := func(key string, target *int) {
		if value, ok := lookup(key); ok {
			parsed, err := strconv.Atoi(value)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, value, err))
				return
			}
			*target = parsed
		}
	}

	envString("DOCAI_PROVIDER", &cfg.Provider)
	envString("DOCAI_FALLBACK_PROVIDER", &cfg.FallbackProvider)
	envInt("DOCAI_PARALLELISM", &cfg.Parallelism)
	if value, ok := lookup("DOCAI_DRY_RUN"); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid DOCAI_DRY_RUN %q: %w", value, err))
		} else {
			cfg.DryRun = parsed
		}
	}
	envString("DOCAI_THEME", &cfg.Theme)
	envString("DOCAI_LOG_LEVEL", &cfg.LogLevel)
	envString("DOCAI_CACHE_DIR", &cfg.CacheDir)
	envString("DOCAI_BACKUP_DIR", &cfg.BackupDir)
	envInt("DOCAI_REQUESTS_PER_MINUTE", &cfg.RequestsPerMinute)

	openai := cfg.Providers["openai"]
	envString("OPENAI_API_KEY", &openai.ApiKey)
	envString("OPENAI_BASE_URL", &openai.BaseURL)
	envString("OPENAI_MODEL", &openai.Model)
	cfg.Providers["openai"] = openai

	ollama := cfg.Providers["ollama"]
	envString("OLLAMA_BASE_URL", &ollama.BaseURL)
	envString("OLLAMA_MODEL", &ollama.Model)
	cfg.Providers["ollama"] = ollama

	return cfg, errors.Join(errs...)
}

func mergeProvider(base, override providers.AIProviderConfig, name string) providers.AIProviderConfig {
	base.Provider = name
	setString(&base.BaseURL, override.BaseURL)
	setString(&base.Model, override.Model)
	setString(&base.ApiKey, override.ApiKey)
	setInt(&base.MaxTokens, override.MaxTokens)
	if override.Temperature != nil {
		base.Temperature = override.Temperature
	}
	if override.Timeout > 0 {
		base.Timeout = override.Timeout
	}
	return base
}

func setString(target *string, value string) {
	if strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func setInt(target *int, value int) {
	if value != 0 {
		*target = value
	}
}

// LoadFileConfig reads explicitPath, or docai-config.* from projectDir when
// explicitPath is empty. A missing default file is not an error; the returned
// path is empty in that case.
func LoadFileConfig(projectDir, explicitPath string) (FileConfig, string, error) {
	var file FileConfig

	v := viper.New()
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName(ConfigFileName)
		v.AddConfigPath(projectDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitPath == "" && errors.As(err, &notFound) {
			return file, "", nil
		}
		return file, "", fmt.Errorf("failed to read config file: %w", err)
	}

	if err := v.Unmarshal(&file); err != nil {
		return file, "", fmt.Errorf("failed to decode config file %s: %w", v.ConfigFileUsed(), err)
	}
	return file, v.ConfigFileUsed(), nil
}

// LoadEnv returns the process environment merged over the optional .env file
// of projectDir. Variables already set in the environment win.
func LoadEnv(projectDir string) (map[string]string, error) {
	env, err := godotenv.Read(filepath.Join(projectDir, ".env"))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
		env = make(map[string]string)
	}

	for _, pair := range os.Environ() {
		key, value, ok := strings.Cut(pair, "=")
		if ok && value != "" {
			env[key] = value
		}
	}
	return env, nil
}

// ApplyFlags overrides cfg with every flag the user set explicitly.
func ApplyFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	changed := func(name string) bool {
		return flags.Lookup(name) != nil && flags.Changed(name)
	}

	var errs []error
	stringFlag := func(name string, target *string) {
		if changed(name) {
			value, err := flags.GetString(name)
			errs = append(errs, err)
			if err == nil {
				*target = value
			}
		}
	}
	intFlag := func(name string, target *int) {
		if changed(name) {
			value, err := flags.GetInt(name)
			errs = append(errs, err)
			if err == nil {
				*target = value
			}
		}
	}

	stringFlag("provider", &cfg.Provider)
	stringFlag("fallback-provider", &cfg.FallbackProvider)
	intFlag("parallelism", &cfg.Parallelism)
	if changed("dry-run") {
		value, err := flags.GetBool("dry-run")
		errs = append(errs, err)
		if err == nil {
			cfg.DryRun = value
		}
	}
	stringFlag("theme", &cfg.Theme)
	stringFlag("log-level", &cfg.LogLevel)
	stringFlag("cache-dir", &cfg.CacheDir)
	stringFlag("backup-dir", &cfg.BackupDir)
	intFlag("requests-per-minute", &cfg.RequestsPerMinute)

	return errors.Join(errs...)
}

// Load resolves the configuration of a run in projectDir: defaults, then the
// configuration file, then the environment (with .env), then flags.
func Load(projectDir string, flags *pflag.FlagSet) (*Config, error) {
	var explicitPath string
	if flags != nil && flags.Lookup("config") != nil {
		explicitPath, _ = flags.GetString("config")
	}

	file, source, err := LoadFileConfig(projectDir, explicitPath)
	if err != nil {
		return nil, err
	}

	env, err := LoadEnv(projectDir)
	if err != nil {
		return nil, err
	}

	cfg, err := Resolve(file, env)
	if err != nil {
		return nil, err
	}
	cfg.Source = source

	if err := ApplyFlags(&cfg, flags); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// InitFlags registers the flags shared by every command.
func InitFlags(rootCmd *cobra.Command) {
	defaults := Default()

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a configuration file (JSON or YAML). Defaults to docai-config.* in the project directory.")
	rootCmd.PersistentFlags().String("theme", defaults.Theme, "Chroma theme used to highlight previews (e.g., 'dracula', 'monokai', 'github').")
	rootCmd.PersistentFlags().String("log-level", defaults.LogLevel, "Log level: trace, debug, info, warn or error.")
	rootCmd.PersistentFlags().String("cache-dir", "", "Directory holding dry-run caches (default: user cache directory).")
	rootCmd.PersistentFlags().String("backup-dir", "", "Directory holding backups (default: ~/.docai/backups).")
	rootCmd.PersistentFlags().Int("requests-per-minute", 0, "Maximum provider requests per minute, retries included (0 disables pacing).")
}
