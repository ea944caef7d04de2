package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"

	"github.com/fluxbase-eu/webminifier/internal/compress"
	"github.com/fluxbase-eu/webminifier/internal/logging"
	"github.com/fluxbase-eu/webminifier/internal/observability"
	"github.com/fluxbase-eu/webminifier/internal/planner"
	"github.com/fluxbase-eu/webminifier/internal/precompress"
	"github.com/fluxbase-eu/webminifier/internal/storage"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "WEBMINIFIER"

// Config represents the build configuration
type Config struct {
	SourceFolder        string                     `mapstructure:"source_folder" yaml:"source_folder"`
	DestinationFolder   string                     `mapstructure:"destination_folder" yaml:"destination_folder"`
	ProjectSourceFolder string                     `mapstructure:"project_source_folder" yaml:"project_source_folder"`
	HTMLIncludes        []string                   `mapstructure:"html_includes" yaml:"html_includes"`
	HTMLExcludes        []string                   `mapstructure:"html_excludes" yaml:"html_excludes"`
	SplitPoints         []SplitPointConfig         `mapstructure:"split_points" yaml:"split_points"`
	SplitDependencies   bool                       `mapstructure:"split_dependencies" yaml:"split_dependencies"`
	Encoding            string                     `mapstructure:"encoding" yaml:"encoding"`
	Clean               bool                       `mapstructure:"clean" yaml:"clean"`
	PruneUnminified     bool                       `mapstructure:"prune_unminified" yaml:"prune_unminified"`
	MinifiedSuffix      string                     `mapstructure:"minified_suffix" yaml:"minified_suffix"`
	Compressor          compress.Options           `mapstructure:"compressor" yaml:"compressor"`
	Precompress         []string                   `mapstructure:"precompress" yaml:"precompress"`
	Publish             storage.Config             `mapstructure:"publish" yaml:"publish"`
	Metrics             MetricsConfig              `mapstructure:"metrics" yaml:"metrics"`
	Tracing             observability.TracerConfig `mapstructure:"tracing" yaml:"tracing"`
	Log                 logging.Config             `mapstructure:"log" yaml:"log"`
	Debug               bool                       `mapstructure:"debug" yaml:"debug"`
}

// SplitPointConfig names the bundle that starts at a script. Path is relative
// to the destination folder and uses forward slashes.
//
// A list, not a map: viper lower-cases map keys and splits them on dots.
type SplitPointConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
	Name string `mapstructure:"name" yaml:"name"`
}

// MetricsConfig contains build metrics settings
type MetricsConfig struct {
	// Textfile receives the run's metrics in the Prometheus text format when set.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// Load reads configuration into v from the given file, or from
// webminifier.yaml in the working directory or ./config when file is empty,
// then applies WEBMINIFIER_* environment variables.
func Load(v *viper.Viper, file string) (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := loadEnvFile(); err != nil {
		log.Debug().Err(err).Msg("No .env file loaded")
	}

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("webminifier")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	// Defaults always decode; a failure here is a programming error.
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return &config
}

// loadEnvFile loads environment variables from .env file
func loadEnvFile() error {
	locations := []string{
		".env",
		".env.local",
		"../.env",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			if err := godotenv.Load(location); err != nil {
				return fmt.Errorf("error loading .env file from %s: %w", location, err)
			}
			log.Debug().Str("file", location).Msg(".env file loaded")
			return nil
		}
	}

	return fmt.Errorf("no .env file found")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Layout defaults
	v.SetDefault("source_folder", "target/classes")
	v.SetDefault("destination_folder", "target/min/classes")
	v.SetDefault("project_source_folder", "src/main")
	v.SetDefault("html_includes", []string{"**/*.html", "**/*.htm"})
	v.SetDefault("html_excludes", []string{})
	v.SetDefault("split_points", []SplitPointConfig{})
	v.SetDefault("split_dependencies", true)
	v.SetDefault("encoding", "UTF-8")
	v.SetDefault("clean", false)
	v.SetDefault("prune_unminified", false)
	v.SetDefault("minified_suffix", planner.DefaultMinifiedSuffix)

	// Compressor defaults
	v.SetDefault("compressor.type", compress.TypeEsbuild)
	v.SetDefault("compressor.minify.munge", true)
	v.SetDefault("compressor.minify.linebreak", -1)
	v.SetDefault("compressor.minify.preserve_semicolons", false)
	v.SetDefault("compressor.minify.precision", 0)
	v.SetDefault("compressor.esbuild.level", compress.LevelSimple)
	v.SetDefault("compressor.esbuild.accept_const", false)

	v.SetDefault("precompress", []string{})

	// Publish defaults
	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.provider", "local")
	v.SetDefault("publish.local_path", "")
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.prefix", "")
	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.access_key", "")
	v.SetDefault("publish.secret_key", "")
	v.SetDefault("publish.region", "")
	v.SetDefault("publish.use_ssl", true)
	v.SetDefault("publish.cache_control", "")
	v.SetDefault("publish.skip_existing", false)

	v.SetDefault("metrics.textfile", "")

	// Tracing defaults
	tracing := observability.DefaultTracerConfig()
	v.SetDefault("tracing.enabled", tracing.Enabled)
	v.SetDefault("tracing.endpoint", tracing.Endpoint)
	v.SetDefault("tracing.service_name", tracing.ServiceName)
	v.SetDefault("tracing.sample_rate", tracing.SampleRate)
	v.SetDefault("tracing.insecure", tracing.Insecure)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatConsole)
	v.SetDefault("debug", false)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.SourceFolder == "" {
		return fmt.Errorf("source_folder is required")
	}
	if c.DestinationFolder == "" {
		return fmt.Errorf("destination_folder is required")
	}
	if inside(c.SourceFolder, c.DestinationFolder) {
		return fmt.Errorf("destination_folder must not be the source folder or lie inside it")
	}
	if inside(c.DestinationFolder, c.SourceFolder) {
		return fmt.Errorf("source_folder must not lie inside destination_folder")
	}

	if len(c.HTMLIncludes) == 0 {
		return fmt.Errorf("html_includes must contain at least one pattern")
	}
	for _, p := range append(append([]string{}, c.HTMLIncludes...), c.HTMLExcludes...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid html pattern %q", p)
		}
	}

	// A path listed twice is not an error: the last entry wins.
	for _, sp := range c.SplitPoints {
		if strings.TrimSpace(sp.Path) == "" {
			return fmt.Errorf("split point path is required")
		}
		if err := validateBundleName(sp.Name); err != nil {
			return fmt.Errorf("split point %s: %w", sp.Path, err)
		}
	}

	if _, err := htmlindex.Get(c.Encoding); err != nil {
		return fmt.Errorf("unsupported encoding %q: %w", c.Encoding, err)
	}

	if !strings.HasSuffix(c.MinifiedSuffix, ".js") || c.MinifiedSuffix == ".js" {
		return fmt.Errorf("minified_suffix must end in .js and differ from it (got %q)", c.MinifiedSuffix)
	}

	if err := c.validateCompressor(); err != nil {
		return err
	}

	if _, err := c.PrecompressFormats(); err != nil {
		return err
	}

	if err := c.Publish.Validate(); err != nil {
		return err
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1, got: %v", c.Tracing.SampleRate)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Log.Format != logging.FormatConsole && c.Log.Format != logging.FormatJSON {
		return fmt.Errorf("log.format must be one of: %s, %s (got %q)", logging.FormatConsole, logging.FormatJSON, c.Log.Format)
	}

	return nil
}

func (c *Config) validateCompressor() error {
	switch strings.ToLower(c.Compressor.Type) {
	case compress.TypeNone, compress.TypeEsbuild:
	case compress.TypeMinify:
		if c.Compressor.Minify.LineBreak < -1 {
			return fmt.Errorf("compressor.minify.linebreak must be -1 or a column, got: %d", c.Compressor.Minify.LineBreak)
		}
		if c.Compressor.Minify.Precision < 0 {
			return fmt.Errorf("compressor.minify.precision must not be negative")
		}
	default:
		return fmt.Errorf("compressor.type must be one of: %s, %s, %s (got %q)",
			compress.TypeNone, compress.TypeMinify, compress.TypeEsbuild, c.Compressor.Type)
	}

	switch c.Compressor.Esbuild.Level {
	case compress.LevelWhitespace, compress.LevelSimple, compress.LevelAdvanced:
	default:
		return fmt.Errorf("compressor.esbuild.level must be one of: %s, %s, %s (got %q)",
			compress.LevelWhitespace, compress.LevelSimple, compress.LevelAdvanced, c.Compressor.Esbuild.Level)
	}
	return nil
}

func validateBundleName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("bundle name is required")
	case strings.ContainsAny(name, `/\`), name == ".", name == "..":
		return fmt.Errorf("bundle name %q must be a plain file name", name)
	}
	return nil
}

// inside reports whether dir is parent or lies below it.
func inside(parent, dir string) bool {
	p, err1 := filepath.Abs(parent)
	d, err2 := filepath.Abs(dir)
	if err1 != nil || err2 != nil {
		return false
	}
	rel, err := filepath.Rel(p, d)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// SplitPointTable converts the configured split points for the planner.
func (c *Config) SplitPointTable() planner.SplitPoints {
	table := make(planner.SplitPoints, len(c.SplitPoints))
	for _, sp := range c.SplitPoints {
		table[strings.TrimPrefix(filepath.ToSlash(sp.Path), "/")] = sp.Name
	}
	return table
}

// PrecompressFormats returns the configured sidecar formats.
func (c *Config) PrecompressFormats() ([]precompress.Format, error) {
	formats, err := precompress.ParseFormats(c.Precompress)
	if err != nil {
		return nil, fmt.Errorf("invalid precompress setting: %w", err)
	}
	return formats, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
