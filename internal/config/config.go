package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/dkoosis/verdict/pkg/result"
)

// Config keys, shared by flags, env vars and the YAML file.
const (
	KeyOut          = "out"
	KeyRetrySummary = "retry-summary"
	KeyEnvironment  = "environment"
	KeyFormat       = "format"
	KeyTheme        = "theme"
	KeyNoColor      = "no-color"
	KeyReconcile    = "reconcile"
	KeyHTML         = "html"
	KeyMetricsFile  = "metrics-file"
	KeyLogLevel     = "log-level"
	KeyLogFormat    = "log-format"
)

// Defaults.
const (
	DefaultOut       = "target/verdict"
	DefaultFormat    = "auto"
	DefaultTheme     = "default"
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "console"

	// EnvPrefix prefixes every environment variable, e.g. VERDICT_OUT.
	EnvPrefix = "VERDICT"
	// FileName is looked up in the working directory, then the user config dir.
	FileName = ".verdict.yaml"
)

// Output file names inside Out.
const (
	ReportFile   = "report.json"
	ManifestFile = "rerun.txt"
	SummaryFile  = "rerun-summary.json"
	HTMLFile     = "summary.html"
)

// Build is CI build metadata, usually populated from the CI environment.
type Build struct {
	Number string `mapstructure:"number" yaml:"number,omitempty"`
	URL    string `mapstructure:"url" yaml:"url,omitempty"`
	Branch string `mapstructure:"branch" yaml:"branch,omitempty"`
	Commit string `mapstructure:"commit" yaml:"commit,omitempty"`
}

// Config is the fully resolved configuration.
type Config struct {
	Out          string `mapstructure:"out" yaml:"out"`
	RetrySummary string `mapstructure:"retry-summary" yaml:"retry-summary,omitempty"`
	Environment  string `mapstructure:"environment" yaml:"environment,omitempty"`
	Format       string `mapstructure:"format" yaml:"format"`
	Theme        string `mapstructure:"theme" yaml:"theme"`
	NoColor      bool   `mapstructure:"no-color" yaml:"no-color"`
	Reconcile    bool   `mapstructure:"reconcile" yaml:"reconcile"`
	HTML         bool   `mapstructure:"html" yaml:"html"`
	MetricsFile  string `mapstructure:"metrics-file" yaml:"metrics-file,omitempty"`
	LogLevel     string `mapstructure:"log-level" yaml:"log-level"`
	LogFormat    string `mapstructure:"log-format" yaml:"log-format"`
	Build        Build  `mapstructure:"build" yaml:"build"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// Path joins name onto the output directory.
func (c *Config) Path(name string) string {
	return filepath.Join(c.Out, name)
}

// SummaryPath is the retry summary to reconcile against: the explicit
// retry-summary setting, or the one inside Out.
func (c *Config) SummaryPath() string {
	if c.RetrySummary != "" {
		return c.RetrySummary
	}
	return c.Path(SummaryFile)
}

// ResultBuild converts the build metadata for the report.
func (c *Config) ResultBuild() result.Build {
	return result.Build{
		Number: c.Build.Number,
		URL:    c.Build.URL,
		Branch: c.Build.Branch,
		Commit: c.Build.Commit,
	}
}

// YAML renders c for `verdict config`.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

// Options controls where Load looks.
type Options struct {
	// File overrides config file discovery when set.
	File string
	// Dirs are searched for FileName in order. Nil means the working
	// directory, then <user config dir>/verdict.
	Dirs []string
	// Flags are bound with the highest precedence. Only flags the user set
	// override lower sources.
	Flags *pflag.FlagSet
}

// Load resolves configuration with precedence
// flags > VERDICT_* env > config file > defaults.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// CI systems export build metadata without our prefix.
	for key, env := range map[string]string{
		"build.number": "BUILD_NUMBER",
		"build.url":    "BUILD_URL",
		"build.branch": "GIT_BRANCH",
		"build.commit": "GIT_COMMIT",
	} {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	file := opts.File
	if file == "" {
		file = findFile(opts.Dirs)
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = file
	if noColorEnv() {
		cfg.NoColor = true
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyOut, DefaultOut)
	v.SetDefault(KeyRetrySummary, "")
	v.SetDefault(KeyEnvironment, "")
	v.SetDefault(KeyFormat, DefaultFormat)
	v.SetDefault(KeyTheme, DefaultTheme)
	v.SetDefault(KeyNoColor, false)
	v.SetDefault(KeyReconcile, true)
	v.SetDefault(KeyHTML, true)
	v.SetDefault(KeyMetricsFile, "")
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
}

func (c *Config) validate() error {
	switch c.Format {
	case "auto", "terminal", "plain", "json":
	default:
		return fmt.Errorf("unknown format %q (want auto, terminal, plain or json)", c.Format)
	}
	if c.Out == "" {
		return fmt.Errorf("%s must not be empty", KeyOut)
	}
	return nil
}
