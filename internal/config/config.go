package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/csvreport-cli/internal/table"
	"github.com/KaramelBytes/csvreport-cli/internal/utils"
)

const (
	dirName   = ".csvreport"
	envPrefix = "CSVREPORT"
)

// Global configuration structure.
type Global struct {
	// Output locations used by `analyze`
	ReportPath  string `mapstructure:"report_path" yaml:"report_path" validate:"required"`
	CleanedPath string `mapstructure:"cleaned_path" yaml:"cleaned_path" validate:"required"`

	// Parsing
	Delimiter   string   `mapstructure:"delimiter" yaml:"delimiter" validate:"delimiter"`
	PreviewRows int      `mapstructure:"preview_rows" yaml:"preview_rows" validate:"min=1,max=1000"`
	NAValues    []string `mapstructure:"na_values" yaml:"na_values,omitempty"`
	SheetName   string   `mapstructure:"sheet_name" yaml:"sheet_name,omitempty"`

	// Web front end
	ListenAddr    string  `mapstructure:"listen_addr" yaml:"listen_addr" validate:"required,hostname_port"`
	UploadDir     string  `mapstructure:"upload_dir" yaml:"upload_dir,omitempty"`
	MaxUploadMB   int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb" validate:"min=1,max=1024"`
	SessionTTLMin int     `mapstructure:"session_ttl_min" yaml:"session_ttl_min" validate:"min=1"`
	UploadRPS     float64 `mapstructure:"upload_rps" yaml:"upload_rps" validate:"gt=0"`
	UploadBurst   int     `mapstructure:"upload_burst" yaml:"upload_burst" validate:"min=1"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`
}

// Dir returns the default configuration directory, ~/.csvreport.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.csvreport/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("report_path", "csv_analysis_report.txt")
	v.SetDefault("cleaned_path", "cleaned_output.csv")
	v.SetDefault("delimiter", "")
	v.SetDefault("preview_rows", 5)
	v.SetDefault("na_values", []string{})
	v.SetDefault("sheet_name", "")
	// Web defaults
	v.SetDefault("listen_addr", "127.0.0.1:8080")
	v.SetDefault("upload_dir", "")
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("session_ttl_min", 30)
	v.SetDefault("upload_rps", 2.0)
	v.SetDefault("upload_burst", 5)
	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		var nf viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// CSVREPORT_NA_VALUES="NA,-" arrives as one string
	if len(c.NAValues) == 1 && strings.Contains(c.NAValues[0], ",") {
		c.NAValues = strings.Split(c.NAValues[0], ",")
	}
	if c.UploadDir == "" {
		c.UploadDir = os.TempDir()
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("delimiter", func(fl validator.FieldLevel) bool {
		_, err := ParseDelimiter(fl.Field().String())
		return err == nil
	})
	// Report config keys rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("mapstructure")
	})
	return v
}

// Validate checks every field against its constraints.
func (c *Global) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ParseDelimiter converts a configured delimiter into a rune. The empty string
// yields 0, meaning "choose by file extension". "tab" and `\t` are accepted
// spellings of the tab character.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q: must be a single character", s)
	}
	return r, nil
}

// NAValuesNone is the na_values spelling that disables NA tokens, leaving
// only empty fields missing.
const NAValuesNone = "none"

// TableOptions converts the parsing keys into loader options. An empty
// na_values list selects the built-in NA tokens; a list holding only
// NAValuesNone selects none.
func (c *Global) TableOptions() table.Options {
	delim, _ := ParseDelimiter(c.Delimiter)
	opt := table.Options{Delimiter: delim, Sheet: c.SheetName}
	switch {
	case len(c.NAValues) == 1 && strings.EqualFold(strings.TrimSpace(c.NAValues[0]), NAValuesNone):
		opt.NAValues = []string{}
	case len(c.NAValues) > 0:
		opt.NAValues = append([]string(nil), c.NAValues...)
	}
	return opt
}
