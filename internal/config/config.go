package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/vps/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "vps.json"

	// YAMLConfigFileName is the name of the YAML configuration file.
	// It is only consulted when vps.json is absent.
	YAMLConfigFileName = "vps.yaml"

	// DefaultPort is the default server port.
	DefaultPort = 3000

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultPagesDir is the default directory scanned for page files.
	DefaultPagesDir = "pages"

	// DefaultOutDir is the default prerender output directory.
	DefaultOutDir = "dist/client"

	// DefaultAssetPrefix is the default URL prefix of client assets.
	DefaultAssetPrefix = "/"
)

// Config represents the complete vps.json configuration.
type Config struct {
	// Root is the project root. Relative paths are resolved against it.
	// Defaults to the directory holding the config file.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`

	// Pages is the directory scanned once at startup for page files.
	Pages string `json:"pages,omitempty" yaml:"pages,omitempty"`

	// Manifest is the client asset manifest written by the bundler.
	Manifest string `json:"manifest,omitempty" yaml:"manifest,omitempty"`

	// AssetPrefix is prepended to resolved client asset paths.
	AssetPrefix string `json:"assetPrefix,omitempty" yaml:"assetPrefix,omitempty"`

	// Production disables development conveniences.
	Production bool `json:"production,omitempty" yaml:"production,omitempty"`

	// Prerender contains static generation settings.
	Prerender PrerenderConfig `json:"prerender,omitempty" yaml:"prerender,omitempty"`

	// Server contains live server settings.
	Server ServerConfig `json:"server,omitempty" yaml:"server,omitempty"`

	// Output selects where prerendered files go.
	Output OutputConfig `json:"output,omitempty" yaml:"output,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// PrerenderConfig contains static generation settings.
type PrerenderConfig struct {
	// OutDir is the output directory for prerendered files.
	OutDir string `json:"outDir,omitempty" yaml:"outDir,omitempty"`

	// Partial suppresses warnings about pages that cannot be prerendered.
	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty"`

	// Concurrency bounds parallel hook calls and renders (0 = GOMAXPROCS).
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

// ServerConfig contains live server settings.
type ServerConfig struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`

	// Metrics exposes Prometheus metrics at /metrics.
	Metrics bool `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// OutputConfig selects the prerender output sink.
type OutputConfig struct {
	// S3 uploads prerendered files to a bucket instead of OutDir.
	S3 *S3Config `json:"s3,omitempty" yaml:"s3,omitempty"`
}

// S3Config configures the S3 output sink.
type S3Config struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Pages:       DefaultPagesDir,
		AssetPrefix: DefaultAssetPrefix,
		Prerender: PrerenderConfig{
			OutDir: DefaultOutDir,
		},
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for vps.json, then vps.yaml.
func Load(dir string) (*Config, error) {
	jsonPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(jsonPath); err == nil {
		return LoadFile(jsonPath)
	}
	yamlPath := filepath.Join(dir, YAMLConfigFileName)
	if _, err := os.Stat(yamlPath); err == nil {
		return LoadFile(yamlPath)
	}
	return nil, errors.New("E141").
		WithDetail("No " + ConfigFileName + " or " + YAMLConfigFileName + " found in " + dir)
}

// LoadFile reads configuration from the specified file path. The format is
// chosen from the file extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E141").
				WithDetail("No configuration file at " + path)
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check the syntax of the configuration file")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the project root: Root when set, else the directory containing
// the config file.
func (c *Config) Dir() string {
	if c.Root != "" {
		if filepath.IsAbs(c.Root) || c.configPath == "" {
			return c.Root
		}
		return filepath.Join(filepath.Dir(c.configPath), c.Root)
	}
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Pages == "" {
		c.Pages = DefaultPagesDir
	}
	if c.AssetPrefix == "" {
		c.AssetPrefix = DefaultAssetPrefix
	}
	if c.Prerender.OutDir == "" {
		c.Prerender.OutDir = DefaultOutDir
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Output.S3 != nil {
		c.Output.S3.Prefix = strings.TrimPrefix(c.Output.S3.Prefix, "/")
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E122").
			WithDetail("server.port must be between 0 and 65535")
	}
	if c.Prerender.Concurrency < 0 {
		return errors.New("E122").
			WithDetail("prerender.concurrency must not be negative")
	}
	if c.Output.S3 != nil && c.Output.S3.Bucket == "" {
		return errors.New("E122").
			WithDetail("output.s3.bucket is required when output.s3 is set")
	}
	return nil
}

// Address returns the listen address of the live server.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// PagesPath returns the absolute path to the pages directory.
func (c *Config) PagesPath() string {
	return c.resolve(c.Pages)
}

// OutDirPath returns the absolute path to the prerender output directory.
func (c *Config) OutDirPath() string {
	return c.resolve(c.Prerender.OutDir)
}

// ManifestPath returns the absolute path to the asset manifest, or "" when
// none is configured.
func (c *Config) ManifestPath() string {
	if c.Manifest == "" {
		return ""
	}
	return c.resolve(c.Manifest)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing vps.json or vps.yaml.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E141").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or the nearest parent holding a config file.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
