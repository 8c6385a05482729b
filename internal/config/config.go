package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	FileName = "onepager.yml"
	EnvFile  = ".env"
)

// Config models onepager.yml.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Templates TemplatesConfig `yaml:"templates"`
	Scoring   struct {
		MinLength int `yaml:"min_length"`
	} `yaml:"scoring"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn,omitempty"`
}

type TemplatesConfig struct {
	Source    string   `yaml:"source"`
	Dir       string   `yaml:"dir,omitempty"`
	BaseURL   string   `yaml:"base_url,omitempty"`
	CacheSize int      `yaml:"cache_size,omitempty"`
	S3        S3Config `yaml:"s3,omitempty"`
}

// S3Config holds the bucket location. Credentials only come from the
// environment.
type S3Config struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("config.storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("config.storage.driver must be 'sqlite' or 'postgres'")
	}
	switch c.Templates.Source {
	case "embedded":
	case "dir":
		if c.Templates.Dir == "" {
			return fmt.Errorf("config.templates.dir is required for source 'dir'")
		}
	case "http":
		if c.Templates.BaseURL == "" {
			return fmt.Errorf("config.templates.base_url is required for source 'http'")
		}
	case "s3":
		if c.Templates.S3.Endpoint == "" || c.Templates.S3.Bucket == "" {
			return fmt.Errorf("config.templates.s3.endpoint and bucket are required for source 's3'")
		}
	default:
		return fmt.Errorf("config.templates.source must be one of embedded, dir, http, s3")
	}
	if c.Templates.CacheSize < 0 {
		return fmt.Errorf("config.templates.cache_size must not be negative")
	}
	if c.Scoring.MinLength < 0 {
		return fmt.Errorf("config.scoring.min_length must not be negative")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// EnvPath returns the .env path for a workspace.
func EnvPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, EnvFile)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads the workspace .env and onepager.yml, falling back to defaults
// when the file is missing, then applies ONEPAGER_* environment overrides.
func Load(workspace string) (*Config, error) {
	if err := LoadEnv(workspace); err != nil {
		return nil, err
	}
	cfg, err := LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = Default()
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads the workspace .env without overriding variables already set.
func LoadEnv(workspace string) error {
	path := EnvPath(workspace)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections
// take their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders the config, without secrets.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *Config) applyEnv() error {
	if v := env("ONEPAGER_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := env("ONEPAGER_STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := env("ONEPAGER_TEMPLATES_SOURCE"); v != "" {
		c.Templates.Source = v
	}
	if v := env("ONEPAGER_TEMPLATES_DIR"); v != "" {
		c.Templates.Dir = v
	}
	if v := env("ONEPAGER_TEMPLATES_BASE_URL"); v != "" {
		c.Templates.BaseURL = v
	}
	if v := env("ONEPAGER_S3_ENDPOINT"); v != "" {
		c.Templates.S3.Endpoint = v
	}
	if v := env("ONEPAGER_S3_BUCKET"); v != "" {
		c.Templates.S3.Bucket = v
	}
	if v := env("ONEPAGER_S3_USE_SSL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ONEPAGER_S3_USE_SSL: %w", err)
		}
		c.Templates.S3.UseSSL = b
	}
	c.Templates.S3.AccessKey = env("ONEPAGER_S3_ACCESS_KEY")
	c.Templates.S3.SecretKey = env("ONEPAGER_S3_SECRET_KEY")
	if v := env("ONEPAGER_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	return nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// SetEnvValue writes key=value into the workspace .env, keeping other entries.
func SetEnvValue(workspace, key, value string) error {
	path := EnvPath(workspace)
	values := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		existing, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		values = existing
	} else if !os.IsNotExist(err) {
		return err
	}
	values[key] = value
	return godotenv.Write(values, path)
}

// EnvValue reads a single key from the workspace .env; "" if absent.
func EnvValue(workspace, key string) (string, error) {
	path := EnvPath(workspace)
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return values[key], nil
}

const defaultTemplate = `storage:
  driver: sqlite

templates:
  # embedded | dir | http | s3
  source: embedded
  cache_size: 16

scoring:
  min_length: 50

server:
  addr: 127.0.0.1:8080
  base_path: /v1
`
