package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "imgfit.toml"

// Config is the top-level imgfit configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Origin  OriginConfig  `toml:"origin"`
	Scaler  ScalerConfig  `toml:"scaler"`
	Logging LoggingConfig `toml:"logging"`
	Metrics MetricsConfig `toml:"metrics"`
}

type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Prefix          string `toml:"prefix"` // mount path for images, e.g. "/images"
	ShutdownTimeout int    `toml:"shutdown_timeout"`
}

// OriginConfig selects where unmodified originals are read from.
type OriginConfig struct {
	Backend     string `toml:"backend"` // "local" (default) or "s3"
	LocalPath   string `toml:"local_path"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
	S3UseSSL    bool   `toml:"s3_use_ssl"`
	S3Prefix    string `toml:"s3_prefix"`
}

// ScalerConfig is the instance configuration of the scaling middleware.
// Width, Height and Flags, when set, replace the values parsed from the path.
type ScalerConfig struct {
	Match              string            `toml:"match"` // regexp with named groups; empty = built-in grammar
	OriginalExtensions []string          `toml:"original_extensions"`
	MemoryLimit        int64             `toml:"memory_limit"`
	JPEGQuality        int               `toml:"jpeg_quality"`
	Width              int               `toml:"width"`
	Height             int               `toml:"height"`
	Flags              map[string]string `toml:"flags"`
	PostCrop           bool              `toml:"post_crop"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json", "text" or "auto"
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8095,
			Prefix:          "/",
			ShutdownTimeout: 10,
		},
		Origin: OriginConfig{
			Backend:   "local",
			LocalPath: "./images",
			S3Region:  "us-east-1",
			S3UseSSL:  true,
		},
		Scaler: ScalerConfig{
			OriginalExtensions: []string{"jpg", "png", "gif"},
			MemoryLimit:        10_000_000,
			PostCrop:           true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads configuration with priority: defaults → imgfit.toml → env vars → CLI flags.
// The flags parameter allows CLI flag overrides to be passed in.
func Load(configPath string, flags map[string]string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = DefaultPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	applyFlags(cfg, flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Prefix != "" && !strings.HasPrefix(c.Server.Prefix, "/") {
		return fmt.Errorf("server.prefix must start with /, got %q", c.Server.Prefix)
	}
	switch c.Origin.Backend {
	case "local":
		if c.Origin.LocalPath == "" {
			return fmt.Errorf("origin.local_path is required when origin backend is \"local\"")
		}
	case "s3":
		if c.Origin.S3Endpoint == "" {
			return fmt.Errorf("origin.s3_endpoint is required when origin backend is \"s3\"")
		}
		if c.Origin.S3Bucket == "" {
			return fmt.Errorf("origin.s3_bucket is required when origin backend is \"s3\"")
		}
		if c.Origin.S3AccessKey == "" {
			return fmt.Errorf("origin.s3_access_key is required when origin backend is \"s3\"")
		}
		if c.Origin.S3SecretKey == "" {
			return fmt.Errorf("origin.s3_secret_key is required when origin backend is \"s3\"")
		}
	default:
		return fmt.Errorf("origin.backend must be \"local\" or \"s3\", got %q", c.Origin.Backend)
	}
	if c.Scaler.Match != "" {
		if _, err := regexp.Compile(c.Scaler.Match); err != nil {
			return fmt.Errorf("scaler.match is not a valid regular expression: %w", err)
		}
	}
	if len(c.Scaler.OriginalExtensions) == 0 {
		return fmt.Errorf("scaler.original_extensions must not be empty")
	}
	for _, ext := range c.Scaler.OriginalExtensions {
		if ext == "" || strings.ContainsAny(ext, "./") {
			return fmt.Errorf("scaler.original_extensions contains invalid extension %q", ext)
		}
	}
	if c.Scaler.MemoryLimit < 1 {
		return fmt.Errorf("scaler.memory_limit must be positive, got %d", c.Scaler.MemoryLimit)
	}
	if c.Scaler.JPEGQuality < 0 || c.Scaler.JPEGQuality > 100 {
		return fmt.Errorf("scaler.jpeg_quality must be between 0 and 100, got %d", c.Scaler.JPEGQuality)
	}
	if c.Scaler.Width < 0 || c.Scaler.Height < 0 {
		return fmt.Errorf("scaler.width and scaler.height must not be negative")
	}
	if c.Logging.Level != "" {
		switch c.Logging.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.level must be one of: debug, info, warn, error; got %q", c.Logging.Level)
		}
	}
	switch c.Logging.Format {
	case "", "json", "text", "auto":
	default:
		return fmt.Errorf("logging.format must be one of: json, text, auto; got %q", c.Logging.Format)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}
	return nil
}

// Address returns the host:port string for the server to listen on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GenerateDefault writes a commented default imgfit.toml to the given path.
func GenerateDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultTOML), 0o644)
}

// ToTOML returns the config serialized as TOML.
func (c *Config) ToTOML() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// envInt reads an integer from the named environment variable.
// Returns an error if the value is set but not a valid integer.
func envInt(name string, dest *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q is not an integer", name, v)
	}
	*dest = n
	return nil
}

func envBool(name string, dest *bool) {
	if v := os.Getenv(name); v != "" {
		*dest = v == "true" || v == "1"
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("IMGFIT_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if err := envInt("IMGFIT_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if v := os.Getenv("IMGFIT_SERVER_PREFIX"); v != "" {
		cfg.Server.Prefix = v
	}
	if v := os.Getenv("IMGFIT_ORIGIN_BACKEND"); v != "" {
		cfg.Origin.Backend = v
	}
	if v := os.Getenv("IMGFIT_ORIGIN_LOCAL_PATH"); v != "" {
		cfg.Origin.LocalPath = v
	}
	if v := os.Getenv("IMGFIT_ORIGIN_S3_ENDPOINT"); v != "" {
		cfg.Origin.S3Endpoint = v
	}
	if v := os.Getenv("IMGFIT_ORIGIN_S3_BUCKET"); v != "" {
		cfg.Origin.S3Bucket = v
	}
	if v := os.Getenv("IMGFIT_ORIGIN_S3_REGION"); v != "" {
		cfg.Origin.S3Region = v
	}
	if v := os.Getenv("IMGFIT_ORIGIN_S3_ACCESS_KEY"); v != "" {
		cfg.Origin.S3AccessKey = v
	}
	if v := os.Getenv("IMGFIT_ORIGIN_S3_SECRET_KEY"); v != "" {
		cfg.Origin.S3SecretKey = v
	}
	envBool("IMGFIT_ORIGIN_S3_USE_SSL", &cfg.Origin.S3UseSSL)
	if v := os.Getenv("IMGFIT_ORIGIN_S3_PREFIX"); v != "" {
		cfg.Origin.S3Prefix = v
	}
	if v := os.Getenv("IMGFIT_SCALER_MATCH"); v != "" {
		cfg.Scaler.Match = v
	}
	if v := os.Getenv("IMGFIT_SCALER_ORIGINAL_EXTENSIONS"); v != "" {
		cfg.Scaler.OriginalExtensions = strings.Split(v, ",")
	}
	if v := os.Getenv("IMGFIT_SCALER_MEMORY_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid value for IMGFIT_SCALER_MEMORY_LIMIT: %q is not an integer", v)
		}
		cfg.Scaler.MemoryLimit = n
	}
	if err := envInt("IMGFIT_SCALER_JPEG_QUALITY", &cfg.Scaler.JPEGQuality); err != nil {
		return err
	}
	if err := envInt("IMGFIT_SCALER_WIDTH", &cfg.Scaler.Width); err != nil {
		return err
	}
	if err := envInt("IMGFIT_SCALER_HEIGHT", &cfg.Scaler.Height); err != nil {
		return err
	}
	if v := os.Getenv("IMGFIT_SCALER_FLAGS"); v != "" {
		cfg.Scaler.Flags = ParseFlagPairs(v)
	}
	envBool("IMGFIT_SCALER_POST_CROP", &cfg.Scaler.PostCrop)
	if v := os.Getenv("IMGFIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("IMGFIT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	envBool("IMGFIT_METRICS_ENABLED", &cfg.Metrics.Enabled)
	return nil
}

// ParseFlagPairs parses "fill=ff00ff,crop" into a flag map. A name without
// "=" is a boolean flag.
func ParseFlagPairs(s string) map[string]string {
	flags := make(map[string]string)
	for pair := range strings.SplitSeq(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		flags[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return flags
}

func formatFlagPairs(flags map[string]string) string {
	names := make([]string, 0, len(flags))
	for k := range flags {
		names = append(names, k)
	}
	sort.Strings(names)
	for i, k := range names {
		if v := flags[k]; v != "" {
			names[i] = k + "=" + v
		}
	}
	return strings.Join(names, ",")
}

func applyFlags(cfg *Config, flags map[string]string) {
	if flags == nil {
		return
	}
	if v, ok := flags["port"]; ok && v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := flags["host"]; ok && v != "" {
		cfg.Server.Host = v
	}
	if v, ok := flags["origin"]; ok && v != "" {
		cfg.Origin.Backend = "local"
		cfg.Origin.LocalPath = v
	}
	if v, ok := flags["prefix"]; ok && v != "" {
		cfg.Server.Prefix = v
	}
}

// validKeys is the complete set of dot-separated config keys.
var validKeys = map[string]bool{
	"server.host": true, "server.port": true, "server.prefix": true, "server.shutdown_timeout": true,
	"origin.backend": true, "origin.local_path": true, "origin.s3_endpoint": true,
	"origin.s3_bucket": true, "origin.s3_region": true, "origin.s3_access_key": true,
	"origin.s3_secret_key": true, "origin.s3_use_ssl": true, "origin.s3_prefix": true,
	"scaler.match": true, "scaler.original_extensions": true, "scaler.memory_limit": true,
	"scaler.jpeg_quality": true, "scaler.width": true, "scaler.height": true,
	"scaler.flags": true, "scaler.post_crop": true,
	"logging.level": true, "logging.format": true,
	"metrics.enabled": true, "metrics.path": true,
}

// IsValidKey returns true if the dotted key is a recognized config key.
func IsValidKey(key string) bool {
	return validKeys[key]
}

// GetValue returns the value for a dotted config key (e.g. "server.port").
func GetValue(cfg *Config, key string) (any, error) {
	switch key {
	case "server.host":
		return cfg.Server.Host, nil
	case "server.port":
		return cfg.Server.Port, nil
	case "server.prefix":
		return cfg.Server.Prefix, nil
	case "server.shutdown_timeout":
		return cfg.Server.ShutdownTimeout, nil
	case "origin.backend":
		return cfg.Origin.Backend, nil
	case "origin.local_path":
		return cfg.Origin.LocalPath, nil
	case "origin.s3_endpoint":
		return cfg.Origin.S3Endpoint, nil
	case "origin.s3_bucket":
		return cfg.Origin.S3Bucket, nil
	case "origin.s3_region":
		return cfg.Origin.S3Region, nil
	case "origin.s3_access_key":
		return cfg.Origin.S3AccessKey, nil
	case "origin.s3_secret_key":
		return cfg.Origin.S3SecretKey, nil
	case "origin.s3_use_ssl":
		return cfg.Origin.S3UseSSL, nil
	case "origin.s3_prefix":
		return cfg.Origin.S3Prefix, nil
	case "scaler.match":
		return cfg.Scaler.Match, nil
	case "scaler.original_extensions":
		return strings.Join(cfg.Scaler.OriginalExtensions, ","), nil
	case "scaler.memory_limit":
		return cfg.Scaler.MemoryLimit, nil
	case "scaler.jpeg_quality":
		return cfg.Scaler.JPEGQuality, nil
	case "scaler.width":
		return cfg.Scaler.Width, nil
	case "scaler.height":
		return cfg.Scaler.Height, nil
	case "scaler.flags":
		return formatFlagPairs(cfg.Scaler.Flags), nil
	case "scaler.post_crop":
		return cfg.Scaler.PostCrop, nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.format":
		return cfg.Logging.Format, nil
	case "metrics.enabled":
		return cfg.Metrics.Enabled, nil
	case "metrics.path":
		return cfg.Metrics.Path, nil
	default:
		return nil, fmt.Errorf("unknown configuration key: %s", key)
	}
}

// SetValue reads the existing TOML file, updates a single key, and writes it back.
// Creates the file with just the key if it doesn't exist.
func SetValue(configPath, key, value string) error {
	if !IsValidKey(key) {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	var data map[string]any
	if raw, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}
	if data == nil {
		data = make(map[string]any)
	}

	section, field, _ := strings.Cut(key, ".")
	sectionMap, ok := data[section].(map[string]any)
	if !ok {
		sectionMap = make(map[string]any)
		data[section] = sectionMap
	}
	sectionMap[field] = coerceValue(key, value)

	out, err := toml.Marshal(data)
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(configPath, out, 0o644)
}

// coerceValue converts a string value to the appropriate Go type for TOML serialization.
func coerceValue(key, value string) any {
	switch key {
	case "origin.s3_use_ssl", "scaler.post_crop", "metrics.enabled":
		return value == "true" || value == "1"
	case "scaler.original_extensions":
		return strings.Split(value, ",")
	case "scaler.flags":
		return ParseFlagPairs(value)
	case "server.port", "server.shutdown_timeout", "scaler.memory_limit",
		"scaler.jpeg_quality", "scaler.width", "scaler.height":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return value
}

const defaultTOML = `# imgfit configuration

[server]
# Address to listen on.
host = "0.0.0.0"
port = 8095
# Path images are served under.
prefix = "/"
# Seconds to wait for in-flight requests on shutdown.
shutdown_timeout = 10

[origin]
# Where unmodified originals live: "local" or "s3".
backend = "local"
local_path = "./images"
# s3_endpoint = "localhost:9000"
# s3_bucket = "images"
# s3_region = "us-east-1"
# s3_access_key = ""
# s3_secret_key = ""
# s3_use_ssl = true
# s3_prefix = ""

[scaler]
# Regular expression with named groups base, width, height, flags and ext.
# Empty uses the built-in basename_WxH-flags.ext grammar.
# match = ""
# Extensions tried, in order, when looking up the original.
original_extensions = ["jpg", "png", "gif"]
# Upper bound in bytes for the resized pixel buffer.
memory_limit = 10000000
# JPEG output quality, 0 for the codec default.
jpeg_quality = 0
# Crop oversized results to the exact requested box.
post_crop = true
# Instance-wide overrides. When set they replace the values from the path.
# width = 0
# height = 0
# [scaler.flags]
# fill = "ffffff"

[logging]
# debug, info, warn or error.
level = "info"
# json, text or auto (text on a terminal).
format = "json"

[metrics]
enabled = true
path = "/metrics"
`
