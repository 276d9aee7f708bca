package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/bookrec"
	"github.com/hupe1980/bookrec/blobstore"
	miniostore "github.com/hupe1980/bookrec/blobstore/minio"
	"github.com/hupe1980/bookrec/codec"
	"github.com/hupe1980/bookrec/compress"
	"github.com/hupe1980/bookrec/dataset"
)

// envPrefix namespaces the environment variables read as config overrides,
// e.g. BOOKREC_ENGINE_FANOUT -> engine.fanout.
const envPrefix = "BOOKREC_"

// Config is the full CLI configuration, layered from defaults, an optional
// YAML file, and BOOKREC_* environment variables in that order.
type Config struct {
	Data   DataConfig   `koanf:"data"`
	Cache  CacheConfig  `koanf:"cache"`
	S3     S3Config     `koanf:"s3"`
	Engine EngineConfig `koanf:"engine"`
	Server ServerConfig `koanf:"server"`
	Log    LogConfig    `koanf:"log"`
}

// DataConfig names the raw CSV exports.
type DataConfig struct {
	Books   string `koanf:"books"`
	Ratings string `koanf:"ratings"`
	Users   string `koanf:"users"`
}

// CacheConfig controls where and how built artifacts are stored.
type CacheConfig struct {
	// Backend selects the artifact store: "local" or "s3".
	Backend string `koanf:"backend"`

	// Dir is the local cache directory when Backend is "local".
	Dir string `koanf:"dir"`

	Codec       string `koanf:"codec"`
	Compression string `koanf:"compression"`
}

// S3Config configures the object store backend.
type S3Config struct {
	Endpoint  string `koanf:"endpoint"`
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// EngineConfig tunes the build pipeline.
type EngineConfig struct {
	MinTitleRatings int `koanf:"min_title_ratings"`
	MinUserRatings  int `koanf:"min_user_ratings"`
	Fanout          int `koanf:"fanout"`
}

// ServerConfig tunes the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "text" or "json"
}

func defaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Books:   "books.csv",
			Ratings: "ratings.csv",
			Users:   "users.csv",
		},
		Cache: CacheConfig{
			Backend:     "local",
			Dir:         "cache",
			Codec:       "go-json",
			Compression: "zstd",
		},
		S3: S3Config{
			Prefix: "bookrec",
			UseSSL: true,
		},
		Engine: EngineConfig{
			MinTitleRatings: 35,
			MinUserRatings:  10,
			Fanout:          20,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			ReadTimeout: 10 * time.Second,
			// Rebuild responses can outlast any fixed write limit, so the
			// server-wide write timeout stays off; read endpoints are
			// bounded by the router's timeout middleware instead.
			WriteTimeout:    0,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// loadConfig layers defaults, the optional YAML file at path, and BOOKREC_*
// environment variables. A missing file is only an error when it was named
// explicitly.
func loadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if _, err := os.Stat("bookrec.yaml"); err == nil {
		if err := k.Load(file.Provider("bookrec.yaml"), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file bookrec.yaml: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToPath), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envToPath maps BOOKREC_SECTION_SOME_KEY to section.some_key. Only the
// first underscore separates the section, the rest stay part of the key.
func envToPath(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return ""
	}
	return section + "." + rest
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "local", "s3":
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "s3" {
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return fmt.Errorf("config: s3 backend requires s3.endpoint and s3.bucket")
		}
	}
	if _, ok := codec.ByName(c.Cache.Codec); !ok {
		return fmt.Errorf("config: unknown codec %q", c.Cache.Codec)
	}
	if _, ok := compress.ByName(c.Cache.Compression); !ok {
		return fmt.Errorf("config: unknown compression %q", c.Cache.Compression)
	}
	if c.Engine.MinTitleRatings < 1 || c.Engine.MinUserRatings < 1 {
		return fmt.Errorf("config: rating floors must be >= 1")
	}
	return nil
}

func (c *Config) newLogger() (*bookrec.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("config: bad log level %q: %w", c.Log.Level, err)
	}
	switch c.Log.Format {
	case "json":
		return bookrec.NewJSONLogger(level), nil
	case "text", "":
		return bookrec.NewTextLogger(level), nil
	default:
		return nil, fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
}

func (c *Config) newStore() (blobstore.Store, error) {
	if c.Cache.Backend == "local" {
		return blobstore.NewLocalStore(c.Cache.Dir), nil
	}
	client, err := minio.New(c.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.S3.AccessKey, c.S3.SecretKey, ""),
		Secure: c.S3.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("config: s3 client: %w", err)
	}
	return miniostore.NewStore(client, c.S3.Bucket, c.S3.Prefix), nil
}

func (c *Config) engineOptions(logger *bookrec.Logger) ([]bookrec.Option, error) {
	store, err := c.newStore()
	if err != nil {
		return nil, err
	}
	cd, _ := codec.ByName(c.Cache.Codec)
	cp, _ := compress.ByName(c.Cache.Compression)

	opts := []bookrec.Option{
		bookrec.WithStore(store),
		bookrec.WithCodec(cd),
		bookrec.WithCompressor(cp),
		bookrec.WithThresholds(c.Engine.MinTitleRatings, c.Engine.MinUserRatings),
		bookrec.WithFanout(c.Engine.Fanout),
		bookrec.WithLogger(logger),
		bookrec.WithDataset(dataset.Files{
			Books:   c.Data.Books,
			Ratings: c.Data.Ratings,
			Users:   c.Data.Users,
		}),
	}
	return opts, nil
}

// openEngine wires config into a running engine, serving from cache when the
// artifacts are intact and rebuilding otherwise.
func openEngine(ctx context.Context, cfg *Config, logger *bookrec.Logger) (*bookrec.Engine, error) {
	opts, err := cfg.engineOptions(logger)
	if err != nil {
		return nil, err
	}
	return bookrec.Open(ctx, opts...)
}
