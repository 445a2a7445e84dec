package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MaxPageSize is the largest limit the listing API accepts.
const MaxPageSize = 100

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Picsum   PicsumConfig   `mapstructure:"picsum"`
	Gallery  GalleryConfig  `mapstructure:"gallery"`
	Media    MediaConfig    `mapstructure:"media"`
}

type ServerConfig struct {
	Port        int        `mapstructure:"port"`
	Mode        string     `mapstructure:"mode"`
	Compression bool       `mapstructure:"compression"`
	CORS        CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file
	URL             string        `mapstructure:"url"`    // full DSN, overrides the fields below
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

type StorageConfig struct {
	Type      string        `mapstructure:"type"` // local, s3, r2, s3compatible; empty auto-detects
	Endpoint  string        `mapstructure:"endpoint"`
	AccessKey string        `mapstructure:"access_key"`
	SecretKey string        `mapstructure:"secret_key"`
	UseSSL    bool          `mapstructure:"use_ssl"`
	Bucket    string        `mapstructure:"bucket"`
	Region    string        `mapstructure:"region"`
	PublicURL string        `mapstructure:"public_url"`
	LocalDir  string        `mapstructure:"local_dir"`
	ShareTTL  time.Duration `mapstructure:"share_ttl"`
}

type PicsumConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

type GalleryConfig struct {
	Source        string        `mapstructure:"source"` // picsum or manifest
	ManifestPath  string        `mapstructure:"manifest_path"`
	PageSize      int           `mapstructure:"page_size"`
	MaxItems      int           `mapstructure:"max_items"`
	Dedupe        bool          `mapstructure:"dedupe"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	MaxSessions   int           `mapstructure:"max_sessions"`
}

type MediaConfig struct {
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	MaxBytes        int64         `mapstructure:"max_bytes"`
}

// Load reads configuration from the optional file, .env and the environment.
// Parameters:
//   - configPath: explicit config file; empty searches ./configs and . for config.yaml.
// Returns:
//   - *Config: loaded configuration.
//   - error: non-nil if the file cannot be read or decoded.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	_ = v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	_ = v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	_ = v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	_ = v.BindEnv("database.url", "DATABASE_DSN")
	_ = v.BindEnv("picsum.base_url", "PICSUM_BASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.compression", true)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/gallery.db")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gallery")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "gallery")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "gallery")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.public_url", "")
	v.SetDefault("storage.local_dir", "./data/images")
	v.SetDefault("storage.share_ttl", 24*time.Hour)

	v.SetDefault("picsum.base_url", "https://picsum.photos")
	v.SetDefault("picsum.timeout", 15*time.Second)
	v.SetDefault("picsum.cache_size", 256)
	v.SetDefault("picsum.cache_ttl", 5*time.Minute)

	v.SetDefault("gallery.source", "picsum")
	v.SetDefault("gallery.manifest_path", "")
	v.SetDefault("gallery.page_size", 20)
	v.SetDefault("gallery.max_items", 0)
	v.SetDefault("gallery.dedupe", true)
	v.SetDefault("gallery.session_ttl", 30*time.Minute)
	v.SetDefault("gallery.sweep_interval", time.Minute)
	v.SetDefault("gallery.max_sessions", 1000)

	v.SetDefault("media.download_timeout", 60*time.Second)
	v.SetDefault("media.max_bytes", int64(50<<20))
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.DSN() == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported database.driver: %q", c.Database.Driver))
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalDir == "" {
			errs = append(errs, errors.New("storage.local_dir is required for local storage"))
		}
	case "", "s3", "r2", "s3compatible":
		if c.Storage.Bucket == "" {
			errs = append(errs, errors.New("storage.bucket is required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage.type: %q", c.Storage.Type))
	}
	if c.Storage.ShareTTL <= 0 {
		errs = append(errs, errors.New("storage.share_ttl must be positive"))
	}

	switch c.Gallery.Source {
	case "picsum":
	case "manifest":
		if c.Gallery.ManifestPath == "" {
			errs = append(errs, errors.New("gallery.manifest_path is required for the manifest source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported gallery.source: %q", c.Gallery.Source))
	}
	if c.Gallery.PageSize < 0 || c.Gallery.PageSize > MaxPageSize {
		errs = append(errs, fmt.Errorf("gallery.page_size must be between 0 and %d", MaxPageSize))
	}
	if c.Gallery.MaxItems < 0 {
		errs = append(errs, errors.New("gallery.max_items must not be negative"))
	}
	if c.Gallery.SessionTTL <= 0 {
		errs = append(errs, errors.New("gallery.session_ttl must be positive"))
	}

	return errors.Join(errs...)
}
