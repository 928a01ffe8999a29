package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Store    StoreConfig    `mapstructure:"store"`
	Listing  ListingConfig  `mapstructure:"listing"`
	Display  DisplayConfig  `mapstructure:"display"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Backoff  BackoffConfig  `mapstructure:"backoff"`
	Picker   PickerConfig   `mapstructure:"picker"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Daemon   DaemonConfig   `mapstructure:"daemon"`
}

// ServerConfig controls the daemon's local control/status API. The default
// host keeps it loopback-only.
type ServerConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	Host    string     `mapstructure:"host"`
	Port    int        `mapstructure:"port"`
	Mode    string     `mapstructure:"mode"`
	CORS    CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`   // sqlite file path
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	default:
		return c.Path
	}
}

// StoreConfig locates the on-disk wallpaper pool.
type StoreConfig struct {
	Dir string `mapstructure:"dir"`
}

// ListingConfig describes which subreddit listings to page through.
type ListingConfig struct {
	Subreddits []string `mapstructure:"subreddits"`
	BaseURL    string   `mapstructure:"base_url"`
	UserAgent  string   `mapstructure:"user_agent"`
}

// Validate checks that the listing configuration is usable.
// Returns an error describing the first validation failure, or nil if valid.
func (c *ListingConfig) Validate() error {
	if len(c.Subreddits) == 0 {
		return fmt.Errorf("listing: at least one subreddit is required")
	}
	for _, sub := range c.Subreddits {
		if strings.TrimSpace(sub) == "" {
			return fmt.Errorf("listing: subreddit names must be non-empty")
		}
	}
	if c.BaseURL == "" {
		return fmt.Errorf("listing: base_url is required")
	}
	return nil
}

// DisplayConfig carries the target screen geometry used for aspect filtering.
type DisplayConfig struct {
	Width        int     `mapstructure:"width"`
	Height       int     `mapstructure:"height"`
	RatioEpsilon float64 `mapstructure:"ratio_epsilon"`
}

// Ratio returns the display's width:height aspect ratio.
func (c *DisplayConfig) Ratio() float64 {
	return float64(c.Width) / float64(c.Height)
}

// Validate checks that the display configuration is usable.
func (c *DisplayConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("display: width and height must be positive")
	}
	if c.RatioEpsilon <= 0 {
		return fmt.Errorf("display: ratio_epsilon must be positive")
	}
	return nil
}

type FetchConfig struct {
	Target  int           `mapstructure:"target"`  // desired store pool size
	Workers int           `mapstructure:"workers"` // concurrent in-flight resolutions
	Timeout time.Duration `mapstructure:"timeout"` // per-request hard timeout
}

type BackoffConfig struct {
	Retries int           `mapstructure:"retries"`
	MinWait time.Duration `mapstructure:"min_wait"`
	MaxWait time.Duration `mapstructure:"max_wait"`
	Jitter  float64       `mapstructure:"jitter"`
}

type PickerConfig struct {
	MaxDistance   int      `mapstructure:"max_distance"`   // hamming distance threshold against applied hashes
	SetterCommand []string `mapstructure:"setter_command"` // argv template; {path} is replaced, or path appended
	CurrentPath   string   `mapstructure:"current_path"`   // where the applied wallpaper is copied for the setter
}

type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

type DaemonConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 7786)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/redditbg.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "redditbg")
	v.SetDefault("database.name", "redditbg")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("store.dir", "./data/images")
	v.SetDefault("listing.subreddits", []string{"wallpaper", "wallpapers"})
	v.SetDefault("listing.base_url", "https://www.reddit.com")
	v.SetDefault("listing.user_agent", "redditbg/2.0")
	v.SetDefault("display.width", 1920)
	v.SetDefault("display.height", 1080)
	v.SetDefault("display.ratio_epsilon", 0.01)
	v.SetDefault("fetch.target", 25)
	v.SetDefault("fetch.workers", 25)
	v.SetDefault("fetch.timeout", 60*time.Second)
	v.SetDefault("backoff.retries", 10)
	v.SetDefault("backoff.min_wait", time.Second)
	v.SetDefault("backoff.max_wait", 15*time.Second)
	v.SetDefault("backoff.jitter", 0.3)
	v.SetDefault("picker.max_distance", 8)
	v.SetDefault("picker.setter_command", []string{})
	v.SetDefault("picker.current_path", "./data/current.png")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.use_ssl", true)
	v.SetDefault("archive.bucket", "redditbg-retired")
	v.SetDefault("archive.region", "")
	v.SetDefault("daemon.interval", time.Hour)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("archive.endpoint", "ARCHIVE_ENDPOINT")
	v.BindEnv("archive.access_key", "ARCHIVE_ACCESS_KEY")
	v.BindEnv("archive.secret_key", "ARCHIVE_SECRET_KEY")
	v.BindEnv("archive.bucket", "ARCHIVE_BUCKET")
	v.BindEnv("listing.user_agent", "REDDITBG_USER_AGENT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Listing.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Display.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
