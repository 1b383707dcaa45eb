package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "wim.cfg.json"

// DisplayConfig holds the presentation options consumed by the viewer and editor.
type DisplayConfig struct {
	Layout          string  `json:"layout" mapstructure:"layout"`
	MarkerColor     string  `json:"markerColor" mapstructure:"markerColor"`
	AreaFillColor   string  `json:"areaFillColor" mapstructure:"areaFillColor"`
	AreaStrokeColor string  `json:"areaStrokeColor" mapstructure:"areaStrokeColor"`
	AreaFillOpacity float64 `json:"areaFillOpacity" mapstructure:"areaFillOpacity"`
}

// MemoryConfig holds in-memory storage backend settings
type MemoryConfig struct {
	SeedFile string `json:"seedFile" mapstructure:"seedFile"`
}

// SQLiteConfig holds SQLite storage backend settings. An empty Path keeps the
// database in memory; DumpPath then receives periodic snapshots.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN returns the connection string for gorm's postgres driver.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// StorageConfig selects and configures the map store.
type StorageConfig struct {
	Type     string         `json:"type" mapstructure:"type"`
	Memory   MemoryConfig   `json:"memory" mapstructure:"memory"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
}

// APIConfig holds settings for the remote REST store.
type APIConfig struct {
	BaseURL string        `json:"baseUrl" mapstructure:"baseUrl"`
	AjaxURL string        `json:"ajaxUrl" mapstructure:"ajaxUrl"`
	Nonce   string        `json:"nonce" mapstructure:"nonce"`
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
}

// CacheConfig holds settings for the redis read-through cache.
type CacheConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Address  string        `json:"address" mapstructure:"address"`
	Password string        `json:"password" mapstructure:"password"`
	DB       int           `json:"db" mapstructure:"db"`
	TTL      time.Duration `json:"ttl" mapstructure:"ttl"`
}

// InfluxConfig holds InfluxDB telemetry settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// GraylogConfig holds the GELF log sink settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A .env file in the
// same directory is loaded into the environment first, and WIM_* variables
// override file values (WIM_STORAGE_TYPE for storage.type).
func Load(configDir string) error {
	setDefaults()

	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading .env file: %v", err)
	}

	viper.SetEnvPrefix("WIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./wimlogs")

	viper.SetDefault("display.layout", "side")
	viper.SetDefault("display.markerColor", "#ff6600")
	viper.SetDefault("display.areaFillColor", "#3388ff")
	viper.SetDefault("display.areaStrokeColor", "#0055cc")
	viper.SetDefault("display.areaFillOpacity", 0.3)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.seedFile", "")
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "wim")

	viper.SetDefault("api.baseUrl", "http://localhost:8080/wp-json/wim/v1")
	viper.SetDefault("api.ajaxUrl", "http://localhost:8080/wp-admin/admin-ajax.php")
	viper.SetDefault("api.nonce", "")
	viper.SetDefault("api.timeout", "30s")

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.address", "localhost:6379")
	viper.SetDefault("cache.password", "")
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.ttl", "5m")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "wim-metrics")
	viper.SetDefault("influx.bucket", "interactions")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetDisplayConfig returns the display options. An unknown layout falls back
// to "side", and an opacity above 1 is read as a 0-100 percentage.
func GetDisplayConfig() DisplayConfig {
	cfg := DisplayConfig{
		Layout:          viper.GetString("display.layout"),
		MarkerColor:     viper.GetString("display.markerColor"),
		AreaFillColor:   viper.GetString("display.areaFillColor"),
		AreaStrokeColor: viper.GetString("display.areaStrokeColor"),
		AreaFillOpacity: viper.GetFloat64("display.areaFillOpacity"),
	}
	if cfg.Layout != "side" && cfg.Layout != "popup" {
		cfg.Layout = "side"
	}
	if cfg.AreaFillOpacity > 1 {
		cfg.AreaFillOpacity /= 100
	}
	if cfg.AreaFillOpacity > 1 {
		cfg.AreaFillOpacity = 1
	}
	return cfg
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			SeedFile: viper.GetString("storage.memory.seedFile"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
		},
	}
}

// GetAPIConfig returns the remote store configuration.
func GetAPIConfig() APIConfig {
	return APIConfig{
		BaseURL: viper.GetString("api.baseUrl"),
		AjaxURL: viper.GetString("api.ajaxUrl"),
		Nonce:   viper.GetString("api.nonce"),
		Timeout: viper.GetDuration("api.timeout"),
	}
}

// GetCacheConfig returns the redis cache configuration.
func GetCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:  viper.GetBool("cache.enabled"),
		Address:  viper.GetString("cache.address"),
		Password: viper.GetString("cache.password"),
		DB:       viper.GetInt("cache.db"),
		TTL:      viper.GetDuration("cache.ttl"),
	}
}

// GetInfluxConfig returns the InfluxDB telemetry configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the GELF sink configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
