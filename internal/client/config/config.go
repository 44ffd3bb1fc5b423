package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/go-playground/validator/v10"
)

// Config holds runtime settings for the fieldsync client.
//
// Units: every interval is a time.Duration (e.g., 3*time.Second).
type Config struct {
	ServerEndpointAddr string `env:"FIELDSYNC_SERVER_ADDR" validate:"required,hostname_port"`
	DataDir            string `env:"FIELDSYNC_DATA_DIR" validate:"required"`
	// DatabasePath defaults to fieldsync.db inside DataDir.
	DatabasePath string `env:"FIELDSYNC_DB_PATH"`
	DeviceID     string `env:"FIELDSYNC_DEVICE_ID" validate:"required"`

	OnlineCheckInterval  time.Duration `env:"FIELDSYNC_ONLINE_CHECK_INTERVAL" validate:"gt=0"`
	ProbeTimeout         time.Duration `env:"FIELDSYNC_PROBE_TIMEOUT" validate:"gt=0"`
	AutoSyncInterval     time.Duration `env:"FIELDSYNC_AUTO_SYNC_INTERVAL" validate:"gt=0"`
	ReconnectSettleDelay time.Duration `env:"FIELDSYNC_RECONNECT_SETTLE_DELAY" validate:"gte=0"`
	RequestTimeout       time.Duration `env:"FIELDSYNC_REQUEST_TIMEOUT" validate:"gt=0"`

	// TriggerFile, when set, starts a sync each time the file is written.
	TriggerFile string `env:"FIELDSYNC_TRIGGER_FILE"`

	LogLevel  string `env:"FIELDSYNC_LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `env:"FIELDSYNC_LOG_FORMAT" validate:"oneof=json text"`
	LogFile   string `env:"FIELDSYNC_LOG_FILE"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DataDir = defaultDataDir()
	c.DeviceID = defaultDeviceID()
	c.OnlineCheckInterval = 3 * time.Second
	c.ProbeTimeout = 3 * time.Second
	c.AutoSyncInterval = common.DefaultAutoSyncInterval
	c.ReconnectSettleDelay = common.DefaultReconnectSettleDelay
	c.RequestTimeout = 30 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// DBPath returns the SQLite file location.
func (c *Config) DBPath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.DataDir, "fieldsync.db")
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags (if present).
// Later sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "fieldsync")
	}
	return ".fieldsync"
}

func defaultDeviceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "unknown-device"
}
