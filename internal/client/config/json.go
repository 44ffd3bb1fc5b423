package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerEndpointAddr   string         `json:"server_endpoint_addr"`
	DataDir              string         `json:"data_dir"`
	DatabasePath         string         `json:"database_path"`
	DeviceID             string         `json:"device_id"`
	OnlineCheckInterval  timex.Duration `json:"online_check_interval"`
	ProbeTimeout         timex.Duration `json:"probe_timeout"`
	AutoSyncInterval     timex.Duration `json:"auto_sync_interval"`
	ReconnectSettleDelay timex.Duration `json:"reconnect_settle_delay"`
	RequestTimeout       timex.Duration `json:"request_timeout"`
	TriggerFile          string         `json:"trigger_file"`
	LogLevel             string         `json:"log_level"`
	LogFormat            string         `json:"log_format"`
	LogFile              string         `json:"log_file"`
}

// parseJson overlays Config with values loaded from a JSON file selected by
// -c or -config. Keys absent from the file keep their current value.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.DeviceID, jc.DeviceID)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.ProbeTimeout, jc.ProbeTimeout)
	setDuration(&cfg.AutoSyncInterval, jc.AutoSyncInterval)
	setDuration(&cfg.ReconnectSettleDelay, jc.ReconnectSettleDelay)
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setString(&cfg.TriggerFile, jc.TriggerFile)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	setString(&cfg.LogFile, jc.LogFile)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = time.Duration(v.Duration)
	}
}
