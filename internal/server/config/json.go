package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/flagx"
	"github.com/dmitrijs2005/fieldsync/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Durations use timex.Duration so both "15m" and integer nanoseconds
// are accepted.
type JsonConfig struct {
	EndpointAddrGRPC string         `json:"endpoint_addr_grpc"`
	DatabaseDSN      string         `json:"database_dsn"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	PublicBaseURL    string         `json:"public_base_url"`
	PresignExpiry    timex.Duration `json:"presign_expiry"`
	LogLevel         string         `json:"log_level"`
	LogFormat        string         `json:"log_format"`
	LogFile          string         `json:"log_file"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag. Keys missing from the file keep their current value. Panics
// if the file cannot be read or contains invalid JSON.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.PublicBaseURL, c.PublicBaseURL)
	if c.PresignExpiry.Duration != 0 {
		config.PresignExpiry = c.PresignExpiry.Duration
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	setString(&config.LogFile, c.LogFile)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
