// Package config loads runtime configuration for the fieldsync client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. FIELDSYNC_* environment variables (see parseEnv).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-d string   data directory
//	-i int      online status check interval (seconds)
//	-s int      auto-sync interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "data_dir": "/var/lib/fieldsync",
//	  "online_check_interval": "3s",
//	  "auto_sync_interval": "30s",
//	  "reconnect_settle_delay": "2s",
//	  "trigger_file": "/var/lib/fieldsync/sync.trigger"
//	}
package config
