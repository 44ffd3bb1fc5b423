package config

import "github.com/ilyakaznacheev/cleanenv"

// parseEnv overlays Config with FIELDSYNC_* environment variables.
// Panics on malformed values.
func parseEnv(cfg *Config) {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		panic(err)
	}
}
