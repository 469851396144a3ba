package config

import (
	"encoding/json"
	"os"

	"github.com/tablescout/tablescout/internal/flagx"
	"github.com/tablescout/tablescout/internal/timex"
)

// JsonConfig is the on-disk shape of the optional JSON config file. Durations
// use timex.Duration so they can be written as "15m" or "720h". Zero values
// leave the current setting untouched.
type JsonConfig struct {
	ServiceName                  string         `json:"service_name"`
	APIAudience                  string         `json:"api_audience"`
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	RedisAddr                    string         `json:"redis_addr"`
	SecretKey                    string         `json:"secret_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	LoginMaxAttempts             int            `json:"login_max_attempts"`
	LoginCooldownDuration        timex.Duration `json:"login_cooldown_duration"`
	LogLevel                     string         `json:"log_level"`
	TestMode                     *bool          `json:"test_mode"`
}

// parseJson loads the file named by -c/-config (if any) and overlays its
// non-zero values onto config.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&config.ServiceName, c.ServiceName)
	overlay(&config.APIAudience, c.APIAudience)
	overlay(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlay(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	overlay(&config.DatabaseDSN, c.DatabaseDSN)
	overlay(&config.RedisAddr, c.RedisAddr)
	overlay(&config.SecretKey, c.SecretKey)
	overlay(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.LoginCooldownDuration.Duration != 0 {
		config.LoginCooldownDuration = c.LoginCooldownDuration.Duration
	}
	if c.LoginMaxAttempts != 0 {
		config.LoginMaxAttempts = c.LoginMaxAttempts
	}
	if c.TestMode != nil {
		config.TestMode = *c.TestMode
	}
	return nil
}
