package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by parseEnv.
const (
	envHTTPAddr         = "HTTP_ADDR"
	envGRPCAddr         = "GRPC_ADDR"
	envDatabaseURL      = "DATABASE_URL"
	envRedisAddr        = "REDIS_ADDR"
	envJWTSecret        = "JWT_SECRET"
	envJWTIssuer        = "JWT_ISSUER"
	envJWTAudience      = "JWT_AUDIENCE"
	envAccessTokenTTL   = "ACCESS_TOKEN_TTL"
	envRefreshTokenTTL  = "REFRESH_TOKEN_TTL"
	envLoginMaxAttempts = "LOGIN_MAX_ATTEMPTS"
	envLoginCooldown    = "LOGIN_COOLDOWN"
	envLogLevel         = "LOG_LEVEL"
	envAppEnv           = "APP_ENV"
)

type lookupFunc func(key string) (string, bool)

// parseEnv overlays config values from the process environment. Values in
// envFile (dotenv format) are used for keys the real environment lacks; a
// missing file is not an error.
func parseEnv(config *Config, envFile string, lookupEnv lookupFunc) error {
	fileVals := map[string]string{}
	if envFile != "" {
		vals, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVals = vals
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	get := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok
	}

	setString := func(key string, dst *string) {
		if v, ok := get(key); ok && v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) error {
		v, ok := get(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	setString(envHTTPAddr, &config.EndpointAddrHTTP)
	setString(envGRPCAddr, &config.EndpointAddrGRPC)
	setString(envDatabaseURL, &config.DatabaseDSN)
	setString(envRedisAddr, &config.RedisAddr)
	setString(envJWTSecret, &config.SecretKey)
	setString(envJWTIssuer, &config.ServiceName)
	setString(envJWTAudience, &config.APIAudience)
	setString(envLogLevel, &config.LogLevel)

	if err := setDuration(envAccessTokenTTL, &config.AccessTokenValidityDuration); err != nil {
		return err
	}
	if err := setDuration(envRefreshTokenTTL, &config.RefreshTokenValidityDuration); err != nil {
		return err
	}
	if err := setDuration(envLoginCooldown, &config.LoginCooldownDuration); err != nil {
		return err
	}

	if v, ok := get(envLoginMaxAttempts); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envLoginMaxAttempts, err)
		}
		config.LoginMaxAttempts = n
	}

	if v, ok := get(envAppEnv); ok {
		config.TestMode = strings.EqualFold(strings.TrimSpace(v), "test")
	}

	return nil
}
