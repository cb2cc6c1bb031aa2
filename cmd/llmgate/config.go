package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/llmgate/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultLLMOrigin    = "http://localhost:8001"
	defaultEnvironment  = "production"
	defaultSameSite     = "lax"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Duplicate logs into rotating file if set
	LogFile string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secrets to sign access and refresh tokens
	AccessSecret  string
	RefreshSecret string

	// Environment (dev, prod)
	Environment string

	// LLM service to proxy prompts to
	LLMOrigin string
	LLMAPIKey string

	// Administrator created at startup if not exists yet
	AdminEmail    string
	AdminPassword string

	// Origins allowed to call the API from browser
	AllowedOrigins []string

	CookieSecure   bool
	CookieSameSite string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:       defaultLoggingLevel,
		ListenAddr:     defaultListenAddr,
		LLMOrigin:      defaultLLMOrigin,
		Environment:    defaultEnvironment,
		CookieSameSite: defaultSameSite,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setList := func(o *[]string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = splitList(value)
			}
			return nil
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = b
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":     setString(&c.ListenAddr),
		"DATABASE_URI":    setString(&c.DatabaseDSN),
		"ACCESS_SECRET":   setString(&c.AccessSecret),
		"REFRESH_SECRET":  setString(&c.RefreshSecret),
		"LOG_LEVEL":       setString(&c.LogLevel),
		"LOG_FILE":        setString(&c.LogFile),
		"ENVIRONMENT":     setString(&c.Environment),
		"LLM_ORIGIN":      setString(&c.LLMOrigin),
		"LLM_API_KEY":     setString(&c.LLMAPIKey),
		"ADMIN_EMAIL":     setString(&c.AdminEmail),
		"ADMIN_PASSWORD":  setString(&c.AdminPassword),
		"ALLOWED_ORIGINS": setList(&c.AllowedOrigins),
		"COOKIE_SECURE":   setBool(&c.CookieSecure),
		"COOKIE_SAMESITE": setString(&c.CookieSameSite),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("llmgate", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.AccessSecret, "access-secret", c.AccessSecret, "Secret to sign access tokens")
	fs.StringVar(&c.RefreshSecret, "refresh-secret", c.RefreshSecret, "Secret to sign refresh tokens")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Duplicate logs into rotating file")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.LLMOrigin, "llm", "m", c.LLMOrigin, "LLM service address")
	fs.StringVar(&c.LLMAPIKey, "llm-api-key", c.LLMAPIKey, "LLM service API key")
	fs.StringVar(&c.AdminEmail, "admin-email", c.AdminEmail, "Administrator email")
	fs.StringVar(&c.AdminPassword, "admin-password", c.AdminPassword, "Administrator password")
	fs.StringSliceVar(&c.AllowedOrigins, "allowed-origins", c.AllowedOrigins, "Origins allowed by CORS, comma separated")
	fs.BoolVar(&c.CookieSecure, "cookie-secure", c.CookieSecure, "Set Secure flag on token cookies")
	fs.StringVar(&c.CookieSameSite, "cookie-samesite", c.CookieSameSite, "SameSite mode of token cookies (lax, strict, none)")

	return fs.Parse(args)
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
