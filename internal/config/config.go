package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Enabled bool   // SUITESYNC_ENABLED, default true
	Addr    string // SUITESYNC_ADDR, default ":8080"
	DBPath  string // SUITESYNC_DB, default "suitesync.db"

	// AuthToken guards the HTTP surface when non-empty.
	AuthToken string // SUITESYNC_AUTH_TOKEN, optional

	// SuiteCRM connection.
	CRMURL            string // SUITESYNC_CRM_URL
	CRMUser           string // SUITESYNC_CRM_USER
	CRMPassword       string // SUITESYNC_CRM_PASSWORD
	OAuthClientID     string // SUITESYNC_OAUTH_CLIENT_ID
	OAuthClientSecret string // SUITESYNC_OAUTH_CLIENT_SECRET

	// LimeSurvey RemoteControl connection.
	SurveyURL      string // SUITESYNC_LS_URL
	SurveyUser     string // SUITESYNC_LS_USER
	SurveyPassword string // SUITESYNC_LS_PASSWORD

	Debug         bool   // SUITESYNC_DEBUG, default false
	CacheTTLHours int    // SUITESYNC_CACHE_TTL_HOURS, default 24
	RefPrefix     string // SUITESYNC_REF_PREFIX, default "SURVEY"
}

// MissingError reports a configuration option required by the attempted
// operation but absent from the environment.
type MissingError struct {
	Option string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required configuration option %s", e.Option)
}

// Load reads configuration from the environment with sensible defaults. A
// .env file in the working directory is honored when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Enabled:           envBool("SUITESYNC_ENABLED", true),
		Addr:              envOr("SUITESYNC_ADDR", ":8080"),
		DBPath:            envOr("SUITESYNC_DB", "suitesync.db"),
		AuthToken:         os.Getenv("SUITESYNC_AUTH_TOKEN"),
		CRMURL:            os.Getenv("SUITESYNC_CRM_URL"),
		CRMUser:           os.Getenv("SUITESYNC_CRM_USER"),
		CRMPassword:       os.Getenv("SUITESYNC_CRM_PASSWORD"),
		OAuthClientID:     os.Getenv("SUITESYNC_OAUTH_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("SUITESYNC_OAUTH_CLIENT_SECRET"),
		SurveyURL:         os.Getenv("SUITESYNC_LS_URL"),
		SurveyUser:        os.Getenv("SUITESYNC_LS_USER"),
		SurveyPassword:    os.Getenv("SUITESYNC_LS_PASSWORD"),
		Debug:             envBool("SUITESYNC_DEBUG", false),
		CacheTTLHours:     envInt("SUITESYNC_CACHE_TTL_HOURS", 24),
		RefPrefix:         envOr("SUITESYNC_REF_PREFIX", "SURVEY"),
	}
}

// ValidateCRM checks that every option needed to talk to the CRM is present.
func (c Config) ValidateCRM() error {
	required := []struct {
		option string
		value  string
	}{
		{"SUITESYNC_CRM_URL", c.CRMURL},
		{"SUITESYNC_CRM_USER", c.CRMUser},
		{"SUITESYNC_CRM_PASSWORD", c.CRMPassword},
		{"SUITESYNC_OAUTH_CLIENT_ID", c.OAuthClientID},
	}
	for _, r := range required {
		if r.value == "" {
			return &MissingError{Option: r.option}
		}
	}
	return nil
}

// ValidateSurvey checks that every option needed to reach the survey engine is
// present.
func (c Config) ValidateSurvey() error {
	required := []struct {
		option string
		value  string
	}{
		{"SUITESYNC_LS_URL", c.SurveyURL},
		{"SUITESYNC_LS_USER", c.SurveyUser},
		{"SUITESYNC_LS_PASSWORD", c.SurveyPassword},
	}
	for _, r := range required {
		if r.value == "" {
			return &MissingError{Option: r.option}
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
