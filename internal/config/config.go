// Package config loads environment settings (optionally from a .env file)
// and describes the school a library instance belongs to.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env from the working directory into the process
// environment. Variables already set win. A missing file is not an error.
func LoadEnv(logger *slog.Logger, files ...string) {
	if err := godotenv.Load(files...); err != nil {
		if logger != nil {
			logger.Debug("no .env file loaded, using system environment", "error", err)
		}
		return
	}
	if logger != nil {
		logger.Debug(".env file loaded")
	}
}

// GetEnv returns the value of key, or defaultValue when it is unset or blank.
func GetEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return defaultValue
}

// GetEnvInt parses key as an int, falling back to defaultValue.
func GetEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(GetEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

// GetEnvFloat parses key as a float64, falling back to defaultValue.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(GetEnv(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}

// GetEnvBool parses key with strconv.ParseBool, falling back to defaultValue.
func GetEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(GetEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

// GetEnvDuration parses key as a duration such as "15m", falling back to
// defaultValue.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(GetEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

// ParseLevel maps debug|info|warn|error onto a slog level; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// School identifies the institution a library instance serves.
type School struct {
	Name         string `json:"name"`
	Code         string `json:"code"`
	AdminEmail   string `json:"adminEmail,omitempty"`
	ContactPhone string `json:"contactPhone,omitempty"`
}

// SchoolFromEnv reads SCHOOL_NAME, SCHOOL_CODE, SCHOOL_ADMIN_EMAIL and
// SCHOOL_CONTACT_PHONE.
func SchoolFromEnv() School {
	return School{
		Name:         GetEnv("SCHOOL_NAME", "School Library"),
		Code:         GetEnv("SCHOOL_CODE", "school"),
		AdminEmail:   GetEnv("SCHOOL_ADMIN_EMAIL", ""),
		ContactPhone: GetEnv("SCHOOL_CONTACT_PHONE", ""),
	}
}

// Slug lower-cases the school code and keeps only characters that are
// safe in a file name.
func (s School) Slug() string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s.Code)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "school"
	}
	return b.String()
}

// DefaultDSN is the SQLite file used when no DSN is configured: one database
// per school, next to the binary's working directory.
func (s School) DefaultDSN() string {
	return filepath.Join(".", s.Slug()+"-library.db")
}
