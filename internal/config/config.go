// Package config declares every environment variable the service reads,
// with descriptions and defaults. The registry is the single source of
// truth: typed getters read through it, and the HTTP API publishes it as
// the self-description document.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AdvertiseType selects what the presence line advertises.
type AdvertiseType int

const (
	AdvertiseServerCount AdvertiseType = iota
	AdvertiseIndividually
	AdvertisePlayerStats
)

// Variable describes one recognized environment variable.
type Variable struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     string `json:"default"`
	Required    bool   `json:"required"`
}

// Variables lists every recognized variable, in display order.
var Variables = []Variable{
	{Name: "APP_TOKEN", Description: "Chat platform bot token.", Required: true},
	{Name: "WHITELIST_GUILDS", Description: "Guild ids, separated by a semicolon or comma.", Required: true},
	{Name: "APP_DEBUG", Description: "Enable application debug mode.", Default: "false"},
	{Name: "APP_ACTIVITY_TYPE", Description: "Presence activity type override. playing = 0, listening = 2, watching = 3, competing = 5", Default: "3"},
	{Name: "APP_ACTIVITY_NAME", Description: "Presence activity name override."},
	{Name: "APP_ADVERTISE_TYPE", Description: "Presence advertise type. server_count = 0, individually = 1, player_stats = 2", Default: "0"},
	{Name: "TASK_QUERY_SERVER", Description: "Query servers task period in seconds. Minimum 15.", Default: "60"},
	{Name: "TASK_QUERY_SERVER_TIMEOUT", Description: "Per-probe timeout in seconds.", Default: "15"},
	{Name: "TASK_QUERY_CHUNK_SIZE", Description: "Probes in flight per chunk.", Default: "50"},
	{Name: "TASK_QUERY_DISABLE_AFTER_DAYS", Description: "Skip servers offline for longer than this many days. 0 disables the filter.", Default: "0"},
	{Name: "TASK_EDIT_MESSAGE_TIMEOUT", Description: "Per-message-edit timeout in seconds.", Default: "3"},
	{Name: "DB_CONNECTION", Description: "Database type. Accepted value: sqlite, pgsql", Default: "sqlite"},
	{Name: "DATABASE_URL", Description: "Database connection url."},
	{Name: "POSTGRES_SSL_MODE", Description: "Postgres sslmode appended to the connection url.", Default: "prefer"},
	{Name: "METRICS_ENABLE", Description: "Record per-server player metrics.", Default: "false"},
	{Name: "METRICS_RECORD_LIMIT", Description: "Metric records kept per server.", Default: "1000"},
	{Name: "WEB_API_ENABLE", Description: "Enable the read-only web API.", Default: "false"},
	{Name: "WEB_API_LISTEN", Description: "Web API listen address.", Default: ":8088"},
	{Name: "HEROKU_APP_NAME", Description: "Heroku application name. (Heroku only)"},
	{Name: "FACTORIO_USERNAME", Description: "The factorio username associated with the auth token."},
	{Name: "FACTORIO_TOKEN", Description: "The factorio auth token."},
}

// minQueryInterval is the floor of the probe tick period.
const minQueryInterval = 15 * time.Second

// Config is the parsed service configuration.
type Config struct {
	Token string
	Debug bool

	ActivityType  int
	ActivityName  string
	AdvertiseType AdvertiseType

	QueryInterval    time.Duration
	QueryTimeout     time.Duration
	ChunkSize        int
	DisableAfterDays int
	EditTimeout      time.Duration

	DBConnection    string
	DatabaseURL     string
	PostgresSSLMode string

	MetricsEnable      bool
	MetricsRecordLimit int

	WebAPIEnable bool
	WebAPIListen string

	HerokuAppName string

	FactorioUsername string
	FactorioToken    string
}

// Load reads .env if present, then parses the environment into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Token:              getString("APP_TOKEN"),
		Debug:              getBool("APP_DEBUG"),
		ActivityType:       getInt("APP_ACTIVITY_TYPE"),
		ActivityName:       getString("APP_ACTIVITY_NAME"),
		AdvertiseType:      AdvertiseType(getInt("APP_ADVERTISE_TYPE")),
		QueryInterval:      getSeconds("TASK_QUERY_SERVER"),
		QueryTimeout:       getSeconds("TASK_QUERY_SERVER_TIMEOUT"),
		ChunkSize:          getInt("TASK_QUERY_CHUNK_SIZE"),
		DisableAfterDays:   getInt("TASK_QUERY_DISABLE_AFTER_DAYS"),
		EditTimeout:        getSeconds("TASK_EDIT_MESSAGE_TIMEOUT"),
		DBConnection:       getString("DB_CONNECTION"),
		DatabaseURL:        getString("DATABASE_URL"),
		PostgresSSLMode:    getString("POSTGRES_SSL_MODE"),
		MetricsEnable:      getBool("METRICS_ENABLE"),
		MetricsRecordLimit: getInt("METRICS_RECORD_LIMIT"),
		WebAPIEnable:       getBool("WEB_API_ENABLE"),
		WebAPIListen:       getString("WEB_API_LISTEN"),
		HerokuAppName:      getString("HEROKU_APP_NAME"),
		FactorioUsername:   strings.TrimSpace(getString("FACTORIO_USERNAME")),
		FactorioToken:      strings.TrimSpace(getString("FACTORIO_TOKEN")),
	}

	if cfg.Token == "" {
		return nil, fmt.Errorf("config: APP_TOKEN is required")
	}

	if cfg.QueryInterval < minQueryInterval {
		cfg.QueryInterval = minQueryInterval
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 1
	}
	if cfg.AdvertiseType < AdvertiseServerCount || cfg.AdvertiseType > AdvertisePlayerStats {
		cfg.AdvertiseType = AdvertiseServerCount
	}

	switch cfg.DBConnection {
	case "sqlite", "pgsql":
	default:
		return nil, fmt.Errorf("config: unsupported DB_CONNECTION %q", cfg.DBConnection)
	}

	return cfg, nil
}

// variablesByName indexes the registry for getter lookups.
var variablesByName = func() map[string]Variable {
	m := make(map[string]Variable, len(Variables))
	for _, v := range Variables {
		m[v.Name] = v
	}
	return m
}()

func getString(name string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return variablesByName[name].Default
}

func getBool(name string) bool {
	return strings.EqualFold(getString(name), "true")
}

func getInt(name string) int {
	if n, err := strconv.Atoi(getString(name)); err == nil {
		return n
	}
	n, _ := strconv.Atoi(variablesByName[name].Default)
	return n
}

func getSeconds(name string) time.Duration {
	if f, err := strconv.ParseFloat(getString(name), 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	f, _ := strconv.ParseFloat(variablesByName[name].Default, 64)
	return time.Duration(f * float64(time.Second))
}
