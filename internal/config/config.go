// Package config loads the hierarchical configuration document described
// in spec.md §6: environment variables and struct defaults for the
// scalar groups, an optional JSON overlay file for the nested maps env
// vars can't comfortably express (per-provider rate limits, scheduled
// job definitions).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DataConfig is §6's `data_config` group.
type DataConfig struct {
	DataDir           string
	BatchSize         int
	DownloadChunkDays int
	MarketPresets     map[string][]string // preset name -> exchanges
}

// DatabaseConfig is §6's `database_config` group.
type DatabaseConfig struct {
	DBPath        string
	BackupEnabled bool
}

// ProviderConfig is one entry of §6's `data_sources_config` map.
type ProviderConfig struct {
	Enabled              bool
	ExchangesSupported   []string
	PrimarySourceOf      []string
	MaxRequestsPerMinute int
	MaxRequestsPerHour   int
	MaxRequestsPerDay    int
	RetryTimes           int
	RetryInterval        time.Duration
}

// JobConfig is one entry of §6's `scheduler_config.jobs` map.
type JobConfig struct {
	Enabled          bool
	Trigger          string
	Parameters       map[string]interface{}
	MaxInstances     int
	MisfireGraceTime time.Duration
	Coalesce         bool
	Report           bool
}

// SchedulerConfig is §6's `scheduler_config` group.
type SchedulerConfig struct {
	Enabled  bool
	Timezone string
	Jobs     map[string]JobConfig
}

// BackupConfig is §6's `backup_config` group, extended with optional
// S3-compatible remote upload fields (SPEC_FULL.md §C's remote-backup
// supplement). RemoteBucket empty disables remote upload entirely.
type BackupConfig struct {
	SourceDBPath    string
	BackupDirectory string
	RetentionDays   int
	FilenamePattern string
	MaxBackupFiles  int

	RemoteBucket    string
	RemoteEndpoint  string
	RemoteRegion    string
	RemoteAccessKey string
	RemoteSecretKey string
}

// MonitorConfig is §6's `monitor_config` group.
type MonitorConfig struct {
	MaxHistorySize  int
	AlertThresholds map[string]float64
	StartupDelay    time.Duration
	MinWaitTime     time.Duration
}

// Config holds the full configuration document (§6).
type Config struct {
	LogLevel string
	DevMode  bool
	Port     int

	Data        DataConfig
	Database    DatabaseConfig
	DataSources map[string]ProviderConfig
	Scheduler   SchedulerConfig
	Backup      BackupConfig
	Monitor     MonitorConfig
}

// overlay is the JSON shape of the nested-map overlay file.
type overlay struct {
	DataSourcesConfig map[string]ProviderConfig `json:"data_sources_config"`
	SchedulerConfig    *SchedulerConfig          `json:"scheduler_config"`
	MarketPresets      map[string][]string       `json:"market_presets"`
	AlertThresholds    map[string]float64         `json:"alert_thresholds"`
}

// Load reads configuration from environment variables (via godotenv),
// applies struct defaults, then overlays an optional JSON file for the
// nested maps (§6), mirroring the teacher's settings-DB-overrides-env
// layering with a JSON file standing in for the settings DB.
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	dataDir := ""
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("QUOTEFLOW_DATA_DIR", "")
	}
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve data directory: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("config: create data directory: %w", err)
	}

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		Port:     getEnvAsInt("PORT", 8080),
		Data: DataConfig{
			DataDir:           absDataDir,
			BatchSize:         getEnvAsInt("DATA_BATCH_SIZE", 50),
			DownloadChunkDays: getEnvAsInt("DOWNLOAD_CHUNK_DAYS", 0),
			MarketPresets:     map[string][]string{},
		},
		Database: DatabaseConfig{
			DBPath:        filepath.Join(absDataDir, "quotes.db"),
			BackupEnabled: getEnvAsBool("BACKUP_ENABLED", true),
		},
		DataSources: defaultDataSources(),
		Scheduler: SchedulerConfig{
			Enabled:  getEnvAsBool("SCHEDULER_ENABLED", true),
			Timezone: getEnv("SCHEDULER_TIMEZONE", "UTC"),
			Jobs:     defaultJobs(),
		},
		Backup: BackupConfig{
			SourceDBPath:    filepath.Join(absDataDir, "quotes.db"),
			BackupDirectory: filepath.Join(absDataDir, "backups"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
			FilenamePattern: getEnv("BACKUP_FILENAME_PATTERN", "quotes_backup_%s"),
			MaxBackupFiles:  getEnvAsInt("BACKUP_MAX_FILES", 10),
			RemoteBucket:    getEnv("BACKUP_S3_BUCKET", ""),
			RemoteEndpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
			RemoteRegion:    getEnv("BACKUP_S3_REGION", "auto"),
			RemoteAccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
			RemoteSecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		},
		Monitor: MonitorConfig{
			MaxHistorySize:  getEnvAsInt("MONITOR_MAX_HISTORY_SIZE", 1000),
			AlertThresholds: map[string]float64{},
			StartupDelay:    time.Duration(getEnvAsInt("MONITOR_STARTUP_DELAY_SECONDS", 5)) * time.Second,
			MinWaitTime:     time.Duration(getEnvAsInt("MONITOR_MIN_WAIT_SECONDS", 1)) * time.Second,
		},
	}

	overlayPath := getEnv("CONFIG_JSON_PATH", filepath.Join(absDataDir, "config.json"))
	if err := applyOverlay(cfg, overlayPath); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultDataSources() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"akshare": {
			Enabled: true, ExchangesSupported: []string{"SSE", "SZSE", "BSE"}, PrimarySourceOf: []string{"SSE", "SZSE", "BSE"},
			MaxRequestsPerMinute: 30, MaxRequestsPerHour: 500, MaxRequestsPerDay: 5000, RetryTimes: 3, RetryInterval: 2 * time.Second,
		},
		"baostock": {
			Enabled: true, ExchangesSupported: []string{"SSE", "SZSE"},
			MaxRequestsPerMinute: 30, MaxRequestsPerHour: 500, MaxRequestsPerDay: 5000, RetryTimes: 3, RetryInterval: 2 * time.Second,
		},
		"tushare": {
			Enabled: true, ExchangesSupported: []string{"SSE", "SZSE", "BSE"},
			MaxRequestsPerMinute: 20, MaxRequestsPerHour: 200, MaxRequestsPerDay: 2000, RetryTimes: 3, RetryInterval: 3 * time.Second,
		},
		"yfinance": {
			Enabled: true, ExchangesSupported: []string{"NASDAQ", "NYSE", "HKEX"}, PrimarySourceOf: []string{"NASDAQ", "NYSE", "HKEX"},
			MaxRequestsPerMinute: 30, MaxRequestsPerHour: 500, MaxRequestsPerDay: 5000, RetryTimes: 3, RetryInterval: 2 * time.Second,
		},
	}
}

func defaultJobs() map[string]JobConfig {
	return map[string]JobConfig{
		"historical_download": {Enabled: false, Trigger: "0 2 1 * *", MaxInstances: 1, MisfireGraceTime: time.Hour, Report: true},
		"daily_update":         {Enabled: true, Trigger: "30 18 * * 1-5", MaxInstances: 1, MisfireGraceTime: 30 * time.Minute, Coalesce: true, Report: true},
		"gap_fill":             {Enabled: true, Trigger: "0 3 * * *", MaxInstances: 1, MisfireGraceTime: 30 * time.Minute, Report: true},
		"wal_checkpoint":       {Enabled: true, Trigger: "*/15 * * * *", MaxInstances: 1, Coalesce: true},
		"integrity_check":      {Enabled: true, Trigger: "0 4 * * *", MaxInstances: 1},
	}
}

// applyOverlay merges a JSON overlay file's nested maps into cfg. A
// missing file is not an error; the struct defaults stand.
func applyOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read overlay %s: %w", path, err)
	}

	var ov overlay
	if err := json.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("config: parse overlay %s: %w", path, err)
	}

	for name, pc := range ov.DataSourcesConfig {
		cfg.DataSources[name] = pc
	}
	if ov.SchedulerConfig != nil {
		if ov.SchedulerConfig.Jobs != nil {
			for id, jc := range ov.SchedulerConfig.Jobs {
				cfg.Scheduler.Jobs[id] = jc
			}
		}
		if ov.SchedulerConfig.Timezone != "" {
			cfg.Scheduler.Timezone = ov.SchedulerConfig.Timezone
		}
	}
	for name, exchanges := range ov.MarketPresets {
		cfg.Data.MarketPresets[name] = exchanges
	}
	for name, threshold := range ov.AlertThresholds {
		cfg.Monitor.AlertThresholds[name] = threshold
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
