package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"descansos/internal/database"
	"descansos/internal/schedule"
	"descansos/internal/shift"
)

// Config is the full service configuration, loaded from YAML with
// ${ENV_VAR} placeholder expansion.
type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path   string                `yaml:"path"`
		Backup database.BackupConfig `yaml:"backup"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Scheduling struct {
		// Timezone anchors all shift math to one organizational
		// locale regardless of where the viewer is.
		Timezone             string        `yaml:"timezone"`
		BudgetCeilingMinutes int           `yaml:"budget_ceiling_minutes"`
		AllowedDurations     []int         `yaml:"allowed_durations"`
		SlotMinutes          int           `yaml:"slot_minutes"`
		Shifts               []shift.Shift `yaml:"shifts"`
	} `yaml:"scheduling"`

	Notifier struct {
		TelegramToken  string `yaml:"telegram_token"`
		TelegramChatID int64  `yaml:"telegram_chat_id"`
		LeadMinutes    int    `yaml:"lead_minutes"`
		CheckSeconds   int    `yaml:"check_seconds"`
		RatePerSecond  float64 `yaml:"rate_per_second"`
		Burst          int    `yaml:"burst"`
	} `yaml:"notifier"`

	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		RetentionDays int    `yaml:"retention_days"`
		ExportDir     string `yaml:"export_dir"`
		Sheets        struct {
			Enabled         bool   `yaml:"enabled"`
			CredentialsFile string `yaml:"credentials_file"`
			SpreadsheetID   string `yaml:"spreadsheet_id"`
		} `yaml:"sheets"`
	} `yaml:"audit"`
}

// Load reads and validates configuration from path, falling back to
// configs/config.yaml.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/descansos.db"
	}
	if c.Scheduling.Timezone == "" {
		c.Scheduling.Timezone = "Europe/Madrid"
	}
	if c.Scheduling.BudgetCeilingMinutes == 0 {
		c.Scheduling.BudgetCeilingMinutes = 30
	}
	if len(c.Scheduling.AllowedDurations) == 0 {
		c.Scheduling.AllowedDurations = append([]int(nil), schedule.DefaultAllowedDurations...)
	}
	if c.Scheduling.SlotMinutes == 0 {
		c.Scheduling.SlotMinutes = 10
	}
	if c.Notifier.LeadMinutes == 0 {
		c.Notifier.LeadMinutes = 5
	}
	if c.Notifier.CheckSeconds == 0 {
		c.Notifier.CheckSeconds = 30
	}
	if c.Notifier.RatePerSecond == 0 {
		c.Notifier.RatePerSecond = 20
	}
	if c.Notifier.Burst == 0 {
		c.Notifier.Burst = 30
	}
	if c.Audit.RetentionDays == 0 {
		c.Audit.RetentionDays = 31
	}
	if c.Audit.ExportDir == "" {
		c.Audit.ExportDir = "data/exports"
	}
}

// Location resolves the configured anchor timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Scheduling.Timezone)
}

// ShiftSet returns the configured three shifts, defaulting to the
// standard morning/afternoon/night deployment.
func (c *Config) ShiftSet() ([3]shift.Shift, error) {
	if len(c.Scheduling.Shifts) == 0 {
		return shift.DefaultShifts(), nil
	}
	if len(c.Scheduling.Shifts) != 3 {
		return [3]shift.Shift{}, fmt.Errorf("scheduling.shifts must list exactly 3 shifts, got %d", len(c.Scheduling.Shifts))
	}
	var set [3]shift.Shift
	copy(set[:], c.Scheduling.Shifts)
	return set, nil
}

// NotifierLead returns the reminder lead time before a break starts.
func (c *Config) NotifierLead() time.Duration {
	return time.Duration(c.Notifier.LeadMinutes) * time.Minute
}

// NotifierInterval returns how often the reminder loop scans.
func (c *Config) NotifierInterval() time.Duration {
	return time.Duration(c.Notifier.CheckSeconds) * time.Second
}

// AuditRetention returns how long reservations are kept before sweep.
func (c *Config) AuditRetention() time.Duration {
	return time.Duration(c.Audit.RetentionDays) * 24 * time.Hour
}
