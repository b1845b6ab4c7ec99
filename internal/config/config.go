package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Gate     GateConfig     `mapstructure:"gate"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	AdminUsers     []int64       `mapstructure:"admin_users"`
	PollingTimeout int           `mapstructure:"polling_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// GateConfig controls where joins are watched and how challenges are built.
type GateConfig struct {
	SourceChatID      int64         `mapstructure:"source_chat_id"`
	TargetChatID      int64         `mapstructure:"target_chat_id"`
	RestrictionWindow time.Duration `mapstructure:"restriction_window"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	DecoyCount        int           `mapstructure:"decoy_count"`
	OperandMin        int           `mapstructure:"operand_min"`
	OperandMax        int           `mapstructure:"operand_max"`
	DecoyMin          int           `mapstructure:"decoy_min"`
	DecoyMax          int           `mapstructure:"decoy_max"`
	InviteTTL         time.Duration `mapstructure:"invite_ttl"`
	BanOnSuccess      bool          `mapstructure:"ban_on_success"`
}

type AuditConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSONFormat bool   `mapstructure:"json_format"`
}

func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/gate-tg-bot")

	// Environment variables
	v.SetEnvPrefix("GATE_BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return decode(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.admin_users", []int64{})
	v.SetDefault("telegram.polling_timeout", 60)
	v.SetDefault("telegram.request_timeout", "30s")
	v.SetDefault("gate.source_chat_id", 0)
	v.SetDefault("gate.target_chat_id", 0)
	v.SetDefault("gate.restriction_window", "5m")
	v.SetDefault("gate.sweep_interval", "5s")
	v.SetDefault("gate.decoy_count", 2)
	v.SetDefault("gate.operand_min", 1)
	v.SetDefault("gate.operand_max", 9)
	v.SetDefault("gate.decoy_min", 2)
	v.SetDefault("gate.decoy_max", 19)
	v.SetDefault("gate.invite_ttl", "10m")
	v.SetDefault("gate.ban_on_success", true)
	v.SetDefault("audit.db_path", "data/audit.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json_format", false)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.RequestTimeout <= 0 {
		return fmt.Errorf("telegram.request_timeout must be positive")
	}
	return c.Gate.Validate()
}

// Validate checks the gate settings on their own so callers that build a
// GateConfig by hand (tests, tools) get the same guarantees as Load.
func (g GateConfig) Validate() error {
	if g.SourceChatID == 0 {
		return fmt.Errorf("gate.source_chat_id is required")
	}
	if g.TargetChatID == 0 {
		return fmt.Errorf("gate.target_chat_id is required")
	}
	if g.SourceChatID == g.TargetChatID {
		return fmt.Errorf("gate.source_chat_id and gate.target_chat_id must differ")
	}
	if g.RestrictionWindow <= 0 {
		return fmt.Errorf("gate.restriction_window must be positive")
	}
	if g.SweepInterval <= 0 {
		return fmt.Errorf("gate.sweep_interval must be positive")
	}
	if g.InviteTTL <= 0 {
		return fmt.Errorf("gate.invite_ttl must be positive")
	}
	if g.DecoyCount < 1 {
		return fmt.Errorf("gate.decoy_count must be at least 1")
	}
	if g.OperandMin < 1 || g.OperandMax < g.OperandMin {
		return fmt.Errorf("gate.operand_min must be >= 1 and <= gate.operand_max")
	}
	if g.DecoyMax < g.DecoyMin {
		return fmt.Errorf("gate.decoy_min must be <= gate.decoy_max")
	}
	// One value in the decoy range may be taken by the expected answer.
	if g.DecoyMax-g.DecoyMin < g.DecoyCount {
		return fmt.Errorf("gate decoy range [%d, %d] cannot supply %d distinct decoys",
			g.DecoyMin, g.DecoyMax, g.DecoyCount)
	}
	return nil
}
