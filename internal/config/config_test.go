package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validGate() GateConfig {
	return GateConfig{
		SourceChatID:      -1001,
		TargetChatID:      -1002,
		RestrictionWindow: 5 * time.Minute,
		SweepInterval:     5 * time.Second,
		DecoyCount:        2,
		OperandMin:        1,
		OperandMax:        9,
		DecoyMin:          2,
		DecoyMax:          19,
		InviteTTL:         10 * time.Minute,
		BanOnSuccess:      true,
	}
}

func TestDecodeAppliesDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("telegram.bot_token", "token")
	v.Set("gate.source_chat_id", -1001)
	v.Set("gate.target_chat_id", -1002)

	cfg, err := decode(v)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if cfg.Gate.RestrictionWindow != 5*time.Minute {
		t.Errorf("restriction window = %v, want 5m", cfg.Gate.RestrictionWindow)
	}
	if cfg.Gate.DecoyCount != 2 {
		t.Errorf("decoy count = %d, want 2", cfg.Gate.DecoyCount)
	}
	if cfg.Gate.OperandMin != 1 || cfg.Gate.OperandMax != 9 {
		t.Errorf("operand range = [%d, %d], want [1, 9]", cfg.Gate.OperandMin, cfg.Gate.OperandMax)
	}
	if cfg.Gate.DecoyMin != 2 || cfg.Gate.DecoyMax != 19 {
		t.Errorf("decoy range = [%d, %d], want [2, 19]", cfg.Gate.DecoyMin, cfg.Gate.DecoyMax)
	}
	if !cfg.Gate.BanOnSuccess {
		t.Error("ban_on_success should default to true")
	}
	if cfg.Telegram.PollingTimeout != 60 {
		t.Errorf("polling timeout = %d, want 60", cfg.Telegram.PollingTimeout)
	}
	if cfg.Audit.DBPath != "data/audit.db" {
		t.Errorf("audit db path = %q", cfg.Audit.DBPath)
	}
}

func TestDecodeRejectsMissingToken(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("gate.source_chat_id", -1001)
	v.Set("gate.target_chat_id", -1002)

	if _, err := decode(v); err == nil || !strings.Contains(err.Error(), "bot_token") {
		t.Fatalf("expected bot_token error, got %v", err)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("GATE_BOT_TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("GATE_BOT_GATE_SOURCE_CHAT_ID", "-100500")
	t.Setenv("GATE_BOT_GATE_TARGET_CHAT_ID", "-100600")
	t.Setenv("GATE_BOT_GATE_RESTRICTION_WINDOW", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.BotToken != "env-token" {
		t.Errorf("bot token = %q", cfg.Telegram.BotToken)
	}
	if cfg.Gate.SourceChatID != -100500 || cfg.Gate.TargetChatID != -100600 {
		t.Errorf("chats = %d/%d", cfg.Gate.SourceChatID, cfg.Gate.TargetChatID)
	}
	if cfg.Gate.RestrictionWindow != 90*time.Second {
		t.Errorf("restriction window = %v", cfg.Gate.RestrictionWindow)
	}
}

func TestGateValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GateConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*GateConfig) {}},
		{name: "missing source", mutate: func(g *GateConfig) { g.SourceChatID = 0 }, wantErr: "source_chat_id"},
		{name: "missing target", mutate: func(g *GateConfig) { g.TargetChatID = 0 }, wantErr: "target_chat_id"},
		{name: "same chats", mutate: func(g *GateConfig) { g.TargetChatID = g.SourceChatID }, wantErr: "must differ"},
		{name: "zero window", mutate: func(g *GateConfig) { g.RestrictionWindow = 0 }, wantErr: "restriction_window"},
		{name: "zero sweep", mutate: func(g *GateConfig) { g.SweepInterval = 0 }, wantErr: "sweep_interval"},
		{name: "zero invite ttl", mutate: func(g *GateConfig) { g.InviteTTL = 0 }, wantErr: "invite_ttl"},
		{name: "no decoys", mutate: func(g *GateConfig) { g.DecoyCount = 0 }, wantErr: "decoy_count"},
		{name: "operand zero", mutate: func(g *GateConfig) { g.OperandMin = 0 }, wantErr: "operand_min"},
		{name: "operand inverted", mutate: func(g *GateConfig) { g.OperandMax = 0 }, wantErr: "operand_min"},
		{name: "decoy inverted", mutate: func(g *GateConfig) { g.DecoyMin, g.DecoyMax = 10, 5 }, wantErr: "decoy_min"},
		{name: "decoy range too small", mutate: func(g *GateConfig) { g.DecoyMin, g.DecoyMax = 2, 3 }, wantErr: "cannot supply"},
		{name: "decoy range just enough", mutate: func(g *GateConfig) { g.DecoyMin, g.DecoyMax = 2, 4 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGate()
			tt.mutate(&g)
			err := g.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
