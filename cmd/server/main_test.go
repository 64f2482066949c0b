package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aiwuxian/apocalypse/internal/models"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	data := `
server:
  port: "9000"
llm:
  model: gpt-4o-mini
game:
  start_date: "2019-09-01"
  empty_pool_policy: filler
  countdowns:
    - name: 期中考试
      date: "2019-11-10"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APOCALYPSE_SERVER_PORT", "9100")
	t.Setenv("APOCALYPSE_GAME_SAVE_SLOTS", "8")

	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if config.Server.Port != "9100" {
		t.Errorf("port = %s, want env override 9100", config.Server.Port)
	}
	if config.LLM.Model != "gpt-4o-mini" {
		t.Errorf("model = %s", config.LLM.Model)
	}
	if config.Game.StartDate != "2019-09-01" || config.Game.EndDate != "2020-07-07" {
		t.Errorf("dates = %s..%s", config.Game.StartDate, config.Game.EndDate)
	}
	if config.Game.EmptyPoolPolicy != models.EmptyPoolFiller {
		t.Errorf("policy = %s", config.Game.EmptyPoolPolicy)
	}
	if config.Game.SaveSlots != 8 {
		t.Errorf("save slots = %d, want 8", config.Game.SaveSlots)
	}
	if len(config.Game.Countdowns) != 1 || config.Game.Countdowns[0].Name != "期中考试" {
		t.Errorf("countdowns = %+v", config.Game.Countdowns)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	config, err := loadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if config.Server.Port != "8080" || config.Game.TriggerInterval != 3 || config.Game.SaveSlots != 5 {
		t.Errorf("defaults not applied: %+v", config)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Error("expected parse error")
	}
}
